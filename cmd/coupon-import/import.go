package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/wire"
)

const (
	bloomFPR      = 0.001
	maxFiles      = bits.UintSize
	maxLineSize   = 1 << 20
	progressEvery = 100_000
)

type options struct {
	DryRun          bool
	Strict          bool
	ExpectedPerFile uint
}

// couponStore is implemented by *postgres.CouponRepository.
type couponStore interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

type discardStore struct{}

func (discardStore) Upsert(context.Context, *coupon.Coupon) error { return nil }

type stats struct {
	Imported  int
	Conflicts int
	Invalid   int
}

type importer struct {
	lg    *zap.Logger
	store couponStore
	opts  options
}

// Import runs three passes over files: bloom filters of the ids in each
// file, exact detection of ids present in two or more files, and finally
// validation and upsert of every non-conflicting coupon.
func (imp *importer) Import(ctx context.Context, files []string) (stats, error) {
	if len(files) > maxFiles {
		return stats{}, errors.Errorf("too many files: %d, at most %d", len(files), maxFiles)
	}

	imp.lg.Info("Pass 1: building bloom filters", zap.Int("files", len(files)))
	filters, err := imp.buildFilters(ctx, files)
	if err != nil {
		return stats{}, errors.Wrap(err, "build bloom filters")
	}

	imp.lg.Info("Pass 2: finding conflicting ids")
	conflicts, err := imp.findConflicts(ctx, files, filters)
	if err != nil {
		return stats{}, errors.Wrap(err, "find conflicts")
	}
	for id := range conflicts {
		imp.lg.Warn("Conflicting coupon skipped", zap.String("coupon_id", id))
	}

	imp.lg.Info("Pass 3: importing coupons", zap.Int("conflicts", len(conflicts)))
	st := stats{Conflicts: len(conflicts)}
	for _, path := range files {
		if err := imp.importFile(ctx, path, conflicts, &st); err != nil {
			return st, errors.Wrapf(err, "import %s", path)
		}
	}
	return st, nil
}

func (imp *importer) buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(max(imp.opts.ExpectedPerFile, 1), bloomFPR)
			var n int
			if err := streamIDs(ctx, path, func(id string) {
				filter.AddString(id)
				n++
			}); err != nil {
				return err
			}
			imp.lg.Info("Pass 1 file complete", zap.String("file", path), zap.Int("coupons", n))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// findConflicts returns the ids present in at least two files. Bloom hits
// only nominate candidates; the per-file bitmask makes the result exact.
func (imp *importer) findConflicts(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	var (
		mu    sync.Mutex
		masks = make(map[string]uint)
	)
	g, gCtx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			bit := uint(1) << uint(i)
			local := make(map[string]uint)
			if err := streamIDs(gCtx, path, func(id string) {
				for j, f := range filters {
					if j != i && f.TestString(id) {
						local[id] |= bit
						return
					}
				}
			}); err != nil {
				return err
			}
			mu.Lock()
			for id, m := range local {
				masks[id] |= m
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	conflicts := make(map[string]struct{})
	for id, m := range masks {
		if bits.OnesCount(m) >= 2 {
			conflicts[id] = struct{}{}
		}
	}
	return conflicts, nil
}

func (imp *importer) importFile(ctx context.Context, path string, conflicts map[string]struct{}, st *stats) error {
	line := 0
	return streamLines(ctx, path, func(data []byte) error {
		line++
		c, err := wire.UnmarshalCoupon(data)
		if err != nil {
			if imp.opts.Strict {
				return errors.Wrapf(err, "line %d", line)
			}
			st.Invalid++
			imp.lg.Warn("Invalid coupon skipped",
				zap.String("file", path),
				zap.Int("line", line),
				zap.Error(err),
			)
			return nil
		}
		if _, ok := conflicts[c.ID]; ok {
			return nil
		}
		if err := imp.store.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert %q", c.ID)
		}
		st.Imported++
		if st.Imported%progressEvery == 0 {
			imp.lg.Info("Import progress", zap.Int("imported", st.Imported))
		}
		return nil
	})
}

// streamIDs calls fn with the coupon id of every line that has one.
// Lines without an id are left for pass 3 to report.
func streamIDs(ctx context.Context, path string, fn func(id string)) error {
	return streamLines(ctx, path, func(data []byte) error {
		if id, ok := couponID(data); ok {
			fn(id)
		}
		return nil
	})
}

// couponID extracts "coupon_id" (or "id") without decoding the rest.
func couponID(data []byte) (string, bool) {
	var id string
	err := jx.DecodeBytes(data).ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "coupon_id", "id":
			v, err := d.Str()
			id = v
			return err
		default:
			return d.Skip()
		}
	})
	return id, err == nil && id != ""
}

// streamLines calls fn for every non-empty line of a gzip-compressed file.
func streamLines(ctx context.Context, path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan")
	}
	return nil
}
