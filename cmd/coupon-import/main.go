// Command coupon-import bulk loads coupon definitions from gzip-compressed
// NDJSON files. Each line holds one coupon in the API representation.
//
// A coupon id that occurs in more than one file is a conflict: the files
// disagree on its definition, so it is skipped and reported instead of
// letting the last file win.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/kart-coupons/internal/storage/postgres"
)

func main() {
	var (
		opts        options
		dataDir     string
		pattern     string
		databaseURL string
	)
	flag.StringVar(&dataDir, "data-dir", "data", "directory containing coupon files")
	flag.StringVar(&pattern, "pattern", "*.ndjson.gz", "file name glob inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "validate only, do not write")
	flag.BoolVar(&opts.Strict, "strict", false, "fail on the first invalid coupon")
	flag.UintVar(&opts.ExpectedPerFile, "expected", 1_000_000, "expected coupons per file, sizes the bloom filters")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !opts.DryRun {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, filepath.Join(dataDir, pattern), databaseURL, opts); err != nil {
		lg.Fatal("Coupon import failed", zap.Error(err))
	}
}

func run(ctx context.Context, lg *zap.Logger, glob, databaseURL string, opts options) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrap(err, "glob")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}

	var store couponStore = discardStore{}
	if !opts.DryRun {
		pool, err := postgres.NewPool(ctx, databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		store = postgres.NewCouponRepository(pool)
	}

	imp := &importer{lg: lg, store: store, opts: opts}
	stats, err := imp.Import(ctx, files)
	if err != nil {
		return err
	}
	lg.Info("Coupon import completed",
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("files", len(files)),
		zap.Int("imported", stats.Imported),
		zap.Int("conflicts", stats.Conflicts),
		zap.Int("invalid", stats.Invalid),
	)
	return nil
}
