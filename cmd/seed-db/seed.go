package main

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-coupons/internal/domain/auth"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/customer"
	"github.com/xenking/kart-coupons/internal/domain/product"
	"github.com/xenking/kart-coupons/internal/wire"
)

//go:embed data/coupons.ndjson
var sampleCoupons []byte

var sampleProducts = []product.Product{
	{ID: "shirt-oxford", Name: "Oxford Shirt", Price: decimal.RequireFromString("49.90"), Category: "Shirts"},
	{ID: "shirt-linen", Name: "Linen Shirt", Price: decimal.RequireFromString("59.00"), Category: "Shirts"},
	{ID: "tie-silk", Name: "Silk Tie", Price: decimal.RequireFromString("35.00"), Category: "Accessories"},
	{ID: "tie-knit", Name: "Knit Tie", Price: decimal.RequireFromString("25.50"), Category: "Accessories"},
	{ID: "socks-wool", Name: "Wool Socks", Price: decimal.RequireFromString("12.99"), Category: "Accessories"},
	{ID: "shoes-derby", Name: "Derby Shoes", Price: decimal.RequireFromString("189.00"), Category: "Shoes"},
	{ID: "belt-leather", Name: "Leather Belt", Price: decimal.RequireFromString("39.95"), Category: "Accessories"},
}

// sampleCustomers has one customer per tier. Gold and Platinum customers
// get an exclusive coupon with a limited number of uses.
var sampleCustomers = []customer.Customer{
	{ID: "cust-basic", Name: "Bea Basic", Tier: coupon.TierBasic},
	{ID: "cust-silver", Name: "Sam Silver", Tier: coupon.TierSilver},
	{ID: "cust-gold", Name: "Gil Gold", Tier: coupon.TierGold, ExclusiveUses: map[string]int{"VIP-GOLD": 2}},
	{ID: "cust-platinum", Name: "Pat Platinum", Tier: coupon.TierPlatinum, ExclusiveUses: map[string]int{"VIP-PLATINUM": 5}},
}

type productStore interface {
	Upsert(ctx context.Context, p *product.Product) error
}

type couponStore interface {
	Upsert(ctx context.Context, c *coupon.Coupon) error
}

type customerStore interface {
	Upsert(ctx context.Context, c *customer.Customer) error
}

type seeder struct {
	lg        *zap.Logger
	products  productStore
	coupons   couponStore
	customers customerStore
	keys      auth.Repository
}

// Seed upserts the sample data. Coupons go before customers because
// exclusive uses reference them.
func (s *seeder) Seed(ctx context.Context, apiKey string, pepper []byte) error {
	for i := range sampleProducts {
		p := &sampleProducts[i]
		if err := p.Validate(); err != nil {
			return errors.Wrapf(err, "product %q", p.ID)
		}
		if err := s.products.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %q", p.ID)
		}
	}
	s.lg.Info("Products seeded", zap.Int("count", len(sampleProducts)))

	coupons, err := parseCoupons(sampleCoupons)
	if err != nil {
		return err
	}
	for _, c := range coupons {
		if err := s.coupons.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %q", c.ID)
		}
	}
	s.lg.Info("Coupons seeded", zap.Int("count", len(coupons)))

	for i := range sampleCustomers {
		c := &sampleCustomers[i]
		if err := s.customers.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert customer %q", c.ID)
		}
	}
	s.lg.Info("Customers seeded", zap.Int("count", len(sampleCustomers)))

	if err := s.keys.Upsert(ctx, &auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.Hash(pepper, apiKey),
		Name:    "Default key",
		Scopes:  []string{"coupons:write", "carts:write"},
		Active:  true,
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}
	s.lg.Info("API key seeded", zap.String("id", "default"))
	return nil
}

// parseCoupons decodes one coupon per non-empty line.
func parseCoupons(data []byte) ([]*coupon.Coupon, error) {
	var out []*coupon.Coupon
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for line := 1; scanner.Scan(); line++ {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		c, err := wire.UnmarshalCoupon(scanner.Bytes())
		if err != nil {
			return nil, errors.Wrapf(err, "coupon line %d", line)
		}
		out = append(out, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan coupons")
	}
	return out, nil
}
