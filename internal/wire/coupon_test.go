package wire

import (
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-coupons/internal/domain/coupon"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestUnmarshalCoupon(t *testing.T) {
	from := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		check func(t *testing.T, c *coupon.Coupon)
	}{
		{
			name: "cart-wise with cap",
			input: `{"coupon_id":"SAVE20","type":"cart-wise",
				"details":{"threshold":100,"discount_percentage":20,"max_discount":"50.00"},
				"valid_from":"2025-01-01T00:00:00Z","valid_until":"2025-12-31T23:59:59Z",
				"eligible_tiers":["Gold","Platinum"],"description":"20% off"}`,
			check: func(t *testing.T, c *coupon.Coupon) {
				assert.Equal(t, "SAVE20", c.ID)
				assert.True(t, c.Active)
				assert.Equal(t, from, c.ValidFrom)
				require.NotNil(t, c.ValidUntil)
				assert.Equal(t, until, *c.ValidUntil)
				assert.Equal(t, []coupon.Tier{coupon.TierGold, coupon.TierPlatinum}, c.EligibleTiers)
				assert.Equal(t, "20% off", c.Description)

				r, ok := c.Rules.(coupon.CartWide)
				require.True(t, ok)
				assert.True(t, d("100").Equal(r.Threshold))
				assert.True(t, d("20").Equal(r.DiscountPercentage))
				require.NotNil(t, r.MaxDiscount)
				assert.True(t, d("50").Equal(*r.MaxDiscount))
			},
		},
		{
			name: "details before type and naive timestamp",
			input: `{"details":{"product_ids":["A","B"],"discount_percentage":15,"min_quantity":2},
				"type":"product-wise","coupon_id":"PW","is_active":false,
				"valid_from":"2025-01-01T00:00:00","user_tiers":["Basic"],"extra":{"ignored":[1,2]}}`,
			check: func(t *testing.T, c *coupon.Coupon) {
				assert.False(t, c.Active)
				assert.Equal(t, from, c.ValidFrom)
				assert.Nil(t, c.ValidUntil)
				assert.Equal(t, []coupon.Tier{coupon.TierBasic}, c.EligibleTiers)

				r, ok := c.Rules.(coupon.ProductWise)
				require.True(t, ok)
				assert.Equal(t, []string{"A", "B"}, r.ProductIDs)
				assert.Equal(t, 2, r.MinQuantity)
			},
		},
		{
			name: "bxgy defaults",
			input: `{"coupon_id":"B2G1","type":"bxgy","valid_from":"2025-01-01T00:00:00Z",
				"details":{"buy_products":["shirt"],"buy_quantity":2,"get_products":["tie"],"get_quantity":1,"repetition_limit":null}}`,
			check: func(t *testing.T, c *coupon.Coupon) {
				r, ok := c.Rules.(coupon.BuyXGetY)
				require.True(t, ok)
				assert.True(t, d("100").Equal(r.DiscountPercentage))
				assert.Equal(t, 0, r.RepetitionLimit)
				assert.Equal(t, 2, r.BuyQuantity)
				assert.Empty(t, c.EligibleTiers)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := UnmarshalCoupon([]byte(tt.input))
			require.NoError(t, err)
			tt.check(t, c)
		})
	}
}

func TestUnmarshalCoupon_Errors(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantField string
	}{
		{name: "malformed json", input: `{"coupon_id":`},
		{name: "wrong field type", input: `{"coupon_id":1,"type":"cart-wise","details":{}}`},
		{name: "missing details", input: `{"coupon_id":"X","type":"cart-wise"}`, wantField: "details"},
		{name: "missing type", input: `{"coupon_id":"X","details":{}}`, wantField: "type"},
		{name: "unknown type", input: `{"coupon_id":"X","type":"free-shipping","details":{}}`, wantField: "type"},
		{
			name:      "missing valid_from",
			input:     `{"coupon_id":"X","type":"cart-wise","details":{"threshold":0,"discount_percentage":10}}`,
			wantField: "valid_from",
		},
		{
			name:      "payload does not match type",
			input:     `{"coupon_id":"X","valid_from":"2025-01-01T00:00:00Z","type":"cart-wise","details":{"product_ids":["A"],"discount_percentage":10}}`,
			wantField: "threshold",
		},
		{
			name:      "missing percentage",
			input:     `{"coupon_id":"X","valid_from":"2025-01-01T00:00:00Z","type":"product-wise","details":{"product_ids":["A"]}}`,
			wantField: "discount_percentage",
		},
		{
			name:      "percentage out of range",
			input:     `{"coupon_id":"X","valid_from":"2025-01-01T00:00:00Z","type":"cart-wise","details":{"threshold":0,"discount_percentage":120}}`,
			wantField: "discount_percentage",
		},
		{
			name:      "zero repetition limit",
			input:     `{"coupon_id":"X","valid_from":"2025-01-01T00:00:00Z","type":"bxgy","details":{"buy_products":["A"],"buy_quantity":1,"get_products":["B"],"get_quantity":1,"repetition_limit":0}}`,
			wantField: "repetition_limit",
		},
		{
			name:      "zero min quantity",
			input:     `{"coupon_id":"X","valid_from":"2025-01-01T00:00:00Z","type":"product-wise","details":{"product_ids":["A"],"discount_percentage":5,"min_quantity":0}}`,
			wantField: "min_quantity",
		},
		{
			name:      "empty buy products",
			input:     `{"coupon_id":"X","valid_from":"2025-01-01T00:00:00Z","type":"bxgy","details":{"buy_products":[],"buy_quantity":1,"get_products":["B"],"get_quantity":1}}`,
			wantField: "buy_products",
		},
		{
			name:      "unknown tier",
			input:     `{"coupon_id":"X","type":"cart-wise","details":{"threshold":0,"discount_percentage":1},"valid_from":"2025-01-01T00:00:00Z","eligible_tiers":["Bronze"]}`,
			wantField: "eligible_tiers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalCoupon([]byte(tt.input))
			require.Error(t, err)

			if tt.wantField == "" {
				assert.NotErrorIs(t, err, coupon.ErrInvalidDefinition)
				return
			}
			var defErr *coupon.DefinitionError
			require.True(t, errors.As(err, &defErr), "got %v", err)
			assert.Equal(t, tt.wantField, defErr.Field)
		})
	}
}

func TestCoupon_RoundTrip(t *testing.T) {
	from := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	until := from.AddDate(0, 1, 0)
	capped := d("25.5")

	coupons := []coupon.Coupon{
		{
			ID: "CW", Active: true, ValidFrom: from, ValidUntil: &until,
			EligibleTiers: []coupon.Tier{coupon.TierSilver}, Description: "cart",
			Rules: coupon.CartWide{Threshold: d("99.99"), DiscountPercentage: d("12.5"), MaxDiscount: &capped},
		},
		{
			ID: "PW", ValidFrom: from,
			Rules: coupon.ProductWise{ProductIDs: []string{"A"}, DiscountPercentage: d("7"), MinQuantity: 3},
		},
		{
			ID: "BX", Active: true, ValidFrom: from,
			Rules: coupon.BuyXGetY{
				BuyProducts: []string{"A", "B"}, BuyQuantity: 3,
				GetProducts: []string{"C"}, GetQuantity: 1,
				DiscountPercentage: d("50"), RepetitionLimit: 2,
			},
		},
	}

	for _, want := range coupons {
		t.Run(want.ID, func(t *testing.T) {
			got, err := UnmarshalCoupon(MarshalCoupon(&want))
			require.NoError(t, err)

			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.Active, got.Active)
			assert.Equal(t, want.ValidFrom, got.ValidFrom)
			assert.Equal(t, want.ValidUntil, got.ValidUntil)
			assert.Equal(t, want.Description, got.Description)
			assert.Equal(t, want.Type(), got.Type())
			assert.JSONEq(t, string(MarshalRules(want.Rules)), string(MarshalRules(got.Rules)))
		})
	}
}

func TestEncodeCoupons(t *testing.T) {
	var e jx.Encoder
	EncodeCoupons(&e, nil)
	assert.Equal(t, "[]", string(e.Bytes()))
}
