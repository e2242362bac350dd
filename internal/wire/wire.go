// Package wire encodes and decodes the JSON representation of coupons,
// carts and evaluation results.
//
// The same coupon shape is used by the HTTP API, the details JSONB column
// and the NDJSON import files:
//
//	{
//	  "coupon_id": "SAVE20",
//	  "type": "cart-wise",
//	  "details": {"threshold": 100, "discount_percentage": 20, "max_discount": 50},
//	  "is_active": true,
//	  "valid_from": "2025-01-01T00:00:00Z",
//	  "valid_until": null,
//	  "eligible_tiers": ["Gold"],
//	  "description": "20% off orders over 100"
//	}
package wire

import (
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// timeLayouts are accepted for timestamps, most specific first. Layouts
// without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.RawStr(v.String())
}

// decodeDecimal accepts a JSON number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s, want number", d.Next())
	}
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339Nano))
}

func decodeTime(d *jx.Decoder) (time.Time, error) {
	s, err := d.Str()
	if err != nil {
		return time.Time{}, err
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("invalid timestamp %q", s)
}

func encodeStrings(e *jx.Encoder, vs []string) {
	e.ArrStart()
	for _, v := range vs {
		e.Str(v)
	}
	e.ArrEnd()
}

func decodeStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	if err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// isNull consumes a JSON null if it is the next value.
func isNull(d *jx.Decoder) (bool, error) {
	if d.Next() != jx.Null {
		return false, nil
	}
	return true, d.Null()
}

// raw copies the next value. The slice returned by Decoder.Raw is only
// valid until the next read.
func raw(d *jx.Decoder) ([]byte, error) {
	r, err := d.Raw()
	if err != nil {
		return nil, err
	}
	return slices.Clone([]byte(r)), nil
}

func field(err error, name string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "field %q", name)
}
