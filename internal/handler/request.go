package handler

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/wire"
)

// AddCartItemRequest is the body of POST /api/customers/{id}/cart.
// Quantity is checked by the cart service.
type AddCartItemRequest struct {
	ProductID string `validate:"required,max=128,printascii"`
	Quantity  int
}

func (req *AddCartItemRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
}

// UpdateCartItemRequest is the body of PUT /api/customers/{id}/cart/{product_id}.
type UpdateCartItemRequest struct {
	Quantity int
}

func (req *UpdateCartItemRequest) decode(d *jx.Decoder) error {
	return d.Obj(func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		v, err := d.Int()
		req.Quantity = v
		return fieldErr(err, key)
	})
}

// EvaluateRequest is the body of POST /api/evaluate:
// {"items": [...], "coupons": [...], "customer": {...}}.
type EvaluateRequest struct {
	Items    []cart.LineItem `validate:"max=1000"`
	Coupons  []coupon.Coupon `validate:"max=500"`
	Customer coupon.Customer `validate:"-"`
}

func (req *EvaluateRequest) decode(d *jx.Decoder) error {
	req.Customer = coupon.Customer{Tier: coupon.TierBasic}
	return d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			req.Items, err = wire.DecodeLineItems(d)
		case "coupons":
			err = d.Arr(func(d *jx.Decoder) error {
				c, err := wire.DecodeCoupon(d)
				if err != nil {
					return err
				}
				req.Coupons = append(req.Coupons, *c)
				return nil
			})
		case "customer":
			req.Customer, err = wire.DecodeCustomer(d)
		default:
			err = d.Skip()
		}
		return fieldErr(err, key)
	})
}

func fieldErr(err error, key string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "field %q", key)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterStructValidation(evaluateStructValidation, EvaluateRequest{})
	return v
}

// evaluateStructValidation rejects coupon sets with repeated ids, which
// would make the ranking ambiguous.
func evaluateStructValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(EvaluateRequest)

	seen := make(map[string]struct{}, len(req.Coupons))
	for _, c := range req.Coupons {
		if _, dup := seen[c.ID]; dup {
			sl.ReportError(req.Coupons, "coupons", "Coupons", "unique_coupon_ids", c.ID)
			return
		}
		seen[c.ID] = struct{}{}
	}
}
