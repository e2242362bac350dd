package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-coupons/internal/domain/coupon"
)

// EncodeCoupon writes c as a JSON object.
func EncodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	e.ObjStart()
	e.FieldStart("coupon_id")
	e.Str(c.ID)
	e.FieldStart("type")
	e.Str(string(c.Type()))
	e.FieldStart("details")
	EncodeRules(e, c.Rules)
	e.FieldStart("is_active")
	e.Bool(c.Active)
	e.FieldStart("valid_from")
	encodeTime(e, c.ValidFrom)
	e.FieldStart("valid_until")
	if c.ValidUntil != nil {
		encodeTime(e, *c.ValidUntil)
	} else {
		e.Null()
	}
	e.FieldStart("eligible_tiers")
	e.ArrStart()
	for _, t := range c.EligibleTiers {
		e.Str(string(t))
	}
	e.ArrEnd()
	e.FieldStart("description")
	e.Str(c.Description)
	e.ObjEnd()
}

// EncodeCoupons writes a JSON array of coupons.
func EncodeCoupons(e *jx.Encoder, cs []coupon.Coupon) {
	e.ArrStart()
	for i := range cs {
		EncodeCoupon(e, &cs[i])
	}
	e.ArrEnd()
}

// MarshalCoupon returns the JSON encoding of c.
func MarshalCoupon(c *coupon.Coupon) []byte {
	var e jx.Encoder
	EncodeCoupon(&e, c)
	return e.Bytes()
}

// UnmarshalCoupon decodes and validates a coupon from data.
func UnmarshalCoupon(data []byte) (*coupon.Coupon, error) {
	return DecodeCoupon(jx.DecodeBytes(data))
}

// DecodeCoupon reads a coupon object and validates it. Malformed JSON is
// reported as a plain error; a well-formed object that violates a coupon
// invariant yields a *coupon.DefinitionError.
func DecodeCoupon(d *jx.Decoder) (*coupon.Coupon, error) {
	c := &coupon.Coupon{Active: true}
	var (
		typ          coupon.Type
		details      []byte
		hasValidFrom bool
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "coupon_id", "id":
			v, err := d.Str()
			c.ID = v
			return field(err, key)
		case "type":
			v, err := d.Str()
			typ = coupon.Type(v)
			return field(err, key)
		case "details":
			v, err := raw(d)
			details = v
			return field(err, key)
		case "is_active":
			v, err := d.Bool()
			c.Active = v
			return field(err, key)
		case "valid_from":
			v, err := decodeTime(d)
			c.ValidFrom = v
			hasValidFrom = true
			return field(err, key)
		case "valid_until":
			if null, err := isNull(d); null || err != nil {
				return field(err, key)
			}
			v, err := decodeTime(d)
			c.ValidUntil = &v
			return field(err, key)
		case "eligible_tiers", "user_tiers":
			if null, err := isNull(d); null || err != nil {
				return field(err, key)
			}
			vs, err := decodeStrings(d)
			if err != nil {
				return field(err, key)
			}
			c.EligibleTiers = make([]coupon.Tier, 0, len(vs))
			for _, v := range vs {
				c.EligibleTiers = append(c.EligibleTiers, coupon.Tier(v))
			}
			return nil
		case "description":
			if null, err := isNull(d); null || err != nil {
				return field(err, key)
			}
			v, err := d.Str()
			c.Description = v
			return field(err, key)
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode coupon")
	}

	if details == nil {
		return nil, &coupon.DefinitionError{CouponID: c.ID, Field: "details", Reason: "required"}
	}
	rules, err := DecodeRules(c.ID, typ, details)
	if err != nil {
		return nil, err
	}
	c.Rules = rules
	if !hasValidFrom {
		return nil, required(c.ID, "valid_from")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeRules writes the details object of a rules variant.
func EncodeRules(e *jx.Encoder, r coupon.Rules) {
	e.ObjStart()
	switch r := r.(type) {
	case coupon.CartWide:
		e.FieldStart("threshold")
		encodeDecimal(e, r.Threshold)
		e.FieldStart("discount_percentage")
		encodeDecimal(e, r.DiscountPercentage)
		if r.MaxDiscount != nil {
			e.FieldStart("max_discount")
			encodeDecimal(e, *r.MaxDiscount)
		}
	case coupon.ProductWise:
		e.FieldStart("product_ids")
		encodeStrings(e, r.ProductIDs)
		e.FieldStart("discount_percentage")
		encodeDecimal(e, r.DiscountPercentage)
		if r.MinQuantity > 0 {
			e.FieldStart("min_quantity")
			e.Int(r.MinQuantity)
		}
	case coupon.BuyXGetY:
		e.FieldStart("buy_products")
		encodeStrings(e, r.BuyProducts)
		e.FieldStart("buy_quantity")
		e.Int(r.BuyQuantity)
		e.FieldStart("get_products")
		encodeStrings(e, r.GetProducts)
		e.FieldStart("get_quantity")
		e.Int(r.GetQuantity)
		e.FieldStart("discount_percentage")
		encodeDecimal(e, r.DiscountPercentage)
		if r.RepetitionLimit > 0 {
			e.FieldStart("repetition_limit")
			e.Int(r.RepetitionLimit)
		}
	}
	e.ObjEnd()
}

// MarshalRules returns the JSON details object of r.
func MarshalRules(r coupon.Rules) []byte {
	var e jx.Encoder
	EncodeRules(&e, r)
	return e.Bytes()
}

// DecodeRules decodes the details object for the variant named by typ.
func DecodeRules(couponID string, typ coupon.Type, data []byte) (coupon.Rules, error) {
	d := jx.DecodeBytes(data)
	switch typ {
	case coupon.TypeCartWise:
		return decodeCartWide(couponID, d)
	case coupon.TypeProductWise:
		return decodeProductWise(couponID, d)
	case coupon.TypeBxGy:
		return decodeBuyXGetY(couponID, d)
	case "":
		return nil, &coupon.DefinitionError{CouponID: couponID, Field: "type", Reason: "required"}
	default:
		return nil, &coupon.DefinitionError{CouponID: couponID, Field: "type", Reason: "unsupported type " + string(typ)}
	}
}

func required(couponID, name string) error {
	return &coupon.DefinitionError{CouponID: couponID, Field: name, Reason: "required"}
}

func decodeCartWide(couponID string, d *jx.Decoder) (coupon.Rules, error) {
	var (
		r                  coupon.CartWide
		hasThreshold, hasP bool
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "threshold":
			v, err := decodeDecimal(d)
			r.Threshold, hasThreshold = v, true
			return field(err, key)
		case "discount_percentage":
			v, err := decodeDecimal(d)
			r.DiscountPercentage, hasP = v, true
			return field(err, key)
		case "max_discount":
			if null, err := isNull(d); null || err != nil {
				return field(err, key)
			}
			v, err := decodeDecimal(d)
			r.MaxDiscount = &v
			return field(err, key)
		default:
			return d.Skip()
		}
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart-wise details")
	}

	switch {
	case !hasThreshold:
		return nil, required(couponID, "threshold")
	case !hasP:
		return nil, required(couponID, "discount_percentage")
	}
	return r, nil
}

func decodeProductWise(couponID string, d *jx.Decoder) (coupon.Rules, error) {
	var (
		r    coupon.ProductWise
		hasP bool
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_ids":
			v, err := decodeStrings(d)
			r.ProductIDs = v
			return field(err, key)
		case "discount_percentage":
			v, err := decodeDecimal(d)
			r.DiscountPercentage, hasP = v, true
			return field(err, key)
		case "min_quantity":
			if null, err := isNull(d); null || err != nil {
				return field(err, key)
			}
			v, err := d.Int()
			if err == nil && v < 1 {
				return &coupon.DefinitionError{CouponID: couponID, Field: key, Reason: "must be at least 1"}
			}
			r.MinQuantity = v
			return field(err, key)
		default:
			return d.Skip()
		}
	}); err != nil {
		var defErr *coupon.DefinitionError
		if errors.As(err, &defErr) {
			return nil, defErr
		}
		return nil, errors.Wrap(err, "decode product-wise details")
	}

	if !hasP {
		return nil, required(couponID, "discount_percentage")
	}
	return r, nil
}

func decodeBuyXGetY(couponID string, d *jx.Decoder) (coupon.Rules, error) {
	r := coupon.BuyXGetY{DiscountPercentage: decimal.NewFromInt(100)}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "buy_products":
			v, err := decodeStrings(d)
			r.BuyProducts = v
			return field(err, key)
		case "buy_quantity":
			v, err := d.Int()
			r.BuyQuantity = v
			return field(err, key)
		case "get_products":
			v, err := decodeStrings(d)
			r.GetProducts = v
			return field(err, key)
		case "get_quantity":
			v, err := d.Int()
			r.GetQuantity = v
			return field(err, key)
		case "discount_percentage":
			v, err := decodeDecimal(d)
			r.DiscountPercentage = v
			return field(err, key)
		case "repetition_limit":
			if null, err := isNull(d); null || err != nil {
				return field(err, key)
			}
			v, err := d.Int()
			if err == nil && v < 1 {
				return &coupon.DefinitionError{CouponID: couponID, Field: key, Reason: "must be at least 1"}
			}
			r.RepetitionLimit = v
			return field(err, key)
		default:
			return d.Skip()
		}
	}); err != nil {
		var defErr *coupon.DefinitionError
		if errors.As(err, &defErr) {
			return nil, defErr
		}
		return nil, errors.Wrap(err, "decode bxgy details")
	}
	return r, nil
}
