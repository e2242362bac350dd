package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
)

// EncodeLineItem writes a cart line with its subtotal.
func EncodeLineItem(e *jx.Encoder, li cart.LineItem) {
	e.ObjStart()
	e.FieldStart("product_id")
	e.Str(li.ProductID)
	e.FieldStart("quantity")
	e.Int(li.Quantity)
	e.FieldStart("price")
	encodeDecimal(e, li.UnitPrice)
	e.FieldStart("subtotal")
	encodeDecimal(e, li.Subtotal())
	e.ObjEnd()
}

// EncodeLineItems writes a JSON array of cart lines.
func EncodeLineItems(e *jx.Encoder, items []cart.LineItem) {
	e.ArrStart()
	for _, li := range items {
		EncodeLineItem(e, li)
	}
	e.ArrEnd()
}

// EncodeSnapshot writes {"items": [...], "total": n}.
func EncodeSnapshot(e *jx.Encoder, sn *cart.Snapshot) {
	e.ObjStart()
	e.FieldStart("items")
	EncodeLineItems(e, sn.Items())
	e.FieldStart("total")
	encodeDecimal(e, sn.Total())
	e.ObjEnd()
}

// DecodeLineItem reads {"product_id", "quantity", "price"}.
func DecodeLineItem(d *jx.Decoder) (cart.LineItem, error) {
	var li cart.LineItem
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			li.ProductID = v
			return field(err, key)
		case "quantity":
			v, err := d.Int()
			li.Quantity = v
			return field(err, key)
		case "price", "unit_price":
			v, err := decodeDecimal(d)
			li.UnitPrice = v
			return field(err, key)
		default:
			return d.Skip()
		}
	})
	return li, err
}

// DecodeLineItems reads an array of cart lines.
func DecodeLineItems(d *jx.Decoder) ([]cart.LineItem, error) {
	var items []cart.LineItem
	if err := d.Arr(func(d *jx.Decoder) error {
		li, err := DecodeLineItem(d)
		if err != nil {
			return err
		}
		items = append(items, li)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode cart items")
	}
	return items, nil
}

// DecodeCustomer reads an evaluation context:
// {"tier": "Gold", "exclusive_uses": {"VIP": 2}, "now": "..."}.
// A missing tier defaults to Basic.
func DecodeCustomer(d *jx.Decoder) (coupon.Customer, error) {
	cust := coupon.Customer{Tier: coupon.TierBasic}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "tier":
			v, err := d.Str()
			cust.Tier = coupon.Tier(v)
			return field(err, key)
		case "exclusive_uses", "exclusive_coupons":
			cust.ExclusiveUses = map[string]int{}
			return field(d.Obj(func(d *jx.Decoder, id string) error {
				n, err := d.Int()
				cust.ExclusiveUses[id] = n
				return err
			}), key)
		case "now":
			v, err := decodeTime(d)
			cust.Now = v
			return field(err, key)
		default:
			return d.Skip()
		}
	}); err != nil {
		return coupon.Customer{}, errors.Wrap(err, "decode customer")
	}
	if !cust.Tier.Valid() {
		return coupon.Customer{}, errors.Errorf("unknown tier %q", cust.Tier)
	}
	return cust, nil
}
