package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/redemption"
)

func encodeLines(e *jx.Encoder, lines []coupon.LineDiscount) {
	e.ArrStart()
	for _, l := range lines {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Str(l.ProductID)
		e.FieldStart("units")
		e.Int(l.Units)
		e.FieldStart("discount")
		encodeDecimal(e, l.Amount.Round(4))
		e.ObjEnd()
	}
	e.ArrEnd()
}

// EncodeResult writes one coupon evaluation.
func EncodeResult(e *jx.Encoder, r coupon.Result) {
	e.ObjStart()
	e.FieldStart("coupon_id")
	e.Str(r.CouponID)
	e.FieldStart("type")
	e.Str(string(r.CouponType))
	e.FieldStart("applicable")
	e.Bool(r.Applicable)
	if r.Reason != coupon.ReasonNone {
		e.FieldStart("reason")
		e.Str(string(r.Reason))
	}
	e.FieldStart("discount")
	encodeDecimal(e, r.Discount)
	e.FieldStart("lines")
	encodeLines(e, r.Lines)
	e.ObjEnd()
}

// EncodeResults writes a JSON array of evaluations.
func EncodeResults(e *jx.Encoder, rs []coupon.Result) {
	e.ArrStart()
	for _, r := range rs {
		EncodeResult(e, r)
	}
	e.ArrEnd()
}

func encodeApplicationFields(e *jx.Encoder, a *redemption.Application) {
	e.FieldStart("id")
	e.Str(a.ID.String())
	e.FieldStart("customer_id")
	e.Str(a.CustomerID)
	e.FieldStart("coupon_id")
	e.Str(a.CouponID)
	e.FieldStart("coupon_type")
	e.Str(string(a.CouponType))
	e.FieldStart("discount_amount")
	encodeDecimal(e, a.Discount)
	e.FieldStart("original_total")
	encodeDecimal(e, a.OriginalTotal)
	e.FieldStart("final_total")
	encodeDecimal(e, a.FinalTotal)
	e.FieldStart("applied_at")
	encodeTime(e, a.AppliedAt)
	e.FieldStart("exclusive")
	e.Bool(a.Exclusive)
}

// EncodeApplication writes one coupon history entry.
func EncodeApplication(e *jx.Encoder, a *redemption.Application) {
	e.ObjStart()
	encodeApplicationFields(e, a)
	e.ObjEnd()
}

// EncodeHistory writes a JSON array of history entries.
func EncodeHistory(e *jx.Encoder, apps []redemption.Application) {
	e.ArrStart()
	for i := range apps {
		EncodeApplication(e, &apps[i])
	}
	e.ArrEnd()
}

// EncodeReceipt writes the response of a successful apply.
func EncodeReceipt(e *jx.Encoder, r *redemption.Receipt) {
	e.ObjStart()
	e.FieldStart("message")
	e.Str("Coupon applied successfully")
	encodeApplicationFields(e, &r.Application)
	e.FieldStart("items")
	EncodeLineItems(e, r.Items)
	e.FieldStart("lines")
	encodeLines(e, r.Lines)
	e.ObjEnd()
}
