package wire

import (
	"github.com/go-faster/jx"

	"github.com/xenking/kart-coupons/internal/domain/product"
)

// EncodeProduct writes {"id", "name", "price", "category"}.
func EncodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	encodeDecimal(e, p.Price)
	e.FieldStart("category")
	e.Str(p.Category)
	e.ObjEnd()
}

// EncodeProducts writes a JSON array of products.
func EncodeProducts(e *jx.Encoder, ps []product.Product) {
	e.ArrStart()
	for i := range ps {
		EncodeProduct(e, &ps[i])
	}
	e.ArrEnd()
}
