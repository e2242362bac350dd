package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/wire"
)

func decodeCouponBody(w http.ResponseWriter, r *http.Request) (*coupon.Coupon, error) {
	var c *coupon.Coupon
	err := readBody(w, r, func(d *jx.Decoder) error {
		var err error
		c, err = wire.DecodeCoupon(d)
		return err
	})
	return c, err
}

// CreateCoupon handles POST /api/coupons.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := decodeCouponBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.coupons.Create(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { wire.EncodeCoupon(e, c) })
}

// ListCoupons handles GET /api/coupons.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	cs, err := h.coupons.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeCoupons(e, cs) })
}

// GetCoupon handles GET /api/coupons/{id}.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeCoupon(e, c) })
}

// UpdateCoupon handles PUT /api/coupons/{id}. The body replaces the stored
// definition; an id in the body must match the path.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := decodeCouponBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c.ID != id {
		writeError(w, r, badRequest(errors.Errorf("coupon id %q does not match path %q", c.ID, id)))
		return
	}
	if err := h.coupons.Update(r.Context(), c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeCoupon(e, c) })
}

// DeleteCoupon handles DELETE /api/coupons/{id}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.coupons.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
