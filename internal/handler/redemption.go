package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/wire"
)

// ApplicableCoupons handles GET /api/customers/{id}/applicable-coupons.
// Coupons are ordered by discount, largest first.
func (h *Handler) ApplicableCoupons(w http.ResponseWriter, r *http.Request) {
	results, err := h.redemptions.ApplicableCoupons(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("applicable_coupons")
		wire.EncodeResults(e, results)
		e.ObjEnd()
	})
}

// BestCoupon handles GET /api/customers/{id}/best-coupon.
func (h *Handler) BestCoupon(w http.ResponseWriter, r *http.Request) {
	best, err := h.redemptions.BestCoupon(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeResult(e, *best) })
}

// ApplyCoupon handles POST /api/customers/{id}/apply-coupon/{coupon_id}.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.redemptions.ApplyCoupon(r.Context(), r.PathValue("id"), r.PathValue("coupon_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeReceipt(e, receipt) })
}

// CouponHistory handles GET /api/customers/{id}/coupon-history.
func (h *Handler) CouponHistory(w http.ResponseWriter, r *http.Request) {
	apps, err := h.redemptions.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("coupon_history")
		wire.EncodeHistory(e, apps)
		e.ObjEnd()
	})
}

// Evaluate handles POST /api/evaluate: every supplied coupon is ranked
// against the supplied cart without touching storage.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := readBody(w, r, req.decode); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}
	sn, err := cart.New(req.Items)
	if err != nil {
		writeError(w, r, badRequest(err))
		return
	}
	results, err := h.redemptions.Evaluate(r.Context(), sn, req.Coupons, req.Customer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("cart")
		wire.EncodeSnapshot(e, sn)
		e.FieldStart("results")
		wire.EncodeResults(e, results)
		e.ObjEnd()
	})
}
