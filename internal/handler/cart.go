package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/wire"
)

func writeCart(w http.ResponseWriter, sn *cart.Snapshot) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { wire.EncodeSnapshot(e, sn) })
}

// GetCart handles GET /api/customers/{id}/cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	sn, err := h.carts.Cart(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, sn)
}

// AddCartItem handles POST /api/customers/{id}/cart.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req AddCartItemRequest
	if err := readBody(w, r, req.decode); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, r, err)
		return
	}
	sn, err := h.carts.AddToCart(r.Context(), r.PathValue("id"), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, sn)
}

// UpdateCartItem handles PUT /api/customers/{id}/cart/{product_id}.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req UpdateCartItemRequest
	if err := readBody(w, r, req.decode); err != nil {
		writeError(w, r, err)
		return
	}
	sn, err := h.carts.UpdateCartItem(r.Context(), r.PathValue("id"), r.PathValue("product_id"), req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, sn)
}

// RemoveCartItem handles DELETE /api/customers/{id}/cart/{product_id}.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	sn, err := h.carts.RemoveFromCart(r.Context(), r.PathValue("id"), r.PathValue("product_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCart(w, sn)
}
