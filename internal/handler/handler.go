// Package handler exposes the coupon engine over HTTP.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/kart-coupons/internal/domain/auth"
	"github.com/xenking/kart-coupons/internal/domain/cart"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/product"
	"github.com/xenking/kart-coupons/internal/domain/redemption"
)

// maxBodySize limits request bodies, including evaluate requests carrying
// whole coupon sets.
const maxBodySize = 1 << 20

// CartService manages customer carts.
type CartService interface {
	Cart(ctx context.Context, customerID string) (*cart.Snapshot, error)
	AddToCart(ctx context.Context, customerID, productID string, quantity int) (*cart.Snapshot, error)
	UpdateCartItem(ctx context.Context, customerID, productID string, quantity int) (*cart.Snapshot, error)
	RemoveFromCart(ctx context.Context, customerID, productID string) (*cart.Snapshot, error)
}

// RedemptionService evaluates and applies coupons.
type RedemptionService interface {
	ApplicableCoupons(ctx context.Context, customerID string) ([]coupon.Result, error)
	BestCoupon(ctx context.Context, customerID string) (*coupon.Result, error)
	ApplyCoupon(ctx context.Context, customerID, couponID string) (*redemption.Receipt, error)
	Evaluate(ctx context.Context, sn *cart.Snapshot, coupons []coupon.Coupon, cust coupon.Customer) ([]coupon.Result, error)
	History(ctx context.Context, customerID string) ([]redemption.Application, error)
}

// Authenticator resolves API keys.
type Authenticator interface {
	Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error)
}

// Handler serves the /api routes.
type Handler struct {
	products    product.Repository
	coupons     coupon.Repository
	carts       CartService
	redemptions RedemptionService
	auth        Authenticator
	validate    *validator.Validate
}

// New creates a Handler. A nil Authenticator leaves mutating routes open.
func New(
	products product.Repository,
	coupons coupon.Repository,
	carts CartService,
	redemptions RedemptionService,
	authenticator Authenticator,
) *Handler {
	return &Handler{
		products:    products,
		coupons:     coupons,
		carts:       carts,
		redemptions: redemptions,
		auth:        authenticator,
		validate:    newValidator(),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)

	mux.Handle("POST /api/coupons", h.protect(h.CreateCoupon))
	mux.HandleFunc("GET /api/coupons", h.ListCoupons)
	mux.HandleFunc("GET /api/coupons/{id}", h.GetCoupon)
	mux.Handle("PUT /api/coupons/{id}", h.protect(h.UpdateCoupon))
	mux.Handle("DELETE /api/coupons/{id}", h.protect(h.DeleteCoupon))

	mux.HandleFunc("GET /api/customers/{id}/cart", h.GetCart)
	mux.Handle("POST /api/customers/{id}/cart", h.protect(h.AddCartItem))
	mux.Handle("PUT /api/customers/{id}/cart/{product_id}", h.protect(h.UpdateCartItem))
	mux.Handle("DELETE /api/customers/{id}/cart/{product_id}", h.protect(h.RemoveCartItem))

	mux.HandleFunc("GET /api/customers/{id}/applicable-coupons", h.ApplicableCoupons)
	mux.HandleFunc("GET /api/customers/{id}/best-coupon", h.BestCoupon)
	mux.Handle("POST /api/customers/{id}/apply-coupon/{coupon_id}", h.protect(h.ApplyCoupon))
	mux.HandleFunc("GET /api/customers/{id}/coupon-history", h.CouponHistory)

	mux.HandleFunc("POST /api/evaluate", h.Evaluate)
}

// badRequestError marks malformed or invalid request input.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &badRequestError{err: err}
}

// readBody reads the request body and runs decode over it.
func readBody(w http.ResponseWriter, r *http.Request, decode func(d *jx.Decoder) error) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return badRequest(errors.Wrap(err, "read body"))
	}
	if len(data) == 0 {
		return badRequest(errors.New("empty request body"))
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return badRequest(err)
	}
	return nil
}

// writeJSON encodes the response body with fn and writes it with status.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
