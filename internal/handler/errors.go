package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/kart-coupons/internal/domain/auth"
	"github.com/xenking/kart-coupons/internal/domain/coupon"
	"github.com/xenking/kart-coupons/internal/domain/customer"
	"github.com/xenking/kart-coupons/internal/domain/product"
	"github.com/xenking/kart-coupons/internal/domain/redemption"
)

// apiError is the JSON error body: {"code", "message", "reason"?, "field"?}.
type apiError struct {
	Code    int
	Message string
	Reason  coupon.Reason
	Field   string
}

func (a apiError) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(a.Code)
	e.FieldStart("message")
	e.Str(a.Message)
	if a.Reason != coupon.ReasonNone {
		e.FieldStart("reason")
		e.Str(string(a.Reason))
	}
	if a.Field != "" {
		e.FieldStart("field")
		e.Str(a.Field)
	}
	e.ObjEnd()
}

// mapError converts a domain error into its HTTP representation. The
// second result is false for unexpected errors.
func mapError(err error) (apiError, bool) {
	var (
		defErr   *coupon.DefinitionError
		inelErr  *redemption.IneligibleError
		qtyErr   *customer.InvalidQuantityError
		badErr   *badRequestError
		validErr validator.ValidationErrors
	)
	switch {
	case errors.As(err, &validErr):
		fe := validErr[0]
		return apiError{
			Code:    http.StatusBadRequest,
			Message: "invalid " + fe.Field() + ": failed " + fe.Tag(),
			Field:   fe.Field(),
		}, true
	case errors.As(err, &defErr):
		return apiError{Code: http.StatusUnprocessableEntity, Message: defErr.Error(), Field: defErr.Field}, true
	case errors.As(err, &badErr):
		return apiError{Code: http.StatusBadRequest, Message: badErr.Error()}, true
	case errors.Is(err, auth.ErrUnauthorized):
		return apiError{Code: http.StatusUnauthorized, Message: "unauthorized"}, true
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, customer.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, customer.ErrItemNotInCart),
		errors.Is(err, redemption.ErrNoApplicableCoupon):
		return apiError{Code: http.StatusNotFound, Message: err.Error()}, true
	case errors.Is(err, coupon.ErrAlreadyExists):
		return apiError{Code: http.StatusConflict, Message: err.Error()}, true
	case errors.As(err, &inelErr):
		return apiError{Code: http.StatusUnprocessableEntity, Message: inelErr.Error(), Reason: inelErr.Reason}, true
	case errors.As(err, &qtyErr):
		return apiError{Code: http.StatusUnprocessableEntity, Message: qtyErr.Error(), Field: "quantity"}, true
	case errors.Is(err, redemption.ErrEmptyCart):
		return apiError{Code: http.StatusUnprocessableEntity, Message: err.Error()}, true
	}
	return apiError{Code: http.StatusInternalServerError, Message: "internal server error"}, false
}

// writeError writes err as a JSON error. Unexpected errors are logged and
// their details withheld from the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	a, known := mapError(err)
	if !known {
		zctx.From(r.Context()).Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, a.Code, a.encode)
}
