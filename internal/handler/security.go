package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// HeaderAPIKey carries the client API key.
const HeaderAPIKey = "api_key"

// protect requires a valid API key before calling next. The key is hashed
// with HMAC-SHA256 and compared in constant time by the Authenticator.
func (h *Handler) protect(next http.HandlerFunc) http.Handler {
	if h.auth == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.auth.Authenticate(r.Context(), r.Header.Get(HeaderAPIKey))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := zctx.With(r.Context(), zap.String("api_key_id", info.ID))
		next(w, r.WithContext(ctx))
	})
}
