package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/webshop/internal/domain/auth"
)

// bearerToken extracts the token of an "Authorization: Bearer <token>"
// header. Any other scheme yields "".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// Authenticate resolves the bearer token into a verdict stored in the request
// context. It never rejects a request itself; missing or invalid tokens
// produce the anonymous verdict and route gates decide.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := h.auth.Validate(r.Context(), bearerToken(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		ctx := auth.WithVerdict(r.Context(), v)
		if v.IsAuthenticated() {
			ctx = zctx.Base(ctx, zctx.From(ctx).With(zap.String("user_id", v.UserID)))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuthenticated rejects anonymous callers with 401.
func RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.VerdictFrom(r.Context()).IsAuthenticated() {
			writeError(w, r, errUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireElevated rejects anonymous callers with 401 and authenticated
// callers without elevated privilege with 403.
func RequireElevated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := auth.VerdictFrom(r.Context())
		switch {
		case !v.IsAuthenticated():
			writeError(w, r, errUnauthenticated)
		case !v.HasElevatedPrivilege():
			writeError(w, r, errNotElevated)
		default:
			next.ServeHTTP(w, r)
		}
	})
}
