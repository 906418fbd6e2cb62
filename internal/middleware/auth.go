package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ayush/zakat-tracker/internal/httpx"
)

type ctxKey struct{}

// TokenVerifier resolves a bearer token to the email it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// RequireAuth is middleware that validates the bearer token and injects the
// caller's email into the request context. Every failure is reported the same
// way so callers cannot tell a bad signature from an expired token.
func RequireAuth(tokens TokenVerifier, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httpx.Unauthorized(w, "Not authenticated")
				return
			}

			email, err := tokens.Verify(token)
			if err != nil {
				log.Debug("token rejected", slog.String("path", r.URL.Path))
				httpx.Unauthorized(w, "Could not validate credentials")
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// EmailFromContext returns the email stored by RequireAuth.
func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(ctxKey{}).(string)
	return email, ok && email != ""
}

// WithEmail returns a copy of ctx carrying email, as RequireAuth would.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKey{}, email)
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
