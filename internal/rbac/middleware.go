package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/machinemu/machinemu/internal/observability"
	"github.com/machinemu/machinemu/internal/platform/httpx"
)

// TokenVerifier validates a presented credential and returns the identity
// it proves. Implemented by the auth token manager.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// Middleware wires authorization helpers for HTTP handlers. Decisions are
// stateless: the permission set is read from the verified token, never
// re-resolved from the store.
type Middleware struct {
	Verifier TokenVerifier
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Authenticate extracts and verifies the bearer token, storing the identity
// in the request context. Missing, malformed, badly signed and expired
// tokens are all rejected with the same 401 shape.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			m.Metrics.AuthDenied("unauthenticated")
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		identity, err := m.Verifier.Verify(raw)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Debug("token rejected", slog.String("path", r.URL.Path))
			}
			m.Metrics.AuthDenied("unauthenticated")
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

// Require gates the wrapped handler behind a single permission. It must be
// mounted after Authenticate. An authenticated caller without the
// permission gets 403, distinct from the 401 of a bad credential.
func (m Middleware) Require(perm Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if !identity.HasPermission(perm) {
				if m.Logger != nil {
					m.Logger.Info("permission denied",
						slog.Int64("user_id", identity.UserID),
						slog.String("permission", perm.String()),
						slog.String("path", r.URL.Path))
				}
				m.Metrics.AuthDenied("forbidden")
				httpx.RespondError(w, httpx.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}
