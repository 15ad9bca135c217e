package mw

import (
	"errors"
	"net/http"
	"strings"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/auth"
	"github.com/mattelianyc/microdawgs/internal/logger"
)

// RequireAuth extracts a bearer token from the Authorization header,
// verifies it and attaches the claims to the request context. When roles
// is non-empty the token's role claim must be one of them. Guard failures
// short-circuit before any store mutation or backend call.
func RequireAuth(a *auth.Authenticator, log logger.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenString, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenString == "" {
				api.WriteError(w, api.AuthenticationError("missing or invalid authorization header", nil))
				return
			}

			claims, err := a.Verify(tokenString)
			if err != nil {
				log.Debug("token verification failed", logger.Error(err))
				api.WriteError(w, api.AuthenticationError(authFailureMessage(err), err))
				return
			}

			if len(roles) > 0 && !roleAllowed(claims.Role, roles) {
				api.WriteError(w, api.AuthorizationError("insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireService authenticates service-to-service calls via the
// X-Service-Token header. Only tokens carrying the internal marker pass;
// this is a separate trust tier from user tokens.
func RequireService(a *auth.Authenticator, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("X-Service-Token")
			if tokenString == "" {
				api.WriteError(w, api.AuthenticationError("missing service token", nil))
				return
			}

			claims, err := a.VerifyService(tokenString)
			if err != nil {
				if errors.Is(err, auth.ErrNotServiceToken) {
					log.Warn("non-internal token presented on service tier")
					api.WriteError(w, api.AuthorizationError("invalid service token"))
					return
				}
				log.Debug("service token verification failed", logger.Error(err))
				api.WriteError(w, api.AuthenticationError("invalid service token", err))
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithServiceName(r.Context(), claims.ServiceName)))
		})
	}
}

func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "token has expired"
	default:
		return "invalid token"
	}
}

func roleAllowed(role string, allowed []string) bool {
	for _, r := range allowed {
		if role == r {
			return true
		}
	}
	return false
}
