package mw

import (
	"net/http"

	"github.com/mattelianyc/microdawgs/internal/api"
	"github.com/mattelianyc/microdawgs/internal/logger"
	"github.com/mattelianyc/microdawgs/internal/utils"
)

// AllowOnlyCIDRS allows only specific IPs/CIDRs. If the list is empty, it
// does NOT filter (passthrough). Used as a network guard on the admin
// control plane in addition to the admin role requirement.
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m := utils.NewIPMatcher(allowed)
	if m.IsEmpty() {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Warn("request from disallowed network",
					logger.String("client_ip", ip),
					logger.String("path", r.URL.Path))
				api.WriteError(w, api.AuthorizationError("access restricted"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
