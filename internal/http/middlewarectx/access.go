package middlewarectx

import (
	"net/http"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/http/response"
)

// require пропускает запрос, если allow возвращает true для прав из контекста.
func require(msg string, allow func(c *access.Capabilities) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caps := CapabilitiesFrom(r.Context())
			if caps == nil || caps.User == nil {
				response.JSON(w, r, http.StatusUnauthorized, response.Error("authentication required"))
				return
			}
			if !allow(caps) {
				response.JSON(w, r, http.StatusForbidden, response.Error(msg))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope требует access-скоуп.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return require("missing required scope: "+scope, func(c *access.Capabilities) bool {
		return c.HasScope(scope)
	})
}

// RequirePermission требует разрешение.
func RequirePermission(perm string) func(http.Handler) http.Handler {
	return require("missing required permission: "+perm, func(c *access.Capabilities) bool {
		return c.HasPermission(perm)
	})
}

// RequireFeature требует доступ к функции.
func RequireFeature(feature string) func(http.Handler) http.Handler {
	return require("feature is not available: "+feature, func(c *access.Capabilities) bool {
		return c.CanAccessFeature(feature)
	})
}

// RequireActiveSubscription требует хотя бы одну действующую подписку.
// Администратор проходит без подписки.
func RequireActiveSubscription() func(http.Handler) http.Handler {
	return require("no active subscription", func(c *access.Capabilities) bool {
		return c.IsAdmin() || c.HasActiveSubscription()
	})
}
