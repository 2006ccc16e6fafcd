// Package motivationhub собирает HTTP API: маршруты, middleware и зависимости.
package motivationhub

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/motivation-hub/internal/access"
	"github.com/magabrotheeeer/motivation-hub/internal/http/handlers/auth"
	"github.com/magabrotheeeer/motivation-hub/internal/http/handlers/catalog"
	"github.com/magabrotheeeer/motivation-hub/internal/http/handlers/dashboard"
	"github.com/magabrotheeeer/motivation-hub/internal/http/handlers/goal"
	"github.com/magabrotheeeer/motivation-hub/internal/http/handlers/message"
	"github.com/magabrotheeeer/motivation-hub/internal/http/handlers/payment"
	"github.com/magabrotheeeer/motivation-hub/internal/http/handlers/subscription"
	"github.com/magabrotheeeer/motivation-hub/internal/http/middlewarectx"
)

// Handlers обработчики всех ресурсов API.
type Handlers struct {
	Auth         *auth.Handler
	Catalog      *catalog.Handler
	Subscription *subscription.Handler
	Payment      *payment.Handler
	Goal         *goal.Handler
	Message      *message.Handler
	Dashboard    *dashboard.Handler
	Health       http.Handler
}

// Features включает маршруты, зависящие от внешних сервисов.
type Features struct {
	Checkout   bool
	Generation bool
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(
	r chi.Router,
	logger *slog.Logger,
	h Handlers,
	features Features,
	tokens middlewarectx.TokenParser,
	resolver middlewarectx.AccessResolver,
	limiter *middlewarectx.Limiter,
) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Webhook шлюза не ограничивается по частоте
		r.Post("/payments/webhook", h.Payment.Webhook)

		// Открытые конечные точки, лимит по адресу клиента
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Get("/scopes", h.Catalog.Scopes)
			r.Get("/scopes/categories", h.Catalog.Categories)
			r.Get("/packages", h.Catalog.Packages)
			r.Get("/packages/{id}", h.Catalog.Package)
			r.Get("/packages/{id}/comparison", h.Catalog.Compare)
		})

		// Группа с JWT аутентификацией, лимит по пользователю
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(tokens, resolver, logger))
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))

			r.Get("/me", h.Auth.Me)
			r.Get("/me/access", h.Auth.Access)
			r.Get("/me/features/{feature}", h.Auth.Feature)
			r.Post("/trial/start", h.Auth.StartTrial)

			r.Route("/subscriptions", func(r chi.Router) {
				if features.Checkout {
					r.Post("/", h.Subscription.Checkout)
				}
				r.Get("/", h.Subscription.List)
				r.Get("/active", h.Subscription.Active)
				r.Get("/{id}", h.Subscription.Get)
				r.Post("/{id}/cancel", h.Subscription.Cancel)
				r.Patch("/{id}/scopes", h.Subscription.UpdateScopes)
			})

			r.Get("/payments", h.Payment.List)
			r.Get("/payments/verify/{chargeID}", h.Payment.Verify)

			r.Route("/goals", func(r chi.Router) {
				r.With(middlewarectx.RequireFeature(access.FeatureCustomGoals)).Post("/", h.Goal.Create)
				r.Get("/", h.Goal.List)
				r.Get("/{id}", h.Goal.Get)
				r.Patch("/{id}", h.Goal.Update)
				r.Post("/{id}/complete", h.Goal.Complete)
				r.Delete("/{id}", h.Goal.Delete)
			})

			r.Route("/messages", func(r chi.Router) {
				r.Use(middlewarectx.RequireActiveSubscription())
				if features.Generation {
					r.Post("/", h.Message.Generate)
					r.Get("/daily", h.Message.Daily)
				}
				r.Get("/", h.Message.List)
				r.Get("/{id}", h.Message.Get)
				r.Patch("/{id}", h.Message.UpdateFlags)
			})

			r.Get("/dashboard/stats", h.Dashboard.Stats)

			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.RequireScope(access.ScopeAdmin))
				r.Post("/trials", h.Auth.ManageTrial)
				r.Get("/users", h.Auth.ListUsers)
				r.Post("/users/{id}/downgrade", h.Auth.Downgrade)
				r.Post("/scopes", h.Catalog.CreateScope)
				r.Post("/packages", h.Catalog.CreatePackage)
				r.Put("/packages/{id}", h.Catalog.UpdatePackage)
				r.Delete("/packages/{id}", h.Catalog.DeletePackage)
				r.Post("/subscriptions/{id}/activate", h.Subscription.Activate)
			})
		})
	})

	r.Handle("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
