package router

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/memberd-dev/memberd/internal/domain"
	"github.com/memberd-dev/memberd/internal/middleware/metrics"
	"github.com/memberd-dev/memberd/internal/setup"
)

// New creates and configures the chi router with all the routes.
func New(deps *setup.Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(metrics.Middleware)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Public.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	h := deps.Handler
	guard := deps.AuthMiddleware

	r.Get("/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/logout", h.Logout)
			r.Get("/verify-email", h.VerifyEmail)
			r.Post("/resend-verification", h.ResendVerification)
		})

		// Routes behind the authorization guard
		r.Group(func(r chi.Router) {
			r.Use(guard.RequireAuth())
			r.Get("/me", h.Me)
			r.Put("/me", h.UpdateProfile)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(guard.RequireRoles(domain.RoleAdmin))
			r.Put("/accounts/{id}/active", h.SetAccountActive)
			r.Post("/accounts/{id}/roles/{role}", h.GrantRole)
			r.Delete("/accounts/{id}/roles/{role}", h.RevokeRole)
			r.Get("/roles", h.GetRoles)
		})
	})

	return r
}
