package router

import (
	"net/http"

	"gemcart/internal/config"
	"gemcart/internal/handler"
	"gemcart/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// New creates the HTTP router with all routes and middleware configured.
func New(
	orderHandler *handler.OrderHandler,
	webhookHandler *handler.WebhookHandler,
	adminHandler *handler.AdminHandler,
	auth config.AuthConfig,
	logger zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	r.Route("/order", func(r chi.Router) {
		// Webhook deliveries authenticate via signature, not bearer token.
		r.Post("/stripe-webhook", webhookHandler.Handle)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth, middleware.RoleUser, logger))
			r.Post("/create-payment-intent", orderHandler.CreatePaymentIntent)
			r.Post("/saveOrder", orderHandler.Create)
			r.Get("/{id}", orderHandler.GetByID)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(auth, middleware.RoleAdmin, logger))
			r.Patch("/update-status/{id}", adminHandler.UpdateStatus)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(auth, middleware.RoleSuperAdmin, logger))
		r.Get("/admin/orders/{id}/payment-details", adminHandler.PaymentDetails)
	})

	return r
}
