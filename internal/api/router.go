/**
 * @description
 * This file defines the HTTP router for the ledger-service using the chi
 * library. It wires standard middleware, the public donation and webhook
 * endpoints, the JWT-guarded creator dashboard group, and the internal ops
 * group.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: The HTTP router.
 * - github.com/go-chi/cors: CORS middleware for the dashboard group.
 */

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tipstream/ledger-service/internal/config"
)

// NewRouter creates and configures the service's HTTP router.
func NewRouter(cfg config.Config, h *Handler, wh *WebhookHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	allowedOrigins := []string{"*"}
	if cfg.AllowedOrigins != "" {
		allowedOrigins = strings.Split(cfg.AllowedOrigins, ",")
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.HealthCheck)

	// Public payment page and overlay endpoints.
	r.Post("/donations", h.CreateDonation)
	r.Get("/overlay/{handle}/settings", h.GetOverlaySettings)

	// Provider callbacks.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/payments", wh.HandlePaymentWebhook)
		r.Post("/disbursements", wh.HandleDisbursementCallback)
	})

	// Creator dashboard, JWT-protected.
	r.Route("/dashboard", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Get("/account", h.GetMyAccount)
		r.Get("/donations", h.ListMyDonations)

		r.Route("/withdrawals", func(r chi.Router) {
			r.Post("/", h.RequestWithdrawal)
			r.Get("/", h.ListWithdrawals)
			r.Get("/{withdrawalID}", h.GetWithdrawal)
		})

		r.Route("/goals", func(r chi.Router) {
			r.Post("/", h.StartGoal)
			r.Get("/active", h.GetActiveGoal)
			r.Post("/{goalID}/close", h.CloseGoal)
		})
	})

	// Internal ops endpoints, shared-key protected.
	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))

		r.Post("/adjustments", h.RecordAdjustment)
	})

	return r
}
