/**
 * @description
 * This file sets up the HTTP router for the payroll-service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies any
 * necessary middleware, such as for authentication.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 * - github.com/go-chi/cors: CORS middleware for browser clients.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// PayrollRoutes creates and returns a new router for the payroll service.
func PayrollRoutes(h *PayrollHandlers, jwksURL, internalAPIKey string) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	// Group routes that require authentication.
	r.Group(func(r chi.Router) {
		// Apply JWT authentication middleware for production
		r.Use(AuthMiddleware(jwksURL))

		r.Post("/batches", h.CreateBatchHandler)
		r.Route("/batches/{id}", func(r chi.Router) {
			r.Get("/", h.GetBatchHandler)
			r.Delete("/", h.DeleteBatchHandler)
			r.Get("/summary", h.GetBatchSummaryHandler)
			r.Get("/audit", h.AuditTrailHandler)

			// Payee ledger
			r.Post("/payees", h.AddPayeeHandler)
			r.Delete("/payees/{workerID}", h.RemovePayeeHandler)
			r.Put("/payees/{workerID}/adjustments", h.EditAdjustmentHandler)
			r.Post("/payees/{workerID}/readiness", h.RecomputeReadinessHandler)

			// FX snapshot lifecycle
			r.Post("/fx/recalculate", h.RecalculateFXHandler)
			r.Post("/fx/lock", h.LockFXHandler)
			r.Post("/fx/switch-provider", h.SwitchFXProviderHandler)

			// Batch lifecycle
			r.Post("/submit", h.SubmitHandler)
			r.Post("/approve", h.ApproveHandler)
			r.Post("/decline", h.DeclineHandler)
			r.Post("/withdraw", h.WithdrawHandler)
			r.Post("/remind", h.RemindHandler)
			r.Post("/execute", h.ExecuteHandler)
			r.Post("/retry-failed", h.RetryFailedHandler)
		})
	})

	// Internal ingestion endpoints, keyed rather than user-authenticated.
	r.Group(func(r chi.Router) {
		r.Use(InternalAuthMiddleware(internalAPIKey))

		r.Post("/internal/batches/{id}/receipts", h.IngestReceiptHandler)
		r.Post("/internal/batches/{id}/receipts/bank-file", h.IngestBankFileHandler)
	})

	return r
}
