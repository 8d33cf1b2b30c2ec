package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the public HTTP surface. Business endpoints live under
// /api; /health stays at the root for load balancer probes.
func NewRouter(logger *slog.Logger, payments *PaymentHandler, callbacks *CallbackHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/health", healthHandler(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/packages", payments.ListPackages)
		r.Post("/initiate-payment", payments.InitiatePayment)
		r.Post("/check-payment-status", payments.CheckStatus)
		r.Post("/manual-payment", payments.ManualPayment)
		r.Get("/stats", payments.Stats)
		r.Post("/payment-callback", callbacks.HandleCallback)
	})

	return r
}

func healthHandler(logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, envelope{
			"status":    "healthy",
			"service":   "bundles-backend",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
