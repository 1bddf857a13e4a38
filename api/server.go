/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:   Unique ID per request for tracing
  2. Recoverer:   Panic recovery (500 instead of crash)
  3. RequestLogger: Structured request logs (zerolog)
  4. Metrics:     Request latency histogram (Prometheus)
  5. CORS:        Cross-origin requests for the operator frontend

ROUTE GROUPS:
  /api/payments/*       Payment creation
  /api/diplomas/*       Diplomas/medals-only payments
  /api/accounting/*     Ledger listing and maintenance
  /api/registrations   Registration payment state
  /healthz              Liveness probe
  /metrics              Prometheus metrics

SECURITY NOTE:
  No authentication middleware; the engine sits behind the main application
  gateway which authenticates operators.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quickstep/payment-engine/obs"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(obs.RequestLogger{Logger: h.Logger}.Middleware)
	r.Use(h.Metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Post("/payments", h.CreatePayment)
		r.Post("/diplomas/pay", h.PayDiplomas)

		r.Route("/accounting", func(r chi.Router) {
			r.Get("/", h.ListAccounting)
			r.Post("/", h.CreateManualEntry)
			r.Put("/{id}", h.UpdateEntry)
			r.Delete("/{id}", h.DeleteEntry)
			r.Post("/{id}/restore", h.RestoreEntry)

			r.Route("/groups/{groupId}", func(r chi.Router) {
				r.Put("/name", h.RenameGroup)
				r.Put("/discount", h.SetGroupDiscount)
			})
		})

		r.Get("/registrations", h.ListRegistrations)
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	return r
}
