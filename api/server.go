/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the ops dashboard

ROUTE GROUPS:
  /api/employees/*       Employee records, penalizations, leaves
  /api/notifications/*   Approval queue
  /api/leaves            Leave event history
  /api/penalizations/*   Expiring-window report
  /api/admin/*           Manual sweep triggers (super_admin)
  /api/metrics           Fleet snapshot
  /api/audit             Audit log

SECURITY NOTE:
  Role checking only, via X-Actor-Role. Authentication happens at the
  gateway in front of this service.

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
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Employee routes
		r.Route("/employees", func(r chi.Router) {
			r.Get("/", h.ListEmployees)
			r.Post("/", h.CreateEmployee)
			r.Get("/{id}", h.GetEmployee)
			r.Put("/{id}", h.UpdateEmployee)
			r.Delete("/{id}", h.DeleteEmployee)

			r.Post("/{id}/penalization", h.ApplyPenalization)
			r.Delete("/{id}/penalization", h.RemovePenalization)

			r.Post("/{id}/company-leave", h.RequestCompanyLeave)
			r.Post("/{id}/it-leave", h.OpenITLeave)
			r.Post("/{id}/reactivate", h.Reactivate)
		})

		// Notification routes
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.ListNotifications)
			r.Post("/{id}/process", h.ProcessNotification)
		})

		// Leave history
		r.Get("/leaves", h.ListLeaves)

		// Penalization reports
		r.Get("/penalizations/expiring", h.ListExpiringPenalizations)

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/sweeps/penalizations", h.RunPenalizationSweep)
			r.Post("/sweeps/cleanup", h.RunCleanupSweep)
		})

		// Observability
		r.Get("/metrics", h.GetMetrics)
		r.Get("/audit", h.QueryAudit)
	})

	// Liveness probe for the deployment environment.
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
