package handler

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/strata-service/internal/config"
	"github.com/Dan9191/strata-service/internal/middleware"
	"github.com/Dan9191/strata-service/internal/service"
)

// maxBodyBytes bounds JSON and statement uploads.
const maxBodyBytes = 4 << 20

type Handler struct {
	svc *service.Service
	log *logrus.Logger
}

func NewHandler(svc *service.Service, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Router wires every route. Everything except /healthz requires a bearer token.
func (h *Handler) Router(cfg *config.Config) http.Handler {
	r := mux.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, h.logRequests, chimw.Recoverer)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "route not found"})
	})

	// Public routes
	r.HandleFunc("/healthz", h.Health).Methods("GET")

	// Protected routes
	api := r.PathPrefix("/").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg))

	api.HandleFunc("/plans", h.RequestPlan).Methods("POST")
	api.HandleFunc("/plans/{id}", h.GetPlan).Methods("GET")
	api.HandleFunc("/plans/{id}/decision", h.DecidePlan).Methods("POST")
	api.HandleFunc("/plans/{id}/progress", h.PlanProgress).Methods("GET")
	api.HandleFunc("/plans/{id}/deadline", h.PlanDeadline).Methods("GET")
	api.HandleFunc("/plans/{id}/payments", h.PlanPayment).Methods("POST")
	api.HandleFunc("/plans/{id}/extensions", h.RequestExtension).Methods("POST")
	api.HandleFunc("/extensions/{id}/decision", h.DecideExtension).Methods("POST")

	api.HandleFunc("/levies", h.RecordLevy).Methods("POST")
	api.HandleFunc("/levies/{id}", h.GetLevy).Methods("GET")
	api.HandleFunc("/levies/{id}/payments", h.LevyPayment).Methods("POST")
	api.HandleFunc("/levies/{id}/paid", h.MarkLevyPaid).Methods("POST")
	api.HandleFunc("/levies/{id}/recovery-costs", h.RecordRecoveryCost).Methods("POST")

	api.HandleFunc("/lots/{id}/arrears", h.Arrears).Methods("GET")
	api.HandleFunc("/lots/{id}/eligibility", h.Eligibility).Methods("GET")
	api.HandleFunc("/lots/{id}/recovery-actions", h.RecordRecoveryAction).Methods("POST")
	api.HandleFunc("/lots/{id}/recovery-actions", h.RecoveryHistory).Methods("GET")

	api.HandleFunc("/buildings/{id}/overdue-sweep", h.OverdueSweep).Methods("POST")
	api.HandleFunc("/buildings/{id}/pending-plans", h.PendingPlans).Methods("GET")
	api.HandleFunc("/sweeps", h.SweepAll).Methods("POST")
	api.HandleFunc("/statements", h.ImportStatement).Methods("POST")

	return r
}

// Health reports whether the store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.Errorf("Health check failed: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.WithFields(logrus.Fields{
			"request_id": chimw.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
		}).Debug("Request served")
	})
}
