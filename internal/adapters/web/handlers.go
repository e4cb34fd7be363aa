package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"reorder-engine/internal/app"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc app.ApplicationService
	log *zap.Logger
}

// NewHandler creates and wires the chi router with all routes. metricsHandler
// serves the Prometheus scrape endpoint; pass nil to disable it.
func NewHandler(svc app.ApplicationService, allowedOrigins string, log *zap.Logger, metricsHandler http.Handler) http.Handler {
	h := &Handler{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)
	if metricsHandler != nil {
		r.Get("/metrics", metricsHandler.ServeHTTP)
	}

	r.Route("/api/reorder", func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB

		r.Get("/suggestions", h.listSuggestions)
		r.Get("/suggestions/export", h.exportSuggestions)
		r.Get("/suggestions/{id}", h.getSuggestion)
		r.Post("/suggestions/{id}/action", h.actOnSuggestion)
		r.Post("/suggestions/{id}/ordered", h.markOrdered)
		r.Post("/suggestions/bulk-approve", h.bulkApprove)
		r.Post("/suggestions/bulk-reject", h.bulkReject)

		r.Post("/analyze", h.triggerAnalysis)
		r.Get("/jobs", h.listJobs)
		r.Get("/jobs/{jobID}", h.getJob)

		r.Get("/settings", h.getSettings)
		r.Put("/settings", h.updateSettings)

		r.Get("/policies", h.listPolicies)
		r.Post("/policies", h.upsertPolicy)

		r.Get("/history", h.listHistory)
		r.Post("/history/{id}/outcome", h.recordOutcome)
	})

	return r
}

// health returns service status.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "ok"})
}

// suggestionID extracts the {id} URL parameter.
func suggestionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
