package web

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"reorder-engine/internal/app"
	"reorder-engine/internal/core"
)

// triggerAnalysis handles POST /api/reorder/analyze.
// Body: { scope: all|category|supplier|product, target_id?, urgency_only? }
// A second trigger for a scope with a live job returns that job instead of
// starting another run.
func (h *Handler) triggerAnalysis(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scope       string `json:"scope"`
		TargetID    *int   `json:"target_id"`
		UrgencyOnly bool   `json:"urgency_only"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.Scope == "" {
		body.Scope = string(core.JobScopeAll)
	}

	scope := core.JobScope(body.Scope)
	switch scope {
	case core.JobScopeAll:
		if body.TargetID != nil {
			writeError(w, r, "scope all does not take a target_id", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	case core.JobScopeCategory, core.JobScopeSupplier, core.JobScopeProduct:
		if body.TargetID == nil {
			writeError(w, r, "target_id is required for scope "+body.Scope, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	default:
		writeError(w, r, "scope must be all, category, supplier, or product", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.TriggerAnalysis(r.Context(), app.AnalyzeRequest{
		Scope:       scope,
		TargetID:    body.TargetID,
		UrgencyOnly: body.UrgencyOnly,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeBody(w, result.Job)
}

// getJob handles GET /api/reorder/jobs/{jobID}.
func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Job)
}

// listJobs handles GET /api/reorder/jobs?limit=.
func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "limit must be an integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}

	result, err := h.svc.ListJobs(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if result.Jobs == nil {
		result.Jobs = []core.AnalysisJob{}
	}
	writeJSON(w, result.Jobs)
}
