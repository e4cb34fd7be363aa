package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"reorder-engine/internal/app"
	"reorder-engine/internal/core"
)

// parseListRequest builds a SuggestionListRequest from query parameters.
// Supported filters: status, urgency, category_id, supplier_id,
// min_confidence, date_from, date_to (RFC 3339 or YYYY-MM-DD).
func parseListRequest(r *http.Request) (app.SuggestionListRequest, error) {
	q := r.URL.Query()
	var req app.SuggestionListRequest

	if v := q.Get("status"); v != "" {
		status := core.SuggestionStatus(v)
		switch status {
		case core.StatusPending, core.StatusApproved, core.StatusRejected, core.StatusOrdered:
			req.Status = &status
		default:
			return req, fmt.Errorf("unknown status %q", v)
		}
	}
	if v := q.Get("urgency"); v != "" {
		urgency := core.Urgency(v)
		switch urgency {
		case core.UrgencyCritical, core.UrgencyHigh, core.UrgencyMedium, core.UrgencyLow:
			req.Urgency = &urgency
		default:
			return req, fmt.Errorf("unknown urgency %q", v)
		}
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("category_id must be an integer")
		}
		req.CategoryID = &id
	}
	if v := q.Get("supplier_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("supplier_id must be an integer")
		}
		req.SupplierID = &id
	}
	if v := q.Get("min_confidence"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil || c < 0 || c > 100 {
			return req, fmt.Errorf("min_confidence must be a number within [0,100]")
		}
		req.MinConfidence = &c
	}
	if v := q.Get("date_from"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return req, fmt.Errorf("date_from: %v", err)
		}
		req.DateFrom = &t
	}
	if v := q.Get("date_to"); v != "" {
		t, err := parseDate(v)
		if err != nil {
			return req, fmt.Errorf("date_to: %v", err)
		}
		req.DateTo = &t
	}
	return req, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", v)
	}
	return t, nil
}

// listSuggestions handles GET /api/reorder/suggestions.
func (h *Handler) listSuggestions(w http.ResponseWriter, r *http.Request) {
	req, err := parseListRequest(r)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ListSuggestions(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	type response struct {
		Suggestions []core.ReorderSuggestion `json:"suggestions"`
		Summary     core.SuggestionSummary   `json:"summary"`
	}
	if result.Suggestions == nil {
		result.Suggestions = []core.ReorderSuggestion{}
	}
	writeJSON(w, response{Suggestions: result.Suggestions, Summary: result.Summary})
}

// getSuggestion handles GET /api/reorder/suggestions/{id}.
func (h *Handler) getSuggestion(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetSuggestion(r.Context(), suggestionID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Suggestion)
}

// actOnSuggestion handles POST /api/reorder/suggestions/{id}/action.
// Body: { action: approve|reject|modify, reason?, acted_by?, modifications? }
func (h *Handler) actOnSuggestion(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Action        string              `json:"action"`
		Reason        string              `json:"reason"`
		ActedBy       string              `json:"acted_by"`
		Modifications *core.Modifications `json:"modifications"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	action := core.SuggestionAction(body.Action)
	switch action {
	case core.ActApprove:
	case core.ActReject:
		if body.Reason == "" {
			writeError(w, r, "reason is required when rejecting", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	case core.ActModify:
		if body.Modifications == nil || (body.Modifications.Quantity == nil && body.Modifications.SupplierID == nil) {
			writeError(w, r, "modify requires at least one modification", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		if body.Modifications.Quantity != nil && *body.Modifications.Quantity <= 0 {
			writeError(w, r, "modified quantity must be positive", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	default:
		writeError(w, r, "action must be approve, reject, or modify", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.ActOnSuggestion(r.Context(), suggestionID(r), app.SuggestionActionRequest{
		Action:        action,
		Reason:        body.Reason,
		ActedBy:       body.ActedBy,
		Modifications: body.Modifications,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Suggestion)
}

// markOrdered handles POST /api/reorder/suggestions/{id}/ordered.
func (h *Handler) markOrdered(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.MarkOrdered(r.Context(), suggestionID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Suggestion)
}

// bulkApprove handles POST /api/reorder/suggestions/bulk-approve.
// Body: { suggestion_ids: [...], acted_by? }
func (h *Handler) bulkApprove(w http.ResponseWriter, r *http.Request) {
	h.bulkAct(w, r, core.ActApprove, false)
}

// bulkReject handles POST /api/reorder/suggestions/bulk-reject.
// Body: { suggestion_ids: [...], reason, acted_by? }
func (h *Handler) bulkReject(w http.ResponseWriter, r *http.Request) {
	h.bulkAct(w, r, core.ActReject, true)
}

func (h *Handler) bulkAct(w http.ResponseWriter, r *http.Request, action core.SuggestionAction, requireReason bool) {
	var body struct {
		SuggestionIDs []string `json:"suggestion_ids"`
		Reason        string   `json:"reason"`
		ActedBy       string   `json:"acted_by"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if len(body.SuggestionIDs) == 0 {
		writeError(w, r, "suggestion_ids is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if requireReason && body.Reason == "" {
		writeError(w, r, "reason is required when rejecting", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.BulkAct(r.Context(), app.BulkActionRequest{
		IDs:     body.SuggestionIDs,
		Action:  action,
		Reason:  body.Reason,
		ActedBy: body.ActedBy,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Result)
}

// exportSuggestions handles GET /api/reorder/suggestions/export?format=csv|excel.
// The same filters as the list endpoint apply.
func (h *Handler) exportSuggestions(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = string(core.FormatCSV)
	}
	if format != string(core.FormatCSV) && format != string(core.FormatExcel) {
		writeError(w, r, "format must be csv or excel", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	req, err := parseListRequest(r)
	if err != nil {
		writeError(w, r, err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	// The filename is decided before streaming so the disposition header can
	// precede the body.
	filename := fmt.Sprintf("reorder-suggestions-%s.csv", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if _, err := h.svc.ExportSuggestions(r.Context(), w, req, format); err != nil {
		// Headers are already on the wire; log instead of rewriting the status.
		h.log.Error("suggestion export failed", zap.Error(err))
	}
}

// listHistory handles GET /api/reorder/history?product_id=&limit=.
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productID := 0
	if v := q.Get("product_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "product_id must be an integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		productID = id
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, r, "limit must be an integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}

	result, err := h.svc.GetHistory(r.Context(), productID, limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if result.Entries == nil {
		result.Entries = []core.ReorderHistory{}
	}
	writeJSON(w, result.Entries)
}

// recordOutcome handles POST /api/reorder/history/{id}/outcome.
// Body: { stockout_occurred?, overstock_occurred? }
func (h *Handler) recordOutcome(w http.ResponseWriter, r *http.Request) {
	historyID, err := strconv.ParseInt(suggestionID(r), 10, 64)
	if err != nil {
		writeError(w, r, "history id must be an integer", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	var body struct {
		StockoutOccurred  *bool `json:"stockout_occurred"`
		OverstockOccurred *bool `json:"overstock_occurred"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.StockoutOccurred == nil && body.OverstockOccurred == nil {
		writeError(w, r, "at least one outcome flag is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	if err := h.svc.RecordOutcome(r.Context(), app.OutcomeRequest{
		HistoryID:         historyID,
		StockoutOccurred:  body.StockoutOccurred,
		OverstockOccurred: body.OverstockOccurred,
	}); err != nil {
		writeServiceError(w, r, err)
		return
	}

	type response struct {
		Status string `json:"status"`
	}
	writeJSON(w, response{Status: "recorded"})
}
