package web

import (
	"net/http"

	"reorder-engine/internal/app"
	"reorder-engine/internal/core"
)

// listPolicies handles GET /api/reorder/policies.
func (h *Handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.ListPolicies(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if result.Policies == nil {
		result.Policies = []core.ReorderPolicy{}
	}
	writeJSON(w, result.Policies)
}

// upsertPolicy handles POST /api/reorder/policies.
// Body: { scope, scope_id?, min_stock_multiplier, safety_stock_days,
//         max_order_quantity?, preferred_order_quantity?,
//         review_frequency_days, auto_approve_threshold?, is_active }
func (h *Handler) upsertPolicy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Scope                  string   `json:"scope"`
		ScopeID                *int     `json:"scope_id"`
		MinStockMultiplier     float64  `json:"min_stock_multiplier"`
		SafetyStockDays        int      `json:"safety_stock_days"`
		MaxOrderQuantity       *int     `json:"max_order_quantity"`
		PreferredOrderQuantity *int     `json:"preferred_order_quantity"`
		ReviewFrequencyDays    int      `json:"review_frequency_days"`
		AutoApproveThreshold   *float64 `json:"auto_approve_threshold"`
		IsActive               *bool    `json:"is_active"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}

	scope := core.PolicyScope(body.Scope)
	switch scope {
	case core.ScopeGlobal:
		if body.ScopeID != nil {
			writeError(w, r, "global policies do not take a scope_id", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	case core.ScopeCategory, core.ScopeSupplier, core.ScopeProduct:
		if body.ScopeID == nil {
			writeError(w, r, "scope_id is required for scope "+body.Scope, "BAD_REQUEST", http.StatusBadRequest)
			return
		}
	default:
		writeError(w, r, "scope must be global, category, supplier, or product", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if body.MinStockMultiplier < 0 || body.SafetyStockDays < 0 {
		writeError(w, r, "min_stock_multiplier and safety_stock_days must be >= 0", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if body.ReviewFrequencyDays <= 0 {
		writeError(w, r, "review_frequency_days must be positive", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	isActive := true
	if body.IsActive != nil {
		isActive = *body.IsActive
	}

	result, err := h.svc.UpsertPolicy(r.Context(), app.PolicyRequest{
		Scope:                  scope,
		ScopeID:                body.ScopeID,
		MinStockMultiplier:     body.MinStockMultiplier,
		SafetyStockDays:        body.SafetyStockDays,
		MaxOrderQuantity:       body.MaxOrderQuantity,
		PreferredOrderQuantity: body.PreferredOrderQuantity,
		ReviewFrequencyDays:    body.ReviewFrequencyDays,
		AutoApproveThreshold:   body.AutoApproveThreshold,
		IsActive:               isActive,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Policy)
}
