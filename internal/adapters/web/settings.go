package web

import (
	"net/http"

	"github.com/shopspring/decimal"

	"reorder-engine/internal/app"
	"reorder-engine/internal/core"
)

// getSettings handles GET /api/reorder/settings.
func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.GetSettings(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Settings)
}

// updateSettings handles PUT /api/reorder/settings. The body is a full
// replacement record; omitted fields take their zero values.
func (h *Handler) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body struct {
		AutoReorderEnabled         bool            `json:"auto_reorder_enabled"`
		AnalysisFrequencyHours     int             `json:"analysis_frequency_hours"`
		DefaultConfidenceThreshold float64         `json:"default_confidence_threshold"`
		MaxAutoApproveAmount       decimal.Decimal `json:"max_auto_approve_amount"`
		NotificationEmails         []string        `json:"notification_emails"`
		WebhookURL                 string          `json:"webhook_url"`
	}
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.AnalysisFrequencyHours <= 0 {
		writeError(w, r, "analysis_frequency_hours must be positive", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if body.DefaultConfidenceThreshold < 0 || body.DefaultConfidenceThreshold > 100 {
		writeError(w, r, "default_confidence_threshold must be within [0,100]", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	if body.MaxAutoApproveAmount.IsNegative() {
		writeError(w, r, "max_auto_approve_amount cannot be negative", "BAD_REQUEST", http.StatusBadRequest)
		return
	}

	result, err := h.svc.UpdateSettings(r.Context(), app.UpdateSettingsRequest{
		Settings: core.ReorderSettings{
			AutoReorderEnabled:         body.AutoReorderEnabled,
			AnalysisFrequencyHours:     body.AnalysisFrequencyHours,
			DefaultConfidenceThreshold: body.DefaultConfidenceThreshold,
			MaxAutoApproveAmount:       body.MaxAutoApproveAmount,
			NotificationEmails:         body.NotificationEmails,
			WebhookURL:                 body.WebhookURL,
		},
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result.Settings)
}
