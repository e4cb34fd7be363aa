package app

import (
	"time"

	"reorder-engine/internal/core"
)

// SuggestionListRequest narrows suggestion queries and exports. Nil fields
// are ignored.
type SuggestionListRequest struct {
	Urgency       *core.Urgency
	CategoryID    *int
	SupplierID    *int
	MinConfidence *float64
	Status        *core.SuggestionStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// AnalyzeRequest is the input for triggering an analysis job.
type AnalyzeRequest struct {
	Scope       core.JobScope
	TargetID    *int // required for every scope except "all"
	UrgencyOnly bool
}

// SuggestionActionRequest is the input for a manual suggestion disposition.
type SuggestionActionRequest struct {
	Action        core.SuggestionAction
	Reason        string // required for reject
	ActedBy       string
	Modifications *core.Modifications // required for modify
}

// BulkActionRequest applies one action to many suggestion ids.
type BulkActionRequest struct {
	IDs     []string
	Action  core.SuggestionAction
	Reason  string
	ActedBy string
}

// UpdateSettingsRequest carries the full replacement settings record.
type UpdateSettingsRequest struct {
	Settings core.ReorderSettings
}

// PolicyRequest is the input for activating a reorder policy.
type PolicyRequest struct {
	Scope                  core.PolicyScope
	ScopeID                *int
	MinStockMultiplier     float64
	SafetyStockDays        int
	MaxOrderQuantity       *int
	PreferredOrderQuantity *int
	ReviewFrequencyDays    int
	AutoApproveThreshold   *float64
	IsActive               bool
}

// OutcomeRequest records stockout/overstock flags against a history row.
type OutcomeRequest struct {
	HistoryID         int64
	StockoutOccurred  *bool
	OverstockOccurred *bool
}
