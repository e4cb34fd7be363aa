package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// ModelVersion tags engine-generated suggestions so later model revisions can
// be told apart in the audit trail.
const ModelVersion = "forecast-v1"

// StockoutNever is the days-until-stockout sentinel for products whose
// forecasted demand is persistently zero.
const StockoutNever = -1

// DemandSample is one time-stamped consumption record, sourced from the
// surrounding application's order flow. The engine never mutates these.
type DemandSample struct {
	ProductID  int       `json:"product_id"`
	RecordedAt time.Time `json:"recorded_at"`
	Quantity   float64   `json:"quantity"`
}

// DemandForecast is the transient output of one forecasting pass for one
// product. It is recomputed per analysis run and never persisted.
type DemandForecast struct {
	ProductID         int       `json:"product_id"`
	HorizonDays       int       `json:"horizon_days"`
	AvgDailyDemand    float64   `json:"avg_daily_demand"`
	TrendFactor       float64   `json:"trend_factor"`       // fractional per-day rate
	SeasonalityFactor float64   `json:"seasonality_factor"` // clamped to [0.5, 2.0]
	Forecast          []float64 `json:"forecasted_demand"`  // index i = day i+1
	ConfidenceScore   float64   `json:"confidence_score"`   // [0,100]
	DaysUntilStockout int       `json:"days_until_stockout"`
	InsufficientData  bool      `json:"insufficient_data"`
	SampleCount       int       `json:"sample_count"`
	ComputedAt        time.Time `json:"computed_at"`
}

type PolicyScope string

const (
	ScopeGlobal   PolicyScope = "global"
	ScopeCategory PolicyScope = "category"
	ScopeSupplier PolicyScope = "supplier"
	ScopeProduct  PolicyScope = "product"
)

// ReorderPolicy governs when and how much to reorder. Policies layer from
// most to least specific: product, category, supplier, global. The global
// policy must always exist and be active.
type ReorderPolicy struct {
	ID                     int         `json:"id"`
	Scope                  PolicyScope `json:"scope"`
	ScopeID                *int        `json:"scope_id,omitempty"` // nil for global
	MinStockMultiplier     float64     `json:"min_stock_multiplier"`
	SafetyStockDays        int         `json:"safety_stock_days"`
	MaxOrderQuantity       *int        `json:"max_order_quantity,omitempty"`
	PreferredOrderQuantity *int        `json:"preferred_order_quantity,omitempty"`
	ReviewFrequencyDays    int         `json:"review_frequency_days"`
	AutoApproveThreshold   *float64    `json:"auto_approve_threshold,omitempty"` // confidence %
	IsActive               bool        `json:"is_active"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

type Urgency string

const (
	UrgencyCritical Urgency = "critical"
	UrgencyHigh     Urgency = "high"
	UrgencyMedium   Urgency = "medium"
	UrgencyLow      Urgency = "low"
)

// rank orders urgency tiers from most to least urgent.
func (u Urgency) rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	default:
		return 3
	}
}

// MoreUrgentThan reports whether u is a strictly more urgent tier than other.
func (u Urgency) MoreUrgentThan(other Urgency) bool { return u.rank() < other.rank() }

type SuggestionStatus string

const (
	StatusPending  SuggestionStatus = "pending"
	StatusApproved SuggestionStatus = "approved"
	StatusRejected SuggestionStatus = "rejected"
	StatusOrdered  SuggestionStatus = "ordered"
)

// ReorderSuggestion is one actionable purchase recommendation. At most one
// non-expired pending suggestion exists per product; re-analysis updates the
// pending row in place rather than inserting a duplicate.
type ReorderSuggestion struct {
	ID                string           `json:"id"`
	ProductID         int              `json:"product_id"`
	ProductCode       string           `json:"product_code,omitempty"`
	ProductName       string           `json:"product_name,omitempty"`
	SupplierID        *int             `json:"supplier_id,omitempty"`
	SupplierName      string           `json:"supplier_name,omitempty"`
	SuggestedQuantity int              `json:"suggested_quantity"`
	EstimatedCost     decimal.Decimal  `json:"estimated_cost"`
	Urgency           Urgency          `json:"urgency"`
	ConfidenceScore   float64          `json:"confidence_score"`
	Reason            string           `json:"reason"`
	LeadTimeDays      int              `json:"lead_time_days"`
	Status            SuggestionStatus `json:"status"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	ExpiresAt         time.Time        `json:"expires_at"`
	CreatedByAI       bool             `json:"created_by_ai"`
	AIModelVersion    *string          `json:"ai_model_version,omitempty"`
}

// Expired reports whether the suggestion's review window has passed.
// Expired pending suggestions are excluded from queries but kept for audit.
func (s *ReorderSuggestion) Expired(now time.Time) bool { return now.After(s.ExpiresAt) }

type HistoryAction string

const (
	ActionApproved    HistoryAction = "approved"
	ActionRejected    HistoryAction = "rejected"
	ActionModified    HistoryAction = "modified"
	ActionAutoOrdered HistoryAction = "auto_ordered"
)

// ReorderHistory is one append-only audit row per suggestion disposition.
// Only the outcome flags may be filled in after insert, by reconciliation.
type ReorderHistory struct {
	ID                int64            `json:"id"`
	SuggestionID      string           `json:"suggestion_id"`
	ProductID         int              `json:"product_id"`
	Action            HistoryAction    `json:"action"`
	SuggestedQuantity int              `json:"suggested_quantity"`
	ActualQuantity    *int             `json:"actual_quantity,omitempty"`
	SuggestedCost     decimal.Decimal  `json:"suggested_cost"`
	ActualCost        *decimal.Decimal `json:"actual_cost,omitempty"`
	Reason            string           `json:"reason"`
	ActedBy           string           `json:"acted_by"`
	StockoutOccurred  *bool            `json:"stockout_occurred,omitempty"`
	OverstockOccurred *bool            `json:"overstock_occurred,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
}

// ReorderSettings is the process-wide engine configuration. A single row in
// the database; mutated only through SettingsService.Update.
type ReorderSettings struct {
	AutoReorderEnabled         bool            `json:"auto_reorder_enabled"`
	AnalysisFrequencyHours     int             `json:"analysis_frequency_hours"`
	DefaultConfidenceThreshold float64         `json:"default_confidence_threshold"`
	MaxAutoApproveAmount       decimal.Decimal `json:"max_auto_approve_amount"`
	NotificationEmails         []string        `json:"notification_emails"`
	WebhookURL                 string          `json:"webhook_url"`
	UpdatedAt                  time.Time       `json:"updated_at"`
}

type JobScope string

const (
	JobScopeAll      JobScope = "all"
	JobScopeCategory JobScope = "category"
	JobScopeSupplier JobScope = "supplier"
	JobScopeProduct  JobScope = "product"
)

type JobStatus string

const (
	JobStarted   JobStatus = "started"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool { return s == JobCompleted || s == JobFailed }

// AnalysisJob tracks one asynchronous forecasting+suggestion pass over a
// scope. Clients poll it by ID until the status is terminal.
type AnalysisJob struct {
	ID                  string     `json:"id"`
	Scope               JobScope   `json:"scope"`
	TargetID            *int       `json:"target_id,omitempty"`
	Status              JobStatus  `json:"status"`
	UrgencyOnly         bool       `json:"urgency_only"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty"`
	SuggestionsCount    *int       `json:"suggestions_count,omitempty"`
	Error               *string    `json:"error,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	StartedAt           *time.Time `json:"started_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// Product is the engine's read-side view of a catalog product.
type Product struct {
	ID           int             `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	CategoryID   *int            `json:"category_id,omitempty"`
	SupplierID   *int            `json:"supplier_id,omitempty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	CurrentStock int             `json:"current_stock"`
	LeadTimeDays int             `json:"lead_time_days"`
}
