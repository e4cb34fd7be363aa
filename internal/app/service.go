package app

import (
	"context"
	"io"
)

// ApplicationService is the single interface all interface adapters (Web, CLI)
// call. It decouples presentation from engine logic. Implementations must
// contain no fmt.Println, no ANSI codes, and no display logic of any kind.
type ApplicationService interface {
	// ListSuggestions returns filtered reorder suggestions plus their summary.
	ListSuggestions(ctx context.Context, req SuggestionListRequest) (*SuggestionListResult, error)

	// GetSuggestion returns a single suggestion by id.
	GetSuggestion(ctx context.Context, id string) (*SuggestionResult, error)

	// TriggerAnalysis starts (or joins) an asynchronous analysis job for the
	// requested scope and returns its handle immediately.
	TriggerAnalysis(ctx context.Context, req AnalyzeRequest) (*JobResult, error)

	// GetJob returns the current state of one analysis job for polling.
	GetJob(ctx context.Context, id string) (*JobResult, error)

	// ListJobs returns recent analysis jobs, newest first.
	ListJobs(ctx context.Context, limit int) (*JobListResult, error)

	// ActOnSuggestion applies approve/reject/modify to a pending suggestion.
	ActOnSuggestion(ctx context.Context, id string, req SuggestionActionRequest) (*SuggestionResult, error)

	// BulkAct applies one action to each suggestion id independently; a bad id
	// never aborts the batch.
	BulkAct(ctx context.Context, req BulkActionRequest) (*BulkActionResult, error)

	// MarkOrdered transitions an approved suggestion to ordered once a
	// purchase order has been raised from it.
	MarkOrdered(ctx context.Context, id string) (*SuggestionResult, error)

	// GetSettings returns the engine settings singleton.
	GetSettings(ctx context.Context) (*SettingsResult, error)

	// UpdateSettings atomically replaces the engine settings.
	UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*SettingsResult, error)

	// ExportSuggestions streams the filtered suggestion set to w in the
	// requested format and returns the suggested download filename.
	ExportSuggestions(ctx context.Context, w io.Writer, req SuggestionListRequest, format string) (string, error)

	// ListPolicies returns every active reorder policy across all scopes.
	ListPolicies(ctx context.Context) (*PolicyListResult, error)

	// UpsertPolicy activates a policy for its scope slot, retiring any
	// previously active policy in the same slot.
	UpsertPolicy(ctx context.Context, req PolicyRequest) (*PolicyResult, error)

	// GetHistory returns the suggestion audit trail, newest first.
	// productID 0 means all products.
	GetHistory(ctx context.Context, productID, limit int) (*HistoryResult, error)

	// RecordOutcome fills in the late-arriving outcome flags on an audit row.
	RecordOutcome(ctx context.Context, req OutcomeRequest) error
}
