package app

import "reorder-engine/internal/core"

// SuggestionListResult is returned by ListSuggestions.
type SuggestionListResult struct {
	Suggestions []core.ReorderSuggestion
	Summary     core.SuggestionSummary
}

// SuggestionResult is returned by single-suggestion operations.
type SuggestionResult struct {
	Suggestion *core.ReorderSuggestion
}

// JobResult is returned by TriggerAnalysis and GetJob.
type JobResult struct {
	Job *core.AnalysisJob
}

// JobListResult is returned by ListJobs.
type JobListResult struct {
	Jobs []core.AnalysisJob
}

// BulkActionResult is returned by BulkAct.
type BulkActionResult struct {
	Result core.BulkResult
}

// SettingsResult is returned by settings operations.
type SettingsResult struct {
	Settings core.ReorderSettings
}

// PolicyResult is returned by UpsertPolicy.
type PolicyResult struct {
	Policy *core.ReorderPolicy
}

// PolicyListResult is returned by ListPolicies.
type PolicyListResult struct {
	Policies []core.ReorderPolicy
}

// HistoryResult is returned by GetHistory.
type HistoryResult struct {
	Entries []core.ReorderHistory
}
