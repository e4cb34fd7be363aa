package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"reorder-engine/internal/core"
)

type appService struct {
	suggestions core.SuggestionService
	analysis    core.AnalysisService
	policies    core.PolicyService
	settings    core.SettingsService
}

// NewAppService constructs an appService that satisfies ApplicationService.
func NewAppService(
	suggestions core.SuggestionService,
	analysis core.AnalysisService,
	policies core.PolicyService,
	settings core.SettingsService,
) ApplicationService {
	return &appService{
		suggestions: suggestions,
		analysis:    analysis,
		policies:    policies,
		settings:    settings,
	}
}

// ListSuggestions returns filtered reorder suggestions plus their summary.
func (s *appService) ListSuggestions(ctx context.Context, req SuggestionListRequest) (*SuggestionListResult, error) {
	suggestions, summary, err := s.suggestions.List(ctx, filterFromRequest(req))
	if err != nil {
		return nil, err
	}
	return &SuggestionListResult{Suggestions: suggestions, Summary: summary}, nil
}

// GetSuggestion returns a single suggestion by id.
func (s *appService) GetSuggestion(ctx context.Context, id string) (*SuggestionResult, error) {
	sg, err := s.suggestions.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SuggestionResult{Suggestion: sg}, nil
}

// TriggerAnalysis starts (or joins) an asynchronous analysis job.
func (s *appService) TriggerAnalysis(ctx context.Context, req AnalyzeRequest) (*JobResult, error) {
	job, err := s.analysis.Trigger(ctx, req.Scope, req.TargetID, req.UrgencyOnly)
	if err != nil {
		return nil, err
	}
	return &JobResult{Job: job}, nil
}

// GetJob returns the current state of one analysis job.
func (s *appService) GetJob(ctx context.Context, id string) (*JobResult, error) {
	job, err := s.analysis.Job(ctx, id)
	if err != nil {
		return nil, err
	}
	return &JobResult{Job: job}, nil
}

// ListJobs returns recent analysis jobs, newest first.
func (s *appService) ListJobs(ctx context.Context, limit int) (*JobListResult, error) {
	jobs, err := s.analysis.Jobs(ctx, limit)
	if err != nil {
		return nil, err
	}
	return &JobListResult{Jobs: jobs}, nil
}

// ActOnSuggestion applies approve/reject/modify to a pending suggestion.
func (s *appService) ActOnSuggestion(ctx context.Context, id string, req SuggestionActionRequest) (*SuggestionResult, error) {
	sg, err := s.suggestions.Act(ctx, id, req.Action, req.Reason, req.ActedBy, req.Modifications)
	if err != nil {
		return nil, err
	}
	return &SuggestionResult{Suggestion: sg}, nil
}

// BulkAct applies one action to each suggestion id independently.
func (s *appService) BulkAct(ctx context.Context, req BulkActionRequest) (*BulkActionResult, error) {
	return &BulkActionResult{
		Result: s.suggestions.BulkAct(ctx, req.IDs, req.Action, req.Reason, req.ActedBy),
	}, nil
}

// MarkOrdered transitions an approved suggestion to ordered.
func (s *appService) MarkOrdered(ctx context.Context, id string) (*SuggestionResult, error) {
	sg, err := s.suggestions.MarkOrdered(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SuggestionResult{Suggestion: sg}, nil
}

// GetSettings returns the engine settings singleton.
func (s *appService) GetSettings(ctx context.Context) (*SettingsResult, error) {
	return &SettingsResult{Settings: s.settings.Current()}, nil
}

// UpdateSettings atomically replaces the engine settings.
func (s *appService) UpdateSettings(ctx context.Context, req UpdateSettingsRequest) (*SettingsResult, error) {
	updated, err := s.settings.Update(ctx, req.Settings)
	if err != nil {
		return nil, err
	}
	return &SettingsResult{Settings: *updated}, nil
}

// ExportSuggestions streams the filtered suggestion set to w and returns the
// suggested download filename.
func (s *appService) ExportSuggestions(ctx context.Context, w io.Writer, req SuggestionListRequest, format string) (string, error) {
	suggestions, _, err := s.suggestions.List(ctx, filterFromRequest(req))
	if err != nil {
		return "", err
	}

	exportFormat := core.ExportFormat(format)
	if err := core.WriteExport(w, suggestions, exportFormat); err != nil {
		return "", err
	}

	return fmt.Sprintf("reorder-suggestions-%s.csv", time.Now().Format("2006-01-02")), nil
}

// ListPolicies returns every active reorder policy across all scopes.
func (s *appService) ListPolicies(ctx context.Context) (*PolicyListResult, error) {
	policies, err := s.policies.ActivePolicies(ctx)
	if err != nil {
		return nil, err
	}
	return &PolicyListResult{Policies: policies}, nil
}

// UpsertPolicy activates a policy for its scope slot.
func (s *appService) UpsertPolicy(ctx context.Context, req PolicyRequest) (*PolicyResult, error) {
	policy, err := s.policies.UpsertPolicy(ctx, core.ReorderPolicy{
		Scope:                  req.Scope,
		ScopeID:                req.ScopeID,
		MinStockMultiplier:     req.MinStockMultiplier,
		SafetyStockDays:        req.SafetyStockDays,
		MaxOrderQuantity:       req.MaxOrderQuantity,
		PreferredOrderQuantity: req.PreferredOrderQuantity,
		ReviewFrequencyDays:    req.ReviewFrequencyDays,
		AutoApproveThreshold:   req.AutoApproveThreshold,
		IsActive:               req.IsActive,
	})
	if err != nil {
		return nil, err
	}
	return &PolicyResult{Policy: policy}, nil
}

// GetHistory returns the suggestion audit trail, newest first.
func (s *appService) GetHistory(ctx context.Context, productID, limit int) (*HistoryResult, error) {
	entries, err := s.suggestions.History(ctx, productID, limit)
	if err != nil {
		return nil, err
	}
	return &HistoryResult{Entries: entries}, nil
}

// RecordOutcome fills in the late-arriving outcome flags on an audit row.
func (s *appService) RecordOutcome(ctx context.Context, req OutcomeRequest) error {
	return s.suggestions.RecordOutcome(ctx, req.HistoryID, req.StockoutOccurred, req.OverstockOccurred)
}

func filterFromRequest(req SuggestionListRequest) core.SuggestionFilter {
	return core.SuggestionFilter{
		Urgency:       req.Urgency,
		CategoryID:    req.CategoryID,
		SupplierID:    req.SupplierID,
		MinConfidence: req.MinConfidence,
		Status:        req.Status,
		DateFrom:      req.DateFrom,
		DateTo:        req.DateTo,
	}
}
