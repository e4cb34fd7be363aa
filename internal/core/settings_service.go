package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SettingsService owns the singleton engine settings row. Reads go through an
// atomic in-process snapshot so analysis passes never observe a half-written
// record; Update is the single writer path (mutex + DB write + atomic swap).
type SettingsService interface {
	// Current returns the latest settings snapshot without touching the DB.
	Current() ReorderSettings
	// Reload refreshes the snapshot from the database.
	Reload(ctx context.Context) error
	// Update persists new settings and swaps the snapshot.
	Update(ctx context.Context, s ReorderSettings) (*ReorderSettings, error)
}

type settingsService struct {
	pool    *pgxpool.Pool
	writeMu sync.Mutex
	current atomic.Pointer[ReorderSettings]
}

// NewSettingsService loads the settings row and returns a ready service.
func NewSettingsService(ctx context.Context, pool *pgxpool.Pool) (SettingsService, error) {
	s := &settingsService{pool: pool}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *settingsService) Current() ReorderSettings {
	return *s.current.Load()
}

func (s *settingsService) Reload(ctx context.Context) error {
	loaded, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	s.current.Store(loaded)
	return nil
}

func (s *settingsService) fetch(ctx context.Context) (*ReorderSettings, error) {
	var out ReorderSettings
	err := s.pool.QueryRow(ctx, `
		SELECT auto_reorder_enabled, analysis_frequency_hours,
		       default_confidence_threshold, max_auto_approve_amount,
		       notification_emails, webhook_url, updated_at
		FROM reorder_settings
		WHERE id = 1`,
	).Scan(
		&out.AutoReorderEnabled, &out.AnalysisFrequencyHours,
		&out.DefaultConfidenceThreshold, &out.MaxAutoApproveAmount,
		&out.NotificationEmails, &out.WebhookURL, &out.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("load reorder settings: %w", err)
	}
	return &out, nil
}

func (s *settingsService) Update(ctx context.Context, in ReorderSettings) (*ReorderSettings, error) {
	if in.AnalysisFrequencyHours <= 0 {
		return nil, fmt.Errorf("analysis frequency must be positive")
	}
	if in.DefaultConfidenceThreshold < 0 || in.DefaultConfidenceThreshold > 100 {
		return nil, fmt.Errorf("confidence threshold must be within [0,100]")
	}
	if in.MaxAutoApproveAmount.IsNegative() {
		return nil, fmt.Errorf("max auto-approve amount cannot be negative")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if in.NotificationEmails == nil {
		in.NotificationEmails = []string{}
	}
	if _, err := s.pool.Exec(ctx, `
		UPDATE reorder_settings
		SET auto_reorder_enabled         = $1,
		    analysis_frequency_hours     = $2,
		    default_confidence_threshold = $3,
		    max_auto_approve_amount      = $4,
		    notification_emails          = $5,
		    webhook_url                  = $6,
		    updated_at                   = NOW()
		WHERE id = 1`,
		in.AutoReorderEnabled, in.AnalysisFrequencyHours,
		in.DefaultConfidenceThreshold, in.MaxAutoApproveAmount,
		in.NotificationEmails, in.WebhookURL,
	); err != nil {
		return nil, fmt.Errorf("update reorder settings: %w", err)
	}

	loaded, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.current.Store(loaded)
	return loaded, nil
}
