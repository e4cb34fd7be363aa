package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reorder-engine/internal/metrics"
)

// AnalysisParams bound the orchestrator's resource usage.
type AnalysisParams struct {
	Workers          int           // per-job forecasting worker pool size
	JobTimeout       time.Duration // wall-clock budget before the job is failed
	PerProductBudget time.Duration // coarse per-product estimate for progress display
	HorizonDays      int           // forecast horizon
}

func DefaultAnalysisParams() AnalysisParams {
	return AnalysisParams{
		Workers:          4,
		JobTimeout:       10 * time.Minute,
		PerProductBudget: 200 * time.Millisecond,
		HorizonDays:      30,
	}
}

// urgencyOnlySkipMargin is how far above the naive reorder point stock must
// sit for an urgency-only pass to skip the full forecast.
const urgencyOnlySkipMargin = 1.5

// AnalysisService orchestrates asynchronous forecasting+suggestion passes.
// Trigger returns immediately with a job handle; callers poll Job until the
// status is terminal. At most one non-terminal job runs per (scope, target).
type AnalysisService interface {
	// Trigger starts a pass over the scope, or returns the already-running
	// job for that scope (idempotent trigger).
	Trigger(ctx context.Context, scope JobScope, targetID *int, urgencyOnly bool) (*AnalysisJob, error)
	// Job returns one job by id for status polling.
	Job(ctx context.Context, id string) (*AnalysisJob, error)
	// Jobs returns recent jobs, newest first.
	Jobs(ctx context.Context, limit int) ([]AnalysisJob, error)
}

type analysisService struct {
	pool        *pgxpool.Pool
	data        DataSource
	policies    PolicyService
	suggestions SuggestionService
	settings    SettingsService
	forecaster  *Forecaster
	genParams   GeneratorParams
	params      AnalysisParams
	log         *zap.Logger
	metrics     *metrics.Registry

	mu       sync.Mutex
	inflight map[string]string // scope key -> job id
}

func NewAnalysisService(pool *pgxpool.Pool, data DataSource, policies PolicyService,
	suggestions SuggestionService, settings SettingsService, forecaster *Forecaster,
	genParams GeneratorParams, params AnalysisParams, log *zap.Logger, reg *metrics.Registry) AnalysisService {

	if params.Workers <= 0 {
		params = DefaultAnalysisParams()
	}
	return &analysisService{
		pool:        pool,
		data:        data,
		policies:    policies,
		suggestions: suggestions,
		settings:    settings,
		forecaster:  forecaster,
		genParams:   genParams,
		params:      params,
		log:         log,
		metrics:     reg,
		inflight:    map[string]string{},
	}
}

func scopeKey(scope JobScope, targetID *int) string {
	t := 0
	if targetID != nil {
		t = *targetID
	}
	return fmt.Sprintf("%s:%d", scope, t)
}

const jobColumns = `id, scope, target_id, status, urgency_only, estimated_completion,
       suggestions_count, error, created_at, started_at, completed_at`

func scanJob(row pgx.Row) (*AnalysisJob, error) {
	var j AnalysisJob
	err := row.Scan(&j.ID, &j.Scope, &j.TargetID, &j.Status, &j.UrgencyOnly,
		&j.EstimatedCompletion, &j.SuggestionsCount, &j.Error,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *analysisService) Trigger(ctx context.Context, scope JobScope, targetID *int, urgencyOnly bool) (*AnalysisJob, error) {
	switch scope {
	case JobScopeAll:
		if targetID != nil {
			return nil, fmt.Errorf("scope %s does not take a target id", scope)
		}
	case JobScopeCategory, JobScopeSupplier, JobScopeProduct:
		if targetID == nil {
			return nil, fmt.Errorf("scope %s requires a target id", scope)
		}
	default:
		return nil, fmt.Errorf("unknown analysis scope %q", scope)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := scopeKey(scope, targetID)
	if jobID, ok := s.inflight[key]; ok {
		return s.Job(ctx, jobID)
	}

	// A non-terminal row may also exist from a previous process run; the
	// trigger stays idempotent across restarts.
	existing, err := scanJob(s.pool.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM analysis_jobs
		WHERE scope = $1 AND COALESCE(target_id, 0) = COALESCE($2, 0)
		  AND status IN ('started', 'running')`,
		scope, targetID,
	))
	if err == nil {
		s.inflight[key] = existing.ID
		return existing, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check in-flight job for %s: %w", key, err)
	}

	// Cheap product count up front so estimated_completion is meaningful
	// from the first poll.
	products, err := s.countProducts(ctx, scope, targetID)
	if err != nil {
		return nil, err
	}
	estimate := time.Now().Add(time.Duration(products) * s.params.PerProductBudget)

	job, err := scanJob(s.pool.QueryRow(ctx, `
		INSERT INTO analysis_jobs (id, scope, target_id, status, urgency_only, estimated_completion)
		VALUES ($1, $2, $3, 'started', $4, $5)
		RETURNING `+jobColumns,
		uuid.NewString(), scope, targetID, urgencyOnly, estimate,
	))
	if err != nil {
		return nil, fmt.Errorf("create analysis job for %s: %w", key, err)
	}

	s.inflight[key] = job.ID
	s.metrics.JobsStarted.Inc()
	s.metrics.JobsRunning.Inc()
	s.log.Info("analysis job triggered",
		zap.String("job_id", job.ID), zap.String("scope", string(scope)),
		zap.Bool("urgency_only", urgencyOnly), zap.Int("products", products))

	go s.run(job.ID, key, scope, targetID, urgencyOnly)
	return job, nil
}

func (s *analysisService) countProducts(ctx context.Context, scope JobScope, targetID *int) (int, error) {
	query := "SELECT COUNT(*) FROM products p WHERE p.is_active"
	args := []any{}
	switch scope {
	case JobScopeCategory:
		query += " AND p.category_id = $1"
		args = append(args, targetID)
	case JobScopeSupplier:
		query += " AND p.supplier_id = $1"
		args = append(args, targetID)
	case JobScopeProduct:
		query += " AND p.id = $1"
		args = append(args, targetID)
	}
	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products for scope %s: %w", scope, err)
	}
	return n, nil
}

// run executes the pass on a background context bounded by the job timeout.
// Timeouts and systemic failures are recorded on the job row for polling
// clients; they are never surfaced to the original trigger caller.
func (s *analysisService) run(jobID, key string, scope JobScope, targetID *int, urgencyOnly bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.params.JobTimeout)
	defer cancel()
	defer func() {
		s.mu.Lock()
		delete(s.inflight, key)
		s.mu.Unlock()
		s.metrics.JobsRunning.Dec()
	}()

	count, err := s.analyze(ctx, jobID, scope, targetID, urgencyOnly)
	if err != nil {
		msg := err.Error()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = ErrJobTimeout.Error()
		}
		s.metrics.JobsFailed.Inc()
		s.log.Error("analysis job failed", zap.String("job_id", jobID), zap.String("error", msg))
		s.finishJob(jobID, JobFailed, nil, &msg)
		return
	}

	s.metrics.JobsCompleted.Inc()
	s.log.Info("analysis job completed", zap.String("job_id", jobID), zap.Int("suggestions", count))
	s.finishJob(jobID, JobCompleted, &count, nil)
}

func (s *analysisService) analyze(ctx context.Context, jobID string, scope JobScope, targetID *int, urgencyOnly bool) (int, error) {
	products, err := s.data.ProductsInScope(ctx, scope, targetID)
	if err != nil {
		return 0, fmt.Errorf("enumerate scope: %w", err)
	}

	policies, err := s.policies.ActivePolicies(ctx)
	if err != nil {
		return 0, fmt.Errorf("load policies: %w", err)
	}
	// Fail fast on broken configuration before burning through the catalog.
	if _, err := ResolvePolicy(policies, 0, nil, nil); err != nil {
		return 0, err
	}

	if err := s.markRunning(ctx, jobID); err != nil {
		return 0, err
	}

	settings := s.settings.Current()

	var suggested atomic.Int64
	var sysMu sync.Mutex
	var systemicErr error
	work := make(chan Product)
	var wg sync.WaitGroup

	for w := 0; w < s.params.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for product := range work {
				if ctx.Err() != nil {
					continue
				}
				start := time.Now()
				created, err := s.analyzeProduct(ctx, product, policies, settings, urgencyOnly)
				s.metrics.ProductAnalysisSec.Observe(time.Since(start).Seconds())
				if err != nil {
					if errors.Is(err, ErrPolicyResolution) || ctx.Err() != nil {
						sysMu.Lock()
						if systemicErr == nil {
							systemicErr = err
						}
						sysMu.Unlock()
						continue
					}
					// One bad product never fails the whole pass.
					s.metrics.ProductsFailed.Inc()
					s.log.Warn("product analysis skipped",
						zap.String("job_id", jobID),
						zap.Int("product_id", product.ID),
						zap.Error(err))
					continue
				}
				if created {
					suggested.Add(1)
					s.metrics.SuggestionsGenerated.Inc()
				}
			}
		}()
	}

	for _, p := range products {
		if ctx.Err() != nil {
			break
		}
		work <- p
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return 0, ErrJobTimeout
	}
	if systemicErr != nil {
		return 0, systemicErr
	}
	return int(suggested.Load()), nil
}

func (s *analysisService) analyzeProduct(ctx context.Context, product Product, policies []ReorderPolicy, settings ReorderSettings, urgencyOnly bool) (bool, error) {
	policy, err := ResolvePolicy(policies, product.ID, product.CategoryID, product.SupplierID)
	if err != nil {
		return false, err
	}

	now := time.Now()
	window := s.params.HorizonDays
	if floor := s.forecaster.params.WindowFloorDays; floor > window {
		window = floor
	}
	since := now.AddDate(0, 0, -(window + s.forecaster.params.SeasonalCycleDays + 1))

	samples, err := s.data.DemandHistory(ctx, product.ID, since)
	if err != nil {
		return false, fmt.Errorf("read demand history: %w", err)
	}

	if urgencyOnly {
		// Cheap early exit: a naive mean over the window, no regression or
		// seasonality. Products comfortably above the naive reorder point
		// are skipped before the full forecast.
		naiveAvg := 0.0
		for _, smp := range samples {
			naiveAvg += smp.Quantity
		}
		naiveAvg /= float64(window)
		if float64(product.CurrentStock) >= ReorderPoint(naiveAvg, product.LeadTimeDays, policy)*urgencyOnlySkipMargin {
			s.metrics.ProductsSkipped.Inc()
			return false, nil
		}
	}

	fc := s.forecaster.Forecast(product.ID, samples, s.params.HorizonDays, product.CurrentStock, now, ForecastOptions{
		IncludeSeasonality: true,
	})

	suggestion, needed := GenerateSuggestion(product, fc, policy, s.genParams, now)
	if !needed {
		return false, nil
	}

	stored, err := s.suggestions.Upsert(ctx, suggestion)
	if err != nil {
		return false, fmt.Errorf("upsert suggestion: %w", err)
	}

	// Low-confidence forecasts never auto-approve, regardless of thresholds.
	if !fc.InsufficientData {
		fired, err := s.suggestions.AutoApproveCheck(ctx, stored, settings, policy)
		if err != nil {
			return true, fmt.Errorf("auto-approve check: %w", err)
		}
		if fired {
			s.metrics.SuggestionsAutoQueued.Inc()
		}
	}
	return true, nil
}

func (s *analysisService) markRunning(ctx context.Context, jobID string) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = 'running', started_at = NOW()
		WHERE id = $1 AND status = 'started'`,
		jobID,
	); err != nil {
		return fmt.Errorf("mark job %s running: %w", jobID, err)
	}
	return nil
}

// finishJob records the terminal state. It runs on a fresh context because
// the job context may already be expired.
func (s *analysisService) finishJob(jobID string, status JobStatus, count *int, errMsg *string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := s.pool.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $2, suggestions_count = $3, error = $4, completed_at = NOW()
		WHERE id = $1`,
		jobID, status, count, errMsg,
	); err != nil {
		s.log.Error("failed to record job completion", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (s *analysisService) Job(ctx context.Context, id string) (*AnalysisJob, error) {
	job, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}

func (s *analysisService) Jobs(ctx context.Context, limit int) ([]AnalysisJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM analysis_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []AnalysisJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}
