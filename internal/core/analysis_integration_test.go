package core_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"reorder-engine/internal/core"
	"reorder-engine/internal/metrics"
)

func newAnalysisService(t *testing.T, pool *pgxpool.Pool) core.AnalysisService {
	t.Helper()
	params := core.DefaultAnalysisParams()
	params.Workers = 2
	params.JobTimeout = 30 * time.Second
	return newAnalysisServiceWithParams(t, pool, params)
}

func newAnalysisServiceWithParams(t *testing.T, pool *pgxpool.Pool, params core.AnalysisParams) core.AnalysisService {
	t.Helper()
	ctx := context.Background()

	settings, err := core.NewSettingsService(ctx, pool)
	if err != nil {
		t.Fatalf("settings bootstrap failed: %v", err)
	}

	return core.NewAnalysisService(
		pool,
		core.NewDataSource(pool),
		core.NewPolicyService(pool),
		core.NewSuggestionService(pool),
		settings,
		core.NewForecaster(core.DefaultForecastParams()),
		core.DefaultGeneratorParams(),
		params,
		zap.NewNop(),
		metrics.NewRegistry(),
	)
}

// seedDemand writes days of steady consumption for one product.
func seedDemand(t *testing.T, pool *pgxpool.Pool, productID, days int, qty float64) {
	t.Helper()
	ctx := context.Background()
	for k := 0; k < days; k++ {
		if _, err := pool.Exec(ctx,
			"INSERT INTO demand_history (product_id, recorded_at, quantity) VALUES ($1, NOW() - make_interval(days => $2), $3)",
			productID, k, qty,
		); err != nil {
			t.Fatalf("seed demand for product %d: %v", productID, err)
		}
	}
}

// waitForJob polls until the job reaches a terminal status.
func waitForJob(t *testing.T, svc core.AnalysisService, id string) *core.AnalysisJob {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.Job(ctx, id)
		if err != nil {
			t.Fatalf("poll job %s: %v", id, err)
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return nil
}

func TestAnalysisService_ProductScopeRun(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	// Product 42 holds 50 units against ~10/day demand: well below the
	// reorder point of 100, so the pass must yield a suggestion.
	seedDemand(t, pool, 42, 30, 10)

	svc := newAnalysisService(t, pool)
	target := 42
	job, err := svc.Trigger(context.Background(), core.JobScopeProduct, &target, false)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if job.Status == core.JobCompleted || job.Status == core.JobFailed {
		t.Fatalf("trigger must return a live job, got %s", job.Status)
	}

	done := waitForJob(t, svc, job.ID)
	if done.Status != core.JobCompleted {
		msg := ""
		if done.Error != nil {
			msg = *done.Error
		}
		t.Fatalf("expected completed job, got %s (error: %s)", done.Status, msg)
	}
	if done.SuggestionsCount == nil || *done.SuggestionsCount != 1 {
		t.Errorf("expected one suggestion from the run, got %v", done.SuggestionsCount)
	}

	suggestions := core.NewSuggestionService(pool)
	pending := core.StatusPending
	list, _, err := suggestions.List(context.Background(), core.SuggestionFilter{Status: &pending})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 1 || list[0].ProductID != 42 {
		t.Fatalf("expected one pending suggestion for product 42, got %+v", list)
	}
	if list[0].SuggestedQuantity < 45 || list[0].SuggestedQuantity > 55 {
		t.Errorf("expected quantity near 50 (reorder point 100, stock 50), got %d", list[0].SuggestedQuantity)
	}
	if list[0].Urgency != core.UrgencyCritical {
		t.Errorf("5-day stockout against a 7-day lead should be critical, got %s", list[0].Urgency)
	}
}

func TestAnalysisService_WellStockedProductYieldsNothing(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	// Product 44 holds 10000 units against ~10/day demand.
	seedDemand(t, pool, 44, 30, 10)

	svc := newAnalysisService(t, pool)
	target := 44
	job, err := svc.Trigger(context.Background(), core.JobScopeProduct, &target, false)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	done := waitForJob(t, svc, job.ID)
	if done.Status != core.JobCompleted {
		t.Fatalf("expected completed job, got %s", done.Status)
	}
	if done.SuggestionsCount == nil || *done.SuggestionsCount != 0 {
		t.Errorf("well-stocked product should produce zero suggestions, got %v", done.SuggestionsCount)
	}
}

func TestAnalysisService_TriggerIdempotent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()

	// A non-terminal job already on record (say, from a previous process
	// that died) must be returned as-is instead of starting a sibling run.
	existing := uuid.NewString()
	if _, err := pool.Exec(ctx,
		"INSERT INTO analysis_jobs (id, scope, target_id, status) VALUES ($1, 'category', 5, 'running')",
		existing,
	); err != nil {
		t.Fatalf("seed running job: %v", err)
	}

	svc := newAnalysisService(t, pool)
	target := 5
	job, err := svc.Trigger(ctx, core.JobScopeCategory, &target, false)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}
	if job.ID != existing {
		t.Errorf("expected the in-flight job %s back, got %s", existing, job.ID)
	}

	var total int
	if err := pool.QueryRow(ctx, "SELECT COUNT(*) FROM analysis_jobs").Scan(&total); err != nil {
		t.Fatalf("count jobs: %v", err)
	}
	if total != 1 {
		t.Errorf("expected no new job row, got %d rows", total)
	}
}

func TestAnalysisService_TriggerValidation(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := newAnalysisService(t, pool)
	ctx := context.Background()
	target := 5

	if _, err := svc.Trigger(ctx, core.JobScopeAll, &target, false); err == nil {
		t.Error("scope all must not take a target id")
	}
	if _, err := svc.Trigger(ctx, core.JobScopeCategory, nil, false); err == nil {
		t.Error("scope category requires a target id")
	}
	if _, err := svc.Trigger(ctx, core.JobScope("warehouse"), nil, false); err == nil {
		t.Error("unknown scopes must be rejected")
	}
	if _, err := svc.Job(ctx, uuid.NewString()); !errors.Is(err, core.ErrNotFound) {
		t.Error("unknown job ids must map to ErrNotFound")
	}
}

func TestAnalysisService_JobTimeoutFailsJob(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	seedDemand(t, pool, 42, 30, 10)

	// A wall-clock budget the run cannot possibly meet: the job context is
	// already expired when the first query runs.
	params := core.DefaultAnalysisParams()
	params.Workers = 2
	params.JobTimeout = time.Nanosecond
	svc := newAnalysisServiceWithParams(t, pool, params)

	target := 42
	job, err := svc.Trigger(context.Background(), core.JobScopeProduct, &target, false)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	done := waitForJob(t, svc, job.ID)
	if done.Status != core.JobFailed {
		t.Fatalf("a run over its wall-clock budget must fail, got %s", done.Status)
	}
	msg := ""
	if done.Error != nil {
		msg = *done.Error
	}
	if msg != core.ErrJobTimeout.Error() {
		t.Errorf("expected the timeout error recorded on the job, got %q", msg)
	}
}

func TestAnalysisService_MissingGlobalPolicyFailsJob(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	if _, err := pool.Exec(ctx, "UPDATE reorder_policies SET is_active = FALSE WHERE scope = 'global'"); err != nil {
		t.Fatalf("deactivate global policy: %v", err)
	}
	seedDemand(t, pool, 42, 30, 10)

	svc := newAnalysisService(t, pool)
	target := 42
	job, err := svc.Trigger(ctx, core.JobScopeProduct, &target, false)
	if err != nil {
		t.Fatalf("trigger failed: %v", err)
	}

	done := waitForJob(t, svc, job.ID)
	if done.Status != core.JobFailed {
		t.Fatalf("a run without a global policy must fail, got %s", done.Status)
	}
	if done.Error == nil || *done.Error == "" {
		t.Error("failed jobs must record an error message")
	}
}
