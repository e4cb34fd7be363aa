package core_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"reorder-engine/internal/core"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	_ = godotenv.Load("../../.env")

	// Use a dedicated TEST database to avoid wiping the live app database.
	// Set TEST_DATABASE_URL in your .env or environment to run integration tests.
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set — skipping integration test to protect live database")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// Clean and seed test DB
	_, err = pool.Exec(ctx, `
		TRUNCATE TABLE reorder_history, reorder_suggestions, analysis_jobs,
		               reorder_policies, reorder_settings, demand_history,
		               products, suppliers, categories CASCADE;

		INSERT INTO categories (id, name) VALUES (5, 'Hardware');
		INSERT INTO suppliers (id, code, name, lead_time_days) VALUES (9, 'ACME', 'Acme Supply', 7);

		INSERT INTO products (id, code, name, category_id, supplier_id, unit_price, current_stock) VALUES
		(42, 'SKU-42', 'Widget', 5, 9, 2.50, 50),
		(43, 'SKU-43', 'Gadget', 5, 9, 4.00, 0),
		(44, 'SKU-44', 'Sprocket', 5, 9, 1.00, 10000);

		INSERT INTO reorder_policies (scope, scope_id, min_stock_multiplier, safety_stock_days, review_frequency_days, is_active)
		VALUES ('global', NULL, 1.0, 3, 7, TRUE);

		INSERT INTO reorder_settings (id) VALUES (1);
	`)
	if err != nil {
		t.Fatalf("Failed to seed test database: %v", err)
	}

	return pool
}

// seedPending inserts a fresh pending suggestion through the service.
func seedPending(t *testing.T, svc core.SuggestionService, product core.Product, qty int) *core.ReorderSuggestion {
	t.Helper()
	now := time.Now()
	out, err := svc.Upsert(context.Background(), &core.ReorderSuggestion{
		ProductID:         product.ID,
		SupplierID:        product.SupplierID,
		SuggestedQuantity: qty,
		EstimatedCost:     product.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
		Urgency:           core.UrgencyHigh,
		ConfidenceScore:   90,
		Reason:            "stock below safety threshold",
		LeadTimeDays:      product.LeadTimeDays,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.AddDate(0, 0, 7),
		CreatedByAI:       true,
	})
	if err != nil {
		t.Fatalf("Failed to seed pending suggestion for product %d: %v", product.ID, err)
	}
	return out
}

func gadget() core.Product {
	p := baseProduct()
	p.ID = 43
	p.Code = "SKU-43"
	p.Name = "Gadget"
	p.UnitPrice = decimal.RequireFromString("4.00")
	p.CurrentStock = 0
	return p
}

func TestSuggestionService_UpsertInPlace(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSuggestionService(pool)
	ctx := context.Background()

	first := seedPending(t, svc, baseProduct(), 50)

	// A second analysis pass refreshes the same pending row instead of
	// creating a sibling.
	second := seedPending(t, svc, baseProduct(), 60)

	if second.ID != first.ID {
		t.Errorf("expected the pending row to be reused, got ids %s and %s", first.ID, second.ID)
	}
	if second.SuggestedQuantity != 60 {
		t.Errorf("expected refreshed quantity 60, got %d", second.SuggestedQuantity)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at must survive the refresh: %v vs %v", first.CreatedAt, second.CreatedAt)
	}

	var pendings int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM reorder_suggestions WHERE product_id = 42 AND status = 'pending'",
	).Scan(&pendings); err != nil {
		t.Fatalf("count pendings: %v", err)
	}
	if pendings != 1 {
		t.Errorf("expected exactly one pending row, got %d", pendings)
	}
}

func TestSuggestionService_ApproveLifecycle(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSuggestionService(pool)
	ctx := context.Background()

	sg := seedPending(t, svc, baseProduct(), 50)

	approved, err := svc.Act(ctx, sg.ID, core.ActApprove, "", "alice", nil)
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != core.StatusApproved {
		t.Errorf("expected approved, got %s", approved.Status)
	}

	// Acting on a non-pending suggestion is a state violation.
	if _, err := svc.Act(ctx, sg.ID, core.ActApprove, "", "alice", nil); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState on double approval, got %v", err)
	}

	history, err := svc.History(ctx, 42, 10)
	if err != nil {
		t.Fatalf("history query failed: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected one audit row, got %d", len(history))
	}
	h := history[0]
	if h.Action != core.ActionApproved || h.ActedBy != "alice" || h.SuggestedQuantity != 50 {
		t.Errorf("unexpected audit row %+v", h)
	}

	// Late outcome reconciliation.
	stockout := true
	if err := svc.RecordOutcome(ctx, h.ID, &stockout, nil); err != nil {
		t.Fatalf("record outcome failed: %v", err)
	}
	history, _ = svc.History(ctx, 42, 10)
	if history[0].StockoutOccurred == nil || !*history[0].StockoutOccurred {
		t.Error("stockout flag was not persisted")
	}
}

func TestSuggestionService_RejectRequiresReason(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSuggestionService(pool)
	ctx := context.Background()
	sg := seedPending(t, svc, baseProduct(), 50)

	if _, err := svc.Act(ctx, sg.ID, core.ActReject, "  ", "bob", nil); err == nil {
		t.Fatal("expected an error rejecting without a reason")
	}

	rejected, err := svc.Act(ctx, sg.ID, core.ActReject, "supplier discontinued", "bob", nil)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected.Status != core.StatusRejected {
		t.Errorf("expected rejected, got %s", rejected.Status)
	}
}

func TestSuggestionService_ModifyReprices(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSuggestionService(pool)
	ctx := context.Background()
	sg := seedPending(t, svc, gadget(), 20) // 20 x 4.00 = 80.00

	qty := 10
	modified, err := svc.Act(ctx, sg.ID, core.ActModify, "half order", "carol", &core.Modifications{Quantity: &qty})
	if err != nil {
		t.Fatalf("modify failed: %v", err)
	}
	// Modification implies approval at the adjusted quantity.
	if modified.Status != core.StatusApproved {
		t.Errorf("expected modify to approve, got %s", modified.Status)
	}
	if modified.SuggestedQuantity != 10 {
		t.Errorf("expected quantity 10, got %d", modified.SuggestedQuantity)
	}
	if want := decimal.RequireFromString("40.00"); !modified.EstimatedCost.Equal(want) {
		t.Errorf("expected repriced cost %s, got %s", want, modified.EstimatedCost)
	}

	history, _ := svc.History(ctx, 43, 10)
	if len(history) != 1 || history[0].Action != core.ActionModified {
		t.Fatalf("expected one modified audit row, got %+v", history)
	}
	if history[0].ActualQuantity == nil || *history[0].ActualQuantity != 10 {
		t.Error("audit row must carry the actual quantity")
	}
}

func TestSuggestionService_BulkPartialFailure(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSuggestionService(pool)
	ctx := context.Background()

	a := seedPending(t, svc, baseProduct(), 50)
	b := seedPending(t, svc, gadget(), 20)
	unknown := uuid.NewString()

	result := svc.BulkAct(ctx, []string{a.ID, unknown, b.ID}, core.ActApprove, "", "dana")

	if result.Total != 3 || result.Successful != 2 || result.Failed != 1 {
		t.Errorf("expected {2 successful, 1 failed, 3 total}, got %+v", result)
	}
	if _, ok := result.Errors[unknown]; !ok {
		t.Errorf("expected a per-id error for %s, got %v", unknown, result.Errors)
	}

	// The bad id must not have aborted the good ones.
	for _, id := range []string{a.ID, b.ID} {
		got, err := svc.Get(ctx, id)
		if err != nil || got.Status != core.StatusApproved {
			t.Errorf("suggestion %s should be approved, got %v err=%v", id, got, err)
		}
	}
}

func TestSuggestionService_AutoApprove(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSuggestionService(pool)
	ctx := context.Background()

	settingsSvc, err := core.NewSettingsService(ctx, pool)
	if err != nil {
		t.Fatalf("settings bootstrap failed: %v", err)
	}
	settings := settingsSvc.Current()
	settings.AutoReorderEnabled = true
	settings.DefaultConfidenceThreshold = 85
	settings.MaxAutoApproveAmount = decimal.RequireFromString("500.00")
	if _, err := settingsSvc.Update(ctx, settings); err != nil {
		t.Fatalf("settings update failed: %v", err)
	}

	sg := seedPending(t, svc, gadget(), 100) // 100 x 4.00 = 400.00
	sg.ConfidenceScore = 92

	fired, err := svc.AutoApproveCheck(ctx, sg, settingsSvc.Current(), nil)
	if err != nil {
		t.Fatalf("auto-approve check failed: %v", err)
	}
	if !fired {
		t.Fatal("confidence 92 and cost 400 within limits should auto-approve")
	}

	got, err := svc.Get(ctx, sg.ID)
	if err != nil || got.Status != core.StatusApproved {
		t.Errorf("expected approved after auto-approval, got %v err=%v", got, err)
	}

	history, _ := svc.History(ctx, 43, 10)
	if len(history) != 1 || history[0].Action != core.ActionAutoOrdered || history[0].ActedBy != "auto-reorder" {
		t.Errorf("expected one auto_ordered audit row by auto-reorder, got %+v", history)
	}
}

func TestSuggestionService_MarkOrdered(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSuggestionService(pool)
	ctx := context.Background()
	sg := seedPending(t, svc, baseProduct(), 50)

	// Pending suggestions cannot jump straight to ordered.
	if _, err := svc.MarkOrdered(ctx, sg.ID); !errors.Is(err, core.ErrInvalidState) {
		t.Errorf("expected ErrInvalidState marking a pending suggestion ordered, got %v", err)
	}
	if _, err := svc.MarkOrdered(ctx, uuid.NewString()); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound for an unknown id, got %v", err)
	}

	if _, err := svc.Act(ctx, sg.ID, core.ActApprove, "", "erin", nil); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	ordered, err := svc.MarkOrdered(ctx, sg.ID)
	if err != nil {
		t.Fatalf("mark ordered failed: %v", err)
	}
	if ordered.Status != core.StatusOrdered {
		t.Errorf("expected ordered, got %s", ordered.Status)
	}
}

func TestSuggestionService_ListFiltersExpiredPending(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	svc := core.NewSuggestionService(pool)
	ctx := context.Background()

	sg := seedPending(t, svc, baseProduct(), 50)
	// Force the pending row past its expiry.
	if _, err := pool.Exec(ctx,
		"UPDATE reorder_suggestions SET expires_at = NOW() - INTERVAL '1 hour' WHERE id = $1", sg.ID,
	); err != nil {
		t.Fatalf("expire suggestion: %v", err)
	}

	pending := core.StatusPending
	list, summary, err := svc.List(ctx, core.SuggestionFilter{Status: &pending})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 0 || summary.Total != 0 {
		t.Errorf("expired pending rows must not surface in pending queries, got %d", len(list))
	}

	// The row itself is retained for audit.
	if _, err := svc.Get(ctx, sg.ID); err != nil {
		t.Errorf("expired suggestion should still be fetchable by id: %v", err)
	}

	expired, err := svc.ExpiredPendingCount(ctx, time.Now())
	if err != nil {
		t.Fatalf("expired pending count failed: %v", err)
	}
	if expired != 1 {
		t.Errorf("expired pending count = %d, want 1", expired)
	}
}

func TestSettingsService_UpdateRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()

	ctx := context.Background()
	svc, err := core.NewSettingsService(ctx, pool)
	if err != nil {
		t.Fatalf("settings bootstrap failed: %v", err)
	}

	defaults := svc.Current()
	if defaults.AutoReorderEnabled {
		t.Error("auto-reorder must default to disabled")
	}
	if defaults.DefaultConfidenceThreshold != 85 {
		t.Errorf("expected default threshold 85, got %v", defaults.DefaultConfidenceThreshold)
	}

	in := defaults
	in.AutoReorderEnabled = true
	in.AnalysisFrequencyHours = 12
	in.NotificationEmails = []string{"ops@example.com"}
	in.WebhookURL = "https://hooks.example.com/reorder"

	out, err := svc.Update(ctx, in)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if !out.AutoReorderEnabled || out.AnalysisFrequencyHours != 12 {
		t.Errorf("update did not persist: %+v", out)
	}
	if len(out.NotificationEmails) != 1 || out.NotificationEmails[0] != "ops@example.com" {
		t.Errorf("emails did not round-trip: %v", out.NotificationEmails)
	}

	// The in-process snapshot tracks the write.
	if got := svc.Current(); !got.AutoReorderEnabled || got.WebhookURL != in.WebhookURL {
		t.Errorf("snapshot is stale: %+v", got)
	}

	// Invalid updates are rejected before any write.
	bad := in
	bad.AnalysisFrequencyHours = 0
	if _, err := svc.Update(ctx, bad); err == nil {
		t.Error("expected an error for a non-positive analysis frequency")
	}
}
