package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SuggestionAction is a manual disposition applied to a pending suggestion.
type SuggestionAction string

const (
	ActApprove SuggestionAction = "approve"
	ActReject  SuggestionAction = "reject"
	ActModify  SuggestionAction = "modify"
)

// Modifications optionally rewrite a suggestion before it is approved.
type Modifications struct {
	Quantity   *int `json:"quantity,omitempty"`
	SupplierID *int `json:"supplier_id,omitempty"`
}

// SuggestionFilter narrows List queries. Nil fields are ignored.
type SuggestionFilter struct {
	Urgency       *Urgency
	CategoryID    *int
	SupplierID    *int
	MinConfidence *float64
	Status        *SuggestionStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// SuggestionSummary aggregates a filtered suggestion set for dashboards.
type SuggestionSummary struct {
	Total              int             `json:"total"`
	CriticalCount      int             `json:"critical_count"`
	HighCount          int             `json:"high_count"`
	MediumCount        int             `json:"medium_count"`
	LowCount           int             `json:"low_count"`
	TotalEstimatedCost decimal.Decimal `json:"total_estimated_cost"`
	AvgConfidence      float64         `json:"avg_confidence"`
}

// BulkResult reports a bulk action outcome. Items fail independently; one bad
// id never aborts the batch.
type BulkResult struct {
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Total      int               `json:"total"`
	Errors     map[string]string `json:"errors,omitempty"` // id -> failure reason
}

// SuggestionService owns the suggestion state machine:
// pending -> {approved, rejected}; approved -> ordered; any pending row is
// implicitly excluded once expires_at passes. Every disposition appends one
// reorder_history row.
type SuggestionService interface {
	// Upsert inserts a fresh suggestion or, when an active pending one exists
	// for the product, updates it in place preserving created_at.
	Upsert(ctx context.Context, s *ReorderSuggestion) (*ReorderSuggestion, error)
	// Get returns one suggestion by id.
	Get(ctx context.Context, id string) (*ReorderSuggestion, error)
	// Act applies approve/reject/modify to a pending, unexpired suggestion.
	Act(ctx context.Context, id string, action SuggestionAction, reason, actedBy string, mods *Modifications) (*ReorderSuggestion, error)
	// AutoApproveCheck approves a freshly generated suggestion without manual
	// review when settings and thresholds allow it. Returns whether it fired.
	AutoApproveCheck(ctx context.Context, s *ReorderSuggestion, settings ReorderSettings, policy *ReorderPolicy) (bool, error)
	// BulkAct applies one action to each id independently.
	BulkAct(ctx context.Context, ids []string, action SuggestionAction, reason, actedBy string) BulkResult
	// MarkOrdered transitions an approved suggestion to ordered once a
	// purchase order has been raised from it.
	MarkOrdered(ctx context.Context, id string) (*ReorderSuggestion, error)
	// List returns filtered suggestions plus their summary.
	List(ctx context.Context, filter SuggestionFilter) ([]ReorderSuggestion, SuggestionSummary, error)
	// History returns audit rows, newest first. productID 0 means all products.
	History(ctx context.Context, productID, limit int) ([]ReorderHistory, error)
	// RecordOutcome fills in the late-arriving outcome flags on a history row.
	RecordOutcome(ctx context.Context, historyID int64, stockout, overstock *bool) error
	// ExpiredPendingCount reports how many pending rows have lapsed. Expiry
	// itself is a query predicate; this exists for housekeeping visibility.
	ExpiredPendingCount(ctx context.Context, now time.Time) (int, error)
}

type suggestionService struct {
	pool *pgxpool.Pool
	// Striped per-product locks serialize Upsert so concurrent analysis
	// workers cannot race the one-pending-per-product invariant. The DB's
	// partial unique index is the backstop.
	locks [64]sync.Mutex
}

func NewSuggestionService(pool *pgxpool.Pool) SuggestionService {
	return &suggestionService{pool: pool}
}

func (s *suggestionService) productLock(productID int) *sync.Mutex {
	return &s.locks[productID%len(s.locks)]
}

const suggestionColumns = `rs.id, rs.product_id, p.code, p.name, rs.supplier_id,
       COALESCE(sup.name, ''), rs.suggested_quantity, rs.estimated_cost,
       rs.urgency, rs.confidence_score, rs.reason, rs.lead_time_days,
       rs.status, rs.created_at, rs.updated_at, rs.expires_at,
       rs.created_by_ai, rs.ai_model_version`

const suggestionJoins = `
	FROM reorder_suggestions rs
	JOIN products p ON p.id = rs.product_id
	LEFT JOIN suppliers sup ON sup.id = rs.supplier_id`

func scanSuggestion(row pgx.Row) (*ReorderSuggestion, error) {
	var out ReorderSuggestion
	err := row.Scan(
		&out.ID, &out.ProductID, &out.ProductCode, &out.ProductName, &out.SupplierID,
		&out.SupplierName, &out.SuggestedQuantity, &out.EstimatedCost,
		&out.Urgency, &out.ConfidenceScore, &out.Reason, &out.LeadTimeDays,
		&out.Status, &out.CreatedAt, &out.UpdatedAt, &out.ExpiresAt,
		&out.CreatedByAI, &out.AIModelVersion,
	)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *suggestionService) Upsert(ctx context.Context, in *ReorderSuggestion) (*ReorderSuggestion, error) {
	if in.SuggestedQuantity < 0 {
		return nil, fmt.Errorf("suggested quantity cannot be negative")
	}
	if in.EstimatedCost.IsNegative() {
		return nil, fmt.Errorf("estimated cost cannot be negative")
	}

	lock := s.productLock(in.ProductID)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the product's pending row if one exists, expired or not. An
	// expired pending row still occupies the one-pending-per-product slot,
	// so it is recycled rather than duplicated.
	var existingID string
	var createdAt, expiresAt time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, created_at, expires_at
		FROM reorder_suggestions
		WHERE product_id = $1 AND status = 'pending'
		FOR UPDATE`,
		in.ProductID,
	).Scan(&existingID, &createdAt, &expiresAt)

	var id string
	switch {
	case err == nil:
		// Active pending rows keep their created_at; an expired one is
		// recycled as a fresh suggestion.
		preservedCreatedAt := createdAt
		if time.Now().After(expiresAt) {
			preservedCreatedAt = in.CreatedAt
		}
		id = existingID
		if _, err := tx.Exec(ctx, `
			UPDATE reorder_suggestions
			SET supplier_id        = $2,
			    suggested_quantity = $3,
			    estimated_cost     = $4,
			    urgency            = $5,
			    confidence_score   = $6,
			    reason             = $7,
			    lead_time_days     = $8,
			    created_at         = $9,
			    updated_at         = NOW(),
			    expires_at         = $10,
			    created_by_ai      = $11,
			    ai_model_version   = $12
			WHERE id = $1`,
			existingID, in.SupplierID, in.SuggestedQuantity, in.EstimatedCost,
			in.Urgency, in.ConfidenceScore, in.Reason, in.LeadTimeDays,
			preservedCreatedAt, in.ExpiresAt, in.CreatedByAI, in.AIModelVersion,
		); err != nil {
			return nil, fmt.Errorf("update pending suggestion for product %d: %w", in.ProductID, err)
		}

	case errors.Is(err, pgx.ErrNoRows):
		id = in.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO reorder_suggestions
			            (id, product_id, supplier_id, suggested_quantity, estimated_cost,
			             urgency, confidence_score, reason, lead_time_days, status,
			             created_at, updated_at, expires_at, created_by_ai, ai_model_version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10, $10, $11, $12, $13)`,
			id, in.ProductID, in.SupplierID, in.SuggestedQuantity, in.EstimatedCost,
			in.Urgency, in.ConfidenceScore, in.Reason, in.LeadTimeDays,
			in.CreatedAt, in.ExpiresAt, in.CreatedByAI, in.AIModelVersion,
		); err != nil {
			return nil, fmt.Errorf("insert suggestion for product %d: %w", in.ProductID, err)
		}

	default:
		return nil, fmt.Errorf("lock pending suggestion for product %d: %w", in.ProductID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit suggestion upsert: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *suggestionService) Get(ctx context.Context, id string) (*ReorderSuggestion, error) {
	out, err := scanSuggestion(s.pool.QueryRow(ctx,
		`SELECT `+suggestionColumns+suggestionJoins+` WHERE rs.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get suggestion %s: %w", id, err)
	}
	return out, nil
}

func (s *suggestionService) Act(ctx context.Context, id string, action SuggestionAction, reason, actedBy string, mods *Modifications) (*ReorderSuggestion, error) {
	if action == ActReject && strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("rejecting a suggestion requires a reason")
	}
	if action != ActApprove && action != ActReject && action != ActModify {
		return nil, fmt.Errorf("unknown action %q", action)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var cur ReorderSuggestion
	err = tx.QueryRow(ctx, `
		SELECT id, product_id, supplier_id, suggested_quantity, estimated_cost,
		       status, expires_at
		FROM reorder_suggestions
		WHERE id = $1
		FOR UPDATE`,
		id,
	).Scan(&cur.ID, &cur.ProductID, &cur.SupplierID, &cur.SuggestedQuantity,
		&cur.EstimatedCost, &cur.Status, &cur.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("suggestion %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("lock suggestion %s: %w", id, err)
	}

	if cur.Status != StatusPending {
		return nil, fmt.Errorf("suggestion %s is %s: %w", id, cur.Status, ErrInvalidState)
	}
	if cur.Expired(time.Now()) {
		return nil, fmt.Errorf("suggestion %s expired at %s: %w", id, cur.ExpiresAt.Format(time.RFC3339), ErrInvalidState)
	}

	newStatus := StatusApproved
	historyAction := ActionApproved
	actualQty := cur.SuggestedQuantity
	actualCost := cur.EstimatedCost
	supplierID := cur.SupplierID

	switch action {
	case ActReject:
		newStatus = StatusRejected
		historyAction = ActionRejected
	case ActModify:
		historyAction = ActionModified
		if mods == nil || (mods.Quantity == nil && mods.SupplierID == nil) {
			return nil, fmt.Errorf("modify requires at least one modification")
		}
		if mods.Quantity != nil {
			if *mods.Quantity <= 0 {
				return nil, fmt.Errorf("modified quantity must be positive")
			}
			actualQty = *mods.Quantity
			// Re-price at the original per-unit cost.
			if cur.SuggestedQuantity > 0 {
				unit := cur.EstimatedCost.Div(decimal.NewFromInt(int64(cur.SuggestedQuantity)))
				actualCost = unit.Mul(decimal.NewFromInt(int64(actualQty))).Round(2)
			}
		}
		if mods.SupplierID != nil {
			supplierID = mods.SupplierID
		}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE reorder_suggestions
		SET status             = $2,
		    suggested_quantity = $3,
		    estimated_cost     = $4,
		    supplier_id        = $5,
		    updated_at         = NOW()
		WHERE id = $1`,
		id, newStatus, actualQty, actualCost, supplierID,
	); err != nil {
		return nil, fmt.Errorf("transition suggestion %s: %w", id, err)
	}

	if err := insertHistoryTx(ctx, tx, &cur, historyAction, actualQty, actualCost, reason, actedBy); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit suggestion action: %w", err)
	}
	return s.Get(ctx, id)
}

// insertHistoryTx appends one audit row within the caller's transaction.
func insertHistoryTx(ctx context.Context, tx pgx.Tx, cur *ReorderSuggestion,
	action HistoryAction, actualQty int, actualCost decimal.Decimal, reason, actedBy string) error {

	if actedBy == "" {
		actedBy = "system"
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO reorder_history
		            (suggestion_id, product_id, action, suggested_quantity, actual_quantity,
		             suggested_cost, actual_cost, reason, acted_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		cur.ID, cur.ProductID, action, cur.SuggestedQuantity, actualQty,
		cur.EstimatedCost, actualCost, reason, actedBy,
	); err != nil {
		return fmt.Errorf("append reorder history for suggestion %s: %w", cur.ID, err)
	}
	return nil
}

func (s *suggestionService) AutoApproveCheck(ctx context.Context, sg *ReorderSuggestion, settings ReorderSettings, policy *ReorderPolicy) (bool, error) {
	if !settings.AutoReorderEnabled {
		return false, nil
	}

	threshold := settings.DefaultConfidenceThreshold
	if policy != nil && policy.AutoApproveThreshold != nil {
		threshold = *policy.AutoApproveThreshold
	}
	if sg.ConfidenceScore < threshold {
		return false, nil
	}
	if sg.EstimatedCost.GreaterThan(settings.MaxAutoApproveAmount) {
		return false, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// Only a still-pending, unexpired row can be auto-approved.
	var status SuggestionStatus
	var expiresAt time.Time
	err = tx.QueryRow(ctx,
		"SELECT status, expires_at FROM reorder_suggestions WHERE id = $1 FOR UPDATE", sg.ID,
	).Scan(&status, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("suggestion %s: %w", sg.ID, ErrNotFound)
		}
		return false, fmt.Errorf("lock suggestion %s: %w", sg.ID, err)
	}
	if status != StatusPending || time.Now().After(expiresAt) {
		return false, nil
	}

	if _, err := tx.Exec(ctx,
		"UPDATE reorder_suggestions SET status = 'approved', updated_at = NOW() WHERE id = $1", sg.ID,
	); err != nil {
		return false, fmt.Errorf("auto-approve suggestion %s: %w", sg.ID, err)
	}

	reason := fmt.Sprintf("auto-approved: confidence %.0f >= %.0f, cost %s within limit %s",
		sg.ConfidenceScore, threshold, sg.EstimatedCost.StringFixed(2), settings.MaxAutoApproveAmount.StringFixed(2))
	if err := insertHistoryTx(ctx, tx, sg, ActionAutoOrdered, sg.SuggestedQuantity, sg.EstimatedCost, reason, "auto-reorder"); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit auto-approval: %w", err)
	}
	return true, nil
}

func (s *suggestionService) BulkAct(ctx context.Context, ids []string, action SuggestionAction, reason, actedBy string) BulkResult {
	result := BulkResult{Total: len(ids), Errors: map[string]string{}}
	for _, id := range ids {
		if _, err := s.Act(ctx, id, action, reason, actedBy, nil); err != nil {
			result.Failed++
			result.Errors[id] = err.Error()
			continue
		}
		result.Successful++
	}
	if len(result.Errors) == 0 {
		result.Errors = nil
	}
	return result
}

func (s *suggestionService) MarkOrdered(ctx context.Context, id string) (*ReorderSuggestion, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reorder_suggestions
		SET status = 'ordered', updated_at = NOW()
		WHERE id = $1 AND status = 'approved'`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark suggestion %s ordered: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish unknown id from wrong state for the caller.
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("suggestion %s is not approved: %w", id, ErrInvalidState)
	}
	return s.Get(ctx, id)
}

func (s *suggestionService) List(ctx context.Context, filter SuggestionFilter) ([]ReorderSuggestion, SuggestionSummary, error) {
	query := `SELECT ` + suggestionColumns + suggestionJoins + ` WHERE TRUE`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != nil {
		query += " AND rs.status = " + arg(*filter.Status)
		if *filter.Status == StatusPending {
			// Expired pendings are implicitly invalid: excluded from pending
			// queries, retained for audit.
			query += " AND rs.expires_at > NOW()"
		}
	}
	if filter.Urgency != nil {
		query += " AND rs.urgency = " + arg(*filter.Urgency)
	}
	if filter.CategoryID != nil {
		query += " AND p.category_id = " + arg(*filter.CategoryID)
	}
	if filter.SupplierID != nil {
		query += " AND rs.supplier_id = " + arg(*filter.SupplierID)
	}
	if filter.MinConfidence != nil {
		query += " AND rs.confidence_score >= " + arg(*filter.MinConfidence)
	}
	if filter.DateFrom != nil {
		query += " AND rs.created_at >= " + arg(*filter.DateFrom)
	}
	if filter.DateTo != nil {
		query += " AND rs.created_at <= " + arg(*filter.DateTo)
	}
	query += ` ORDER BY
		CASE rs.urgency WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
		rs.created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, SuggestionSummary{}, fmt.Errorf("list suggestions: %w", err)
	}
	defer rows.Close()

	var suggestions []ReorderSuggestion
	for rows.Next() {
		sg, err := scanSuggestion(rows)
		if err != nil {
			return nil, SuggestionSummary{}, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, *sg)
	}
	if err := rows.Err(); err != nil {
		return nil, SuggestionSummary{}, err
	}

	return suggestions, Summarize(suggestions), nil
}

// Summarize aggregates urgency counts, total cost, and mean confidence.
func Summarize(suggestions []ReorderSuggestion) SuggestionSummary {
	summary := SuggestionSummary{Total: len(suggestions), TotalEstimatedCost: decimal.Zero}
	var confSum float64
	for _, sg := range suggestions {
		switch sg.Urgency {
		case UrgencyCritical:
			summary.CriticalCount++
		case UrgencyHigh:
			summary.HighCount++
		case UrgencyMedium:
			summary.MediumCount++
		default:
			summary.LowCount++
		}
		summary.TotalEstimatedCost = summary.TotalEstimatedCost.Add(sg.EstimatedCost)
		confSum += sg.ConfidenceScore
	}
	if summary.Total > 0 {
		summary.AvgConfidence = confSum / float64(summary.Total)
	}
	return summary
}

func (s *suggestionService) History(ctx context.Context, productID, limit int) ([]ReorderHistory, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, suggestion_id, product_id, action, suggested_quantity,
		       actual_quantity, suggested_cost, actual_cost, reason, acted_by,
		       stockout_occurred, overstock_occurred, created_at
		FROM reorder_history`
	args := []any{}
	if productID > 0 {
		query += " WHERE product_id = $1"
		args = append(args, productID)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reorder history: %w", err)
	}
	defer rows.Close()

	var history []ReorderHistory
	for rows.Next() {
		var h ReorderHistory
		if err := rows.Scan(&h.ID, &h.SuggestionID, &h.ProductID, &h.Action,
			&h.SuggestedQuantity, &h.ActualQuantity, &h.SuggestedCost, &h.ActualCost,
			&h.Reason, &h.ActedBy, &h.StockoutOccurred, &h.OverstockOccurred,
			&h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (s *suggestionService) ExpiredPendingCount(ctx context.Context, now time.Time) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM reorder_suggestions WHERE status = 'pending' AND expires_at <= $1", now,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expired pending suggestions: %w", err)
	}
	return count, nil
}

func (s *suggestionService) RecordOutcome(ctx context.Context, historyID int64, stockout, overstock *bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE reorder_history
		SET stockout_occurred  = COALESCE($2, stockout_occurred),
		    overstock_occurred = COALESCE($3, overstock_occurred)
		WHERE id = $1`,
		historyID, stockout, overstock,
	)
	if err != nil {
		return fmt.Errorf("record outcome for history %d: %w", historyID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("history row %d: %w", historyID, ErrNotFound)
	}
	return nil
}
