package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResolvePolicy picks the effective policy for a product from the active
// policy set. Resolution is an explicit ordered scan from most to least
// specific: product, category, supplier, then global. The global policy is
// required; if it is missing or inactive, resolution fails loudly because
// every product must resolve to some policy.
func ResolvePolicy(policies []ReorderPolicy, productID int, categoryID, supplierID *int) (*ReorderPolicy, error) {
	type matcher struct {
		scope PolicyScope
		id    *int
	}
	order := []matcher{
		{ScopeProduct, &productID},
		{ScopeCategory, categoryID},
		{ScopeSupplier, supplierID},
	}

	for _, m := range order {
		if m.id == nil {
			continue
		}
		for i := range policies {
			p := &policies[i]
			if p.IsActive && p.Scope == m.scope && p.ScopeID != nil && *p.ScopeID == *m.id {
				return p, nil
			}
		}
	}

	for i := range policies {
		p := &policies[i]
		if p.IsActive && p.Scope == ScopeGlobal {
			return p, nil
		}
	}
	return nil, ErrPolicyResolution
}

// PolicyService manages the layered reorder-policy hierarchy.
type PolicyService interface {
	// ActivePolicies returns every active policy across all scopes.
	ActivePolicies(ctx context.Context) ([]ReorderPolicy, error)
	// GetPolicy returns one policy by id.
	GetPolicy(ctx context.Context, id int) (*ReorderPolicy, error)
	// UpsertPolicy activates the given policy for its (scope, scope_id),
	// deactivating any previously active policy in the same slot so the
	// one-active-policy-per-slot invariant holds.
	UpsertPolicy(ctx context.Context, p ReorderPolicy) (*ReorderPolicy, error)
}

type policyService struct {
	pool *pgxpool.Pool
}

func NewPolicyService(pool *pgxpool.Pool) PolicyService {
	return &policyService{pool: pool}
}

const policyColumns = `id, scope, scope_id, min_stock_multiplier, safety_stock_days,
       max_order_quantity, preferred_order_quantity, review_frequency_days,
       auto_approve_threshold, is_active, created_at, updated_at`

func scanPolicy(row pgx.Row) (*ReorderPolicy, error) {
	var p ReorderPolicy
	err := row.Scan(
		&p.ID, &p.Scope, &p.ScopeID, &p.MinStockMultiplier, &p.SafetyStockDays,
		&p.MaxOrderQuantity, &p.PreferredOrderQuantity, &p.ReviewFrequencyDays,
		&p.AutoApproveThreshold, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *policyService) ActivePolicies(ctx context.Context) ([]ReorderPolicy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+policyColumns+`
		FROM reorder_policies
		WHERE is_active
		ORDER BY scope, scope_id NULLS FIRST`,
	)
	if err != nil {
		return nil, fmt.Errorf("query active policies: %w", err)
	}
	defer rows.Close()

	var policies []ReorderPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		policies = append(policies, *p)
	}
	return policies, rows.Err()
}

func (s *policyService) GetPolicy(ctx context.Context, id int) (*ReorderPolicy, error) {
	p, err := scanPolicy(s.pool.QueryRow(ctx,
		`SELECT `+policyColumns+` FROM reorder_policies WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("policy %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get policy %d: %w", id, err)
	}
	return p, nil
}

func (s *policyService) UpsertPolicy(ctx context.Context, p ReorderPolicy) (*ReorderPolicy, error) {
	if p.Scope == ScopeGlobal && p.ScopeID != nil {
		return nil, fmt.Errorf("global policy must not carry a scope id")
	}
	if p.Scope != ScopeGlobal && p.ScopeID == nil {
		return nil, fmt.Errorf("%s policy requires a scope id", p.Scope)
	}
	if p.MinStockMultiplier < 0 || p.SafetyStockDays < 0 {
		return nil, fmt.Errorf("policy multiplier and safety stock days must be >= 0")
	}
	if p.ReviewFrequencyDays <= 0 {
		return nil, fmt.Errorf("review frequency must be positive")
	}
	// Deactivating the global policy would break resolution for every product.
	if p.Scope == ScopeGlobal && !p.IsActive {
		return nil, fmt.Errorf("global policy cannot be deactivated: %w", ErrPolicyResolution)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if p.IsActive {
		if _, err := tx.Exec(ctx, `
			UPDATE reorder_policies
			SET is_active = FALSE, updated_at = NOW()
			WHERE is_active AND scope = $1 AND COALESCE(scope_id, 0) = COALESCE($2, 0)`,
			p.Scope, p.ScopeID,
		); err != nil {
			return nil, fmt.Errorf("deactivate prior policy: %w", err)
		}
	}

	out, err := scanPolicy(tx.QueryRow(ctx, `
		INSERT INTO reorder_policies
		            (scope, scope_id, min_stock_multiplier, safety_stock_days,
		             max_order_quantity, preferred_order_quantity,
		             review_frequency_days, auto_approve_threshold, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+policyColumns,
		p.Scope, p.ScopeID, p.MinStockMultiplier, p.SafetyStockDays,
		p.MaxOrderQuantity, p.PreferredOrderQuantity,
		p.ReviewFrequencyDays, p.AutoApproveThreshold, p.IsActive,
	))
	if err != nil {
		return nil, fmt.Errorf("insert policy: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit policy upsert: %w", err)
	}
	return out, nil
}
