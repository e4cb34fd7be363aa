package core_test

import (
	"errors"
	"testing"

	"reorder-engine/internal/core"
)

func policySet() []core.ReorderPolicy {
	return []core.ReorderPolicy{
		{ID: 1, Scope: core.ScopeGlobal, MinStockMultiplier: 1.0, SafetyStockDays: 3, ReviewFrequencyDays: 7, IsActive: true},
		{ID: 2, Scope: core.ScopeSupplier, ScopeID: intPtr(9), MinStockMultiplier: 1.1, SafetyStockDays: 4, ReviewFrequencyDays: 7, IsActive: true},
		{ID: 3, Scope: core.ScopeCategory, ScopeID: intPtr(5), MinStockMultiplier: 1.2, SafetyStockDays: 5, ReviewFrequencyDays: 7, IsActive: true},
		{ID: 4, Scope: core.ScopeProduct, ScopeID: intPtr(42), MinStockMultiplier: 1.3, SafetyStockDays: 6, ReviewFrequencyDays: 7, IsActive: true},
	}
}

func TestResolvePolicy_Precedence(t *testing.T) {
	policies := policySet()

	cases := []struct {
		name       string
		productID  int
		categoryID *int
		supplierID *int
		wantID     int
	}{
		{"product scope wins over everything", 42, intPtr(5), intPtr(9), 4},
		{"category beats supplier", 7, intPtr(5), intPtr(9), 3},
		{"supplier beats global", 7, intPtr(99), intPtr(9), 2},
		{"global is the fallback", 7, nil, nil, 1},
		{"unmatched ids fall through to global", 7, intPtr(99), intPtr(99), 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := core.ResolvePolicy(policies, tc.productID, tc.categoryID, tc.supplierID)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.ID != tc.wantID {
				t.Errorf("expected policy %d, got %d", tc.wantID, p.ID)
			}
		})
	}
}

func TestResolvePolicy_SkipsInactive(t *testing.T) {
	policies := policySet()
	policies[3].IsActive = false // product policy for 42

	p, err := core.ResolvePolicy(policies, 42, intPtr(5), intPtr(9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != 3 {
		t.Errorf("inactive product policy should fall through to category, got policy %d", p.ID)
	}
}

func TestResolvePolicy_MissingGlobal(t *testing.T) {
	policies := []core.ReorderPolicy{
		{ID: 2, Scope: core.ScopeSupplier, ScopeID: intPtr(9), ReviewFrequencyDays: 7, IsActive: true},
	}

	_, err := core.ResolvePolicy(policies, 7, nil, nil)
	if !errors.Is(err, core.ErrPolicyResolution) {
		t.Fatalf("expected ErrPolicyResolution without a global policy, got %v", err)
	}
}
