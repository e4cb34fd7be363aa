package core

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// GeneratorParams are the tunable urgency thresholds. The multipliers scale
// the supplier lead time into the high and medium urgency bands.
type GeneratorParams struct {
	HighMultiplier   float64
	MediumMultiplier float64
}

func DefaultGeneratorParams() GeneratorParams {
	return GeneratorParams{HighMultiplier: 1.5, MediumMultiplier: 3.0}
}

// ReorderPoint is the stock level at or below which replenishment triggers:
// expected demand across lead time plus safety stock, scaled by the policy
// multiplier.
func ReorderPoint(avgDailyDemand float64, leadTimeDays int, policy *ReorderPolicy) float64 {
	return avgDailyDemand * float64(leadTimeDays+policy.SafetyStockDays) * policy.MinStockMultiplier
}

// GenerateSuggestion combines current stock, a demand forecast, and the
// resolved policy into a reorder suggestion, or returns (nil, false) when
// stock sits at or above the reorder point and no action is needed.
func GenerateSuggestion(product Product, fc DemandForecast, policy *ReorderPolicy, params GeneratorParams, now time.Time) (*ReorderSuggestion, bool) {
	reorderPoint := ReorderPoint(fc.AvgDailyDemand, product.LeadTimeDays, policy)
	if float64(product.CurrentStock) >= reorderPoint {
		return nil, false
	}

	qty := int(math.Ceil(reorderPoint - float64(product.CurrentStock)))
	if policy.PreferredOrderQuantity != nil && qty < *policy.PreferredOrderQuantity {
		qty = *policy.PreferredOrderQuantity
	}
	if policy.MaxOrderQuantity != nil && qty > *policy.MaxOrderQuantity {
		qty = *policy.MaxOrderQuantity
	}

	modelVersion := ModelVersion
	s := &ReorderSuggestion{
		ProductID:         product.ID,
		ProductCode:       product.Code,
		ProductName:       product.Name,
		SupplierID:        product.SupplierID,
		SuggestedQuantity: qty,
		EstimatedCost:     product.UnitPrice.Mul(decimal.NewFromInt(int64(qty))),
		Urgency:           classifyUrgency(fc.DaysUntilStockout, product.LeadTimeDays, params),
		ConfidenceScore:   fc.ConfidenceScore,
		Reason:            suggestionReason(fc, product.LeadTimeDays),
		LeadTimeDays:      product.LeadTimeDays,
		Status:            StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.AddDate(0, 0, policy.ReviewFrequencyDays),
		CreatedByAI:       true,
		AIModelVersion:    &modelVersion,
	}
	return s, true
}

// classifyUrgency tiers a suggestion by how soon the projected stockout falls
// relative to the supplier lead time. Urgency is monotonic in the ratio
// days_until_stockout / lead_time.
func classifyUrgency(daysUntilStockout, leadTimeDays int, params GeneratorParams) Urgency {
	if daysUntilStockout == StockoutNever {
		return UrgencyLow
	}
	lead := float64(leadTimeDays)
	days := float64(daysUntilStockout)
	switch {
	case days <= lead:
		return UrgencyCritical
	case days <= lead*params.HighMultiplier:
		return UrgencyHigh
	case days <= lead*params.MediumMultiplier:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

// suggestionReason picks a short human-readable explanation from the
// triggering condition.
func suggestionReason(fc DemandForecast, leadTimeDays int) string {
	switch {
	case fc.DaysUntilStockout != StockoutNever && fc.DaysUntilStockout <= leadTimeDays:
		return fmt.Sprintf("projected stockout in %d days, inside the %d-day lead time", fc.DaysUntilStockout, leadTimeDays)
	case fc.InsufficientData:
		return "stock below reorder point (limited demand history)"
	case fc.TrendFactor > 0.01:
		return "demand trend increasing"
	case fc.SeasonalityFactor > 1.2:
		return "seasonal demand uptick"
	default:
		return "stock below safety threshold"
	}
}
