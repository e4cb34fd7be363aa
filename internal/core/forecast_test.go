package core_test

import (
	"testing"
	"time"

	"reorder-engine/internal/core"
)

var forecastNow = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

// steadySamples returns days of identical demand ending today.
func steadySamples(productID, days int, qty float64) []core.DemandSample {
	samples := make([]core.DemandSample, 0, days)
	for k := 0; k < days; k++ {
		samples = append(samples, core.DemandSample{
			ProductID:  productID,
			RecordedAt: forecastNow.AddDate(0, 0, -k),
			Quantity:   qty,
		})
	}
	return samples
}

func newForecaster() *core.Forecaster {
	return core.NewForecaster(core.DefaultForecastParams())
}

func TestForecast_SteadyDemand(t *testing.T) {
	f := newForecaster()
	samples := steadySamples(1, 28, 10)

	fc := f.Forecast(1, samples, 28, 50, forecastNow, core.ForecastOptions{IncludeSeasonality: true})

	if fc.AvgDailyDemand != 10 {
		t.Errorf("expected avg daily demand 10, got %v", fc.AvgDailyDemand)
	}
	if fc.SeasonalityFactor != 1 {
		t.Errorf("expected neutral seasonality, got %v", fc.SeasonalityFactor)
	}
	if fc.TrendFactor < -0.001 || fc.TrendFactor > 0.001 {
		t.Errorf("expected flat trend, got %v", fc.TrendFactor)
	}
	if len(fc.Forecast) != 28 {
		t.Fatalf("expected 28 forecast days, got %d", len(fc.Forecast))
	}
	if fc.Forecast[0] < 9.9 || fc.Forecast[0] > 10.1 {
		t.Errorf("expected ~10 units on day 1, got %v", fc.Forecast[0])
	}
	// 50 units at ~10/day runs out on day 5.
	if fc.DaysUntilStockout != 5 {
		t.Errorf("expected stockout in 5 days, got %d", fc.DaysUntilStockout)
	}
	if fc.InsufficientData {
		t.Error("28 samples should not be flagged insufficient")
	}
	if fc.ConfidenceScore < 60 {
		t.Errorf("steady, month-long history should score well, got %v", fc.ConfidenceScore)
	}
}

func TestForecast_ZeroFilledGaps(t *testing.T) {
	f := newForecaster()
	// Sales every other day: gap days count as explicit zero-demand days,
	// halving the mean rather than being dropped.
	var samples []core.DemandSample
	for k := 0; k < 28; k += 2 {
		samples = append(samples, core.DemandSample{
			ProductID:  1,
			RecordedAt: forecastNow.AddDate(0, 0, -k),
			Quantity:   10,
		})
	}

	fc := f.Forecast(1, samples, 28, 100, forecastNow, core.ForecastOptions{})

	if fc.AvgDailyDemand != 5 {
		t.Errorf("expected avg 5 with zero-filled gaps, got %v", fc.AvgDailyDemand)
	}
}

func TestForecast_InsufficientHistory(t *testing.T) {
	f := newForecaster()
	samples := steadySamples(1, 3, 10)

	fc := f.Forecast(1, samples, 28, 100, forecastNow, core.ForecastOptions{})

	if !fc.InsufficientData {
		t.Error("3 samples should be flagged insufficient")
	}
	if fc.ConfidenceScore > 20 {
		t.Errorf("insufficient history must cap confidence at 20, got %v", fc.ConfidenceScore)
	}
	if fc.ConfidenceScore < 10 {
		t.Errorf("confidence is floored at 10, got %v", fc.ConfidenceScore)
	}
}

func TestForecast_IncreasingTrend(t *testing.T) {
	f := newForecaster()
	// Demand ramps from 1 up to 28 units/day approaching today.
	var samples []core.DemandSample
	for k := 0; k < 28; k++ {
		samples = append(samples, core.DemandSample{
			ProductID:  1,
			RecordedAt: forecastNow.AddDate(0, 0, -k),
			Quantity:   float64(28 - k),
		})
	}

	fc := f.Forecast(1, samples, 28, 1000, forecastNow, core.ForecastOptions{})

	if fc.TrendFactor <= 0 {
		t.Errorf("ramping demand should yield a positive trend, got %v", fc.TrendFactor)
	}
	if fc.Forecast[10] <= fc.Forecast[0] {
		t.Errorf("positive trend should grow the forecast curve: day1=%v day11=%v",
			fc.Forecast[0], fc.Forecast[10])
	}
}

func TestForecast_SeasonalityClamped(t *testing.T) {
	f := newForecaster()
	// Last week at 10x the prior week: the raw ratio is 10 but the factor
	// is clamped to 2.0 to bound outlier influence.
	var samples []core.DemandSample
	for k := 0; k < 7; k++ {
		samples = append(samples, core.DemandSample{ProductID: 1, RecordedAt: forecastNow.AddDate(0, 0, -k), Quantity: 10})
	}
	for k := 7; k < 28; k++ {
		samples = append(samples, core.DemandSample{ProductID: 1, RecordedAt: forecastNow.AddDate(0, 0, -k), Quantity: 1})
	}

	fc := f.Forecast(1, samples, 28, 100, forecastNow, core.ForecastOptions{IncludeSeasonality: true})

	if fc.SeasonalityFactor != 2.0 {
		t.Errorf("expected seasonality clamped to 2.0, got %v", fc.SeasonalityFactor)
	}
}

func TestForecast_NoDemandNeverStocksOut(t *testing.T) {
	f := newForecaster()

	fc := f.Forecast(1, nil, 28, 100, forecastNow, core.ForecastOptions{})

	if fc.AvgDailyDemand != 0 {
		t.Errorf("expected zero demand, got %v", fc.AvgDailyDemand)
	}
	if fc.DaysUntilStockout != core.StockoutNever {
		t.Errorf("zero demand should never stock out, got %d", fc.DaysUntilStockout)
	}
	if fc.ConfidenceScore < 10 {
		t.Errorf("confidence is floored at 10 even with no data, got %v", fc.ConfidenceScore)
	}
}

func TestForecast_EmptyShelfStocksOutImmediately(t *testing.T) {
	f := newForecaster()
	fc := f.Forecast(1, steadySamples(1, 28, 10), 28, 0, forecastNow, core.ForecastOptions{})
	if fc.DaysUntilStockout != 0 {
		t.Errorf("zero stock should report stockout day 0, got %d", fc.DaysUntilStockout)
	}
}

func TestForecast_ConfidenceSaturates(t *testing.T) {
	f := newForecaster()
	// Two months of perfectly steady demand: the best realistic case, which
	// must still sit at or below the 95 ceiling.
	fc := f.Forecast(1, steadySamples(1, 56, 10), 28, 100, forecastNow, core.ForecastOptions{})
	if fc.ConfidenceScore > 95 {
		t.Errorf("confidence must saturate at 95, got %v", fc.ConfidenceScore)
	}
	if fc.ConfidenceScore < 80 {
		t.Errorf("rich steady history should score near the ceiling, got %v", fc.ConfidenceScore)
	}
}
