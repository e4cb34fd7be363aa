package core

import (
	"math"
	"time"
)

// ForecastParams are the tunable coefficients of the demand model. The
// defaults match the shipped heuristics; deployments override them through
// the config package.
type ForecastParams struct {
	WindowFloorDays   int     // trailing window is max(this, horizon)
	SeasonalCycleDays int     // calendar cycle for the seasonality ratio
	MinSamples        int     // below this the forecast is flagged insufficient
	ConfidenceFloor   float64 // lower bound of the confidence score
	ConfidenceCeiling float64 // saturation bound of the confidence score
	LowDataCap        float64 // confidence cap with insufficient history
	StockoutScanDays  int     // how far past the horizon to scan for a stockout
}

// DefaultForecastParams returns the shipped coefficient set.
func DefaultForecastParams() ForecastParams {
	return ForecastParams{
		WindowFloorDays:   28,
		SeasonalCycleDays: 7,
		MinSamples:        7,
		ConfidenceFloor:   10,
		ConfidenceCeiling: 95,
		LowDataCap:        20,
		StockoutScanDays:  365,
	}
}

// ForecastOptions toggle optional parts of the model per call.
type ForecastOptions struct {
	IncludeSeasonality         bool
	IncludeConfidenceIntervals bool // reserved; interval bounds are not computed yet
	IncludeExternalFactors     bool // reserved; no external factor feed is wired
}

// Forecaster converts a product's demand history into a forward-looking
// forecast. It is pure and safe for concurrent use.
type Forecaster struct {
	params ForecastParams
}

func NewForecaster(params ForecastParams) *Forecaster {
	if params.WindowFloorDays <= 0 {
		params = DefaultForecastParams()
	}
	return &Forecaster{params: params}
}

// Forecast runs the model for one product.
//
// Sparse history (< MinSamples records) is not an error: the forecast is
// produced with InsufficientData set and a capped confidence score, and
// downstream consumers must treat it conservatively (no auto-approval).
func (f *Forecaster) Forecast(productID int, samples []DemandSample, horizonDays, currentStock int, now time.Time, opts ForecastOptions) DemandForecast {
	p := f.params
	if horizonDays <= 0 {
		horizonDays = p.WindowFloorDays
	}
	window := horizonDays
	if p.WindowFloorDays > window {
		window = p.WindowFloorDays
	}

	// Daily buckets covering the trailing window plus one seasonal cycle of
	// lookback. Days with no sales are explicit zeros — the absence of demand
	// is a signal, not a gap to drop.
	span := window + p.SeasonalCycleDays
	daily := resampleDaily(samples, now, span)

	recent := daily[len(daily)-window:]
	avg := mean(recent)

	trend := trendFactor(recent, avg)

	seasonality := 1.0
	if opts.IncludeSeasonality && p.SeasonalCycleDays > 0 && len(daily) >= 2*p.SeasonalCycleDays {
		current := mean(daily[len(daily)-p.SeasonalCycleDays:])
		previous := mean(daily[len(daily)-2*p.SeasonalCycleDays : len(daily)-p.SeasonalCycleDays])
		if previous > 0 {
			seasonality = clamp(current/previous, 0.5, 2.0)
		}
	}

	forecast := make([]float64, horizonDays)
	for i := range forecast {
		v := avg * seasonality * (1 + trend*float64(i+1))
		if v < 0 {
			v = 0
		}
		forecast[i] = v
	}

	fc := DemandForecast{
		ProductID:         productID,
		HorizonDays:       horizonDays,
		AvgDailyDemand:    avg,
		TrendFactor:       trend,
		SeasonalityFactor: seasonality,
		Forecast:          forecast,
		DaysUntilStockout: f.daysUntilStockout(forecast, avg, seasonality, trend, currentStock),
		SampleCount:       len(samples),
		ComputedAt:        now,
	}

	fc.ConfidenceScore = f.confidence(len(samples), recent, avg)
	if len(samples) < p.MinSamples {
		fc.InsufficientData = true
		if fc.ConfidenceScore > p.LowDataCap {
			fc.ConfidenceScore = p.LowDataCap
		}
	}
	return fc
}

// daysUntilStockout finds the first day whose cumulative forecasted demand
// reaches the current stock. The scan extends past the horizon (extending the
// model curve) so slow movers still get a finite answer; persistently zero
// demand yields StockoutNever.
func (f *Forecaster) daysUntilStockout(forecast []float64, avg, seasonality, trend float64, currentStock int) int {
	if currentStock <= 0 {
		return 0
	}
	cum := 0.0
	for i, v := range forecast {
		cum += v
		if cum >= float64(currentStock) {
			return i + 1
		}
	}
	for i := len(forecast); i < f.params.StockoutScanDays; i++ {
		v := avg * seasonality * (1 + trend*float64(i+1))
		if v < 0 {
			v = 0
		}
		cum += v
		if cum >= float64(currentStock) {
			return i + 1
		}
	}
	return StockoutNever
}

// confidence scores the forecast from sample volume and demand variance.
// More history and steadier demand push the score toward the ceiling; it
// saturates below ConfidenceCeiling and never drops under ConfidenceFloor.
func (f *Forecaster) confidence(sampleCount int, daily []float64, avg float64) float64 {
	p := f.params

	// Volume component: saturates at eight weeks of history.
	volume := float64(sampleCount) / 56.0
	if volume > 1 {
		volume = 1
	}

	// Stability component: inverse of the coefficient of variation.
	stability := 0.0
	if avg > 0 {
		cv := stddev(daily, avg) / avg
		stability = 1 / (1 + cv)
	}

	score := p.ConfidenceFloor + (p.ConfidenceCeiling-p.ConfidenceFloor)*(0.5*volume+0.5*stability)
	return clamp(score, p.ConfidenceFloor, p.ConfidenceCeiling)
}

// resampleDaily buckets samples into the trailing span of whole days ending
// at now, summing quantities per day and zero-filling days with no records.
func resampleDaily(samples []DemandSample, now time.Time, span int) []float64 {
	daily := make([]float64, span)
	end := now.Truncate(24 * time.Hour)
	for _, s := range samples {
		day := s.RecordedAt.Truncate(24 * time.Hour)
		offset := int(end.Sub(day).Hours() / 24)
		idx := span - 1 - offset
		if idx < 0 || idx >= span {
			continue
		}
		daily[idx] += s.Quantity
	}
	return daily
}

// trendFactor fits a least-squares line to the daily series and normalizes
// the slope to a fractional per-day rate relative to the window mean.
func trendFactor(daily []float64, avg float64) float64 {
	n := float64(len(daily))
	if n < 2 || avg <= 0 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range daily {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (n*sumXY - sumX*sumY) / denom
	return slope / avg
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
