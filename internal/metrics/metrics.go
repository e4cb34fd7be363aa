package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the engine's prometheus collectors behind one handle so
// services take a single dependency instead of individual collectors.
type Registry struct {
	reg *prometheus.Registry

	JobsStarted   prometheus.Counter
	JobsCompleted prometheus.Counter
	JobsFailed    prometheus.Counter
	JobsRunning   prometheus.Gauge

	SuggestionsGenerated  prometheus.Counter
	SuggestionsAutoQueued prometheus.Counter
	ProductsSkipped       prometheus.Counter
	ProductsFailed        prometheus.Counter

	ProductAnalysisSec prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	jobsStarted := prometheus.NewCounter(prometheus.CounterOpts{Name: "reorder_jobs_started_total"})
	jobsCompleted := prometheus.NewCounter(prometheus.CounterOpts{Name: "reorder_jobs_completed_total"})
	jobsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "reorder_jobs_failed_total"})
	jobsRunning := prometheus.NewGauge(prometheus.GaugeOpts{Name: "reorder_jobs_running"})

	suggestionsGenerated := prometheus.NewCounter(prometheus.CounterOpts{Name: "reorder_suggestions_generated_total"})
	suggestionsAutoQueued := prometheus.NewCounter(prometheus.CounterOpts{Name: "reorder_suggestions_auto_approved_total"})
	productsSkipped := prometheus.NewCounter(prometheus.CounterOpts{Name: "reorder_products_skipped_total"})
	productsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "reorder_products_failed_total"})

	productAnalysisSec := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reorder_product_analysis_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(jobsStarted, jobsCompleted, jobsFailed, jobsRunning,
		suggestionsGenerated, suggestionsAutoQueued, productsSkipped, productsFailed,
		productAnalysisSec)

	return &Registry{
		reg:                   r,
		JobsStarted:           jobsStarted,
		JobsCompleted:         jobsCompleted,
		JobsFailed:            jobsFailed,
		JobsRunning:           jobsRunning,
		SuggestionsGenerated:  suggestionsGenerated,
		SuggestionsAutoQueued: suggestionsAutoQueued,
		ProductsSkipped:       productsSkipped,
		ProductsFailed:        productsFailed,
		ProductAnalysisSec:    productAnalysisSec,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
