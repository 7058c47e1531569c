// Package metrics provides Prometheus metrics for maillage runs.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RunsTotal counts finished runs by status ("completed", "failed", "cancelled").
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maillage",
			Name:      "runs_total",
			Help:      "Total number of keyword runs",
		},
		[]string{"status"},
	)

	// SearchesTotal counts site-restricted searches by outcome ("ok", "failed", "empty").
	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maillage",
			Name:      "searches_total",
			Help:      "Total number of site-restricted searches",
		},
		[]string{"outcome"},
	)

	// ChecksTotal counts candidate page checks by anchor state, plus "failed".
	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maillage",
			Name:      "link_checks_total",
			Help:      "Total number of candidate page checks",
		},
		[]string{"outcome"},
	)

	// OpportunitiesTotal counts emitted records by action.
	OpportunitiesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "maillage",
			Name:      "opportunities_total",
			Help:      "Total number of internal linking opportunities found",
		},
		[]string{"action"},
	)

	// KeywordDuration measures the time spent per keyword, delay excluded.
	KeywordDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "maillage",
			Name:      "keyword_duration_seconds",
			Help:      "Duration of one keyword search and its page checks",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
	)
)

// Search outcomes.
const (
	SearchOK     = "ok"
	SearchFailed = "failed"
	SearchEmpty  = "empty"
)

// CheckFailed is the check outcome label for pages that could not be inspected.
const CheckFailed = "failed"

// RecordRun records a finished run.
func RecordRun(status string) {
	RunsTotal.WithLabelValues(status).Inc()
}

// RecordSearch records one search outcome.
func RecordSearch(outcome string) {
	SearchesTotal.WithLabelValues(outcome).Inc()
}

// RecordCheck records one candidate page check.
func RecordCheck(outcome string) {
	ChecksTotal.WithLabelValues(outcome).Inc()
}

// RecordOpportunity records one emitted record.
func RecordOpportunity(action string) {
	OpportunitiesTotal.WithLabelValues(action).Inc()
}

// ObserveKeyword records the time spent on one keyword.
func ObserveKeyword(d time.Duration) {
	KeywordDuration.Observe(d.Seconds())
}

var cacheOnce sync.Once

// RegisterCacheSize exposes the page cache size as a gauge. Only the first
// call has an effect.
func RegisterCacheSize(size func() int) {
	cacheOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "maillage",
				Name:      "page_cache_entries",
				Help:      "Number of candidate pages held in the cache",
			},
			func() float64 { return float64(size()) },
		))
	})
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
