// Package metrics exposes Prometheus collectors for the monitor service.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal           prometheus.Counter
	pagesFetchedTotal     prometheus.Counter
	pageErrorsTotal       prometheus.Counter
	itemsMatchedTotal     prometheus.Counter
	notifyFailuresTotal   prometheus.Counter
	reloadsTotal          *prometheus.CounterVec
	searchDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init registers the Prometheus collectors. It is safe to call more
// than once; only the first call registers.
func Init() {
	once.Do(func() {
		cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealwatch_cycles_total",
			Help: "Total number of completed scan cycles.",
		})
		pagesFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealwatch_pages_fetched_total",
			Help: "Total number of search result pages fetched.",
		})
		pageErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealwatch_page_errors_total",
			Help: "Total number of page fetches that failed and were skipped.",
		})
		itemsMatchedTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealwatch_items_matched_total",
			Help: "Total number of new items that passed all filters.",
		})
		notifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
			Name: "dealwatch_notify_failures_total",
			Help: "Total number of failed notification pushes.",
		})
		reloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dealwatch_rule_reloads_total",
			Help: "Total number of rule hot reloads, labeled by outcome.",
		}, []string{"status"})
		searchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dealwatch_search_duration_seconds",
			Help:    "Latency of search endpoint calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8},
		})
	})
}

// IncCycles counts one finished scan cycle.
func IncCycles() {
	if cyclesTotal != nil {
		cyclesTotal.Inc()
	}
}

// IncPagesFetched counts one successfully fetched result page.
func IncPagesFetched() {
	if pagesFetchedTotal != nil {
		pagesFetchedTotal.Inc()
	}
}

// IncPageErrors counts one page fetch that failed and was skipped.
func IncPageErrors() {
	if pageErrorsTotal != nil {
		pageErrorsTotal.Inc()
	}
}

// AddItemsMatched counts newly matched items from one cycle.
func AddItemsMatched(n int) {
	if itemsMatchedTotal != nil && n > 0 {
		itemsMatchedTotal.Add(float64(n))
	}
}

// IncNotifyFailures counts one failed notification push.
func IncNotifyFailures() {
	if notifyFailuresTotal != nil {
		notifyFailuresTotal.Inc()
	}
}

// IncReloads counts one hot reload attempt with its outcome.
func IncReloads(status string) {
	if reloadsTotal != nil {
		reloadsTotal.WithLabelValues(status).Inc()
	}
}

// ObserveSearchDuration records the latency of one search call.
func ObserveSearchDuration(d time.Duration) {
	if searchDurationSeconds != nil {
		searchDurationSeconds.Observe(d.Seconds())
	}
}
