// Package metrics exposes Prometheus collectors for the crawl service.
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
	pagesTotal            *prometheus.CounterVec
	brokenLinksTotal      *prometheus.CounterVec
	enqueueTotal          *prometheus.CounterVec
	fallbackTotal         *prometheus.CounterVec
	jobsTotal             *prometheus.CounterVec
	activeWorkers         prometheus.Gauge
	dispatchDelaySeconds  prometheus.Histogram
	renderDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init registers the Prometheus collectors. It is safe to call multiple
// times; observation helpers no-op until it runs.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkaudit_pages_total",
				Help: "Total resources visited, labeled by link type and broken check.",
			},
			[]string{"link_type", "broken_check"},
		)

		brokenLinksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkaudit_broken_links_total",
				Help: "Total broken resources found, labeled by direction.",
			},
			[]string{"direction"},
		)

		enqueueTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkaudit_enqueue_total",
				Help: "Enqueue admission decisions, labeled by request label and outcome.",
			},
			[]string{"label", "outcome"},
		)

		fallbackTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkaudit_fallback_total",
				Help: "Direct-fetch fallback attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "linkaudit_jobs_total",
				Help: "Crawl jobs processed, labeled by terminal status.",
			},
			[]string{"status"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "linkaudit_active_workers",
				Help: "Workers currently processing a request.",
			},
		)

		dispatchDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkaudit_dispatch_delay_seconds",
				Help:    "Time spent waiting on the global dispatch rate limiter.",
				Buckets: []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10},
			},
		)

		renderDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "linkaudit_render_duration_seconds",
				Help:    "Histogram of page render latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one visited resource.
func ObservePage(linkType, brokenCheck, direction string) {
	if pagesTotal == nil {
		return
	}
	pagesTotal.WithLabelValues(linkType, brokenCheck).Inc()
	if brokenCheck != "OK" {
		brokenLinksTotal.WithLabelValues(direction).Inc()
	}
}

// ObserveEnqueue records one admission decision.
func ObserveEnqueue(label, outcome string) {
	if enqueueTotal == nil {
		return
	}
	enqueueTotal.WithLabelValues(label, outcome).Inc()
}

// ObserveFallback records one fallback fetch outcome.
func ObserveFallback(outcome string) {
	if fallbackTotal == nil {
		return
	}
	fallbackTotal.WithLabelValues(outcome).Inc()
}

// ObserveJob records one job reaching a terminal status.
func ObserveJob(status string) {
	if jobsTotal == nil {
		return
	}
	jobsTotal.WithLabelValues(status).Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveDispatchDelay records time spent blocked on the rate limiter.
func ObserveDispatchDelay(d time.Duration) {
	if dispatchDelaySeconds != nil {
		dispatchDelaySeconds.Observe(d.Seconds())
	}
}

// ObserveRenderDuration records one render latency.
func ObserveRenderDuration(d time.Duration) {
	if renderDurationSeconds != nil {
		renderDurationSeconds.Observe(d.Seconds())
	}
}
