// Package metrics defines the Prometheus metric collectors used by the
// indexer and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a corpus run.
type Metrics struct {
	TranslationsIndexed *prometheus.CounterVec
	TranslationDuration prometheus.Histogram
	VersesIndexed       prometheus.Counter
	PostingsWritten     prometheus.Counter
	PostingFilesWritten prometheus.Counter
	LargePostingLists   prometheus.Counter
	NotificationsTotal  *prometheus.CounterVec
	ActiveTranslations  prometheus.Gauge
	HTTPRequests        *prometheus.CounterVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TranslationsIndexed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "translations_indexed_total",
				Help: "Total translations processed by status (ok, failed).",
			},
			[]string{"status"},
		),
		TranslationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "translation_duration_seconds",
				Help:    "Wall time to load, build and write one translation.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		VersesIndexed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verses_indexed_total",
				Help: "Total verses tokenized.",
			},
		),
		PostingsWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "postings_written_total",
				Help: "Total pointer records written across all posting files.",
			},
		),
		PostingFilesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "posting_files_written_total",
				Help: "Total per-word posting files written.",
			},
		),
		LargePostingLists: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "postings_large_lists_total",
				Help: "Posting lists at or above the largeness threshold.",
			},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "Completion notifications by sink and status.",
			},
			[]string{"sink", "status"},
		),
		ActiveTranslations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_translations",
				Help: "Number of translations currently being indexed.",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Requests served by the metrics and health endpoints.",
			},
			[]string{"path", "status"},
		),
	}

	reg.MustRegister(
		m.TranslationsIndexed,
		m.TranslationDuration,
		m.VersesIndexed,
		m.PostingsWritten,
		m.PostingFilesWritten,
		m.LargePostingLists,
		m.NotificationsTotal,
		m.ActiveTranslations,
		m.HTTPRequests,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
