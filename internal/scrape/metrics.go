package scrape

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TotalFetches tracks completed page fetches, labeled by site and status.
	TotalFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_fetches_total",
		Help: "The total number of completed page fetches.",
	}, []string{"site", "status"})
	// TotalFetchErrors tracks fetches that resulted in a transport error or
	// non-success status.
	TotalFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_fetch_errors_total",
		Help: "The total number of failed page fetches.",
	})
	// TotalRenderEscalations tracks pages promoted to headless rendering.
	TotalRenderEscalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_render_escalations_total",
		Help: "The total number of pages escalated to headless rendering.",
	})
	// PauseDurations records politeness pauses between country fetches.
	PauseDurations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scraper_pause_seconds",
		Help:    "Histogram of politeness pause durations.",
		Buckets: []float64{0.5, 1, 1.5, 2, 3, 5},
	})
)
