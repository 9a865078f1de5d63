package sinks

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/wbstats/internal/progress"
)

// PrometheusSink exports scrape-run progress metrics via Prometheus. It owns
// all collectors for runs started/completed/running and per-country counters.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsRunning   prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	countryFetches  *prometheus.CounterVec
	countryBytes    *prometheus.CounterVec
	countryReadings *prometheus.CounterVec
	countryDuration *prometheus.HistogramVec

	tracker *runTracker
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scrape_runs_started_total",
			Help: "Total scrape runs that have started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_runs_completed_total",
			Help: "Total scrape runs completed partitioned by result.",
		}, []string{"result"}),
		runsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scrape_runs_running",
			Help: "Current number of running scrape runs.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scrape_run_duration_seconds",
			Help:    "Wall time per completed scrape run.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"result"}),
		countryFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_country_fetches_total",
			Help: "Country detail pages completed partitioned by country and status class.",
		}, []string{"country", "status_class"}),
		countryBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_country_bytes_total",
			Help: "Bytes downloaded per country.",
		}, []string{"country"}),
		countryReadings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scrape_country_readings_total",
			Help: "Indicator readings extracted per country.",
		}, []string{"country"}),
		countryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scrape_country_duration_seconds",
			Help:    "Country fetch duration partitioned by country and status class.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"country", "status_class"}),
		tracker: newRunTracker(),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsRunning,
		s.runDuration,
		s.countryFetches,
		s.countryBytes,
		s.countryReadings,
		s.countryDuration,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart, progress.StageRunDone, progress.StageRunError:
		s.handleRunEvent(evt)
	case progress.StageCountryDone:
		s.handleCountryEvent(evt)
	}
}

func (s *PrometheusSink) handleRunEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		if s.tracker.start(evt.RunID) {
			s.runsRunning.Inc()
		}
	case progress.StageRunDone:
		s.runsCompleted.WithLabelValues("success").Inc()
		s.observeDuration(evt, "success")
	case progress.StageRunError:
		s.runsCompleted.WithLabelValues("error").Inc()
		s.observeDuration(evt, "error")
	}
	if evt.Stage != progress.StageRunStart && s.tracker.complete(evt.RunID) {
		s.runsRunning.Dec()
	}
}

func (s *PrometheusSink) observeDuration(evt progress.Event, label string) {
	if evt.Dur > 0 {
		s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
	}
}

func (s *PrometheusSink) handleCountryEvent(evt progress.Event) {
	country := evt.Country
	if country == "" {
		country = "unknown"
	}
	statusClass := string(evt.StatusClass)
	if statusClass == "" {
		statusClass = string(progress.StatusOther)
	}
	s.countryFetches.WithLabelValues(country, statusClass).Inc()
	if evt.Bytes > 0 {
		s.countryBytes.WithLabelValues(country).Add(float64(evt.Bytes))
	}
	if evt.Readings > 0 {
		s.countryReadings.WithLabelValues(country).Add(float64(evt.Readings))
	}
	if evt.Dur > 0 {
		s.countryDuration.WithLabelValues(country, statusClass).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}

type runTracker struct {
	mu      sync.Mutex
	running map[[16]byte]struct{}
}

func newRunTracker() *runTracker {
	return &runTracker{running: make(map[[16]byte]struct{})}
}

func (t *runTracker) start(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; ok {
		return false
	}
	t.running[id] = struct{}{}
	return true
}

func (t *runTracker) complete(id [16]byte) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.running[id]; !ok {
		return false
	}
	delete(t.running, id)
	return true
}
