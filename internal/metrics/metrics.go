package metrics

import (
	"net/http"

	"github.com/dkeye/Spotlight/internal/app/spotlight"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the spotlight server.
// It implements spotlight.Observer so every stage loop can report into it.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    prometheus.Counter
	errorsTotal      prometheus.Counter
	stageChanges     *prometheus.CounterVec
	retriesScheduled prometheus.Counter
	retriesExhausted prometheus.Counter
	signalDrops      prometheus.Counter
	kicksTotal       prometheus.Counter
	activeViewers    prometheus.Gauge
	activeRooms      prometheus.Gauge
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotlight_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotlight_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	stageChanges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "spotlight_stage_changes_total",
		Help: "Stage transitions, by the rule that selected the new stage",
	}, []string{"rule"})
	retriesScheduled := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotlight_stage_retries_scheduled_total",
		Help: "Retry sequences started while waiting for a camera after a share ended",
	})
	retriesExhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotlight_stage_retries_exhausted_total",
		Help: "Retry sequences that ran out of attempts",
	})
	signalDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotlight_signal_dropped_frames_total",
		Help: "Signal frames dropped because a client queue was full",
	})
	kicksTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spotlight_kicked_members_total",
		Help: "Members removed by the backpressure policy",
	})
	activeViewers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spotlight_active_viewers",
		Help: "Number of running stage loops",
	})
	activeRooms := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "spotlight_active_rooms",
		Help: "Number of rooms",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		stageChanges,
		retriesScheduled,
		retriesExhausted,
		signalDrops,
		kicksTotal,
		activeViewers,
		activeRooms,
	)

	return &Metrics{
		registry:         registry,
		requestsTotal:    requestsTotal,
		errorsTotal:      errorsTotal,
		stageChanges:     stageChanges,
		retriesScheduled: retriesScheduled,
		retriesExhausted: retriesExhausted,
		signalDrops:      signalDrops,
		kicksTotal:       kicksTotal,
		activeViewers:    activeViewers,
		activeRooms:      activeRooms,
	}
}

func (m *Metrics) StageChanged(rule spotlight.Rule) {
	m.stageChanges.WithLabelValues(rule.String()).Inc()
}

func (m *Metrics) RetryScheduled() { m.retriesScheduled.Inc() }
func (m *Metrics) RetryExhausted() { m.retriesExhausted.Inc() }

func (m *Metrics) IncRequests()    { m.requestsTotal.Inc() }
func (m *Metrics) IncErrors()      { m.errorsTotal.Inc() }
func (m *Metrics) IncSignalDrops() { m.signalDrops.Inc() }
func (m *Metrics) IncKicks()       { m.kicksTotal.Inc() }

func (m *Metrics) ViewerStarted() { m.activeViewers.Inc() }
func (m *Metrics) ViewerStopped() { m.activeViewers.Dec() }

func (m *Metrics) SetActiveRooms(n int) {
	m.activeRooms.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
