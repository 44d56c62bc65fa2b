package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the bot.
type Metrics struct {
	// UpdatesTotal counts inbound Telegram updates by kind
	UpdatesTotal *prometheus.CounterVec
	// CommandsTotal counts handled commands by name
	CommandsTotal *prometheus.CounterVec
	// SessionRefreshes counts session cache refreshes by outcome
	SessionRefreshes *prometheus.CounterVec
	// SessionCacheHits counts cache lookups by result
	SessionCacheHits *prometheus.CounterVec
	// DialogsTotal counts dialog terminations by dialog name and outcome
	DialogsTotal *prometheus.CounterVec
	// DialogsActive tracks currently live dialog contexts
	DialogsActive prometheus.Gauge
	// APILatency tracks remote account API latency by endpoint
	APILatency *prometheus.HistogramVec
	// APIErrors counts remote API failures by endpoint
	APIErrors *prometheus.CounterVec
	// SettlementsTotal counts purchase settlements by rail and status
	SettlementsTotal *prometheus.CounterVec
	// LinkedAccounts tracks the number of linked accounts seen at startup
	LinkedAccounts prometheus.Gauge
	// registry is the custom registry for this metrics instance
	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		UpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "updates_total",
				Help:      "Total number of inbound chat updates",
			},
			[]string{"kind"},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of handled bot commands",
			},
			[]string{"command"},
		),
		SessionRefreshes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_refreshes_total",
				Help:      "Total number of session refreshes",
			},
			[]string{"outcome"},
		),
		SessionCacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "session_cache_lookups_total",
				Help:      "Total number of session cache lookups",
			},
			[]string{"result"},
		),
		DialogsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dialogs_total",
				Help:      "Total number of dialog terminations",
			},
			[]string{"dialog", "outcome"},
		),
		DialogsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dialogs_active",
				Help:      "Current number of live dialog contexts",
			},
		),
		APILatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "Remote account API latency in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0},
			},
			[]string{"endpoint"},
		),
		APIErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of remote account API failures",
			},
			[]string{"endpoint"},
		),
		SettlementsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "settlements_total",
				Help:      "Total number of purchase settlements",
			},
			[]string{"rail", "status"},
		),
		LinkedAccounts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "linked_accounts",
				Help:      "Number of linked accounts",
			},
		),
	}

	// Register metrics with custom registry
	registry.MustRegister(
		m.UpdatesTotal,
		m.CommandsTotal,
		m.SessionRefreshes,
		m.SessionCacheHits,
		m.DialogsTotal,
		m.DialogsActive,
		m.APILatency,
		m.APIErrors,
		m.SettlementsTotal,
		m.LinkedAccounts,
	)

	return m
}

// Handler returns a Prometheus handler for these metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordUpdate counts one inbound update
func (m *Metrics) RecordUpdate(kind string) {
	m.UpdatesTotal.WithLabelValues(kind).Inc()
}

// RecordCommand counts one handled command
func (m *Metrics) RecordCommand(command string) {
	m.CommandsTotal.WithLabelValues(command).Inc()
}

// RecordSessionRefresh counts one session refresh by outcome
func (m *Metrics) RecordSessionRefresh(outcome string) {
	m.SessionRefreshes.WithLabelValues(outcome).Inc()
}

// RecordSessionLookup counts one session cache lookup
func (m *Metrics) RecordSessionLookup(result string) {
	m.SessionCacheHits.WithLabelValues(result).Inc()
}

// RecordDialogOutcome counts one dialog termination
func (m *Metrics) RecordDialogOutcome(dialog, outcome string) {
	m.DialogsTotal.WithLabelValues(dialog, outcome).Inc()
}

// SetDialogsActive sets the live dialog gauge
func (m *Metrics) SetDialogsActive(n int) {
	m.DialogsActive.Set(float64(n))
}

// RecordAPILatency records one remote API call duration
func (m *Metrics) RecordAPILatency(endpoint string, durationSeconds float64) {
	m.APILatency.WithLabelValues(endpoint).Observe(durationSeconds)
}

// RecordAPIError counts one remote API failure
func (m *Metrics) RecordAPIError(endpoint string) {
	m.APIErrors.WithLabelValues(endpoint).Inc()
}

// RecordSettlement counts one purchase settlement
func (m *Metrics) RecordSettlement(rail, status string) {
	m.SettlementsTotal.WithLabelValues(rail, status).Inc()
}

// SetLinkedAccounts sets the linked-account gauge
func (m *Metrics) SetLinkedAccounts(n int) {
	m.LinkedAccounts.Set(float64(n))
}
