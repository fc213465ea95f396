package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all picker terminal metrics
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// Scan metrics
	ScansAccepted  *prometheus.CounterVec
	ScansDebounced prometheus.Counter
	ScansRejected  *prometheus.CounterVec

	// Pick metrics
	PicksConfirmed        *prometheus.CounterVec
	PickReverts           prometheus.Counter
	OverPicksRejected     prometheus.Counter
	ConfirmationsInFlight prometheus.Gauge

	// Routing metrics
	TotesRouted      *prometheus.CounterVec
	BatchesCompleted prometheus.Counter
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "picker",
	}
}

// New creates and registers all metrics
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,

		ScansAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "scans_accepted_total",
			Help:      "Scan events accepted and delivered to subscribers",
		}, []string{"source"}),

		ScansDebounced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "scans_debounced_total",
			Help:      "Scan events rejected by the duplicate debounce window",
		}),

		ScansRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "scans_rejected_total",
			Help:      "Scan inputs that did not match any pickable item",
		}, []string{"reason"}),

		PicksConfirmed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "picks_confirmed_total",
			Help:      "Pick confirmations by method and result",
		}, []string{"method", "result"}),

		PickReverts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "pick_reverts_total",
			Help:      "Optimistic pick mutations reverted after a failed confirmation",
		}),

		OverPicksRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "over_picks_rejected_total",
			Help:      "Pick attempts rejected for exceeding the required quantity",
		}),

		ConfirmationsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Name:      "confirmations_in_flight",
			Help:      "Backend confirmation requests currently in flight",
		}),

		TotesRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "totes_routed_total",
			Help:      "Totes routed to their destination",
		}, []string{"destination"}),

		BatchesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Name:      "batches_completed_total",
			Help:      "Batches completed on this device",
		}),
	}

	registry.MustRegister(
		m.ScansAccepted,
		m.ScansDebounced,
		m.ScansRejected,
		m.PicksConfirmed,
		m.PickReverts,
		m.OverPicksRejected,
		m.ConfirmationsInFlight,
		m.TotesRouted,
		m.BatchesCompleted,
	)

	return m
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
