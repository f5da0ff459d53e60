package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "pixelserver"

// metrics holds the Prometheus collectors for the frame server.
type metrics struct {
	connections   prometheus.Gauge
	connectsTotal prometheus.Counter
	opsSent       *prometheus.CounterVec
	resyncs       prometheus.Counter
	slowClients   prometheus.Counter
	chaos         *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		connections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "connections",
			Help:      "Number of connected viewers",
		}),
		connectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connects_total",
			Help:      "Total number of accepted viewer connections",
		}),
		opsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ops_sent_total",
			Help:      "Total number of update ops sent, by type",
		}, []string{"type"}),
		resyncs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "resyncs_total",
			Help:      "Total number of full-frame requests from viewers",
		}),
		slowClients: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "slow_client_disconnects_total",
			Help:      "Viewers disconnected because their send buffer filled",
		}),
		chaos: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "chaos_total",
			Help:      "Ops perturbed on purpose, by action",
		}, []string{"action"}),
	}
}
