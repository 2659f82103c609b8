package airctrl

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Command result labels.
const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultTimeout  = "timeout"
	resultError    = "error"
)

type metrics struct {
	snapshots    prometheus.Counter
	resubscribes prometheus.Counter
	commands     *prometheus.CounterVec
}

func newMetrics() *metrics {
	return &metrics{
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airctrl",
			Name:      "snapshots_total",
			Help:      "Status snapshots received, fetched and pushed combined.",
		}),
		resubscribes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "airctrl",
			Name:      "resubscribe_attempts_total",
			Help:      "Observe stream recovery attempts.",
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "airctrl",
			Name:      "commands_total",
			Help:      "Control commands sent, by outcome.",
		}, []string{"result"}),
	}
}

// MetricsCollectors returns the Prometheus collectors of this client
// for registration with a registry.
func (c *Client) MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.metrics.snapshots,
		c.metrics.resubscribes,
		c.metrics.commands,
	}
}
