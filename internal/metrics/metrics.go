// Package metrics exports membership events and loop statistics as prometheus
// collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/arya-analytics/pulse/internal/cluster"
	"github.com/arya-analytics/pulse/internal/node"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pulse"

// Datagram directions.
const (
	Inbound  = "in"
	Outbound = "out"
)

// Datagram results.
const (
	OK      = "ok"
	Dropped = "dropped"
	Failed  = "failed"
)

type Metrics struct {
	Registry     *prometheus.Registry
	Events       *prometheus.CounterVec
	Peers        *prometheus.GaugeVec
	Datagrams    *prometheus.CounterVec
	DecodeErrors prometheus.Counter
	RoundSeconds prometheus.Histogram
}

// New registers the membership collectors on a fresh registry, along with the
// go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "membership_events_total",
				Help:      "Peer table transitions by kind.",
			},
			[]string{"kind"},
		),
		Peers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "peers",
				Help:      "Tracked peers by state.",
			},
			[]string{"state"},
		),
		Datagrams: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "datagrams_total",
				Help:      "Datagrams sent and received.",
			},
			[]string{"direction", "result"},
		),
		DecodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound datagrams discarded because they could not be decoded.",
		}),
		RoundSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gossip_round_seconds",
			Help:      "Time spent building and sending a gossip round.",
			// 10µs .. ~80ms.
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
		}),
	}
	m.Registry.MustRegister(
		m.Events,
		m.Peers,
		m.Datagrams,
		m.DecodeErrors,
		m.RoundSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe counts events by kind.
func (m *Metrics) Observe(events []cluster.Event) {
	for _, e := range events {
		m.Events.WithLabelValues(e.Kind.String()).Inc()
	}
}

// SetPeers sets the peer gauges from a snapshot of the peer table.
func (m *Metrics) SetPeers(peers node.Group) {
	up := len(peers.WhereUp())
	m.Peers.WithLabelValues("up").Set(float64(up))
	m.Peers.WithLabelValues("down").Set(float64(len(peers) - up))
}

func (m *Metrics) Datagram(direction, result string) {
	m.Datagrams.WithLabelValues(direction, result).Inc()
}

func (m *Metrics) DecodeError() { m.DecodeErrors.Inc() }

func (m *Metrics) Round(d time.Duration) { m.RoundSeconds.Observe(d.Seconds()) }

// Handler exposes the registry. Mount it at /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
