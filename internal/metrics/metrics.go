// Package metrics exposes Prometheus counters for gossip and admission.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contract_gate"

// Metrics is nil-safe: every recording method is a no-op on a nil receiver.
type Metrics struct {
	gossipSent      *prometheus.CounterVec
	gossipSendFails prometheus.Counter
	gossipReceived  *prometheus.CounterVec
	gossipDropped   *prometheus.CounterVec
	gossipDeferred  prometheus.Counter
	connectedPeers  prometheus.Gauge
	decisions       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		gossipSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_messages_sent_total",
			Help:      "Contract address list messages sent to peers",
		}, []string{"kind"}),
		gossipSendFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_send_failures_total",
			Help:      "Contract address list sends that failed",
		}),
		gossipReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_messages_received_total",
			Help:      "Contract address list messages accepted from peers",
		}, []string{"kind"}),
		gossipDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_messages_dropped_total",
			Help:      "Inbound messages dropped",
		}, []string{"reason"}),
		gossipDeferred: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gossip_messages_deferred_total",
			Help:      "Inbound list messages held back by the per-peer rate",
		}),
		connectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gossip_connected_peers",
			Help:      "Peers currently attached to the policy sub-protocol",
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_decisions_total",
			Help:      "Admission decisions by scope and result",
		}, []string{"scope", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.gossipSent, m.gossipSendFails, m.gossipReceived, m.gossipDropped, m.gossipDeferred, m.connectedPeers, m.decisions)
	}
	return m
}

func (m *Metrics) GossipSent(kind string) {
	if m == nil {
		return
	}
	m.gossipSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) GossipSendFailed() {
	if m == nil {
		return
	}
	m.gossipSendFails.Inc()
}

func (m *Metrics) GossipReceived(kind string) {
	if m == nil {
		return
	}
	m.gossipReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) GossipDropped(reason string) {
	if m == nil {
		return
	}
	m.gossipDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) GossipDeferred() {
	if m == nil {
		return
	}
	m.gossipDeferred.Inc()
}

func (m *Metrics) SetConnectedPeers(n int) {
	if m == nil {
		return
	}
	m.connectedPeers.Set(float64(n))
}

func (m *Metrics) Decision(scope, result string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(scope, result).Inc()
}
