// Package metrics provides prometheus instrumentation for the MQTT stream
// client. All collectors are optional: the client updates them through
// nil-safe helpers, so a nil *Metrics disables instrumentation entirely.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors exported by the client.
type Metrics struct {
	connectionStatus  prometheus.Gauge
	messagesReceived  prometheus.Counter
	messagesPublished *prometheus.CounterVec
	activeStreams     prometheus.Gauge
	reconnects        prometheus.Counter
}

// NewMetrics creates and registers the client collectors. A nil registerer
// falls back to the prometheus default registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		connectionStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_connection_status",
			Help: "Current MQTT connection status (1 connected, 0 disconnected)",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_messages_received_total",
			Help: "Total number of messages delivered to subscription streams",
		}),
		messagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_messages_published_total",
			Help: "Total number of publish operations by outcome",
		}, []string{"status"}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_active_streams",
			Help: "Number of currently open subscription streams",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_reconnects_total",
			Help: "Total number of reconnection attempts",
		}),
	}

	collectors := []prometheus.Collector{
		m.connectionStatus,
		m.messagesReceived,
		m.messagesPublished,
		m.activeStreams,
		m.reconnects,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// SetConnectionStatus records the current connection state.
func (m *Metrics) SetConnectionStatus(connected bool) {
	if connected {
		m.connectionStatus.Set(1)
		return
	}
	m.connectionStatus.Set(0)
}

// IncMessagesReceived counts a message delivered to a stream.
func (m *Metrics) IncMessagesReceived() {
	m.messagesReceived.Inc()
}

// IncMessagesPublished counts a publish operation outcome
// ("success" or "error").
func (m *Metrics) IncMessagesPublished(status string) {
	m.messagesPublished.WithLabelValues(status).Inc()
}

// IncActiveStreams records a newly opened subscription stream.
func (m *Metrics) IncActiveStreams() {
	m.activeStreams.Inc()
}

// DecActiveStreams records a closed subscription stream.
func (m *Metrics) DecActiveStreams() {
	m.activeStreams.Dec()
}

// IncReconnects counts a reconnection attempt.
func (m *Metrics) IncReconnects() {
	m.reconnects.Inc()
}
