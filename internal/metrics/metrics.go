package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "camwatch"

// Drop reasons for FrameDropped.
const (
	DropMalformed  = "malformed"
	DropNoListener = "no_listener"
)

// Send outcomes for Sent.
const (
	SendOK           = "ok"
	SendNotConnected = "not_connected"
	SendBufferFull   = "buffer_full"
	SendEncodeError  = "encode_error"
)

// Metrics holds the transport collectors. All series are labelled by channel
// path so one process can run several managers.
type Metrics struct {
	state           *prometheus.GaugeVec
	dials           *prometheus.CounterVec
	reconnects      *prometheus.CounterVec
	framesReceived  *prometheus.CounterVec
	framesDropped   *prometheus.CounterVec
	listenerPanics  *prometheus.CounterVec
	sends           *prometheus.CounterVec
	alertsAccepted  prometheus.Counter
	alertsDuplicate prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "state",
			Help:      "Connection state (0=idle, 1=connecting, 2=open, 3=closing, 4=closed)",
		}, []string{"channel"}),

		dials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "dials_total",
			Help:      "Physical dial attempts by result",
		}, []string{"channel", "result"}), // result: ok, error

		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after an abnormal close",
		}, []string{"channel"}),

		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "frames_received_total",
			Help:      "Inbound frames decoded, by event type",
		}, []string{"channel", "type"}),

		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames not delivered, by reason",
		}, []string{"channel", "reason"}),

		listenerPanics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "listener_panics_total",
			Help:      "Listener invocations that panicked",
		}, []string{"channel", "type"}),

		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "sends_total",
			Help:      "Outbound Send calls by outcome",
		}, []string{"channel", "outcome"}),

		alertsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "alerts_accepted_total",
			Help:      "Alert notices accepted by the feed",
		}),

		alertsDuplicate: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "alerts_duplicate_total",
			Help:      "Alert notices dropped as duplicates",
		}),
	}

	collectors := []prometheus.Collector{
		m.state, m.dials, m.reconnects, m.framesReceived, m.framesDropped,
		m.listenerPanics, m.sends, m.alertsAccepted, m.alertsDuplicate,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// SetState records the current connection state as its ordinal.
func (m *Metrics) SetState(channel string, state int) {
	if m == nil {
		return
	}
	m.state.WithLabelValues(channel).Set(float64(state))
}

// Dial records one physical dial attempt.
func (m *Metrics) Dial(channel string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.dials.WithLabelValues(channel, result).Inc()
}

// ReconnectScheduled records a retry being armed.
func (m *Metrics) ReconnectScheduled(channel string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(channel).Inc()
}

// FrameReceived records a decoded inbound frame.
func (m *Metrics) FrameReceived(channel, eventType string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(channel, eventType).Inc()
}

// FrameDropped records an inbound frame that was not delivered.
func (m *Metrics) FrameDropped(channel, reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(channel, reason).Inc()
}

// ListenerPanic records a recovered listener panic.
func (m *Metrics) ListenerPanic(channel, eventType string) {
	if m == nil {
		return
	}
	m.listenerPanics.WithLabelValues(channel, eventType).Inc()
}

// Sent records the outcome of a Send call.
func (m *Metrics) Sent(channel, outcome string) {
	if m == nil {
		return
	}
	m.sends.WithLabelValues(channel, outcome).Inc()
}

// AlertAccepted records an alert notice passing deduplication.
func (m *Metrics) AlertAccepted() {
	if m == nil {
		return
	}
	m.alertsAccepted.Inc()
}

// AlertDuplicate records an alert notice rejected as already seen.
func (m *Metrics) AlertDuplicate() {
	if m == nil {
		return
	}
	m.alertsDuplicate.Inc()
}
