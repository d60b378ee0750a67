// Package metrics exposes controller activity as Prometheus collectors.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "radiator"

// Outcomes of one device in a STATE request.
const (
	OutcomeAnswered    = "answered"
	OutcomeUnreachable = "unreachable"
)

type Metrics struct {
	deviceMode          *prometheus.GaugeVec
	stateRequests       *prometheus.CounterVec
	statePublishes      prometheus.Counter
	requestDuration     prometheus.Histogram
	modeCommands        *prometheus.CounterVec
	malformedMessages   prometheus.Counter
	scheduleTransitions *prometheus.CounterVec
}

// NewRegistry returns a registry carrying the Go runtime and build info
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())
	return reg
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		deviceMode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "device_mode",
				Help:      "Last known mode of each radiator (1 for the current mode).",
			},
			[]string{"device", "mode"},
		),
		stateRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_requests_total",
				Help:      "Per-device STATE request results.",
			},
			[]string{"outcome"},
		),
		statePublishes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_publishes_total",
				Help:      "STATE queries published, retries included.",
			},
		),
		requestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "state_request_duration_seconds",
				Help:      "Time spent resolving one STATE request.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
			},
		),
		modeCommands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mode_commands_total",
				Help:      "Mode commands published, by effective mode and origin.",
			},
			[]string{"mode", "source"},
		),
		malformedMessages: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "malformed_messages_total",
				Help:      "Inbound payloads that failed to parse.",
			},
		),
		scheduleTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "schedule_transitions_total",
				Help:      "Schedule boundaries that fired, by mode.",
			},
			[]string{"mode"},
		),
	}
	reg.MustRegister(m.deviceMode)
	reg.MustRegister(m.stateRequests)
	reg.MustRegister(m.statePublishes)
	reg.MustRegister(m.requestDuration)
	reg.MustRegister(m.modeCommands)
	reg.MustRegister(m.malformedMessages)
	reg.MustRegister(m.scheduleTransitions)
	return m
}

// WatchConnection exports connected() as the transport_connected gauge.
func WatchConnection(reg prometheus.Registerer, connected func() bool) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transport_connected",
			Help:      "1 when the MQTT broker is reachable.",
		},
		func() float64 {
			if connected() {
				return 1
			}
			return 0
		},
	))
}

func (m *Metrics) SetDeviceMode(device, mode string) {
	if m == nil {
		return
	}
	m.deviceMode.DeletePartialMatch(prometheus.Labels{"device": device})
	m.deviceMode.WithLabelValues(device, mode).Set(1)
}

func (m *Metrics) ForgetDevice(device string) {
	if m == nil {
		return
	}
	m.deviceMode.DeletePartialMatch(prometheus.Labels{"device": device})
}

func (m *Metrics) StateResult(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.stateRequests.WithLabelValues(outcome).Add(float64(n))
}

func (m *Metrics) StatePublished() {
	if m == nil {
		return
	}
	m.statePublishes.Inc()
}

func (m *Metrics) ObserveRequest(d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.Observe(d.Seconds())
}

func (m *Metrics) ModeCommand(mode, source string) {
	if m == nil {
		return
	}
	m.modeCommands.WithLabelValues(mode, source).Inc()
}

func (m *Metrics) MalformedMessage() {
	if m == nil {
		return
	}
	m.malformedMessages.Inc()
}

func (m *Metrics) ScheduleTransition(mode string) {
	if m == nil {
		return
	}
	m.scheduleTransitions.WithLabelValues(mode).Inc()
}
