package handsfree

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics метрики машины состояний HF.
//
// Все методы безопасны для nil получателя: машина без метрик просто ничего не считает.
type Metrics struct {
	transitions      *prometheus.CounterVec
	messages         *prometheus.CounterVec
	deferred         prometheus.Counter
	commands         *prometheus.CounterVec
	results          *prometheus.CounterVec
	callChanges      *prometheus.CounterVec
	activeCalls      prometheus.Gauge
	clccPolls        prometheus.Counter
	overwrites       prometheus.Counter
	acceptRetries    prometheus.Counter
	panics           prometheus.Counter
	connectionsTotal prometheus.Counter
}

// MetricsConfig конфигурация метрик.
type MetricsConfig struct {
	Namespace string
	Subsystem string
	// Registerer куда регистрировать метрики; nil означает prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// DefaultMetricsConfig возвращает конфигурацию по умолчанию.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		Namespace: "hfp",
		Subsystem: "",
	}
}

// NewMetrics регистрирует метрики.
func NewMetrics(config *MetricsConfig) *Metrics {
	if config == nil {
		config = DefaultMetricsConfig()
	}
	reg := config.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	ns, sub := config.Namespace, config.Subsystem

	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "state_transitions_total",
			Help: "Lifecycle state transitions",
		}, []string{"from", "to"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "messages_total",
			Help: "Messages processed by the state machine",
		}, []string{"message", "state"}),
		deferred: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "deferred_messages_total",
			Help: "Messages deferred until the next state change",
		}),
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "commands_total",
			Help: "Commands dispatched to the audio gateway",
		}, []string{"action"}),
		results: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "command_results_total",
			Help: "Command results received from the audio gateway",
		}, []string{"action", "code"}),
		callChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "call_changes_total",
			Help: "Call table change notifications",
		}, []string{"state"}),
		activeCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Subsystem: sub,
			Name: "calls",
			Help: "Calls currently tracked in the call table",
		}),
		clccPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "clcc_polls_total",
			Help: "Current call list queries sent",
		}),
		overwrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "pending_action_overwrites_total",
			Help: "Pending actions replaced before their indicator effect was observed",
		}),
		acceptRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "accept_retries_total",
			Help: "Automatic accept retries with an alternative command",
		}),
		panics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "handler_panics_total",
			Help: "Recovered panics in message handlers",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "connections_total",
			Help: "Service level connections established",
		}),
	}
}

func (m *Metrics) transition(from, to State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(string(from), string(to)).Inc()
	if to == StateConnected && from == StateConnecting {
		m.connectionsTotal.Inc()
	}
}

func (m *Metrics) message(name string, state State) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(name, string(state)).Inc()
}

func (m *Metrics) deferral() {
	if m == nil {
		return
	}
	m.deferred.Inc()
}

func (m *Metrics) command(kind ActionKind) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind.String()).Inc()
	if kind == ActionQueryCurrentCalls {
		m.clccPolls.Inc()
	}
}

func (m *Metrics) result(kind ActionKind, code ResultCode) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(kind.String(), code.String()).Inc()
}

func (m *Metrics) callChanged(c Call, tracked int) {
	if m == nil {
		return
	}
	m.callChanges.WithLabelValues(c.State.String()).Inc()
	m.activeCalls.Set(float64(tracked))
}

func (m *Metrics) overwrite() {
	if m == nil {
		return
	}
	m.overwrites.Inc()
}

func (m *Metrics) acceptRetry() {
	if m == nil {
		return
	}
	m.acceptRetries.Inc()
}

func (m *Metrics) panicked() {
	if m == nil {
		return
	}
	m.panics.Inc()
}
