package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the core instrumentation shared by nodes, wait sets and
// action endpoints
type Metrics struct {
	// Wait set metrics
	WaitCycles    *prometheus.CounterVec
	WaitDuration  prometheus.Histogram
	EntitiesReady *prometheus.CounterVec

	// Node metrics
	MessagesPublished *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	ServiceRequests   *prometheus.CounterVec

	// Action metrics
	GoalTransitions *prometheus.CounterVec
	GoalsActive     prometheus.Gauge

	// Transport metrics
	NATSConnected prometheus.Gauge
	ClockJumps    *prometheus.CounterVec
}

// NewMetrics creates all core metrics, unregistered
func NewMetrics() *Metrics {
	return &Metrics{
		WaitCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rclgo",
				Subsystem: "waitset",
				Name:      "cycles_total",
				Help:      "Total wait cycles by outcome (ready, timeout)",
			},
			[]string{"outcome"},
		),

		WaitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "rclgo",
				Subsystem: "waitset",
				Name:      "wait_duration_seconds",
				Help:      "Time spent blocked in wait",
				Buckets:   prometheus.DefBuckets,
			},
		),

		EntitiesReady: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rclgo",
				Subsystem: "waitset",
				Name:      "entities_ready_total",
				Help:      "Total entities observed ready, by kind",
			},
			[]string{"kind"},
		),

		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rclgo",
				Subsystem: "node",
				Name:      "messages_published_total",
				Help:      "Total messages published, by topic",
			},
			[]string{"topic"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rclgo",
				Subsystem: "node",
				Name:      "messages_received_total",
				Help:      "Total messages received, by topic",
			},
			[]string{"topic"},
		),

		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rclgo",
				Subsystem: "node",
				Name:      "messages_dropped_total",
				Help:      "Total messages dropped by full history queues, by topic",
			},
			[]string{"topic"},
		),

		ServiceRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rclgo",
				Subsystem: "node",
				Name:      "service_requests_total",
				Help:      "Total service requests handled, by service",
			},
			[]string{"service"},
		),

		GoalTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rclgo",
				Subsystem: "action",
				Name:      "goal_transitions_total",
				Help:      "Total goal transitions, by resulting state",
			},
			[]string{"state"},
		),

		GoalsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rclgo",
				Subsystem: "action",
				Name:      "goals_active",
				Help:      "Goals currently in a non-terminal state",
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "rclgo",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		ClockJumps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "rclgo",
				Subsystem: "clock",
				Name:      "jumps_total",
				Help:      "Total clock jumps observed, by change kind",
			},
			[]string{"change"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.WaitCycles,
		m.WaitDuration,
		m.EntitiesReady,
		m.MessagesPublished,
		m.MessagesReceived,
		m.MessagesDropped,
		m.ServiceRequests,
		m.GoalTransitions,
		m.GoalsActive,
		m.NATSConnected,
		m.ClockJumps,
	}
}
