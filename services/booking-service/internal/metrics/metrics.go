package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "booking"

// Collector holds the engine metrics. A nil *Collector records nothing.
type Collector struct {
	operations  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	actions     *prometheus.CounterVec
	swept       prometheus.Counter
	published   prometheus.Counter
	consumed    *prometheus.CounterVec
}

func New() *Collector {
	return &Collector{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Engine operations by name and outcome code.",
			}, []string{"operation", "code"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Time spent in engine operations.",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			}, []string{"operation"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "appointment_transitions_total",
				Help:      "Applied appointment status transitions.",
			}, []string{"from", "to"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "board_actions_total",
				Help:      "Board action status changes by type.",
			}, []string{"type", "status"},
		),
		swept: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "no_show_swept_total",
				Help:      "Appointments moved to no_show by the sweeper.",
			},
		),
		published: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbox_published_total",
				Help:      "Outbox events written to Kafka.",
			},
		),
		consumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_consumed_total",
				Help:      "Consumed Kafka events by type and result.",
			}, []string{"event_type", "result"},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.operations.Describe(ch)
	c.duration.Describe(ch)
	c.transitions.Describe(ch)
	c.actions.Describe(ch)
	c.swept.Describe(ch)
	c.published.Describe(ch)
	c.consumed.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.operations.Collect(ch)
	c.duration.Collect(ch)
	c.transitions.Collect(ch)
	c.actions.Collect(ch)
	c.swept.Collect(ch)
	c.published.Collect(ch)
	c.consumed.Collect(ch)
}

// Observe records one finished operation. code is "ok" or an error code.
func (c *Collector) Observe(operation, code string, started time.Time) {
	if c == nil {
		return
	}
	c.operations.WithLabelValues(operation, code).Inc()
	c.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (c *Collector) Transition(from, to string) {
	if c == nil {
		return
	}
	c.transitions.WithLabelValues(from, to).Inc()
}

func (c *Collector) Action(actionType, status string) {
	if c == nil {
		return
	}
	c.actions.WithLabelValues(actionType, status).Inc()
}

func (c *Collector) Swept(n int) {
	if c == nil {
		return
	}
	c.swept.Add(float64(n))
}

func (c *Collector) Published(n int) {
	if c == nil {
		return
	}
	c.published.Add(float64(n))
}

func (c *Collector) Consumed(eventType, result string) {
	if c == nil {
		return
	}
	c.consumed.WithLabelValues(eventType, result).Inc()
}
