package task

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "staycrest"
	metricsSubsystem = "pool"

	// otherTaskType labels task types outside the known set so that
	// arbitrary caller-supplied tags cannot grow label cardinality.
	otherTaskType = "other"
)

// Task outcome label values
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeCrashed   = "crashed"
	OutcomeAbandoned = "abandoned"
)

// Metrics holds the Prometheus collectors updated by a Manager. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	WorkersTotal    prometheus.Gauge
	WorkersBusy     prometheus.Gauge
	QueueWaiting    prometheus.Gauge
	TasksSubmitted  *prometheus.CounterVec
	TasksRejected   *prometheus.CounterVec
	TasksCompleted  *prometheus.CounterVec
	TaskDuration    *prometheus.HistogramVec
	WorkersReplaced prometheus.Counter

	knownTypes map[string]struct{}
}

// NewMetrics registers the pool collectors with reg. knownTypes lists the
// task types reported under their own label value.
func NewMetrics(reg prometheus.Registerer, knownTypes ...string) *Metrics {
	factory := promauto.With(reg)

	known := make(map[string]struct{}, len(knownTypes))
	for _, t := range knownTypes {
		known[t] = struct{}{}
	}

	return &Metrics{
		WorkersTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "workers",
			Help:      "Number of live workers in the pool",
		}),
		WorkersBusy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "workers_busy",
			Help:      "Number of workers currently processing a task",
		}),
		QueueWaiting: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "queue_waiting",
			Help:      "Number of tasks awaiting assignment to a worker",
		}),
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks admitted to the queue",
			},
			[]string{"type"},
		),
		TasksRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "tasks_rejected_total",
				Help:      "Total number of tasks rejected because the queue was full",
			},
			[]string{"type"},
		),
		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "tasks_completed_total",
				Help:      "Total number of admitted tasks settled, by outcome",
			},
			[]string{"type", "outcome"},
		),
		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "task_duration_seconds",
				Help:      "Time spent processing a task inside a worker",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		WorkersReplaced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "workers_replaced_total",
			Help:      "Total number of workers replaced after a crash",
		}),
		knownTypes: known,
	}
}

func (m *Metrics) typeLabel(taskType string) string {
	if _, ok := m.knownTypes[taskType]; ok {
		return taskType
	}
	return otherTaskType
}

func (m *Metrics) setPool(total, busy, waiting int) {
	if m == nil {
		return
	}
	m.WorkersTotal.Set(float64(total))
	m.WorkersBusy.Set(float64(busy))
	m.QueueWaiting.Set(float64(waiting))
}

func (m *Metrics) taskSubmitted(taskType string) {
	if m == nil {
		return
	}
	m.TasksSubmitted.WithLabelValues(m.typeLabel(taskType)).Inc()
}

func (m *Metrics) taskRejected(taskType string) {
	if m == nil {
		return
	}
	m.TasksRejected.WithLabelValues(m.typeLabel(taskType)).Inc()
}

func (m *Metrics) taskCompleted(taskType, outcome string) {
	if m == nil {
		return
	}
	m.TasksCompleted.WithLabelValues(m.typeLabel(taskType), outcome).Inc()
}

func (m *Metrics) taskProcessed(taskType string, d time.Duration) {
	if m == nil {
		return
	}
	m.TaskDuration.WithLabelValues(m.typeLabel(taskType)).Observe(d.Seconds())
}

func (m *Metrics) workerReplaced() {
	if m == nil {
		return
	}
	m.WorkersReplaced.Inc()
}
