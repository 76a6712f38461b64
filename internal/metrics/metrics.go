package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	rateLimitDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "rate_limit_decisions_total",
			Help:      "Rate limiter outcomes: allowed, rejected, fail_open.",
		},
		[]string{"outcome"},
	)

	tasksDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "tasks_dispatched_total",
			Help:      "Tasks handed to the queue by dispatch result.",
		},
		[]string{"result"},
	)

	tasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "tasks_finished_total",
			Help:      "Tasks processed by the worker by terminal status.",
		},
		[]string{"status"},
	)

	taskDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "nutribot",
			Name:      "task_duration_seconds",
			Help:      "Wall time spent handling one task in the worker.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	intentsClassified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "intents_total",
			Help:      "Intents attached to dispatched tasks.",
		},
		[]string{"intent", "source"},
	)

	inboundMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "inbound_messages_total",
			Help:      "Updates received from the chat transport by kind.",
		},
		[]string{"kind"},
	)

	collaboratorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "collaborator_failures_total",
			Help:      "Best-effort collaborator calls that failed and were substituted.",
		},
		[]string{"component"},
	)

	authEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "nutribot",
			Name:      "auth_events_total",
			Help:      "Authentication flow events.",
		},
		[]string{"event"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(rateLimitDecisions, tasksDispatched, tasksFinished, taskDuration, intentsClassified, authEvents,
			inboundMessages, collaboratorFailures)
	})
}

func IncRateLimit(outcome string) {
	rateLimitDecisions.WithLabelValues(outcome).Inc()
}

func IncDispatched(result string) {
	tasksDispatched.WithLabelValues(result).Inc()
}

func ObserveTask(status string, took time.Duration) {
	tasksFinished.WithLabelValues(status).Inc()
	taskDuration.Observe(took.Seconds())
}

func IncIntent(intent, source string) {
	intentsClassified.WithLabelValues(intent, source).Inc()
}

func IncAuthEvent(event string) {
	authEvents.WithLabelValues(event).Inc()
}

func IncInbound(kind string) {
	inboundMessages.WithLabelValues(kind).Inc()
}

func IncCollaboratorFailure(component string) {
	collaboratorFailures.WithLabelValues(component).Inc()
}
