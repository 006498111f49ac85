package worker

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lexigraph",
		Subsystem: "worker",
		Name:      "tasks_processed_total",
		Help:      "Tasks processed by workers, partitioned by type and outcome.",
	}, []string{"task_type", "outcome"})

	taskDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lexigraph",
		Subsystem: "worker",
		Name:      "task_duration_seconds",
		Help:      "Stage execution time in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task_type"})

	claimFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lexigraph",
		Subsystem: "worker",
		Name:      "claim_failures_total",
		Help:      "Queue claim attempts that failed for reasons other than an empty queue.",
	})
)

func init() {
	prometheus.MustRegister(tasksProcessed, taskDuration, claimFailures)
}

// Outcome labels for tasksProcessed.
const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeOrphaned  = "orphaned"
	outcomeDuplicate = "duplicate"
)
