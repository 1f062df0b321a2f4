// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_assistant_turns_total",
			Help: "Total number of conversation turns processed",
		},
		[]string{"intent", "outcome"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "loan_assistant_turn_duration_seconds",
			Help:    "Duration of one conversation turn in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"outcome"},
	)

	EntitiesExtracted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "loan_assistant_entities_extracted_total",
			Help: "Total number of applicant fields extracted from user turns",
		},
	)

	Decisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_assistant_decisions_total",
			Help: "Total number of approval decisions by status",
		},
		[]string{"status"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_assistant_llm_calls_total",
			Help: "Total number of LLM calls by result",
		},
		[]string{"result"},
	)

	ReviewNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loan_assistant_review_notifications_total",
			Help: "Manual-review notifications by channel and result",
		},
		[]string{"channel", "result"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "loan_assistant_sessions_active",
			Help: "Number of sessions held in the local store",
		},
	)
)
