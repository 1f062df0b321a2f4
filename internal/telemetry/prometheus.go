package telemetry

import (
	"context"
	"time"

	"loan-assistant/internal/common/metrics"
	"loan-assistant/internal/common/observability"
	"loan-assistant/internal/models"
)

// PrometheusRecorder feeds the live counters behind /metrics. obs may be nil.
type PrometheusRecorder struct {
	obs *observability.Observability
}

func NewPrometheusRecorder(obs *observability.Observability) *PrometheusRecorder {
	return &PrometheusRecorder{obs: obs}
}

func (r *PrometheusRecorder) Record(ctx context.Context, e models.TurnEvent) error {
	outcome := "ok"
	if e.ErrorFlag {
		outcome = "error"
	}
	intent := string(e.IntentGuess)
	if intent == "" {
		intent = "none"
	}
	latency := time.Duration(e.LatencyMs) * time.Millisecond

	metrics.TurnsProcessed.WithLabelValues(intent, outcome).Inc()
	metrics.TurnDuration.WithLabelValues(outcome).Observe(latency.Seconds())
	metrics.EntitiesExtracted.Add(float64(e.EntitiesExtracted))
	if e.DecisionStatus != "" {
		metrics.Decisions.WithLabelValues(string(e.DecisionStatus)).Inc()
	}
	if r.obs != nil {
		r.obs.RecordTurn(ctx, intent, e.ErrorFlag, latency, e.CompletenessFraction)
	}
	return nil
}
