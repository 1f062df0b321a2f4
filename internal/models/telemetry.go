// internal/models/telemetry.go
package models

import "time"

// TurnEvent is the append-only metrics record written once per turn.
type TurnEvent struct {
	ID                   string         `json:"id" db:"id"`
	SessionID            string         `json:"session_id" db:"session_id"`
	TurnIndex            int            `json:"turn_index" db:"turn_index"`
	IntentGuess          Intent         `json:"intent_guess" db:"intent_guess"`
	EntitiesExtracted    int            `json:"entities_extracted" db:"entities_extracted"`
	CompletenessFraction float64        `json:"completeness_fraction" db:"completeness_fraction"`
	ErrorFlag            bool           `json:"error_flag" db:"error_flag"`
	DecisionStatus       DecisionStatus `json:"decision_status,omitempty" db:"decision_status"`
	LatencyMs            int64          `json:"latency_ms" db:"latency_ms"`
	Timestamp            time.Time      `json:"timestamp" db:"created_at"`
}

// DailySummary is the per-calendar-date rollup of turn events.
type DailySummary struct {
	Date                  string  `json:"date"`
	TotalConversations    int     `json:"total_conversations"`
	TotalTurns            int     `json:"total_turns"`
	AvgTurns              float64 `json:"avg_turns_per_conversation"`
	IntentRecognitionRate float64 `json:"intent_recognition_rate"`
	AvgEntities           float64 `json:"avg_entities_extracted"`
	AvgCompletionRate     float64 `json:"avg_completion_rate"`
	AvgDurationSeconds    float64 `json:"avg_conversation_duration"`
	TotalErrors           int     `json:"total_errors"`
	ErrorRate             float64 `json:"error_rate"`
}
