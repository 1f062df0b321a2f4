package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"loan-assistant/internal/models"
)

const createTurnEventsSQL = `CREATE TABLE IF NOT EXISTS turn_events (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	turn_index INTEGER NOT NULL,
	intent_guess TEXT NOT NULL,
	entities_extracted INTEGER NOT NULL,
	completeness_fraction DOUBLE PRECISION NOT NULL,
	error_flag BOOLEAN NOT NULL,
	decision_status TEXT NOT NULL DEFAULT '',
	latency_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS turn_events_created_at_idx ON turn_events (created_at)`

const insertTurnEventSQL = `INSERT INTO turn_events (id, session_id, turn_index, intent_guess, entities_extracted, completeness_fraction, error_flag, decision_status, latency_ms, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const dailyTotalsSQL = `WITH per_session AS (
	SELECT session_id,
		COUNT(*) AS turns,
		BOOL_OR(intent_guess NOT IN ('', 'smalltalk')) AS intent,
		SUM(entities_extracted) AS entities,
		(ARRAY_AGG(completeness_fraction ORDER BY turn_index DESC))[1] AS completeness,
		EXTRACT(EPOCH FROM MAX(created_at) - MIN(created_at)) AS duration,
		SUM(CASE WHEN error_flag THEN 1 ELSE 0 END) AS errors
	FROM turn_events
	WHERE created_at >= $1 AND created_at < $2
	GROUP BY session_id
)
SELECT COUNT(*),
	COALESCE(SUM(turns), 0),
	COALESCE(SUM(CASE WHEN intent THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(entities), 0),
	COALESCE(SUM(completeness), 0),
	COALESCE(SUM(duration), 0),
	COALESCE(SUM(errors), 0)
FROM per_session`

// PostgresRecorder writes events to the turn_events table.
type PostgresRecorder struct {
	db *sql.DB
}

func NewPostgresRecorder(db *sql.DB) *PostgresRecorder {
	return &PostgresRecorder{db: db}
}

func (r *PostgresRecorder) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createTurnEventsSQL); err != nil {
		return fmt.Errorf("create turn_events: %w", err)
	}
	return nil
}

func (r *PostgresRecorder) Record(ctx context.Context, e models.TurnEvent) error {
	_, err := r.db.ExecContext(ctx, insertTurnEventSQL,
		e.ID, e.SessionID, e.TurnIndex, string(e.IntentGuess), e.EntitiesExtracted,
		e.CompletenessFraction, e.ErrorFlag, string(e.DecisionStatus), e.LatencyMs, e.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert turn event: %w", err)
	}
	return nil
}

// DailySummary aggregates day's calendar date, in day's location, in SQL.
func (r *PostgresRecorder) DailySummary(ctx context.Context, day time.Time) (models.DailySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	var t totals
	err := r.db.QueryRowContext(ctx, dailyTotalsSQL, start.UTC(), end.UTC()).Scan(
		&t.conversations, &t.turns, &t.intents, &t.entities, &t.completeness, &t.duration, &t.errors)
	if err != nil {
		return models.DailySummary{}, fmt.Errorf("daily summary: %w", err)
	}
	return summarize(start.Format(dateLayout), t), nil
}
