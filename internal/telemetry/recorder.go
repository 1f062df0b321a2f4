// Package telemetry records one event per conversation turn to the configured
// sinks and rolls events up into daily summaries.
package telemetry

import (
	"context"
	stderrors "errors"

	"github.com/oklog/ulid/v2"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"
)

// Recorder appends one turn event. Implementations must be safe for
// concurrent use.
type Recorder interface {
	Record(ctx context.Context, e models.TurnEvent) error
}

// NewEventID returns a lexically time-ordered event id.
func NewEventID() string {
	return ulid.Make().String()
}

type sink struct {
	name string
	r    Recorder
}

// MultiRecorder fans an event out to every sink. A failing sink does not stop
// the others; their errors are joined.
type MultiRecorder struct {
	sinks  []sink
	logger logger.Logger
}

func NewMulti(log logger.Logger) *MultiRecorder {
	return &MultiRecorder{logger: logger.Component(log, "telemetry")}
}

func (m *MultiRecorder) Add(name string, r Recorder) *MultiRecorder {
	m.sinks = append(m.sinks, sink{name: name, r: r})
	return m
}

func (m *MultiRecorder) Sinks() []string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.name
	}
	return names
}

func (m *MultiRecorder) Record(ctx context.Context, e models.TurnEvent) error {
	if e.ID == "" {
		e.ID = NewEventID()
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.r.Record(ctx, e); err != nil {
			m.logger.Warn("turn event not recorded", map[string]interface{}{
				"sink":      s.name,
				"sessionId": e.SessionID,
				"turn":      e.TurnIndex,
				"error":     err.Error(),
			})
			errs = append(errs, errors.NewMetricsRecordFailedError(s.name, err))
		}
	}
	return stderrors.Join(errs...)
}
