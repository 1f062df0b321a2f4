// Package conversation runs the loan pre-qualification dialogue: one
// session state machine per conversation, driven one turn at a time.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/llm"
	"loan-assistant/internal/loan/applicant"
	"loan-assistant/internal/models"
)

const apology = "I'm sorry, I'm having trouble responding right now. " +
	"Nothing you told me was lost; please try again in a moment."

// Assistant is satisfied by *llm.Client.
type Assistant interface {
	Send(ctx context.Context, history []models.Message, masked string, o llm.Overrides) (*llm.Reply, error)
}

// Masker is satisfied by *pii.Masker.
type Masker interface {
	Mask(text string) (string, map[string]string)
	Unmask(masked string, restore map[string]string) string
}

// Recorder is satisfied by every telemetry recorder.
type Recorder interface {
	Record(ctx context.Context, e models.TurnEvent) error
}

// Reviewer is satisfied by *notify.Reviewer.
type Reviewer interface {
	NotifyConditional(ctx context.Context, sessionID string, d models.Decision) error
}

// Controller owns the turn pipeline. It holds no per-session state; callers
// must not run two turns of the same session concurrently.
type Controller struct {
	assistant Assistant
	masker    Masker
	recorder  Recorder
	reviewer  Reviewer
	overrides llm.Overrides
	greeting  string
	now       func() time.Time
	logger    logger.Logger
}

type Option func(*Controller)

func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithOverrides sets the generation knobs passed on every model call.
func WithOverrides(o llm.Overrides) Option {
	return func(c *Controller) { c.overrides = o }
}

func WithGreeting(text string) Option {
	return func(c *Controller) { c.greeting = text }
}

// NewController wires the collaborators. recorder and reviewer may be nil.
func NewController(assistant Assistant, masker Masker, recorder Recorder, reviewer Reviewer, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		assistant: assistant,
		masker:    masker,
		recorder:  recorder,
		reviewer:  reviewer,
		greeting:  llm.Greeting(),
		now:       time.Now,
		logger:    logger.Component(log, "conversation"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start creates a session in the greeting state. The greeting is emitted
// without a model call and nothing is extracted.
func (c *Controller) Start(_ context.Context) *models.Session {
	s := &models.Session{ID: uuid.NewString()}
	c.initialize(s)
	c.logger.Info("session started", map[string]interface{}{
		"sessionId": s.ID,
	})
	return s
}

// Reset replaces the record and history of s wholesale and greets again.
// The session id is kept.
func (c *Controller) Reset(s *models.Session) {
	*s = models.Session{ID: s.ID}
	c.initialize(s)
	c.logger.Info("session reset", map[string]interface{}{
		"sessionId": s.ID,
	})
}

func (c *Controller) initialize(s *models.Session) {
	now := c.now()
	s.State = models.StateGreeting
	s.StartedAt = now
	s.UpdatedAt = now
	s.Expected = models.FieldMonthlyIncome
	s.History = []models.Message{{
		Role:      models.RoleAssistant,
		Text:      c.greeting,
		TurnIndex: 0,
		Timestamp: now,
	}}
}

// Snapshot is the rendering boundary: history, the extracted fields and the
// current decision.
func (c *Controller) Snapshot(s *models.Session) models.Snapshot {
	msgs := make([]models.Message, len(s.History))
	copy(msgs, s.History)
	return models.Snapshot{
		SessionID:       s.ID,
		State:           s.State,
		Messages:        msgs,
		ExtractedFields: s.Record.View(),
		Decision:        s.Decision,
	}
}

// Metrics summarizes the session so far.
func (c *Controller) Metrics(s *models.Session) models.SessionMetrics {
	m := models.SessionMetrics{
		SessionID:           s.ID,
		DurationSeconds:     c.now().Sub(s.StartedAt).Seconds(),
		Turns:               s.Turn,
		IntentRecognized:    s.IntentRecognized > 0,
		EntitiesExtracted:   s.EntitiesExtracted,
		CompletenessPercent: applicant.CompletenessFraction(s.Record) * 100,
		ErrorCount:          s.ErrorCount,
		State:               string(s.State),
	}
	if s.Decision != nil {
		m.DecisionStatus = s.Decision.Status
	}
	return m
}
