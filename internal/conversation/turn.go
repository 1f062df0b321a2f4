package conversation

import (
	"context"
	"strings"
	"time"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/loan/applicant"
	"loan-assistant/internal/loan/approval"
	"loan-assistant/internal/loan/extractor"
	"loan-assistant/internal/models"
)

// TurnResult is what one user turn produced. Failure is set when the model
// call failed; the turn still completed with an apology reply.
type TurnResult struct {
	Reply       string
	Snapshot    models.Snapshot
	Extraction  models.Extraction
	MergeEvents []models.MergeEvent
	NewDecision bool
	Failure     error
}

// HandleTurn processes one user message against s and mutates it in place.
// The raw text is parsed locally and never stored; history and the model
// only see the masked form. A model failure is absorbed into an apology
// reply and an incremented error count, leaving the record untouched.
func (c *Controller) HandleTurn(ctx context.Context, s *models.Session, text string) (*TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.NewInvalidRequestError("message is empty")
	}

	started := c.now()
	s.Turn++
	turn := s.Turn
	if s.State == models.StateGreeting {
		s.State = models.StateCollecting
	}

	masked, restore := c.masker.Mask(text)
	c.logger.Debug("user turn", map[string]interface{}{
		"sessionId": s.ID,
		"turn":      turn,
		"masked":    masked,
	})

	prior := s.History
	s.History = append(s.History, models.Message{
		Role:      models.RoleUser,
		Text:      masked,
		TurnIndex: turn,
		Timestamp: started,
	})

	reply, err := c.assistant.Send(ctx, prior, masked, c.overrides)
	if err != nil {
		return c.failTurn(ctx, s, turn, started, err), nil
	}

	res := &TurnResult{}
	errored := false
	if reply.HintErr != nil {
		s.ErrorCount++
		errored = true
		c.logger.Warn("entity hint rejected", map[string]interface{}{
			"sessionId": s.ID,
			"turn":      turn,
			"error":     reply.HintErr.Error(),
		})
	}

	ex := extractor.Extract(text, reply.Hint, extractor.Options{
		Expected: s.Expected,
		Record:   s.Record,
	})
	res.Extraction = ex
	if ex.IntentGuess.Recognized() {
		s.IntentRecognized++
	}

	entities := 0
	if !c.frozen(s) {
		rec, events := applicant.Merge(s.Record, ex, turn)
		if len(events) > 0 {
			s.Record = rec
			s.MergeLog = append(s.MergeLog, events...)
			s.RecordVersion++
			entities = len(events)
			s.EntitiesExtracted += entities
		}
		res.MergeEvents = events
	}
	if next, ok := applicant.NextQuestion(s.Record); ok {
		s.Expected = next
	} else {
		s.Expected = ""
	}

	previous := s.Decision
	if c.shouldDecide(s) {
		s.State = models.StateDeciding
		d := approval.Decide(s.Record)
		s.Decision = &d
		s.DecidedVersion = s.RecordVersion
		s.State = models.StateDoneOrReview
		s.ReviewFlag = d.Status == models.DecisionConditional
		res.NewDecision = true
	}

	visible := c.masker.Unmask(reply.Text, restore)
	stored := reply.Text
	if res.NewDecision {
		summary := s.Decision.Summary()
		visible = joinReply(visible, summary)
		stored = joinReply(stored, summary)
	}
	s.History = append(s.History, models.Message{
		Role:      models.RoleAssistant,
		Text:      stored,
		TurnIndex: turn,
		Timestamp: c.now(),
	})
	s.UpdatedAt = c.now()
	res.Reply = visible

	if res.NewDecision && s.Decision.Status == models.DecisionConditional &&
		(previous == nil || previous.Status != models.DecisionConditional) {
		c.notifyReview(ctx, s)
	}

	event := models.TurnEvent{
		SessionID:            s.ID,
		TurnIndex:            turn,
		IntentGuess:          ex.IntentGuess,
		EntitiesExtracted:    entities,
		CompletenessFraction: applicant.CompletenessFraction(s.Record),
		ErrorFlag:            errored,
		LatencyMs:            c.now().Sub(started).Milliseconds(),
		Timestamp:            started,
	}
	if res.NewDecision {
		event.DecisionStatus = s.Decision.Status
	}
	c.record(ctx, event)

	fields := map[string]interface{}{
		"sessionId":       s.ID,
		"turn":            turn,
		"state":           string(s.State),
		"fieldsExtracted": entities,
	}
	if s.Decision != nil {
		fields["decision"] = string(s.Decision.Status)
	}
	c.logger.Info("turn processed", fields)

	res.Snapshot = c.Snapshot(s)
	return res, nil
}

func (c *Controller) failTurn(ctx context.Context, s *models.Session, turn int, started time.Time, err error) *TurnResult {
	s.ErrorCount++
	now := c.now()
	s.History = append(s.History, models.Message{
		Role:      models.RoleAssistant,
		Text:      apology,
		TurnIndex: turn,
		Timestamp: now,
		Error:     true,
	})
	s.UpdatedAt = now

	c.logger.Error("model call failed", map[string]interface{}{
		"sessionId":  s.ID,
		"turn":       turn,
		"state":      string(s.State),
		"errorCode":  string(errors.CodeOf(err)),
		"errorCount": s.ErrorCount,
	})

	c.record(ctx, models.TurnEvent{
		SessionID:            s.ID,
		TurnIndex:            turn,
		CompletenessFraction: applicant.CompletenessFraction(s.Record),
		ErrorFlag:            true,
		LatencyMs:            now.Sub(started).Milliseconds(),
		Timestamp:            started,
	})

	return &TurnResult{
		Reply:    apology,
		Snapshot: c.Snapshot(s),
		Failure:  err,
	}
}

// frozen reports whether the record no longer accepts edits. Approved and
// rejected decisions are final until reset; a conditional one stays open to
// corrections.
func (c *Controller) frozen(s *models.Session) bool {
	return s.Decision != nil && s.Decision.Status.Terminal()
}

// shouldDecide runs the engine once per completeness transition and again
// whenever a correction changes a decided record.
func (c *Controller) shouldDecide(s *models.Session) bool {
	if c.frozen(s) || !applicant.IsComplete(s.Record) {
		return false
	}
	return s.Decision == nil || s.DecidedVersion != s.RecordVersion
}

func (c *Controller) notifyReview(ctx context.Context, s *models.Session) {
	if c.reviewer == nil {
		return
	}
	if err := c.reviewer.NotifyConditional(ctx, s.ID, *s.Decision); err != nil {
		c.logger.Warn("review notification failed", map[string]interface{}{
			"sessionId": s.ID,
			"error":     err.Error(),
		})
	}
}

func (c *Controller) record(ctx context.Context, e models.TurnEvent) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.Record(ctx, e); err != nil {
		c.logger.Warn("turn event not recorded", map[string]interface{}{
			"sessionId": e.SessionID,
			"turn":      e.TurnIndex,
			"error":     err.Error(),
		})
	}
}

func joinReply(reply, summary string) string {
	if reply == "" {
		return summary
	}
	return reply + "\n\n" + summary
}
