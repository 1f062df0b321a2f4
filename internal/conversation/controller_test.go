package conversation

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/llm"
	"loan-assistant/internal/loan/pii"
	"loan-assistant/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

type step struct {
	reply *llm.Reply
	err   error
}

type fakeAssistant struct {
	mu        sync.Mutex
	steps     []step
	calls     int
	masked    []string
	histories [][]models.Message
	overrides llm.Overrides
}

func (f *fakeAssistant) Send(_ context.Context, history []models.Message, masked string, o llm.Overrides) (*llm.Reply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := make([]models.Message, len(history))
	copy(h, history)
	f.histories = append(f.histories, h)
	f.masked = append(f.masked, masked)
	f.overrides = o

	i := f.calls
	f.calls++
	if i < len(f.steps) {
		return f.steps[i].reply, f.steps[i].err
	}
	return &llm.Reply{Text: "Thanks, noted."}, nil
}

func (f *fakeAssistant) then(s ...step) *fakeAssistant {
	f.steps = append(f.steps, s...)
	return f
}

func ok(text string) step { return step{reply: &llm.Reply{Text: text}} }

func fail() step {
	return step{err: errors.NewLLMAPIFailureError(3, llm.ErrLLMFailed)}
}

type fakeRecorder struct {
	mu     sync.Mutex
	events []models.TurnEvent
	err    error
}

func (f *fakeRecorder) Record(_ context.Context, e models.TurnEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return f.err
}

type fakeReviewer struct {
	calls     int
	decisions []models.Decision
	err       error
}

func (f *fakeReviewer) NotifyConditional(_ context.Context, _ string, d models.Decision) error {
	f.calls++
	f.decisions = append(f.decisions, d)
	return f.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(100 * time.Millisecond)
	return c.t
}

type harness struct {
	ctrl      *Controller
	assistant *fakeAssistant
	recorder  *fakeRecorder
	reviewer  *fakeReviewer
}

func newHarness(t *testing.T, steps ...step) *harness {
	h := &harness{
		assistant: (&fakeAssistant{}).then(steps...),
		recorder:  &fakeRecorder{},
		reviewer:  &fakeReviewer{},
	}
	clk := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	h.ctrl = NewController(h.assistant, pii.New(), h.recorder, h.reviewer, logger.NewTestLogger(t), WithClock(clk.now))
	return h
}

func (h *harness) turns(t *testing.T, s *models.Session, msgs ...string) []*TurnResult {
	t.Helper()
	var out []*TurnResult
	for _, m := range msgs {
		res, err := h.ctrl.HandleTurn(context.Background(), s, m)
		require.NoError(t, err)
		out = append(out, res)
	}
	return out
}

func TestController_Start(t *testing.T) {
	h := newHarness(t)
	s := h.ctrl.Start(context.Background())

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, models.StateGreeting, s.State)
	require.Len(t, s.History, 1)
	assert.Equal(t, models.RoleAssistant, s.History[0].Role)
	assert.Equal(t, llm.Greeting(), s.History[0].Text)
	assert.Equal(t, 0, s.Turn)
	assert.Empty(t, s.Record.View())
	assert.Zero(t, h.assistant.calls, "greeting makes no model call")
	assert.Empty(t, h.recorder.events, "greeting is not a turn")
	assert.Equal(t, models.FieldMonthlyIncome, s.Expected)

	other := h.ctrl.Start(context.Background())
	assert.NotEqual(t, s.ID, other.ID)
}

func TestController_CorrectionOverwrites(t *testing.T) {
	tests := []struct {
		name         string
		msgs         []string
		correctTurn  int
		wantDebt     string
		wantDecision models.DecisionStatus
	}{
		{
			name:        "next turn",
			msgs:        []string{"I make $6000 a month", "actually $6500"},
			correctTurn: 2,
		},
		{
			name:        "after an intervening debt turn",
			msgs:        []string{"I make $6000 a month", "I pay 1800 a month on my car loan", "actually $6500"},
			correctTurn: 3,
			wantDebt:    "1800",
		},
		{
			name: "decision uses the corrected income",
			msgs: []string{
				"I make $6000 a month",
				"I pay 1800 a month on my car loan",
				"actually $6500",
				"I want to borrow $20,000",
			},
			correctTurn:  3,
			wantDebt:     "1800",
			wantDecision: models.DecisionApproved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			s := h.ctrl.Start(context.Background())
			h.turns(t, s, tt.msgs...)

			require.NotNil(t, s.Record.MonthlyIncome)
			assert.Equal(t, "6500", s.Record.MonthlyIncome.Value.String())
			assert.Equal(t, models.SourceUserStated, s.Record.MonthlyIncome.Source)
			assert.Equal(t, tt.correctTurn, s.Record.MonthlyIncome.UpdatedTurn)

			if tt.wantDebt != "" {
				require.NotNil(t, s.Record.MonthlyDebt)
				assert.Equal(t, tt.wantDebt, s.Record.MonthlyDebt.Value.String())
				assert.Equal(t, 2, s.Record.MonthlyDebt.UpdatedTurn)
			}

			var incomeEvents []models.MergeEvent
			for _, e := range s.MergeLog {
				if e.Field == models.FieldMonthlyIncome {
					incomeEvents = append(incomeEvents, e)
				}
			}
			require.Len(t, incomeEvents, 2)
			assert.Equal(t, "6000.00", incomeEvents[0].New)
			assert.Equal(t, "6000.00", incomeEvents[1].Old)
			assert.Equal(t, "6500.00", incomeEvents[1].New)

			if tt.wantDecision != "" {
				require.NotNil(t, s.Decision)
				assert.Equal(t, tt.wantDecision, s.Decision.Status)
				assert.Equal(t, "27.7", s.Decision.DTI.StringFixed(1))
			}
		})
	}
}

func TestController_LLMFailuresPreserveRecord(t *testing.T) {
	h := newHarness(t, ok("Got it."), fail(), fail(), fail(), ok("Thanks!"))
	s := h.ctrl.Start(context.Background())

	h.turns(t, s, "I earn $5,000 a month")
	before := s.Record
	mergeLog := len(s.MergeLog)

	for i, res := range h.turns(t, s, "I pay $1,000 in debts", "I pay $1,000 in debts", "I pay $1,000 in debts") {
		require.Error(t, res.Failure, "turn %d", i)
		assert.True(t, errors.IsCode(res.Failure, errors.ErrCodeLLMAPIFailure))
		assert.Equal(t, apology, res.Reply)
	}

	assert.Equal(t, 3, s.ErrorCount)
	assert.Equal(t, before, s.Record)
	assert.Len(t, s.MergeLog, mergeLog)
	assert.Equal(t, models.StateCollecting, s.State)
	assert.Equal(t, 4, s.Turn)

	res := h.turns(t, s, "I pay $1,000 in debts")[0]
	assert.NoError(t, res.Failure)
	require.NotNil(t, s.Record.MonthlyDebt)
	assert.Equal(t, "1000", s.Record.MonthlyDebt.Value.String())
	assert.Equal(t, 3, s.ErrorCount)

	var flagged int
	for _, e := range h.recorder.events {
		if e.ErrorFlag {
			flagged++
		}
	}
	assert.Len(t, h.recorder.events, 5)
	assert.Equal(t, 3, flagged)
}

func TestController_FailedTurnsStayOutOfModelContext(t *testing.T) {
	h := newHarness(t, fail(), ok("Thanks!"))
	s := h.ctrl.Start(context.Background())

	h.turns(t, s, "hello", "I earn 4000 a month")

	last := h.assistant.histories[1]
	require.Len(t, last, 3)
	assert.Equal(t, models.RoleUser, last[1].Role)
	assert.True(t, last[2].Error)
}

func TestController_Decisions(t *testing.T) {
	tests := []struct {
		name       string
		debt       string
		wantStatus models.DecisionStatus
		wantDTI    string
		wantReview bool
	}{
		{"approved at boundary", "I pay $1,800 in debts", models.DecisionApproved, "36.0", false},
		{"conditional", "I pay $1,850 in debts", models.DecisionConditional, "37.0", true},
		{"rejected", "I pay $2,200 in debts", models.DecisionRejected, "44.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			s := h.ctrl.Start(context.Background())

			res := h.turns(t, s, "I earn $5,000 a month", tt.debt, "I want to borrow $20,000")
			last := res[2]

			require.True(t, last.NewDecision)
			require.NotNil(t, s.Decision)
			assert.Equal(t, tt.wantStatus, s.Decision.Status)
			assert.Equal(t, tt.wantDTI, s.Decision.DTI.StringFixed(1))
			assert.Equal(t, models.StateDoneOrReview, s.State)
			assert.Equal(t, tt.wantReview, s.ReviewFlag)
			assert.Contains(t, last.Reply, "Preliminary decision: "+strings.ToUpper(string(tt.wantStatus)))
			assert.Equal(t, s.Decision, last.Snapshot.Decision)

			if tt.wantReview {
				assert.Equal(t, 1, h.reviewer.calls)
			} else {
				assert.Zero(t, h.reviewer.calls)
			}

			events := h.recorder.events
			require.Len(t, events, 3)
			assert.Empty(t, events[0].DecisionStatus)
			assert.Empty(t, events[1].DecisionStatus)
			assert.Equal(t, tt.wantStatus, events[2].DecisionStatus)
			assert.InDelta(t, 0.6, events[2].CompletenessFraction, 1e-9)
		})
	}
}

func TestController_DecidesOncePerTransition(t *testing.T) {
	h := newHarness(t)
	s := h.ctrl.Start(context.Background())

	h.turns(t, s, "I earn $5,000 a month", "I pay $1,850 in debts", "I want to borrow $20,000")
	first := s.Decision

	res := h.turns(t, s, "ok, what happens next?")[0]
	assert.False(t, res.NewDecision)
	assert.Same(t, first, s.Decision)
	assert.Equal(t, 1, h.reviewer.calls)
}

func TestController_CorrectionAfterConditional(t *testing.T) {
	h := newHarness(t)
	s := h.ctrl.Start(context.Background())

	h.turns(t, s, "I earn $5,000 a month", "I pay $1,850 in debts", "I want to borrow $20,000")
	require.Equal(t, models.DecisionConditional, s.Decision.Status)

	res := h.turns(t, s, "sorry, my debts are $1,500 a month")[0]
	require.True(t, res.NewDecision)
	assert.Equal(t, models.DecisionApproved, s.Decision.Status)
	assert.Equal(t, "30.0", s.Decision.DTI.StringFixed(1))
	assert.Equal(t, models.StateDoneOrReview, s.State)
	assert.False(t, s.ReviewFlag)

	res = h.turns(t, s, "actually my debts are $1,900 a month")[0]
	assert.False(t, res.NewDecision, "approved is final")
	assert.Equal(t, "1500", s.Record.MonthlyDebt.Value.String())
	assert.Equal(t, 1, h.reviewer.calls)
}

func TestController_TerminalIgnoresEdits(t *testing.T) {
	h := newHarness(t)
	s := h.ctrl.Start(context.Background())

	h.turns(t, s, "I earn $5,000 a month", "I pay $2,200 in debts", "I want to borrow $20,000")
	require.Equal(t, models.DecisionRejected, s.Decision.Status)
	version := s.RecordVersion

	res := h.turns(t, s, "actually my debts are $500")[0]
	assert.Empty(t, res.MergeEvents)
	assert.Equal(t, version, s.RecordVersion)
	assert.Equal(t, models.DecisionRejected, s.Decision.Status)
}

func TestController_MasksBeforeModel(t *testing.T) {
	h := newHarness(t, ok("Thanks, I have your income. Reply to <EMAIL_1> noted."))
	s := h.ctrl.Start(context.Background())

	res := h.turns(t, s, "my email is jane@example.com and I earn $4,000 a month")[0]

	require.Len(t, h.assistant.masked, 1)
	assert.NotContains(t, h.assistant.masked[0], "jane@example.com")
	assert.Contains(t, h.assistant.masked[0], "<EMAIL_1>")

	for _, m := range s.History {
		assert.NotContains(t, m.Text, "jane@example.com")
	}
	assert.Contains(t, res.Reply, "jane@example.com", "reply is unmasked for display")

	require.NotNil(t, s.Record.MonthlyIncome)
	assert.Equal(t, "4000", s.Record.MonthlyIncome.Value.String())
}

func TestController_HintFallbackAndRejection(t *testing.T) {
	income := 7000.0
	h := newHarness(t,
		step{reply: &llm.Reply{Text: "Great.", Hint: &models.EntityHint{MonthlyIncome: &income}}},
		step{reply: &llm.Reply{Text: "Hm.", HintErr: errors.NewEntityHintInvalidError("bad block")}},
	)
	s := h.ctrl.Start(context.Background())

	h.turns(t, s, "seven grand or so")
	require.NotNil(t, s.Record.MonthlyIncome)
	assert.Equal(t, models.SourceInferred, s.Record.MonthlyIncome.Source)
	assert.Zero(t, s.ErrorCount)

	h.turns(t, s, "whatever")
	assert.Equal(t, 1, s.ErrorCount)
	assert.True(t, h.recorder.events[1].ErrorFlag)
}

func TestController_EmptyMessage(t *testing.T) {
	h := newHarness(t)
	s := h.ctrl.Start(context.Background())

	_, err := h.ctrl.HandleTurn(context.Background(), s, "   ")
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidRequest))
	assert.Equal(t, 0, s.Turn)
	assert.Len(t, s.History, 1)
}

func TestController_RecorderAndReviewerFailuresAreSoft(t *testing.T) {
	h := newHarness(t)
	h.recorder.err = stderrors.New("disk full")
	h.reviewer.err = stderrors.New("throttled")
	s := h.ctrl.Start(context.Background())

	res := h.turns(t, s, "I earn $5,000 a month", "I pay $1,850 in debts", "I want to borrow $20,000")
	assert.True(t, res[2].NewDecision)
	assert.Zero(t, s.ErrorCount)
}

func TestController_Reset(t *testing.T) {
	h := newHarness(t, fail())
	s := h.ctrl.Start(context.Background())
	id := s.ID

	h.turns(t, s, "hi", "I earn $5,000 a month")
	require.NotEmpty(t, s.MergeLog)

	h.ctrl.Reset(s)
	assert.Equal(t, id, s.ID)
	assert.Equal(t, models.StateGreeting, s.State)
	assert.Len(t, s.History, 1)
	assert.Empty(t, s.Record.View())
	assert.Empty(t, s.MergeLog)
	assert.Zero(t, s.Turn)
	assert.Zero(t, s.ErrorCount)
	assert.Nil(t, s.Decision)
}

func TestController_Metrics(t *testing.T) {
	h := newHarness(t, ok("Hi!"), fail())
	s := h.ctrl.Start(context.Background())

	h.turns(t, s, "hello there", "hello again", "I earn $5,000 a month", "I pay $1,000 in debts")
	m := h.ctrl.Metrics(s)

	assert.Equal(t, s.ID, m.SessionID)
	assert.Equal(t, 4, m.Turns)
	assert.True(t, m.IntentRecognized)
	assert.Equal(t, 2, m.EntitiesExtracted)
	assert.InDelta(t, 40.0, m.CompletenessPercent, 1e-9)
	assert.Equal(t, 1, m.ErrorCount)
	assert.Equal(t, "collecting", m.State)
	assert.Greater(t, m.DurationSeconds, 0.0)
	assert.Empty(t, m.DecisionStatus)
}

func TestController_Overrides(t *testing.T) {
	temp := 0.2
	a := &fakeAssistant{}
	ctrl := NewController(a, pii.New(), nil, nil, logger.NewNoOpLogger(), WithOverrides(llm.Overrides{Temperature: &temp}))
	s := ctrl.Start(context.Background())

	_, err := ctrl.HandleTurn(context.Background(), s, "hello")
	require.NoError(t, err)
	require.NotNil(t, a.overrides.Temperature)
	assert.Equal(t, 0.2, *a.overrides.Temperature)
}
