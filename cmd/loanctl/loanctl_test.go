package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/conversation"
	"loan-assistant/internal/llm"
	"loan-assistant/internal/loan/pii"
	"loan-assistant/internal/models"
	"loan-assistant/internal/sessionstore"
	"loan-assistant/internal/telemetry"
)

type cannedAssistant struct {
	fail bool
}

func (a *cannedAssistant) Send(_ context.Context, _ []models.Message, _ string, _ llm.Overrides) (*llm.Reply, error) {
	if a.fail {
		return nil, errors.NewLLMTimeoutError(time.Second)
	}
	return &llm.Reply{Text: "Got it."}, nil
}

func newTestManager(t *testing.T, a *cannedAssistant) (*conversation.Manager, *sessionstore.Memory) {
	t.Helper()
	log := logger.NewTestLogger(t)
	store := sessionstore.NewMemory(time.Hour)
	ctrl := conversation.NewController(a, pii.New(), nil, nil, log)
	return conversation.NewManager(ctrl, store, log), store
}

func TestRunChat(t *testing.T) {
	color.NoColor = true
	mgr, store := newTestManager(t, &cannedAssistant{})

	in := strings.NewReader(strings.Join([]string{
		"I earn $5,000 a month",
		"",
		"/fields",
		"/metrics",
		"/reset",
		"/fields",
		"/quit",
		"never read",
	}, "\n"))
	var out bytes.Buffer

	require.NoError(t, runChat(context.Background(), mgr, in, &out))

	text := out.String()
	assert.Contains(t, text, "LoanBot: "+llm.Greeting())
	assert.Contains(t, text, "LoanBot: Got it.")
	assert.Contains(t, text, "monthly_income")
	assert.Contains(t, text, "5000.00")
	assert.Contains(t, text, "turns:        1")
	assert.Contains(t, text, "completeness: 20%")
	assert.Contains(t, text, "nothing captured yet")
	assert.Contains(t, text, "Goodbye.")
	assert.Equal(t, 0, store.Len(), "session ends with the chat")
}

func TestRunChat_DecisionAndFailure(t *testing.T) {
	color.NoColor = true

	t.Run("decision banner", func(t *testing.T) {
		mgr, _ := newTestManager(t, &cannedAssistant{})
		in := strings.NewReader("I earn $5,000 a month\nI pay $1,800 in debts\nI want to borrow $20,000\n")
		var out bytes.Buffer

		require.NoError(t, runChat(context.Background(), mgr, in, &out))
		assert.Contains(t, out.String(), "== APPROVED ==")
		assert.Contains(t, out.String(), "Preliminary decision: APPROVED")
	})

	t.Run("model failure", func(t *testing.T) {
		mgr, _ := newTestManager(t, &cannedAssistant{fail: true})
		var out bytes.Buffer

		require.NoError(t, runChat(context.Background(), mgr, strings.NewReader("hello\n"), &out))
		assert.Contains(t, out.String(), "(assistant unavailable: LLM_TIMEOUT)")
	})
}

func TestRunReport(t *testing.T) {
	color.NoColor = true
	fs := afero.NewMemMapFs()
	rec, err := telemetry.NewJSONLRecorder(fs, "logs")
	require.NoError(t, err)

	ctx := context.Background()
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)
	for _, e := range []models.TurnEvent{
		{SessionID: "a", TurnIndex: 1, IntentGuess: models.IntentLoanApplication, EntitiesExtracted: 1, CompletenessFraction: 0.2, Timestamp: day},
		{SessionID: "a", TurnIndex: 2, IntentGuess: models.IntentProvideInfo, EntitiesExtracted: 1, CompletenessFraction: 0.4, Timestamp: day.Add(time.Minute)},
		{SessionID: "b", TurnIndex: 1, IntentGuess: models.IntentSmalltalk, ErrorFlag: true, Timestamp: day.Add(time.Hour)},
	} {
		require.NoError(t, rec.Record(ctx, e))
	}

	tests := []struct {
		name     string
		date     string
		rollup   bool
		history  int
		contains []string
		wantErr  bool
	}{
		{name: "summary", date: "2024-05-01", contains: []string{"Date: 2024-05-01", fmt.Sprintf("%-28s%d", "Total conversations:", 2), fmt.Sprintf("%-28s%d", "Total errors:", 1)}},
		{name: "rollup", date: "2024-05-01", rollup: true, contains: []string{"saved to daily_stats.json"}},
		{name: "history", history: 7, contains: []string{"2024-05-01", "convos"}},
		{name: "bad date", date: "05/01/2024", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := runReport(&out, rec, tt.date, tt.rollup, tt.history)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}

func TestRunReport_EmptyHistory(t *testing.T) {
	rec, err := telemetry.NewJSONLRecorder(afero.NewMemMapFs(), "logs")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runReport(&out, rec, "", false, 3))
	assert.Contains(t, out.String(), "no rollups stored yet")
}

func TestRootCommand(t *testing.T) {
	root := newRootCommand()
	names := []string{}
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"chat", "report", "rollup"}, names)
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
