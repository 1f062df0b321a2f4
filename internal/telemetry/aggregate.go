package telemetry

import (
	"fmt"
	"math"
	"strings"
	"time"

	"loan-assistant/internal/models"
)

const dateLayout = "2006-01-02"

// totals are per-day sums over conversations. Both the in-process and the SQL
// aggregation produce totals so they share the averaging rules.
type totals struct {
	conversations int
	turns         int
	intents       int
	entities      int
	completeness  float64
	duration      float64
	errors        int
}

type sessionAcc struct {
	turns        int
	intent       bool
	entities     int
	lastTurn     int
	completeness float64
	first, last  time.Time
	errors       int
}

// Aggregate summarizes the events that fall on day's calendar date in day's
// location. A conversation's completeness is the value at its latest turn and
// its duration spans its first to last event of that date.
func Aggregate(events []models.TurnEvent, day time.Time) models.DailySummary {
	date := day.Format(dateLayout)
	sessions := make(map[string]*sessionAcc)

	for _, e := range events {
		if e.Timestamp.In(day.Location()).Format(dateLayout) != date {
			continue
		}
		acc, ok := sessions[e.SessionID]
		if !ok {
			acc = &sessionAcc{first: e.Timestamp, last: e.Timestamp, lastTurn: -1}
			sessions[e.SessionID] = acc
		}
		acc.turns++
		acc.entities += e.EntitiesExtracted
		if e.IntentGuess.Recognized() {
			acc.intent = true
		}
		if e.ErrorFlag {
			acc.errors++
		}
		if e.TurnIndex > acc.lastTurn {
			acc.lastTurn = e.TurnIndex
			acc.completeness = e.CompletenessFraction
		}
		if e.Timestamp.Before(acc.first) {
			acc.first = e.Timestamp
		}
		if e.Timestamp.After(acc.last) {
			acc.last = e.Timestamp
		}
	}

	var t totals
	for _, acc := range sessions {
		t.conversations++
		t.turns += acc.turns
		t.entities += acc.entities
		t.completeness += acc.completeness
		t.duration += acc.last.Sub(acc.first).Seconds()
		t.errors += acc.errors
		if acc.intent {
			t.intents++
		}
	}
	return summarize(date, t)
}

func summarize(date string, t totals) models.DailySummary {
	s := models.DailySummary{Date: date, TotalConversations: t.conversations, TotalTurns: t.turns, TotalErrors: t.errors}
	if t.conversations == 0 {
		return s
	}
	n := float64(t.conversations)
	s.AvgTurns = round2(float64(t.turns) / n)
	s.IntentRecognitionRate = round2(float64(t.intents) / n * 100)
	s.AvgEntities = round2(float64(t.entities) / n)
	s.AvgCompletionRate = round2(t.completeness / n * 100)
	s.AvgDurationSeconds = round2(t.duration / n)
	s.ErrorRate = round2(float64(t.errors) / n)
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Report renders a daily summary as a plain-text block.
func Report(s models.DailySummary) string {
	var b strings.Builder
	line := strings.Repeat("-", 48)
	fmt.Fprintf(&b, "LOAN ASSISTANT - DAILY METRICS\n%s\nDate: %s\n\n", line, s.Date)

	fmt.Fprintf(&b, "CONVERSATIONS\n%s\n", line)
	fmt.Fprintf(&b, "%-28s%d\n", "Total conversations:", s.TotalConversations)
	fmt.Fprintf(&b, "%-28s%d\n", "Total turns:", s.TotalTurns)
	fmt.Fprintf(&b, "%-28s%.2f\n", "Avg turns per session:", s.AvgTurns)
	fmt.Fprintf(&b, "%-28s%.1fs\n\n", "Avg duration:", s.AvgDurationSeconds)

	fmt.Fprintf(&b, "PERFORMANCE\n%s\n", line)
	fmt.Fprintf(&b, "%-28s%.2f%%\n", "Intent recognition rate:", s.IntentRecognitionRate)
	fmt.Fprintf(&b, "%-28s%.2f\n", "Avg entities extracted:", s.AvgEntities)
	fmt.Fprintf(&b, "%-28s%.2f%%\n\n", "Avg completion rate:", s.AvgCompletionRate)

	fmt.Fprintf(&b, "ERRORS\n%s\n", line)
	fmt.Fprintf(&b, "%-28s%d\n", "Total errors:", s.TotalErrors)
	fmt.Fprintf(&b, "%-28s%.2f errors/conversation\n", "Error rate:", s.ErrorRate)
	return b.String()
}
