// internal/models/session.go
package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one immutable history entry. Text is stored masked.
// Error marks apology replies, which are kept out of the model context.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	TurnIndex int       `json:"turnIndex"`
	Timestamp time.Time `json:"timestamp"`
	Error     bool      `json:"error,omitempty"`
}

type ConversationState string

const (
	StateGreeting     ConversationState = "greeting"
	StateCollecting   ConversationState = "collecting"
	StateDeciding     ConversationState = "deciding"
	StateDoneOrReview ConversationState = "done_or_review"
)

// Session is the whole per-conversation state, persisted as one document
// by the session store.
type Session struct {
	ID         string            `json:"id"`
	State      ConversationState `json:"state"`
	Record     ApplicantRecord   `json:"record"`
	History    []Message         `json:"history"`
	MergeLog   []MergeEvent      `json:"mergeLog,omitempty"`
	Turn       int               `json:"turn"`
	StartedAt  time.Time         `json:"startedAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	ErrorCount int               `json:"errorCount"`
	Decision   *Decision         `json:"decision,omitempty"`

	// RecordVersion increments on every merge that changes the record;
	// DecidedVersion is the version the current Decision was computed on.
	RecordVersion  int `json:"recordVersion"`
	DecidedVersion int `json:"decidedVersion"`

	Expected          Field `json:"expected,omitempty"`
	ReviewFlag        bool  `json:"reviewFlag"`
	IntentRecognized  int   `json:"intentRecognized"`
	EntitiesExtracted int   `json:"entitiesExtracted"`
}

// Snapshot is the rendering boundary exposed after each turn.
type Snapshot struct {
	SessionID       string              `json:"sessionId"`
	State           ConversationState   `json:"state"`
	Messages        []Message           `json:"messages"`
	ExtractedFields map[Field]FieldView `json:"extractedFields"`
	Decision        *Decision           `json:"decision"`
}

// SessionMetrics is the per-session metrics snapshot.
type SessionMetrics struct {
	SessionID           string         `json:"sessionId"`
	DurationSeconds     float64        `json:"durationSeconds"`
	Turns               int            `json:"turns"`
	IntentRecognized    bool           `json:"intentRecognized"`
	EntitiesExtracted   int            `json:"entitiesExtracted"`
	CompletenessPercent float64        `json:"completenessPercent"`
	ErrorCount          int            `json:"errorCount"`
	State               string         `json:"state"`
	DecisionStatus      DecisionStatus `json:"decisionStatus,omitempty"`
}
