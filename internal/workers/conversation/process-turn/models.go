// internal/workers/conversation/process-turn/models.go
package processturn

import "loan-assistant/internal/models"

// Input is the job payload. An empty SessionID starts a new session; Reset
// is applied before Message.
type Input struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	Reset     bool   `json:"reset"`
}

type Output struct {
	SessionID       string                            `json:"sessionId"`
	State           models.ConversationState          `json:"state"`
	Reply           string                            `json:"reply"`
	NewDecision     bool                              `json:"newDecision"`
	Decision        *models.Decision                  `json:"decision"`
	ExtractedFields map[models.Field]models.FieldView `json:"extractedFields"`
	ReviewRequired  bool                              `json:"reviewRequired"`
	TurnError       string                            `json:"turnError,omitempty"`
}
