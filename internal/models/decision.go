// internal/models/decision.go
package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

type DecisionStatus string

const (
	DecisionApproved    DecisionStatus = "approved"
	DecisionConditional DecisionStatus = "conditional"
	DecisionRejected    DecisionStatus = "rejected"
	DecisionIncomplete  DecisionStatus = "incomplete"
)

// Decision is the approval engine output. It is replaced, never mutated.
type Decision struct {
	Status          DecisionStatus   `json:"status"`
	DTI             *decimal.Decimal `json:"dti,omitempty"`
	Reasons         []string         `json:"reasons"`
	Recommendations []string         `json:"recommendations,omitempty"`
	MissingFields   []Field          `json:"missingFields,omitempty"`
}

// Terminal reports whether the status ends automated processing.
func (s DecisionStatus) Terminal() bool {
	return s == DecisionApproved || s == DecisionRejected
}

// Summary renders the decision as a plain-text chat block.
func (d Decision) Summary() string {
	var b strings.Builder
	b.WriteString("Preliminary decision: ")
	b.WriteString(strings.ToUpper(string(d.Status)))
	if d.DTI != nil {
		b.WriteString(" (debt-to-income ")
		b.WriteString(d.DTI.StringFixed(1))
		b.WriteString("%)")
	}
	b.WriteString("\n")

	if len(d.Reasons) > 0 {
		b.WriteString("\nWhy:\n")
		for _, r := range d.Reasons {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	if len(d.Recommendations) > 0 {
		b.WriteString("\nNext steps:\n")
		for _, r := range d.Recommendations {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
