// internal/models/extraction.go
package models

import (
	"github.com/shopspring/decimal"

	"loan-assistant/internal/common/errors"
)

// Intent is the coarse turn intent guessed from the user text.
type Intent string

const (
	IntentLoanApplication Intent = "loan_application"
	IntentProvideInfo     Intent = "provide_information"
	IntentCorrection      Intent = "correction"
	IntentSmalltalk       Intent = "smalltalk"
)

// Recognized reports whether the turn was about the application.
func (i Intent) Recognized() bool {
	return i != "" && i != IntentSmalltalk
}

// Candidate is one extracted value with the confidence it would be stored at.
type Candidate[T any] struct {
	Value  T      `json:"value"`
	Source Source `json:"source"`
}

// ExtractionIssue is a soft, per-field extraction problem. It never aborts a turn.
type ExtractionIssue struct {
	Field  Field            `json:"field"`
	Code   errors.ErrorCode `json:"code"`
	Detail string           `json:"detail"`
}

// Extraction is the output of one extractor run.
type Extraction struct {
	MonthlyIncome    *Candidate[decimal.Decimal]  `json:"monthlyIncome,omitempty"`
	MonthlyDebt      *Candidate[decimal.Decimal]  `json:"monthlyDebt,omitempty"`
	LoanAmount       *Candidate[decimal.Decimal]  `json:"loanAmount,omitempty"`
	EmploymentStatus *Candidate[EmploymentStatus] `json:"employmentStatus,omitempty"`
	CreditScoreBand  *Candidate[CreditBand]       `json:"creditScoreBand,omitempty"`
	IntentGuess      Intent                       `json:"intentGuess"`
	Issues           []ExtractionIssue            `json:"issues,omitempty"`
}

// Count returns how many fields carry a candidate.
func (e Extraction) Count() int {
	n := 0
	for _, set := range []bool{
		e.MonthlyIncome != nil,
		e.MonthlyDebt != nil,
		e.LoanAmount != nil,
		e.EmploymentStatus != nil,
		e.CreditScoreBand != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// HasIssue reports whether an issue with code was recorded for f.
func (e Extraction) HasIssue(f Field, code errors.ErrorCode) bool {
	for _, is := range e.Issues {
		if is.Field == f && is.Code == code {
			return true
		}
	}
	return false
}

// EntityHint is the model-proposed entity block, decoded from the reply's
// fenced json after schema validation.
type EntityHint struct {
	MonthlyIncome    *float64 `json:"monthly_income,omitempty"`
	MonthlyDebt      *float64 `json:"monthly_debt,omitempty"`
	LoanAmount       *float64 `json:"loan_amount,omitempty"`
	EmploymentStatus *string  `json:"employment_status,omitempty"`
	CreditScore      *int     `json:"credit_score,omitempty"`
	CreditScoreBand  *string  `json:"credit_score_band,omitempty"`
}
