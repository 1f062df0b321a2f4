// internal/models/applicant.go
package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Field names one of the five applicant fields.
type Field string

const (
	FieldMonthlyIncome    Field = "monthly_income"
	FieldMonthlyDebt      Field = "monthly_debt"
	FieldLoanAmount       Field = "loan_amount"
	FieldEmploymentStatus Field = "employment_status"
	FieldCreditScoreBand  Field = "credit_score_band"
)

// AllFields lists the applicant fields in question order.
var AllFields = []Field{
	FieldMonthlyIncome,
	FieldMonthlyDebt,
	FieldLoanAmount,
	FieldEmploymentStatus,
	FieldCreditScoreBand,
}

// Label is the human-readable field name.
func (f Field) Label() string {
	switch f {
	case FieldMonthlyIncome:
		return "monthly income"
	case FieldMonthlyDebt:
		return "monthly debt payments"
	case FieldLoanAmount:
		return "loan amount"
	case FieldEmploymentStatus:
		return "employment status"
	case FieldCreditScoreBand:
		return "credit score"
	default:
		return string(f)
	}
}

// Source is the confidence tag of a stored value. Higher values win.
type Source int

const (
	SourceNone Source = iota
	SourceInferred
	SourceUserStated
)

func (s Source) String() string {
	switch s {
	case SourceInferred:
		return "inferred"
	case SourceUserStated:
		return "user_stated"
	default:
		return "none"
	}
}

func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Source) UnmarshalText(b []byte) error {
	switch string(b) {
	case "inferred":
		*s = SourceInferred
	case "user_stated":
		*s = SourceUserStated
	case "none", "":
		*s = SourceNone
	default:
		return fmt.Errorf("unknown source %q", string(b))
	}
	return nil
}

type EmploymentStatus string

const (
	EmploymentFullTime     EmploymentStatus = "employed_full_time"
	EmploymentPartTime     EmploymentStatus = "employed_part_time"
	EmploymentSelfEmployed EmploymentStatus = "self_employed"
	EmploymentUnemployed   EmploymentStatus = "unemployed"
	EmploymentRetired      EmploymentStatus = "retired"
	EmploymentUnknown      EmploymentStatus = "unknown"
)

// ParseEmploymentStatus accepts the enum spelling only.
func ParseEmploymentStatus(s string) (EmploymentStatus, bool) {
	switch e := EmploymentStatus(s); e {
	case EmploymentFullTime, EmploymentPartTime, EmploymentSelfEmployed,
		EmploymentUnemployed, EmploymentRetired, EmploymentUnknown:
		return e, true
	}
	return "", false
}

type CreditBand string

const (
	CreditPoor      CreditBand = "poor"
	CreditFair      CreditBand = "fair"
	CreditGood      CreditBand = "good"
	CreditExcellent CreditBand = "excellent"
	CreditUnknown   CreditBand = "unknown"
)

const (
	MinCreditScore = 300
	MaxCreditScore = 850
)

// CreditBandForScore maps a numeric score to its band. ok is false outside 300-850.
func CreditBandForScore(score int) (band CreditBand, ok bool) {
	switch {
	case score < MinCreditScore || score > MaxCreditScore:
		return "", false
	case score < 580:
		return CreditPoor, true
	case score < 670:
		return CreditFair, true
	case score < 740:
		return CreditGood, true
	default:
		return CreditExcellent, true
	}
}

// ParseCreditBand accepts the enum spelling only.
func ParseCreditBand(s string) (CreditBand, bool) {
	switch b := CreditBand(s); b {
	case CreditPoor, CreditFair, CreditGood, CreditExcellent, CreditUnknown:
		return b, true
	}
	return "", false
}

// Tagged is a stored field value with its source and the turn that wrote it.
type Tagged[T any] struct {
	Value       T      `json:"value"`
	Source      Source `json:"source"`
	UpdatedTurn int    `json:"updatedTurn"`
}

// ApplicantRecord is the canonical per-session applicant state. Nil means unset.
type ApplicantRecord struct {
	MonthlyIncome    *Tagged[decimal.Decimal]  `json:"monthlyIncome,omitempty"`
	MonthlyDebt      *Tagged[decimal.Decimal]  `json:"monthlyDebt,omitempty"`
	LoanAmount       *Tagged[decimal.Decimal]  `json:"loanAmount,omitempty"`
	EmploymentStatus *Tagged[EmploymentStatus] `json:"employmentStatus,omitempty"`
	CreditScoreBand  *Tagged[CreditBand]       `json:"creditScoreBand,omitempty"`
}

// IsSet reports whether f holds a value.
func (r ApplicantRecord) IsSet(f Field) bool {
	switch f {
	case FieldMonthlyIncome:
		return r.MonthlyIncome != nil
	case FieldMonthlyDebt:
		return r.MonthlyDebt != nil
	case FieldLoanAmount:
		return r.LoanAmount != nil
	case FieldEmploymentStatus:
		return r.EmploymentStatus != nil
	case FieldCreditScoreBand:
		return r.CreditScoreBand != nil
	}
	return false
}

// FieldView is the display form of one stored field.
type FieldView struct {
	Value       string `json:"value"`
	Source      Source `json:"source"`
	UpdatedTurn int    `json:"updatedTurn"`
}

// View returns the set fields keyed by name.
func (r ApplicantRecord) View() map[Field]FieldView {
	out := make(map[Field]FieldView, len(AllFields))
	amount := func(f Field, t *Tagged[decimal.Decimal]) {
		if t != nil {
			out[f] = FieldView{Value: t.Value.StringFixed(2), Source: t.Source, UpdatedTurn: t.UpdatedTurn}
		}
	}
	amount(FieldMonthlyIncome, r.MonthlyIncome)
	amount(FieldMonthlyDebt, r.MonthlyDebt)
	amount(FieldLoanAmount, r.LoanAmount)
	if t := r.EmploymentStatus; t != nil {
		out[FieldEmploymentStatus] = FieldView{Value: string(t.Value), Source: t.Source, UpdatedTurn: t.UpdatedTurn}
	}
	if t := r.CreditScoreBand; t != nil {
		out[FieldCreditScoreBand] = FieldView{Value: string(t.Value), Source: t.Source, UpdatedTurn: t.UpdatedTurn}
	}
	return out
}

// MergeEvent records one field write during merge.
type MergeEvent struct {
	Field  Field  `json:"field"`
	Old    string `json:"old,omitempty"`
	New    string `json:"new"`
	Source Source `json:"source"`
	Turn   int    `json:"turn"`
}
