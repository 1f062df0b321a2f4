// Package applicant holds the merge policy and completeness rules of the
// canonical applicant record.
package applicant

import (
	"github.com/shopspring/decimal"

	"loan-assistant/internal/models"
)

// RequiredFields must all be set, with a positive income, for a decision.
var RequiredFields = []models.Field{
	models.FieldMonthlyIncome,
	models.FieldMonthlyDebt,
	models.FieldLoanAmount,
}

// Merge applies ex to rec at turn and returns the new record together with
// one event per written field. rec is not modified. A candidate overwrites a
// stored value only when its source is at least the stored source; merges
// never clear a field.
func Merge(rec models.ApplicantRecord, ex models.Extraction, turn int) (models.ApplicantRecord, []models.MergeEvent) {
	out := rec
	var events []models.MergeEvent

	out.MonthlyIncome = mergeAmount(models.FieldMonthlyIncome, rec.MonthlyIncome, ex.MonthlyIncome, turn, &events)
	out.MonthlyDebt = mergeAmount(models.FieldMonthlyDebt, rec.MonthlyDebt, ex.MonthlyDebt, turn, &events)
	out.LoanAmount = mergeAmount(models.FieldLoanAmount, rec.LoanAmount, ex.LoanAmount, turn, &events)
	out.EmploymentStatus = mergeEnum(models.FieldEmploymentStatus, rec.EmploymentStatus, ex.EmploymentStatus, turn, &events)
	out.CreditScoreBand = mergeEnum(models.FieldCreditScoreBand, rec.CreditScoreBand, ex.CreditScoreBand, turn, &events)

	return out, events
}

func mergeAmount(f models.Field, cur *models.Tagged[decimal.Decimal], cand *models.Candidate[decimal.Decimal], turn int, events *[]models.MergeEvent) *models.Tagged[decimal.Decimal] {
	return mergeField(f, cur, cand, turn, events,
		func(a, b decimal.Decimal) bool { return a.Equal(b) },
		func(v decimal.Decimal) string { return v.StringFixed(2) },
	)
}

func mergeEnum[T ~string](f models.Field, cur *models.Tagged[T], cand *models.Candidate[T], turn int, events *[]models.MergeEvent) *models.Tagged[T] {
	return mergeField(f, cur, cand, turn, events,
		func(a, b T) bool { return a == b },
		func(v T) string { return string(v) },
	)
}

func mergeField[T any](
	f models.Field,
	cur *models.Tagged[T],
	cand *models.Candidate[T],
	turn int,
	events *[]models.MergeEvent,
	equal func(a, b T) bool,
	format func(T) string,
) *models.Tagged[T] {
	if cand == nil || cand.Source == models.SourceNone {
		return cur
	}

	ev := models.MergeEvent{Field: f, New: format(cand.Value), Source: cand.Source, Turn: turn}
	if cur != nil {
		if cand.Source < cur.Source {
			return cur
		}
		if cand.Source == cur.Source && equal(cand.Value, cur.Value) {
			return cur
		}
		ev.Old = format(cur.Value)
	}

	*events = append(*events, ev)
	return &models.Tagged[T]{Value: cand.Value, Source: cand.Source, UpdatedTurn: turn}
}

// IsComplete is true iff income, debt and loan amount are set and income is positive.
func IsComplete(rec models.ApplicantRecord) bool {
	return rec.MonthlyIncome != nil &&
		rec.MonthlyDebt != nil &&
		rec.LoanAmount != nil &&
		rec.MonthlyIncome.Value.IsPositive()
}

// CompletenessFraction is the share of the five fields that are set.
func CompletenessFraction(rec models.ApplicantRecord) float64 {
	set := 0
	for _, f := range models.AllFields {
		if rec.IsSet(f) {
			set++
		}
	}
	return float64(set) / float64(len(models.AllFields))
}

// MissingFields lists unset fields in question order.
func MissingFields(rec models.ApplicantRecord) []models.Field {
	var missing []models.Field
	for _, f := range models.AllFields {
		if !rec.IsSet(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// MissingRequired lists unset required fields.
func MissingRequired(rec models.ApplicantRecord) []models.Field {
	var missing []models.Field
	for _, f := range RequiredFields {
		if !rec.IsSet(f) {
			missing = append(missing, f)
		}
	}
	return missing
}

// NextQuestion returns the first missing field, or false when all are set.
func NextQuestion(rec models.ApplicantRecord) (models.Field, bool) {
	missing := MissingFields(rec)
	if len(missing) == 0 {
		return "", false
	}
	return missing[0], true
}

// Question is the prompt used to ask for f.
func Question(f models.Field) string {
	switch f {
	case models.FieldMonthlyIncome:
		return "What is your gross monthly income?"
	case models.FieldMonthlyDebt:
		return "How much do you pay each month toward existing debts such as credit cards, car or student loans?"
	case models.FieldLoanAmount:
		return "How much would you like to borrow?"
	case models.FieldEmploymentStatus:
		return "What is your current employment status (full-time, part-time, self-employed, retired)?"
	case models.FieldCreditScoreBand:
		return "Do you know your approximate credit score?"
	default:
		return ""
	}
}
