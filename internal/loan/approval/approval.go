// Package approval is the deterministic debt-to-income approval policy.
package approval

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"loan-assistant/internal/loan/applicant"
	"loan-assistant/internal/models"
)

var (
	// ApprovedMaxDTI and ConditionalMaxDTI are inclusive upper bounds, in percent.
	ApprovedMaxDTI    = decimal.NewFromInt(36)
	ConditionalMaxDTI = decimal.NewFromInt(43)

	// MinimumMonthlyIncome below which an application is always rejected.
	MinimumMonthlyIncome = decimal.NewFromInt(1000)

	hundred = decimal.NewFromInt(100)
)

// DTI returns debt/income*100 rounded half-up to one decimal place.
// income must be positive.
func DTI(debt, income decimal.Decimal) decimal.Decimal {
	return debt.Mul(hundred).DivRound(income, 1)
}

// Decide evaluates rec. It is pure: the same record always yields an
// equal Decision.
func Decide(rec models.ApplicantRecord) models.Decision {
	if !applicant.IsComplete(rec) {
		missing := applicant.MissingRequired(rec)
		reason := "monthly income must be greater than zero"
		if len(missing) > 0 {
			reason = "missing required information: " + joinLabels(missing)
		}
		return models.Decision{
			Status:          models.DecisionIncomplete,
			Reasons:         []string{reason},
			Recommendations: []string{"Please provide all required information to proceed"},
			MissingFields:   missing,
		}
	}

	income := rec.MonthlyIncome.Value
	dti := DTI(rec.MonthlyDebt.Value, income)
	dtiText := dti.StringFixed(1)

	var (
		status  models.DecisionStatus
		reasons []string
	)
	switch {
	case dti.LessThanOrEqual(ApprovedMaxDTI):
		status = models.DecisionApproved
		reasons = append(reasons, fmt.Sprintf("debt-to-income ratio of %s%% is within the %s%% approval threshold", dtiText, ApprovedMaxDTI))
	case dti.LessThanOrEqual(ConditionalMaxDTI):
		status = models.DecisionConditional
		reasons = append(reasons, fmt.Sprintf("debt-to-income ratio of %s%% is above %s%% and requires manual review", dtiText, ApprovedMaxDTI))
	default:
		status = models.DecisionRejected
		reasons = append(reasons, fmt.Sprintf("debt-to-income ratio of %s%% exceeds the %s%% maximum", dtiText, ConditionalMaxDTI))
	}

	incomeGate := income.LessThan(MinimumMonthlyIncome)
	if incomeGate {
		status = models.DecisionRejected
		reasons = append(reasons, fmt.Sprintf("monthly income of %s is below the minimum requirement of %s",
			income.StringFixed(2), MinimumMonthlyIncome.StringFixed(2)))
	}

	switch emp := rec.EmploymentStatus; {
	case emp == nil || emp.Value == models.EmploymentUnknown:
		reasons = append(reasons, "employment status was not provided and was not considered")
	case emp.Value == models.EmploymentUnemployed:
		status = models.DecisionRejected
		reasons = append(reasons, "applicant must have employment or another income source")
	}

	poorCredit := false
	switch band := rec.CreditScoreBand; {
	case band == nil || band.Value == models.CreditUnknown:
		reasons = append(reasons, "credit score was not provided and was not considered")
	case band.Value == models.CreditPoor:
		poorCredit = true
		if status == models.DecisionApproved {
			status = models.DecisionConditional
		}
		reasons = append(reasons, "credit score is below preferred range")
	}

	recs := recommendations(status, dtiText, incomeGate)
	if poorCredit {
		recs = append(recs, "Work on improving credit score for better terms")
	}

	return models.Decision{
		Status:          status,
		DTI:             &dti,
		Reasons:         reasons,
		Recommendations: recs,
	}
}

func recommendations(status models.DecisionStatus, dtiText string, incomeGate bool) []string {
	switch status {
	case models.DecisionApproved:
		return []string{
			"Proceed with document submission",
			"Upload proof of income (recent pay stubs)",
			"Upload proof of identity",
			"Submit bank statements for the last 2 months",
		}
	case models.DecisionConditional:
		return []string{
			"Application requires manual underwriting review",
			"Consider reducing monthly debt obligations",
			"Provide additional documentation of income stability",
			"A co-signer might improve approval chances",
		}
	default:
		recs := []string{
			"Reduce monthly debt payments before reapplying",
			"Consider a smaller loan amount",
			fmt.Sprintf("Target a debt-to-income ratio below %s%% (currently %s%%)", ConditionalMaxDTI, dtiText),
		}
		if incomeGate {
			recs = append([]string{"Increase gross monthly income to at least " + MinimumMonthlyIncome.StringFixed(2)}, recs...)
		}
		return recs
	}
}

func joinLabels(fields []models.Field) string {
	labels := make([]string, len(fields))
	for i, f := range fields {
		labels[i] = f.Label()
	}
	return strings.Join(labels, ", ")
}
