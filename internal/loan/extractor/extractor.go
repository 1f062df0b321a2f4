// Package extractor turns free-form user text into typed applicant field
// candidates. Local parsing always runs first; a model-proposed hint is only
// a fallback at lower confidence.
package extractor

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/models"
)

var (
	two    = decimal.NewFromInt(2)
	twelve = decimal.NewFromInt(12)
)

// Options carries conversation context the text alone does not have.
type Options struct {
	// Expected is the field the assistant last asked about. A bare amount
	// with no cue word is attributed to it.
	Expected models.Field
	// Record is the applicant state before this message. A bare amount in a
	// correction ("actually 6500") is matched against it.
	Record models.ApplicantRecord
}

type collector struct {
	amounts    map[models.Field][]decimal.Decimal
	credit     []models.CreditBand
	creditIdk  bool
	employment []models.EmploymentStatus
	empTopic   bool
	invalid    map[models.Field]bool
	issues     []models.ExtractionIssue
}

func (c *collector) issue(f models.Field, code errors.ErrorCode, detail string) {
	c.issues = append(c.issues, models.ExtractionIssue{Field: f, Code: code, Detail: detail})
	if code == errors.ErrCodeInvalidInputValue {
		c.invalid[f] = true
	}
}

// Extract parses text. It never fails: unparseable spans are omitted and
// every soft problem is listed in Extraction.Issues.
func Extract(text string, hint *models.EntityHint, opts Options) models.Extraction {
	lower := scrubPII(strings.ToLower(text))
	c := &collector{
		amounts: make(map[models.Field][]decimal.Decimal),
		invalid: make(map[models.Field]bool),
	}

	var uncued []amount
	anyCreditCue := false
	for _, clause := range splitClauses(lower) {
		cues := findCues(clause)
		for _, a := range scanAmounts(clause) {
			f, ok := nearestCue(cues, a)
			if !ok {
				uncued = append(uncued, a)
				continue
			}
			c.addAmount(f, a)
		}

		if hasCue(cues, models.FieldCreditScoreBand) {
			anyCreditCue = true
			c.addCreditWords(clause)
		}
		if zeroDebtRe.MatchString(clause) {
			c.amounts[models.FieldMonthlyDebt] = append(c.amounts[models.FieldMonthlyDebt], decimal.Zero)
		}
	}

	correction := correctionRe.MatchString(lower)
	for _, a := range uncued {
		if correction {
			c.addCorrection(a, opts)
			continue
		}
		c.addBare(opts.Expected, a)
	}
	if !anyCreditCue && opts.Expected == models.FieldCreditScoreBand {
		c.addCreditWords(lower)
	}
	if opts.Expected == models.FieldMonthlyDebt && bareNoneRe.MatchString(lower) {
		c.amounts[models.FieldMonthlyDebt] = append(c.amounts[models.FieldMonthlyDebt], decimal.Zero)
	}

	c.employment = matchOrdered(lower, employmentRules)
	c.empTopic = employmentTopicRe.MatchString(lower)

	ex := c.resolve(hint)
	ex.IntentGuess = guessIntent(lower, ex.Count())
	return ex
}

// addBare attributes an amount with no cue word to the field the assistant
// asked about.
func (c *collector) addBare(expected models.Field, a amount) {
	switch expected {
	case models.FieldMonthlyIncome, models.FieldMonthlyDebt, models.FieldLoanAmount, models.FieldCreditScoreBand:
		c.addAmount(expected, a)
	}
}

// addCorrection attributes an uncued amount in a correction to the one stored
// field it plausibly replaces. With no plausible field it is an answer to the
// open question; with several it is ambiguous and left to the hint.
func (c *collector) addCorrection(a amount, opts Options) {
	targets := correctionTargets(opts.Record, a)
	switch len(targets) {
	case 0:
		c.addBare(opts.Expected, a)
	case 1:
		c.addAmount(targets[0], a)
	default:
		for _, f := range targets {
			c.issue(f, errors.ErrCodeExtractionAmbiguous, fmt.Sprintf("correction %s matches %d stored fields", a.value, len(targets)))
		}
	}
}

// correctionTargets lists the stored fields a corrected value could replace:
// amounts within a factor of two of the stored value, and the credit band
// when the value reads as a score.
func correctionTargets(rec models.ApplicantRecord, a amount) []models.Field {
	var out []models.Field
	near := func(f models.Field, stored *models.Tagged[decimal.Decimal], v decimal.Decimal) {
		if stored == nil || !stored.Value.IsPositive() || !v.IsPositive() {
			return
		}
		lo, hi := decimal.Min(stored.Value, v), decimal.Max(stored.Value, v)
		if hi.LessThanOrEqual(lo.Mul(two)) {
			out = append(out, f)
		}
	}
	monthly := a.value
	if a.yearly {
		monthly = monthly.Div(twelve).Round(2)
	}
	near(models.FieldMonthlyIncome, rec.MonthlyIncome, monthly)
	near(models.FieldMonthlyDebt, rec.MonthlyDebt, monthly)
	near(models.FieldLoanAmount, rec.LoanAmount, a.value)

	if rec.CreditScoreBand != nil && a.plain && a.value.IsInteger() {
		if _, ok := models.CreditBandForScore(int(a.value.IntPart())); ok {
			out = append(out, models.FieldCreditScoreBand)
		}
	}
	return out
}

func (c *collector) addAmount(f models.Field, a amount) {
	v := a.value
	switch f {
	case models.FieldCreditScoreBand:
		if !a.plain || !v.IsInteger() {
			c.issue(f, errors.ErrCodeInvalidInputValue, fmt.Sprintf("credit score %s is not a whole number", v))
			return
		}
		band, ok := models.CreditBandForScore(int(v.IntPart()))
		if !ok {
			c.issue(f, errors.ErrCodeInvalidInputValue, fmt.Sprintf("credit score %s outside %d-%d", v, models.MinCreditScore, models.MaxCreditScore))
			return
		}
		c.credit = append(c.credit, band)
		return

	case models.FieldMonthlyIncome, models.FieldMonthlyDebt:
		if a.yearly {
			v = v.Div(twelve).Round(2)
		}
	}

	if detail, ok := checkAmount(f, v); !ok {
		c.issue(f, errors.ErrCodeInvalidInputValue, detail)
		return
	}
	c.amounts[f] = append(c.amounts[f], v)
}

// checkAmount applies the sanity bounds: income and loan must be positive,
// debt must not be negative.
func checkAmount(f models.Field, v decimal.Decimal) (string, bool) {
	switch f {
	case models.FieldMonthlyDebt:
		if v.IsNegative() {
			return fmt.Sprintf("monthly debt %s is negative", v), false
		}
	default:
		if !v.IsPositive() {
			return fmt.Sprintf("%s %s must be greater than zero", f.Label(), v), false
		}
	}
	return "", true
}

func (c *collector) addCreditWords(s string) {
	c.credit = append(c.credit, matchOrdered(s, creditWordRules)...)
	if creditUnknownRe.MatchString(s) {
		c.creditIdk = true
	}
}

func (c *collector) resolve(hint *models.EntityHint) models.Extraction {
	h := c.convertHint(hint)
	ex := models.Extraction{}

	ex.MonthlyIncome = c.resolveAmount(models.FieldMonthlyIncome, h.income)
	ex.MonthlyDebt = c.resolveAmount(models.FieldMonthlyDebt, h.debt)
	ex.LoanAmount = c.resolveAmount(models.FieldLoanAmount, h.loan)

	ex.EmploymentStatus = choose(c, models.FieldEmploymentStatus, c.employment, h.employment,
		func(a, b models.EmploymentStatus) bool { return a == b })
	if ex.EmploymentStatus == nil && c.empTopic && len(c.employment) == 0 {
		ex.EmploymentStatus = &models.Candidate[models.EmploymentStatus]{Value: models.EmploymentUnknown, Source: models.SourceInferred}
	}

	ex.CreditScoreBand = choose(c, models.FieldCreditScoreBand, c.credit, h.credit,
		func(a, b models.CreditBand) bool { return a == b })
	if ex.CreditScoreBand == nil && c.creditIdk && len(c.credit) == 0 && !c.invalid[models.FieldCreditScoreBand] {
		ex.CreditScoreBand = &models.Candidate[models.CreditBand]{Value: models.CreditUnknown, Source: models.SourceInferred}
	}

	ex.Issues = c.issues
	return ex
}

func (c *collector) resolveAmount(f models.Field, hint *decimal.Decimal) *models.Candidate[decimal.Decimal] {
	return choose(c, f, c.amounts[f], hint, func(a, b decimal.Decimal) bool { return a.Equal(b) })
}

// choose applies precedence: one distinct direct value is user-stated;
// otherwise the hint, if any, is used as inferred. A field with an invalid
// direct value is left unset.
func choose[T any](c *collector, f models.Field, vals []T, hint *T, equal func(a, b T) bool) *models.Candidate[T] {
	var distinct []T
	for _, v := range vals {
		dup := false
		for _, d := range distinct {
			if equal(v, d) {
				dup = true
				break
			}
		}
		if !dup {
			distinct = append(distinct, v)
		}
	}

	if len(distinct) == 1 {
		return &models.Candidate[T]{Value: distinct[0], Source: models.SourceUserStated}
	}
	if len(distinct) > 1 {
		c.issue(f, errors.ErrCodeExtractionAmbiguous, fmt.Sprintf("%d distinct values", len(distinct)))
	}
	if c.invalid[f] || hint == nil {
		return nil
	}
	return &models.Candidate[T]{Value: *hint, Source: models.SourceInferred}
}

type hintValues struct {
	income, debt, loan *decimal.Decimal
	employment         *models.EmploymentStatus
	credit             *models.CreditBand
}

// convertHint converts the model hint, dropping values that fail the same
// sanity bounds as direct text.
func (c *collector) convertHint(hint *models.EntityHint) hintValues {
	var h hintValues
	if hint == nil {
		return h
	}

	amountOf := func(f models.Field, p *float64) *decimal.Decimal {
		if p == nil {
			return nil
		}
		v := decimal.NewFromFloat(*p).Round(2)
		if detail, ok := checkAmount(f, v); !ok {
			c.issues = append(c.issues, models.ExtractionIssue{Field: f, Code: errors.ErrCodeEntityHintInvalid, Detail: detail})
			return nil
		}
		return &v
	}
	h.income = amountOf(models.FieldMonthlyIncome, hint.MonthlyIncome)
	h.debt = amountOf(models.FieldMonthlyDebt, hint.MonthlyDebt)
	h.loan = amountOf(models.FieldLoanAmount, hint.LoanAmount)

	if hint.EmploymentStatus != nil {
		if e, ok := models.ParseEmploymentStatus(*hint.EmploymentStatus); ok {
			h.employment = &e
		}
	}

	switch {
	case hint.CreditScore != nil:
		if b, ok := models.CreditBandForScore(*hint.CreditScore); ok {
			h.credit = &b
		} else {
			c.issues = append(c.issues, models.ExtractionIssue{
				Field:  models.FieldCreditScoreBand,
				Code:   errors.ErrCodeEntityHintInvalid,
				Detail: fmt.Sprintf("hinted credit score %d outside %d-%d", *hint.CreditScore, models.MinCreditScore, models.MaxCreditScore),
			})
		}
	case hint.CreditScoreBand != nil:
		if b, ok := models.ParseCreditBand(*hint.CreditScoreBand); ok {
			h.credit = &b
		}
	}
	return h
}
