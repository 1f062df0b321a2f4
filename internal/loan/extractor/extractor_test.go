package extractor

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/models"
)

func f64(v float64) *float64 { return &v }
func str(v string) *string    { return &v }
func intp(v int) *int         { return &v }

func TestExtract_Amounts(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		opts       Options
		wantIncome string
		wantDebt   string
		wantLoan   string
	}{
		{name: "currency and comma grouping", text: "I make $6,000/month", wantIncome: "6000.00"},
		{name: "shorthand yearly income", text: "I earn 72k a year", wantIncome: "6000.00"},
		{name: "yearly slash marker", text: "my salary is 90,000/yr", wantIncome: "7500.00"},
		{name: "lakh loan", text: "I need a loan of 2 lakh", wantLoan: "200000.00"},
		{name: "indian grouping", text: "looking to borrow ₹2,00,000", wantLoan: "200000.00"},
		{name: "decimal shorthand", text: "my take-home is 5.5k", wantIncome: "5500.00"},
		{
			name:       "three fields in one message",
			text:       "I make 5000 a month and pay about 1200 on my car loan, and I need 20000",
			wantIncome: "5000.00",
			wantDebt:   "1200.00",
			wantLoan:   "20000.00",
		},
		{name: "debt cue beats loan cue", text: "my student loan payments are 450", wantDebt: "450.00"},
		{name: "bare amount goes to expected field", text: "around 3500", opts: Options{Expected: models.FieldMonthlyDebt}, wantDebt: "3500.00"},
		{name: "bare amount without expected field is dropped", text: "around 3500"},
		{name: "durations are not amounts", text: "I need 20000 for 5 years", wantLoan: "20000.00"},
		{name: "percent is not an amount", text: "I need 20000 at 8%", wantLoan: "20000.00"},
		{name: "zero debt phrase", text: "I have no debt", wantDebt: "0.00"},
		{name: "debt is zero", text: "my debt is zero", wantDebt: "0.00"},
		{name: "debts are none", text: "debts are none", wantDebt: "0.00"},
		{name: "owe nothing", text: "I owe nothing", wantDebt: "0.00"},
		{name: "bare none answers the debt question", text: "None.", opts: Options{Expected: models.FieldMonthlyDebt}, wantDebt: "0.00"},
		{name: "bare nothing at all answers the debt question", text: "nothing at all", opts: Options{Expected: models.FieldMonthlyDebt}, wantDebt: "0.00"},
		{name: "bare none means nothing for other questions", text: "none", opts: Options{Expected: models.FieldLoanAmount}},
		{name: "phone digits ignored", text: "call me at 555-123-4567, I make 5000", wantIncome: "5000.00"},
		{name: "currency word", text: "my income is rs 45000", wantIncome: "45000.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Extract(tt.text, nil, tt.opts)
			assertAmount(t, tt.wantIncome, ex.MonthlyIncome)
			assertAmount(t, tt.wantDebt, ex.MonthlyDebt)
			assertAmount(t, tt.wantLoan, ex.LoanAmount)
		})
	}
}

func assertAmount(t *testing.T, want string, got *models.Candidate[decimal.Decimal]) {
	t.Helper()
	if want == "" {
		assert.Nil(t, got)
		return
	}
	require.NotNil(t, got)
	assert.Equal(t, want, got.Value.StringFixed(2))
	assert.Equal(t, models.SourceUserStated, got.Source)
}

func tagged(v int64, turn int) *models.Tagged[decimal.Decimal] {
	return &models.Tagged[decimal.Decimal]{Value: decimal.NewFromInt(v), Source: models.SourceUserStated, UpdatedTurn: turn}
}

func TestExtract_CorrectionRouting(t *testing.T) {
	incomeAndDebt := models.ApplicantRecord{MonthlyIncome: tagged(6000, 1), MonthlyDebt: tagged(1800, 2)}

	tests := []struct {
		name          string
		text          string
		hint          *models.EntityHint
		opts          Options
		wantIncome    string
		wantDebt      string
		wantLoan      string
		wantAmbiguous []models.Field
	}{
		{
			name:       "replaces the only stored amount",
			text:       "actually $6500",
			opts:       Options{Expected: models.FieldMonthlyDebt, Record: models.ApplicantRecord{MonthlyIncome: tagged(6000, 1)}},
			wantIncome: "6500",
		},
		{
			name:       "picks the stored amount of similar size",
			text:       "actually $6500",
			opts:       Options{Expected: models.FieldLoanAmount, Record: incomeAndDebt},
			wantIncome: "6500",
		},
		{
			name:     "smaller correction goes to debt",
			text:     "sorry, I meant 1500",
			opts:     Options{Expected: models.FieldLoanAmount, Record: incomeAndDebt},
			wantDebt: "1500",
		},
		{
			name:     "yearly correction compares monthly values",
			text:     "actually 21,600 a year",
			opts:     Options{Expected: models.FieldLoanAmount, Record: incomeAndDebt},
			wantDebt: "1800",
		},
		{
			name:     "no similar stored amount answers the open question",
			text:     "actually 30000",
			opts:     Options{Expected: models.FieldLoanAmount, Record: incomeAndDebt},
			wantLoan: "30000",
		},
		{
			name: "several similar amounts are ambiguous",
			text: "actually 5500",
			opts: Options{
				Expected: models.FieldMonthlyDebt,
				Record:   models.ApplicantRecord{MonthlyIncome: tagged(6000, 1), LoanAmount: tagged(5000, 2)},
			},
			wantAmbiguous: []models.Field{models.FieldMonthlyIncome, models.FieldLoanAmount},
		},
		{
			name: "ambiguous correction falls back to the hint",
			text: "actually 5500",
			hint: &models.EntityHint{LoanAmount: f64(5500)},
			opts: Options{
				Record: models.ApplicantRecord{MonthlyIncome: tagged(6000, 1), LoanAmount: tagged(5000, 2)},
			},
			wantLoan:      "5500",
			wantAmbiguous: []models.Field{models.FieldMonthlyIncome, models.FieldLoanAmount},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Extract(tt.text, tt.hint, tt.opts)
			for _, c := range []struct {
				want string
				got  *models.Candidate[decimal.Decimal]
			}{{tt.wantIncome, ex.MonthlyIncome}, {tt.wantDebt, ex.MonthlyDebt}, {tt.wantLoan, ex.LoanAmount}} {
				if c.want == "" {
					assert.Nil(t, c.got)
					continue
				}
				require.NotNil(t, c.got)
				assert.Equal(t, c.want, c.got.Value.String())
			}
			for _, f := range tt.wantAmbiguous {
				assert.True(t, ex.HasIssue(f, errors.ErrCodeExtractionAmbiguous), f)
			}
			if tt.hint != nil && tt.wantLoan != "" {
				assert.Equal(t, models.SourceInferred, ex.LoanAmount.Source)
			}
		})
	}
}

func TestExtract_Precedence(t *testing.T) {
	t.Run("single direct value beats hint", func(t *testing.T) {
		ex := Extract("I make 4000", &models.EntityHint{MonthlyIncome: f64(4100)}, Options{})
		require.NotNil(t, ex.MonthlyIncome)
		assert.Equal(t, "4000", ex.MonthlyIncome.Value.String())
		assert.Equal(t, models.SourceUserStated, ex.MonthlyIncome.Source)
	})

	t.Run("ambiguous direct values fall back to hint", func(t *testing.T) {
		ex := Extract("my income is 5000 or 5500", &models.EntityHint{MonthlyIncome: f64(5200)}, Options{})
		require.NotNil(t, ex.MonthlyIncome)
		assert.Equal(t, "5200", ex.MonthlyIncome.Value.String())
		assert.Equal(t, models.SourceInferred, ex.MonthlyIncome.Source)
		assert.True(t, ex.HasIssue(models.FieldMonthlyIncome, errors.ErrCodeExtractionAmbiguous))
	})

	t.Run("ambiguous without hint is dropped", func(t *testing.T) {
		ex := Extract("my income is 5000 or 5500", nil, Options{})
		assert.Nil(t, ex.MonthlyIncome)
		assert.True(t, ex.HasIssue(models.FieldMonthlyIncome, errors.ErrCodeExtractionAmbiguous))
	})

	t.Run("repeated equal values are not ambiguous", func(t *testing.T) {
		ex := Extract("I make 5000, yes my income is 5,000", nil, Options{})
		require.NotNil(t, ex.MonthlyIncome)
		assert.Empty(t, ex.Issues)
	})

	t.Run("hint alone is inferred", func(t *testing.T) {
		ex := Extract("hello there", &models.EntityHint{
			LoanAmount:       f64(15000),
			EmploymentStatus: str("retired"),
			CreditScore:      intp(700),
		}, Options{})
		require.NotNil(t, ex.LoanAmount)
		assert.Equal(t, models.SourceInferred, ex.LoanAmount.Source)
		require.NotNil(t, ex.EmploymentStatus)
		assert.Equal(t, models.EmploymentRetired, ex.EmploymentStatus.Value)
		require.NotNil(t, ex.CreditScoreBand)
		assert.Equal(t, models.CreditGood, ex.CreditScoreBand.Value)
	})
}

func TestExtract_InvalidInputValue(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		hint  *models.EntityHint
		field models.Field
	}{
		{"negative income", "my income is -500", &models.EntityHint{MonthlyIncome: f64(500)}, models.FieldMonthlyIncome},
		{"zero loan", "I need a loan of 0", nil, models.FieldLoanAmount},
		{"credit score above range", "my cibil score is 910", nil, models.FieldCreditScoreBand},
		{"credit score below range", "credit score 250", nil, models.FieldCreditScoreBand},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex := Extract(tt.text, tt.hint, Options{})
			assert.True(t, ex.HasIssue(tt.field, errors.ErrCodeInvalidInputValue), "issues: %+v", ex.Issues)
			assert.Equal(t, 0, ex.Count())
		})
	}
}

func TestExtract_InvalidHintValues(t *testing.T) {
	ex := Extract("ok", &models.EntityHint{MonthlyIncome: f64(-10), CreditScore: intp(999)}, Options{})
	assert.Nil(t, ex.MonthlyIncome)
	assert.Nil(t, ex.CreditScoreBand)
	assert.True(t, ex.HasIssue(models.FieldMonthlyIncome, errors.ErrCodeEntityHintInvalid))
	assert.True(t, ex.HasIssue(models.FieldCreditScoreBand, errors.ErrCodeEntityHintInvalid))
}

func TestExtract_CreditScore(t *testing.T) {
	tests := []struct {
		text string
		opts Options
		want models.CreditBand
	}{
		{"my credit score is 579", Options{}, models.CreditPoor},
		{"my credit score is 580", Options{}, models.CreditFair},
		{"my credit score is 720", Options{}, models.CreditGood},
		{"fico 740", Options{}, models.CreditExcellent},
		{"my credit is excellent", Options{}, models.CreditExcellent},
		{"my credit score is very good", Options{}, models.CreditExcellent},
		{"credit rating is pretty bad", Options{}, models.CreditPoor},
		{"it's about 690", Options{Expected: models.FieldCreditScoreBand}, models.CreditGood},
		{"average I think", Options{Expected: models.FieldCreditScoreBand}, models.CreditFair},
		{"I don't know my credit score", Options{}, models.CreditUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ex := Extract(tt.text, nil, tt.opts)
			require.NotNil(t, ex.CreditScoreBand)
			assert.Equal(t, tt.want, ex.CreditScoreBand.Value)
		})
	}

	ex := Extract("my credit card bill is 300", nil, Options{})
	assert.Nil(t, ex.CreditScoreBand)
	require.NotNil(t, ex.MonthlyDebt)
	assert.Equal(t, "300", ex.MonthlyDebt.Value.String())
}

func TestExtract_Employment(t *testing.T) {
	tests := []struct {
		text string
		want models.EmploymentStatus
		src  models.Source
	}{
		{"I'm self-employed", models.EmploymentSelfEmployed, models.SourceUserStated},
		{"I work as a freelancer", models.EmploymentSelfEmployed, models.SourceUserStated},
		{"I work part-time at a cafe", models.EmploymentPartTime, models.SourceUserStated},
		{"I'm employed part time", models.EmploymentPartTime, models.SourceUserStated},
		{"I work full time at acme", models.EmploymentFullTime, models.SourceUserStated},
		{"I'm salaried", models.EmploymentFullTime, models.SourceUserStated},
		{"I am retired", models.EmploymentRetired, models.SourceUserStated},
		{"currently between jobs", models.EmploymentUnemployed, models.SourceUserStated},
		{"I'm unemployed", models.EmploymentUnemployed, models.SourceUserStated},
		{"my job is complicated", models.EmploymentUnknown, models.SourceInferred},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			ex := Extract(tt.text, nil, Options{})
			require.NotNil(t, ex.EmploymentStatus)
			assert.Equal(t, tt.want, ex.EmploymentStatus.Value)
			assert.Equal(t, tt.src, ex.EmploymentStatus.Source)
		})
	}

	t.Run("no keyword and no topic", func(t *testing.T) {
		assert.Nil(t, Extract("hello", nil, Options{}).EmploymentStatus)
	})

	t.Run("conflicting keywords are ambiguous", func(t *testing.T) {
		ex := Extract("I'm retired but do some freelance work", nil, Options{})
		assert.Nil(t, ex.EmploymentStatus)
		assert.True(t, ex.HasIssue(models.FieldEmploymentStatus, errors.ErrCodeExtractionAmbiguous))
	})
}

func TestExtract_Intent(t *testing.T) {
	assert.Equal(t, models.IntentLoanApplication, Extract("Can I apply for a loan?", nil, Options{}).IntentGuess)
	assert.Equal(t, models.IntentSmalltalk, Extract("hi there", nil, Options{}).IntentGuess)
	assert.Equal(t, models.IntentProvideInfo, Extract("I make 5000", nil, Options{}).IntentGuess)
	assert.Equal(t, models.IntentSmalltalk, Extract("sorry, what?", nil, Options{}).IntentGuess)
}

func TestExtract_IsPure(t *testing.T) {
	text := "I make 5000 a month, owe 900 and need 25k"
	assert.Equal(t, Extract(text, nil, Options{}), Extract(text, nil, Options{}))
}
