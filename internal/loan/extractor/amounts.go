package extractor

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"loan-assistant/internal/models"
)

var (
	amountRe = regexp.MustCompile(`(-)?(\$|₹|€|£|rs\.?\s*|inr\s*|usd\s*)?(\d{1,3}(?:,\d{2,3})+|\d+)(\.\d+)?(?:\s*(k|thousand|lakhs?|lacs?|crores?|million|mn|m)\b)?`)

	// Amounts directly followed by one of these are counts or durations.
	notAmountAfterRe = regexp.MustCompile(`^\s*(?:%|percent\b|years?\b|yrs?\b|months?\b|mos?\b|weeks?\b|days?\b|hours?\b|hrs?\b|kids?\b|children\b|people\b|times\b)`)

	yearlyRe  = regexp.MustCompile(`\b(?:annual|annually|yearly|per year|a year|per annum|lpa)\b|/\s*(?:yr|year)\b`)
	monthlyRe = regexp.MustCompile(`\b(?:monthly|per month|a month|each month|every month)\b|/\s*(?:mo|month)\b`)

	clauseSplitRe = regexp.MustCompile(`[;!?\n]+|\.(?:\s+|$)|,\s+|\s+(?:and|but|while|plus)\s+`)

	piiSpanRes = []*regexp.Regexp{
		regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`),
		regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
		regexp.MustCompile(`\b\d{4}[-\s]\d{4}[-\s]\d{4}[-\s]\d{4}\b`),
		regexp.MustCompile(`(?:\+?\d{1,2}[-.\s])?\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`),
		regexp.MustCompile(`\b(?:account|acct|routing|aba)\b[\s#:.no]*\d{6,18}\b`),
	}
)

var unitMultipliers = map[string]decimal.Decimal{
	"k":        decimal.NewFromInt(1_000),
	"thousand": decimal.NewFromInt(1_000),
	"lakh":     decimal.NewFromInt(100_000),
	"lakhs":    decimal.NewFromInt(100_000),
	"lac":      decimal.NewFromInt(100_000),
	"lacs":     decimal.NewFromInt(100_000),
	"crore":    decimal.NewFromInt(10_000_000),
	"crores":   decimal.NewFromInt(10_000_000),
	"m":        decimal.NewFromInt(1_000_000),
	"mn":       decimal.NewFromInt(1_000_000),
	"million":  decimal.NewFromInt(1_000_000),
}

// amount is one numeric span found in a clause.
type amount struct {
	value  decimal.Decimal
	start  int
	end    int
	yearly bool
	// plain is a bare integer with no currency, unit or fraction, the only
	// shape accepted as a credit score.
	plain bool
}

// scrubPII blanks spans shaped like contact or account data so their digits
// are never read as amounts.
func scrubPII(s string) string {
	for _, re := range piiSpanRes {
		s = re.ReplaceAllStringFunc(s, func(m string) string {
			return strings.Repeat(" ", len(m))
		})
	}
	return s
}

func splitClauses(s string) []string {
	parts := clauseSplitRe.Split(s, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isYearly(clause string) bool {
	return yearlyRe.MatchString(clause) && !monthlyRe.MatchString(clause)
}

// scanAmounts finds every amount in clause, skipping digits embedded in
// words, dash-joined digit groups, long digit runs and counts or durations.
func scanAmounts(clause string) []amount {
	yearly := isYearly(clause)
	var out []amount

	for _, m := range amountRe.FindAllStringSubmatchIndex(clause, -1) {
		end := m[1]
		signed := m[2] >= 0
		hasCurrency := m[4] >= 0
		digits := clause[m[6]:m[7]]
		hasFrac := m[8] >= 0
		unit := ""
		if m[10] >= 0 {
			unit = clause[m[10]:m[11]]
		}

		if hasCurrency && isLetter(clause[m[4]]) && precededByWordChar(clause, m[4]) {
			// "rs" glued to a preceding word ("years 5") is not a currency.
			hasCurrency = false
			signed = false
		}

		leadStart := m[6]
		if signed {
			leadStart = m[2]
		} else if hasCurrency {
			leadStart = m[4]
		}
		start := leadStart

		if signed && start > 0 && !isSpace(clause[start-1]) {
			// "555-123" style groups.
			continue
		}
		if !signed && !hasCurrency && precededByWordChar(clause, start) {
			continue
		}
		if !signed && !hasCurrency && start > 0 && (clause[start-1] == '.' || clause[start-1] == ',' || clause[start-1] == '-') {
			continue
		}
		if end < len(clause)-1 && clause[end] == '-' && isDigit(clause[end+1]) {
			continue
		}
		plainDigits := strings.ReplaceAll(digits, ",", "")
		if len(plainDigits) >= 9 && !strings.Contains(digits, ",") {
			continue
		}
		if unit == "" && notAmountAfterRe.MatchString(clause[end:]) {
			continue
		}

		num := plainDigits
		if hasFrac {
			num += clause[m[8]:m[9]]
		}
		v, err := decimal.NewFromString(num)
		if err != nil {
			continue
		}
		if mult, ok := unitMultipliers[unit]; ok {
			v = v.Mul(mult)
		}
		if signed {
			v = v.Neg()
		}

		out = append(out, amount{
			value:  v,
			start:  start,
			end:    end,
			yearly: yearly,
			plain:  !hasCurrency && !hasFrac && unit == "" && !signed,
		})
	}
	return out
}

type cue struct {
	field models.Field
	start int
	end   int
}

var (
	debtCueRe   = regexp.MustCompile(`\b(?:debts?|owe|owes|owing|payments?|emis?|installments?|credit cards?|car loans?|auto loans?|student loans?|personal loans?|mortgage payments?|liabilities|obligations|(?:i|we) pay|paying|pay off)\b`)
	loanCueRe   = regexp.MustCompile(`\b(?:loan|loans|borrow|borrowing|need|needs|needed|looking for|mortgage|finance|financing|apply for|applying for|want|wanted)\b`)
	incomeCueRe = regexp.MustCompile(`\b(?:make|makes|making|made|earn|earns|earning|earnings|income|salary|salaries|paid|take[- ]home|gross|wages?|ctc)\b`)
	creditCueRe = regexp.MustCompile(`\b(?:credit score|credit rating|credit|score|cibil|fico|rating)\b`)
)

// findCues locates field cue words in clause. Loan, credit and income cues
// that overlap a debt phrase ("car loan", "credit card") are dropped.
func findCues(clause string) []cue {
	var cues []cue
	debt := debtCueRe.FindAllStringIndex(clause, -1)
	for _, d := range debt {
		cues = append(cues, cue{field: models.FieldMonthlyDebt, start: d[0], end: d[1]})
	}

	add := func(re *regexp.Regexp, f models.Field) {
		for _, m := range re.FindAllStringIndex(clause, -1) {
			if overlapsAny(m, debt) {
				continue
			}
			cues = append(cues, cue{field: f, start: m[0], end: m[1]})
		}
	}
	add(loanCueRe, models.FieldLoanAmount)
	add(creditCueRe, models.FieldCreditScoreBand)
	add(incomeCueRe, models.FieldMonthlyIncome)
	return cues
}

func hasCue(cues []cue, f models.Field) bool {
	for _, c := range cues {
		if c.field == f {
			return true
		}
	}
	return false
}

// nearestCue picks the cue closest to a, preferring a preceding cue on ties.
func nearestCue(cues []cue, a amount) (models.Field, bool) {
	best := -1
	bestDist := 0
	bestBefore := false
	for i, c := range cues {
		var dist int
		before := c.end <= a.start
		switch {
		case before:
			dist = a.start - c.end
		case c.start >= a.end:
			dist = c.start - a.end
		}
		if best == -1 || dist < bestDist || (dist == bestDist && before && !bestBefore) {
			best, bestDist, bestBefore = i, dist, before
		}
	}
	if best == -1 {
		return "", false
	}
	return cues[best].field, true
}

func overlapsAny(span []int, spans [][]int) bool {
	for _, s := range spans {
		if span[0] < s[1] && s[0] < span[1] {
			return true
		}
	}
	return false
}

func precededByWordChar(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isLetter(b byte) bool { return b >= 'a' && b <= 'z' }
func isDigit(b byte) bool  { return b >= '0' && b <= '9' }
func isSpace(b byte) bool  { return b == ' ' || b == '\t' }
