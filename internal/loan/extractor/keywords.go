package extractor

import (
	"regexp"
	"strings"

	"loan-assistant/internal/models"
)

type keywordRule[T any] struct {
	re    *regexp.Regexp
	value T
}

// Rules are applied in order and each match is blanked before the next
// rule runs, so "self-employed" never also reads as "employed".
var employmentRules = []keywordRule[models.EmploymentStatus]{
	{regexp.MustCompile(`\b(?:unemployed|not working|not employed|no job|jobless|between jobs|laid off|lost my job|out of work)\b`), models.EmploymentUnemployed},
	{regexp.MustCompile(`\b(?:retired|retiree|pensioner|on (?:a )?pension)\b`), models.EmploymentRetired},
	{regexp.MustCompile(`\b(?:self[- ]employed|(?:(?:i )?work(?:ing)? as an? )?(?:freelanc\w*|contractor|consultant)|(?:run|own|have) (?:a |my own |my )?business|business owner)\b`), models.EmploymentSelfEmployed},
	{regexp.MustCompile(`\b(?:(?:employed |work(?:ing)? )?part[- ]time(?: job| employed| basis)?)\b`), models.EmploymentPartTime},
	{regexp.MustCompile(`\b(?:(?:employed |work(?:ing)? )?full[- ]time(?: job| employed| basis)?|salaried|employed|permanent (?:job|position|role)|(?:i|we) work (?:at|for|as)|working (?:at|for|as))\b`), models.EmploymentFullTime},
}

var (
	employmentTopicRe = regexp.MustCompile(`\b(?:job|work|working|employ\w*|occupation|profession)\b`)

	creditWordRules = []keywordRule[models.CreditBand]{
		{regexp.MustCompile(`\b(?:excellent|exceptional|outstanding|very good|great)\b`), models.CreditExcellent},
		{regexp.MustCompile(`\b(?:good|decent|solid)\b`), models.CreditGood},
		{regexp.MustCompile(`\b(?:fair|average|okay|ok|medium|moderate)\b`), models.CreditFair},
		{regexp.MustCompile(`\b(?:poor|bad|low|terrible|weak)\b`), models.CreditPoor},
	}
	creditUnknownRe = regexp.MustCompile(`\b(?:(?:don'?t|do not) know|not sure|no idea|never checked|unsure)\b`)

	zeroDebtRe = regexp.MustCompile(`\b(?:no debts?|debt[- ]free|(?:don'?t|do not) have any debts?|(?:don'?t|do not) owe anything|owe nothing|no (?:monthly )?(?:payments|emis?)|zero debts?|no loans|debts? (?:is|are) (?:zero|none|nil|nothing))\b`)
	// bareNoneRe is a whole-message "none", read as zero debt only when debt
	// was the question.
	bareNoneRe = regexp.MustCompile(`^\s*(?:(?:none|nothing|zero|nil|nope)\b[\s,.!]*)+(?:at all|whatsoever)?[\s.!]*$`)

	correctionRe = regexp.MustCompile(`\b(?:actually|sorry|i meant|i mean|correction|instead|my mistake)\b`)
	loanIntentRe = regexp.MustCompile(`\b(?:loan|apply|qualify|eligible|eligibility|approval|approved|borrow|mortgage)\b`)
)

// matchOrdered returns the distinct values whose rules match s, in rule order.
func matchOrdered[T comparable](s string, rules []keywordRule[T]) []T {
	var out []T
	for _, r := range rules {
		hit := false
		s = r.re.ReplaceAllStringFunc(s, func(m string) string {
			hit = true
			return strings.Repeat(" ", len(m))
		})
		if hit && !contains(out, r.value) {
			out = append(out, r.value)
		}
	}
	return out
}

func contains[T comparable](xs []T, v T) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func guessIntent(lower string, extracted int) models.Intent {
	switch {
	case extracted > 0 && correctionRe.MatchString(lower):
		return models.IntentCorrection
	case loanIntentRe.MatchString(lower):
		return models.IntentLoanApplication
	case extracted > 0:
		return models.IntentProvideInfo
	default:
		return models.IntentSmalltalk
	}
}
