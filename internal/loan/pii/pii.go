// Package pii replaces personal data in user text with numbered placeholders
// before it leaves the process, and restores it on the way back.
package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Category string

const (
	CategorySSN           Category = "SSN"
	CategoryCreditCard    Category = "CREDIT_CARD"
	CategoryAccountNumber Category = "ACCOUNT_NUMBER"
	CategoryRoutingNumber Category = "ROUTING_NUMBER"
	CategoryEmail         Category = "EMAIL"
	CategoryPhone         Category = "PHONE"
	CategoryAddress       Category = "ADDRESS"
)

type pattern struct {
	category Category
	re       *regexp.Regexp
	// group is the submatch that is masked; 0 masks the whole match.
	group int
	// accept, when set, vets each whole match before it is masked.
	accept func(match string) bool
}

// patterns run in this order; a span masked by an earlier category is never
// seen by a later one.
var patterns = []pattern{
	{category: CategorySSN, re: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{category: CategoryCreditCard, re: regexp.MustCompile(`\b(?:\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}|\d{4}[-\s]?\d{6}[-\s]?\d{5})\b`)},
	{category: CategoryAccountNumber, re: regexp.MustCompile(`(?i)\b(?:account|acct)(?:\s+(?:number|num|no\.?))?[\s#:.]*(\d{6,18})\b`), group: 1},
	{category: CategoryRoutingNumber, re: regexp.MustCompile(`(?i)\b(?:routing|aba)(?:\s+(?:number|num|no\.?))?[\s#:.]*(\d{9})\b`), group: 1},
	{category: CategoryEmail, re: regexp.MustCompile(`(?i)\b[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}\b`)},
	{category: CategoryPhone, re: regexp.MustCompile(`(?:\+?1[-.\s]?)?(?:\(\d{3}\)\s?|\b\d{3}[-.\s]?)\d{3}[-.\s]?\d{4}\b`)},
	{
		category: CategoryAddress,
		re:       regexp.MustCompile(`(?i)\b\d{1,6}\s+(?:[a-z0-9.'-]+\s+){1,3}(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr|court|ct|way|place|pl|terrace|highway|hwy)\b\.?`),
		accept:   streetLike,
	},
}

// notStreetWords never appear in a street name; a match containing one is a
// sentence like "50000 to buy a place".
var notStreetWords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "for": true, "of": true,
	"on": true, "in": true, "at": true, "my": true, "our": true, "your": true,
	"his": true, "her": true, "their": true, "and": true, "or": true, "with": true,
	"buy": true, "get": true, "pay": true, "need": true, "want": true, "rent": true,
	"per": true, "each": true, "from": true, "by": true, "into": true, "is": true,
}

// genericSuffixes also end ordinary phrases, so they need a capitalised
// street name in front.
var genericSuffixes = map[string]bool{"way": true, "place": true, "pl": true}

func streetLike(match string) bool {
	words := strings.Fields(strings.TrimSuffix(match, "."))
	if len(words) < 3 {
		return false
	}
	name := words[1 : len(words)-1]
	for _, w := range name {
		if notStreetWords[strings.ToLower(w)] {
			return false
		}
	}
	if genericSuffixes[strings.ToLower(words[len(words)-1])] {
		r, _ := utf8.DecodeRuneInString(name[0])
		return unicode.IsUpper(r)
	}
	return true
}

var placeholderRe = regexp.MustCompile(`<[A-Z_]+_\d+>`)

// Masker implements the masking collaborator used by the conversation
// controller.
type Masker struct{}

func New() *Masker { return &Masker{} }

func (*Masker) Mask(text string) (string, map[string]string) { return Mask(text) }

func (*Masker) Unmask(masked string, restore map[string]string) string {
	return Unmask(masked, restore)
}

// Mask returns text with every protected span replaced by <CATEGORY_n>,
// numbered from 1 per category in order of appearance, and the map needed to
// restore the originals.
func Mask(text string) (string, map[string]string) {
	restore := make(map[string]string)
	for _, p := range patterns {
		text = maskCategory(text, p, restore)
	}
	return text, restore
}

func maskCategory(text string, p pattern, restore map[string]string) string {
	matches := findMatches(text, p)
	if len(matches) == 0 {
		return text
	}

	var b strings.Builder
	last := 0
	n := 0
	for _, m := range matches {
		start, end := m[2*p.group], m[2*p.group+1]
		if start < 0 || insidePlaceholder(text, start, end) {
			continue
		}
		n++
		ph := fmt.Sprintf("<%s_%d>", p.category, n)
		restore[ph] = text[start:end]
		b.WriteString(text[last:start])
		b.WriteString(ph)
		last = end
	}
	b.WriteString(text[last:])
	return b.String()
}

// findMatches returns the submatch indexes of p in text. A match refused by
// p.accept does not hide a later match that starts after its leading number.
func findMatches(text string, p pattern) [][]int {
	if p.accept == nil {
		return p.re.FindAllStringSubmatchIndex(text, -1)
	}
	var out [][]int
	for off := 0; off < len(text); {
		m := p.re.FindStringSubmatchIndex(text[off:])
		if m == nil {
			break
		}
		for i := range m {
			if m[i] >= 0 {
				m[i] += off
			}
		}
		if p.accept(text[m[0]:m[1]]) {
			out = append(out, m)
			off = m[1]
			continue
		}
		off = m[0] + 1
		for off < len(text) && text[off] >= '0' && text[off] <= '9' {
			off++
		}
	}
	return out
}

func insidePlaceholder(text string, start, end int) bool {
	for _, loc := range placeholderRe.FindAllStringIndex(text, -1) {
		if start < loc[1] && loc[0] < end {
			return true
		}
	}
	return false
}

// Unmask puts the original values back. Placeholders absent from restore are
// left as they are.
func Unmask(masked string, restore map[string]string) string {
	if len(restore) == 0 {
		return masked
	}
	return placeholderRe.ReplaceAllStringFunc(masked, func(ph string) string {
		if orig, ok := restore[ph]; ok {
			return orig
		}
		return ph
	})
}

// Categories lists the categories present in a restore map, sorted.
func Categories(restore map[string]string) []Category {
	seen := make(map[Category]bool)
	for ph := range restore {
		if i := strings.LastIndexByte(ph, '_'); i > 1 {
			seen[Category(ph[1:i])] = true
		}
	}
	out := make([]Category, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
