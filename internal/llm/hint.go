package llm

import (
	"encoding/json"
	"regexp"
	"strings"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/validation"
	"loan-assistant/internal/models"
)

var fencedJSONRe = regexp.MustCompile("(?s)```(?:json|JSON)\\s*\\n?(.*?)```")

var hintSchema = validation.MustCompile(`{
  "type": "object",
  "properties": {
    "monthly_income":    {"type": ["number", "null"]},
    "monthly_debt":      {"type": ["number", "null"]},
    "loan_amount":       {"type": ["number", "null"]},
    "employment_status": {"enum": ["employed_full_time", "employed_part_time", "self_employed", "unemployed", "retired", "unknown", null]},
    "credit_score":      {"type": ["integer", "null"]},
    "credit_score_band": {"enum": ["excellent", "good", "fair", "poor", "unknown", null]}
  }
}`)

// ParseReply splits a raw model reply into the user-visible text and the
// optional entity hint. Every fenced json block is removed from the text;
// the last one is the hint. A hint that fails the schema is dropped and
// reported as ENTITY_HINT_INVALID next to the still-usable text.
func ParseReply(raw string) (string, *models.EntityHint, error) {
	blocks := fencedJSONRe.FindAllStringSubmatch(raw, -1)
	text := strings.TrimSpace(fencedJSONRe.ReplaceAllString(raw, ""))
	if len(blocks) == 0 {
		return text, nil, nil
	}

	body := []byte(strings.TrimSpace(blocks[len(blocks)-1][1]))
	res, err := hintSchema.ValidateJSON(body)
	if err != nil {
		return text, nil, errors.NewEntityHintInvalidError(err.Error())
	}
	if !res.Valid {
		return text, nil, errors.NewEntityHintInvalidError(strings.Join(res.GetErrorMessages(), "; "))
	}

	var hint models.EntityHint
	if err := json.Unmarshal(body, &hint); err != nil {
		return text, nil, errors.NewEntityHintInvalidError(err.Error())
	}
	if hint == (models.EntityHint{}) {
		return text, nil, nil
	}
	return text, &hint, nil
}
