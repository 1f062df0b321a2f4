package pii

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMask(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		masked string
		raw    []string
	}{
		{
			name:   "ssn and phone",
			input:  "My SSN is 123-45-6789 and my phone is (555) 123-4567",
			masked: "My SSN is <SSN_1> and my phone is <PHONE_1>",
			raw:    []string{"123-45-6789", "(555) 123-4567"},
		},
		{
			name:   "email and phone",
			input:  "Contact me at john.doe@example.com or call 555-123-4567",
			masked: "Contact me at <EMAIL_1> or call <PHONE_1>",
			raw:    []string{"john.doe@example.com", "555-123-4567"},
		},
		{
			name:   "credit card",
			input:  "My credit card is 4532-1234-5678-9010",
			masked: "My credit card is <CREDIT_CARD_1>",
			raw:    []string{"4532-1234-5678-9010"},
		},
		{
			name:   "account and routing keep their cue words",
			input:  "Account number 123456789 routing 021000021",
			masked: "Account number <ACCOUNT_NUMBER_1> routing <ROUTING_NUMBER_1>",
			raw:    []string{"123456789", "021000021"},
		},
		{
			name:   "street address",
			input:  "I live at 123 Main Street and make $5000 monthly",
			masked: "I live at <ADDRESS_1> and make $5000 monthly",
			raw:    []string{"123 Main Street"},
		},
		{
			name:   "numbered per category in order of appearance",
			input:  "call 555-123-4567 or 555-987-6543",
			masked: "call <PHONE_1> or <PHONE_2>",
			raw:    []string{"555-123-4567", "555-987-6543"},
		},
		{
			name:   "amounts are untouched",
			input:  "I make $6,000 a month and need 2 lakh",
			masked: "I make $6,000 a month and need 2 lakh",
		},
		{
			name:   "amount before a generic place word",
			input:  "I need 50000 to buy a place",
			masked: "I need 50000 to buy a place",
		},
		{
			name:   "amount before a street word in a sentence",
			input:  "I spend 300 on the road each month",
			masked: "I spend 300 on the road each month",
		},
		{
			name:   "capitalised place name",
			input:  "we moved to 42 Elm Place last year",
			masked: "we moved to <ADDRESS_1> last year",
			raw:    []string{"42 Elm Place"},
		},
		{
			name:   "lowercase street suffix",
			input:  "send it to 7 oak lane please",
			masked: "send it to <ADDRESS_1> please",
			raw:    []string{"7 oak lane"},
		},
		{
			name:   "refused match does not hide the address after it",
			input:  "I pay 500 on 12 Main Street",
			masked: "I pay 500 on <ADDRESS_1>",
			raw:    []string{"12 Main Street"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked, restore := Mask(tt.input)
			assert.Equal(t, tt.masked, masked)
			assert.Len(t, restore, len(tt.raw))
			for _, r := range tt.raw {
				assert.NotContains(t, masked, r)
			}
			assert.Equal(t, tt.input, Unmask(masked, restore))
		})
	}
}

func TestMask_PlaceholdersAreUnique(t *testing.T) {
	masked, restore := Mask("ssn 123-45-6789, other ssn 987-65-4321, mail a@b.io")
	assert.Equal(t, "ssn <SSN_1>, other ssn <SSN_2>, mail <EMAIL_1>", masked)
	require.Len(t, restore, 3)
	assert.Equal(t, "123-45-6789", restore["<SSN_1>"])
	assert.Equal(t, "987-65-4321", restore["<SSN_2>"])
}

func TestUnmask_UnknownPlaceholderKept(t *testing.T) {
	assert.Equal(t, "hi <PHONE_9>", Unmask("hi <PHONE_9>", map[string]string{"<PHONE_1>": "555-123-4567"}))
	assert.Equal(t, "plain", Unmask("plain", nil))
}

func TestCategories(t *testing.T) {
	_, restore := Mask("reach me at a@b.io or 555-123-4567, ssn 123-45-6789")
	assert.Equal(t, []Category{CategoryEmail, CategoryPhone, CategorySSN}, Categories(restore))
	assert.Empty(t, Categories(nil))
}

func TestMasker(t *testing.T) {
	m := New()
	masked, restore := m.Mask("email me: jane@example.org")
	assert.Equal(t, "email me: <EMAIL_1>", masked)
	assert.Equal(t, "email me: jane@example.org", m.Unmask(masked, restore))
}
