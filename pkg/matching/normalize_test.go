package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "lowercase and trim", input: "  Corin Blanchard ", want: "corin blanchard"},
		{name: "punctuation stripped", input: "O'Brien, Sean Jr.", want: "o brien sean jr"},
		{name: "whitespace collapsed", input: "Corin   \t Blanchard", want: "corin blanchard"},
		{name: "llc suffix stripped", input: "Starhouse Ventures LLC", want: "starhouse ventures"},
		{name: "inc suffix stripped", input: "Acme, Inc.", want: "acme"},
		{name: "foundation suffix stripped", input: "The Starhouse Foundation", want: "the starhouse"},
		{name: "stacked suffixes stripped", input: "Acme Inc LLC", want: "acme"},
		{name: "suffix word in middle kept", input: "Inc Magazine Subscriptions", want: "inc magazine subscriptions"},
		{name: "co suffix stripped", input: "Blanchard & Co", want: "blanchard"},
		{name: "ug suffix stripped", input: "Musterfirma UG", want: "musterfirma"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.input))
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "corin@example.org", NormalizeEmail(" Corin@Example.ORG "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestEmailDomain(t *testing.T) {
	assert.Equal(t, "example.org", EmailDomain("Corin@Example.org"))
	assert.Equal(t, "", EmailDomain("no-at-sign"))
	assert.Equal(t, "", EmailDomain("trailing@"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "formatted US number", input: "(303) 555-0189", want: "3035550189"},
		{name: "country code stripped", input: "+1 303 555 0189", want: "3035550189"},
		{name: "already bare", input: "3035550189", want: "3035550189"},
		{name: "too short to match", input: "555-01", want: ""},
		{name: "empty", input: "", want: ""},
		{name: "letters only", input: "n/a", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestAddressKey(t *testing.T) {
	// Equivalent spellings produce the same key.
	a := AddressKey("123 North Main Street", "80302")
	b := AddressKey("123 N. Main St", "80302-1234")
	assert.Equal(t, a, b)
	assert.Equal(t, "123 n main st|80302", a)

	// Either part missing means no key at all.
	assert.Equal(t, "", AddressKey("", "80302"))
	assert.Equal(t, "", AddressKey("123 Main St", ""))

	// Different postal codes never collide.
	assert.NotEqual(t,
		AddressKey("123 Main St", "80302"),
		AddressKey("123 Main St", "80303"))
}
