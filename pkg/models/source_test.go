package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourcePolicy_Allows(t *testing.T) {
	policy := DefaultSourcePolicy()

	tests := []struct {
		name     string
		field    string
		incoming string
		current  string
		want     bool
	}{
		{
			name:     "empty current source is always writable",
			field:    FieldPhone,
			incoming: SourceManual,
			current:  "",
			want:     true,
		},
		{
			name:     "same source may refresh its own field",
			field:    FieldName,
			incoming: SourceZoho,
			current:  SourceZoho,
			want:     true,
		},
		{
			name:     "platform of record beats payment processor",
			field:    FieldName,
			incoming: SourceKajabi,
			current:  SourcePayPal,
			want:     true,
		},
		{
			name:     "payment processor does not beat platform of record",
			field:    FieldName,
			incoming: SourcePayPal,
			current:  SourceKajabi,
			want:     false,
		},
		{
			name:     "manual entry never overwrites a system source",
			field:    FieldAddress,
			incoming: SourceManual,
			current:  SourceGoogleContacts,
			want:     false,
		},
		{
			name:     "unknown source ranks below everything",
			field:    FieldPhone,
			incoming: "mystery_feed",
			current:  SourceManual,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Allows(tt.field, tt.incoming, tt.current))
		})
	}
}

func TestSourcePolicy_FieldOverrides(t *testing.T) {
	policy := SourcePolicy{
		Order: []string{SourceKajabi, SourcePayPal},
		FieldOverrides: map[string][]string{
			// Billing addresses come from the payment processor first.
			FieldAddress: {SourcePayPal, SourceKajabi},
		},
	}

	assert.True(t, policy.Allows(FieldAddress, SourcePayPal, SourceKajabi))
	assert.False(t, policy.Allows(FieldName, SourcePayPal, SourceKajabi))
}

func TestKnownSource(t *testing.T) {
	assert.True(t, KnownSource(SourceKajabi))
	assert.True(t, KnownSource(SourceManual))
	assert.False(t, KnownSource("hubspot"))
	assert.False(t, KnownSource(""))
}
