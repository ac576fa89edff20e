package models

// Known source systems. The policy ordering is configuration, not a
// property of these constants.
const (
	SourceKajabi         = "kajabi"
	SourcePayPal         = "paypal"
	SourceZoho           = "zoho"
	SourceTicketTailor   = "tickettailor"
	SourceQuickBooks     = "quickbooks"
	SourceGoogleContacts = "google_contacts"
	SourceManual         = "manual"
)

// SourcePolicy is the injectable source-of-record policy. Order lists
// source systems from most to least authoritative; FieldOverrides swaps in
// a different ordering for a specific reconciled field.
type SourcePolicy struct {
	Order          []string            `json:"order" yaml:"order"`
	FieldOverrides map[string][]string `json:"field_overrides,omitempty" yaml:"field_overrides,omitempty"`
}

// DefaultSourcePolicy mirrors the platform-of-record > payment processor >
// legacy CRM > ticketing > accounting > contacts > manual ordering used
// during the cutover.
func DefaultSourcePolicy() SourcePolicy {
	return SourcePolicy{
		Order: []string{
			SourceKajabi,
			SourcePayPal,
			SourceZoho,
			SourceTicketTailor,
			SourceQuickBooks,
			SourceGoogleContacts,
			SourceManual,
		},
	}
}

// Rank returns the position of source in the ordering for field; lower is
// more authoritative. Unknown sources rank below every listed one.
func (p SourcePolicy) Rank(field, source string) int {
	order := p.Order
	if o, ok := p.FieldOverrides[field]; ok {
		order = o
	}
	for i, s := range order {
		if s == source {
			return i
		}
	}
	return len(order)
}

// Allows reports whether an import from source may overwrite field, given
// the source currently on record. A field with no recorded source is always
// writable; otherwise the incoming source must rank strictly higher.
func (p SourcePolicy) Allows(field, incoming, current string) bool {
	if current == "" {
		return true
	}
	if incoming == current {
		return true
	}
	return p.Rank(field, incoming) < p.Rank(field, current)
}

// KnownSource reports whether name is one of the supported source systems.
func KnownSource(name string) bool {
	switch name {
	case SourceKajabi, SourcePayPal, SourceZoho, SourceTicketTailor,
		SourceQuickBooks, SourceGoogleContacts, SourceManual:
		return true
	}
	return false
}
