package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contact represents a person or organization in the CRM.
// LifetimeTotal and TransactionCount are denormalized from the transactions
// table and are recomputed, never summed, whenever ownership changes.
type Contact struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	AdditionalName string    `json:"additional_name,omitempty"`

	// Email is the denormalized copy of the primary contact_emails row.
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`

	BillingStreet     string `json:"billing_street,omitempty"`
	BillingCity       string `json:"billing_city,omitempty"`
	BillingState      string `json:"billing_state,omitempty"`
	BillingPostalCode string `json:"billing_postal_code,omitempty"`
	BillingCountry    string `json:"billing_country,omitempty"`

	// SourceSystem is the system that created this contact.
	SourceSystem string `json:"source_system"`

	// FieldSources records which source last wrote each reconciled field,
	// keyed by the Field* constants below.
	FieldSources map[string]string `json:"field_sources,omitempty"`

	LifetimeTotal    decimal.Decimal `json:"lifetime_total"`
	TransactionCount int             `json:"transaction_count"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`

	// AliasOf points at the surviving contact after a merge. A contact with
	// a non-nil alias is logically dead and excluded from active queries.
	AliasOf *uuid.UUID `json:"alias_of,omitempty"`
}

// Reconciled field names used as FieldSources keys.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldAddress = "address"
)

// IsActive reports whether the contact participates in matching, merging,
// and exports.
func (c *Contact) IsActive() bool {
	return c.DeletedAt == nil && c.AliasOf == nil
}

// FullName returns the display name, falling back to the additional name
// when first/last are absent (organizations).
func (c *Contact) FullName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		name = strings.TrimSpace(c.AdditionalName)
	}
	return name
}

// HasCompleteAddress reports whether all fields a mail house requires are
// present.
func (c *Contact) HasCompleteAddress() bool {
	return c.BillingStreet != "" && c.BillingCity != "" &&
		c.BillingState != "" && c.BillingPostalCode != ""
}

// Completeness counts populated optional fields, used as the final merge
// primary-candidate tie-breaker.
func (c *Contact) Completeness() int {
	n := 0
	if c.Phone != "" {
		n++
	}
	if c.HasCompleteAddress() {
		n++
	}
	return n
}
