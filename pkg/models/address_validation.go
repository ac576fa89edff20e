package models

import (
	"time"

	"github.com/google/uuid"
)

// Address validation match levels reported by the postal validation service.
const (
	MatchLevelFull      = "full"      // delivery point confirmed
	MatchLevelSecondary = "secondary" // confirmed except secondary unit
	MatchLevelPartial   = "partial"   // street-level match only
)

// AddressValidation is the postal validation record for a contact's billing
// address. The most recent row per contact drives mailability scoring.
type AddressValidation struct {
	ID          uuid.UUID `json:"id"`
	ContactID   uuid.UUID `json:"contact_id"`
	Deliverable bool      `json:"deliverable"`
	Vacant      bool      `json:"vacant"`
	MatchLevel  string    `json:"match_level"`

	// NCOAMoveDate is set when a change-of-address event is on record for
	// this address. Any move disqualifies the address outright.
	NCOAMoveDate *time.Time `json:"ncoa_move_date,omitempty"`

	ValidatedAt time.Time `json:"validated_at"`
	CreatedAt   time.Time `json:"created_at"`
}
