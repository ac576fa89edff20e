package models

import (
	"time"

	"github.com/google/uuid"
)

// ContactEmail is one address owned by a contact. Exactly one row per
// contact carries IsPrimary; rows are never deleted, only accumulated.
type ContactEmail struct {
	ID           uuid.UUID `json:"id"`
	ContactID    uuid.UUID `json:"contact_id"`
	Address      string    `json:"address"`
	IsPrimary    bool      `json:"is_primary"`
	SourceSystem string    `json:"source_system,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
