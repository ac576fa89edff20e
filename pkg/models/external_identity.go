package models

import (
	"time"

	"github.com/google/uuid"
)

// ExternalIdentity is a (source_system, external_id) pair owned by a
// contact. Immutable once created; re-linking to a different contact
// requires an explicit procedure, never an import-time overwrite.
type ExternalIdentity struct {
	ID           uuid.UUID `json:"id"`
	ContactID    uuid.UUID `json:"contact_id"`
	SourceSystem string    `json:"source_system"`
	ExternalID   string    `json:"external_id"`
	CreatedAt    time.Time `json:"created_at"`
}
