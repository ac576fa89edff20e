package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is a financial event belonging to exactly one contact at a
// time. Merges re-own transactions by foreign-key update; rows are never
// copied or duplicated.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	ContactID    uuid.UUID       `json:"contact_id"`
	SourceSystem string          `json:"source_system"`
	ExternalID   string          `json:"external_id"`
	Amount       decimal.Decimal `json:"amount"`
	OccurredAt   time.Time       `json:"occurred_at"`
	CreatedAt    time.Time       `json:"created_at"`
}
