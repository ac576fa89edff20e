package models

import (
	"github.com/google/uuid"
)

// ConfidenceTier classifies how a duplicate group was detected.
type ConfidenceTier string

const (
	// TierHigh groups matched on email or on name combined with both phone
	// and address. Only these are eligible for automatic merge.
	TierHigh ConfidenceTier = "high"
	// TierMedium groups matched on name plus one corroborating field.
	// Surfaced for manual review, never auto-merged.
	TierMedium ConfidenceTier = "medium"
	// TierLow groups matched on fuzzy name similarity alone.
	TierLow ConfidenceTier = "low"
)

// Match keys, in descending confidence order.
const (
	MatchKeyEmail       = "email"
	MatchKeyNamePhone   = "name_phone"
	MatchKeyNameAddress = "name_address"
	MatchKeyFuzzyName   = "fuzzy_name"
)

// Rank orders tiers for threshold filtering; higher is more confident.
func (t ConfidenceTier) Rank() int {
	switch t {
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	}
	return 0
}

// DuplicateGroup is a transient set of contacts believed to be the same
// entity. Groups are computed fresh on each detection run and either
// consumed by the merge engine or discarded; only the merge audit log
// persists.
type DuplicateGroup struct {
	ID        uuid.UUID      `json:"id"`
	Members   []uuid.UUID    `json:"members"`
	Tier      ConfidenceTier `json:"tier"`
	MatchKeys []string       `json:"match_keys"`
	Score     int            `json:"score"`
	ScoreBand string         `json:"score_band"`
	PrimaryID uuid.UUID      `json:"primary_id"`
}

// AutoMergeable reports whether policy permits merging without review.
// This is a hard policy, not a tunable default.
func (g *DuplicateGroup) AutoMergeable() bool {
	return g.Tier == TierHigh
}

// IdentityConflict flags two live contacts holding the same external
// identity. This is an error condition to surface, never a grouping signal.
type IdentityConflict struct {
	SourceSystem string      `json:"source_system"`
	ExternalID   string      `json:"external_id"`
	ContactIDs   []uuid.UUID `json:"contact_ids"`
}
