package models

import (
	"time"

	"github.com/google/uuid"
)

// Merge outcome statuses recorded in the audit log.
const (
	MergeStatusMerged  = "merged"
	MergeStatusDryRun  = "dry_run"
	MergeStatusFailed  = "failed"
	MergeStatusSkipped = "skipped"
)

// MergeRecord is one append-only audit row per group per merge run. It is
// the durable answer to "why was X merged into Y".
type MergeRecord struct {
	ID                   uuid.UUID      `json:"id"`
	RunID                uuid.UUID      `json:"run_id"`
	GroupMembers         []uuid.UUID    `json:"group_members"`
	PrimaryID            uuid.UUID      `json:"primary_id"`
	Tier                 ConfidenceTier `json:"tier"`
	Score                int            `json:"score"`
	EmailsMigrated       int            `json:"emails_migrated"`
	TransactionsMigrated int            `json:"transactions_migrated"`
	Status               string         `json:"status"`
	Error                string         `json:"error,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
}
