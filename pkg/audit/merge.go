// Package audit provides structured logging of merge-run events.
// Events are logged in JSON format so a run's history can be reconstructed
// from logs alone, independent of the merge_audit table.
package audit

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eburns009/starhouse-crm/pkg/models"
)

// EventType categorizes merge-run events for filtering.
type EventType string

const (
	// EventRunStarted is logged once at the beginning of a merge run.
	EventRunStarted EventType = "merge_run_started"
	// EventGroupMerged is logged after a group is merged and committed.
	EventGroupMerged EventType = "group_merged"
	// EventGroupSkipped is logged when a group is skipped by policy or staleness.
	EventGroupSkipped EventType = "group_skipped"
	// EventGroupFailed is logged when a group's transaction rolled back.
	EventGroupFailed EventType = "group_failed"
	// EventRunFinished is logged once with the run's final counts.
	EventRunFinished EventType = "merge_run_finished"
)

// MergeAuditor logs merge-run events under a dedicated logger namespace.
type MergeAuditor struct {
	logger *zap.Logger
}

// NewMergeAuditor creates an auditor with the "merge_audit" namespace so
// merge events are easy to filter out of the main application log.
func NewMergeAuditor(logger *zap.Logger) *MergeAuditor {
	return &MergeAuditor{logger: logger.Named("merge_audit")}
}

// RunStarted records the start of a merge run.
func (a *MergeAuditor) RunStarted(runID uuid.UUID, groups int, dryRun bool) {
	a.logger.Info("merge run started",
		zap.String("event_type", string(EventRunStarted)),
		zap.String("run_id", runID.String()),
		zap.Int("groups", groups),
		zap.Bool("dry_run", dryRun),
		zap.Time("timestamp", time.Now().UTC()),
	)
}

// GroupMerged records a committed group merge.
func (a *MergeAuditor) GroupMerged(runID uuid.UUID, group models.DuplicateGroup, rec models.MergeRecord) {
	a.logger.Info("group merged",
		zap.String("event_type", string(EventGroupMerged)),
		zap.String("run_id", runID.String()),
		zap.String("group_id", group.ID.String()),
		zap.String("primary_id", rec.PrimaryID.String()),
		zap.String("tier", string(group.Tier)),
		zap.Int("score", group.Score),
		zap.Int("members", len(group.Members)),
		zap.Int("emails_migrated", rec.EmailsMigrated),
		zap.Int("transactions_migrated", rec.TransactionsMigrated),
	)
}

// GroupSkipped records a group skipped by tier policy or staleness.
func (a *MergeAuditor) GroupSkipped(runID uuid.UUID, group models.DuplicateGroup, reason string) {
	a.logger.Info("group skipped",
		zap.String("event_type", string(EventGroupSkipped)),
		zap.String("run_id", runID.String()),
		zap.String("group_id", group.ID.String()),
		zap.String("tier", string(group.Tier)),
		zap.String("reason", reason),
	)
}

// GroupFailed records a group whose merge transaction rolled back.
// Logged at WARN so a partially failed run is visible without failing the log level.
func (a *MergeAuditor) GroupFailed(runID uuid.UUID, group models.DuplicateGroup, err error) {
	a.logger.Warn("group merge failed",
		zap.String("event_type", string(EventGroupFailed)),
		zap.String("run_id", runID.String()),
		zap.String("group_id", group.ID.String()),
		zap.Error(err),
	)
}

// RunFinished records the final counts of a merge run.
func (a *MergeAuditor) RunFinished(runID uuid.UUID, merged, skipped, failed int) {
	a.logger.Info("merge run finished",
		zap.String("event_type", string(EventRunFinished)),
		zap.String("run_id", runID.String()),
		zap.Int("merged", merged),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)
}
