package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eburns009/starhouse-crm/pkg/apperrors"
	"github.com/eburns009/starhouse-crm/pkg/audit"
	"github.com/eburns009/starhouse-crm/pkg/models"
	"github.com/eburns009/starhouse-crm/pkg/repositories"
)

// TxBeginner opens database transactions. Satisfied by *database.DB.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// MergeOptions controls one merge run.
type MergeOptions struct {
	// DryRun executes every group inside a transaction that is always
	// rolled back, so the reported counts are what a real run would do.
	DryRun bool

	// Force permits merging groups below the high-confidence tier. Set
	// only when an operator has reviewed the specific group.
	Force bool

	// Workers bounds concurrent groups. Zero means one.
	Workers int

	// GroupTimeout bounds a single group's transaction. Zero disables it.
	GroupTimeout time.Duration
}

// RunSummary reports the outcome of one merge run.
type RunSummary struct {
	RunID   uuid.UUID             `json:"run_id"`
	Merged  int                   `json:"merged"`
	Skipped int                   `json:"skipped"`
	Failed  int                   `json:"failed"`
	Records []*models.MergeRecord `json:"records"`
}

// MergeService merges duplicate groups into their primary contact.
type MergeService interface {
	// Run merges every eligible group, one transaction per group, and
	// returns per-group records plus totals. A failed group rolls back and
	// is recorded; it never aborts the rest of the run.
	Run(ctx context.Context, groups []*models.DuplicateGroup, opts MergeOptions) (*RunSummary, error)
}

type mergeService struct {
	db           TxBeginner
	contacts     repositories.ContactRepository
	emails       repositories.EmailRepository
	transactions repositories.TransactionRepository
	auditRepo    repositories.MergeAuditRepository
	auditor      *audit.MergeAuditor
	logger       *zap.Logger
}

// NewMergeService creates a merge service.
func NewMergeService(
	db TxBeginner,
	contacts repositories.ContactRepository,
	emails repositories.EmailRepository,
	transactions repositories.TransactionRepository,
	auditRepo repositories.MergeAuditRepository,
	auditor *audit.MergeAuditor,
	logger *zap.Logger,
) MergeService {
	return &mergeService{
		db:           db,
		contacts:     contacts,
		emails:       emails,
		transactions: transactions,
		auditRepo:    auditRepo,
		auditor:      auditor,
		logger:       logger.Named("merge"),
	}
}

var _ MergeService = (*mergeService)(nil)

// SelectPrimary picks the surviving contact for a group: most transactions,
// then oldest created, then most complete, then lowest ID for determinism.
func SelectPrimary(candidates []*models.Contact) *models.Contact {
	best := candidates[0]
	for _, c := range candidates[1:] {
		switch {
		case c.TransactionCount != best.TransactionCount:
			if c.TransactionCount > best.TransactionCount {
				best = c
			}
		case !c.CreatedAt.Equal(best.CreatedAt):
			if c.CreatedAt.Before(best.CreatedAt) {
				best = c
			}
		case c.Completeness() != best.Completeness():
			if c.Completeness() > best.Completeness() {
				best = c
			}
		default:
			if c.ID.String() < best.ID.String() {
				best = c
			}
		}
	}
	return best
}

func (s *mergeService) Run(ctx context.Context, groups []*models.DuplicateGroup, opts MergeOptions) (*RunSummary, error) {
	runID := uuid.New()
	summary := &RunSummary{RunID: runID}
	s.auditor.RunStarted(runID, len(groups), opts.DryRun)

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	records := make([]*models.MergeRecord, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, group := range groups {
		i, group := i, group
		g.Go(func() error {
			records[i] = s.mergeGroup(gctx, runID, group, opts)
			return nil
		})
	}
	// Workers never return errors; failures are per-group records.
	_ = g.Wait()

	for _, rec := range records {
		summary.Records = append(summary.Records, rec)
		switch rec.Status {
		case models.MergeStatusMerged, models.MergeStatusDryRun:
			summary.Merged++
		case models.MergeStatusSkipped:
			summary.Skipped++
		case models.MergeStatusFailed:
			summary.Failed++
		}
	}

	s.auditor.RunFinished(runID, summary.Merged, summary.Skipped, summary.Failed)
	return summary, nil
}

// mergeGroup executes one group inside its own transaction and always
// returns a record; errors become failed or skipped records, never panics
// up the run.
func (s *mergeService) mergeGroup(ctx context.Context, runID uuid.UUID, group *models.DuplicateGroup, opts MergeOptions) *models.MergeRecord {
	rec := &models.MergeRecord{
		ID:           uuid.New(),
		RunID:        runID,
		GroupMembers: group.Members,
		Tier:         group.Tier,
		Score:        group.Score,
	}

	if !group.AutoMergeable() && !opts.Force {
		rec.Status = models.MergeStatusSkipped
		rec.Error = apperrors.ErrPolicyViolation.Error()
		rec.PrimaryID = group.PrimaryID
		s.auditor.GroupSkipped(runID, *group, "tier below auto-merge policy")
		s.record(ctx, rec)
		return rec
	}

	if opts.GroupTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.GroupTimeout)
		defer cancel()
	}

	err := s.executeGroup(ctx, group, rec, opts.DryRun)
	switch {
	case err == nil && opts.DryRun:
		rec.Status = models.MergeStatusDryRun
	case err == nil:
		rec.Status = models.MergeStatusMerged
		s.auditor.GroupMerged(runID, *group, *rec)
	case errors.Is(err, apperrors.ErrStaleGroup):
		rec.Status = models.MergeStatusSkipped
		rec.Error = err.Error()
		s.auditor.GroupSkipped(runID, *group, err.Error())
	default:
		rec.Status = models.MergeStatusFailed
		rec.Error = err.Error()
		s.auditor.GroupFailed(runID, *group, err)
	}

	s.record(ctx, rec)
	return rec
}

// executeGroup does the merge work inside one transaction. Dry runs take
// the same path and roll back at the end, so their counts are exact.
func (s *mergeService) executeGroup(ctx context.Context, group *models.DuplicateGroup, rec *models.MergeRecord, dryRun bool) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	contacts := s.contacts.WithTx(tx)
	emails := s.emails.WithTx(tx)
	transactions := s.transactions.WithTx(tx)

	// Re-validate against current state; detection results may be stale by
	// the time an operator executes them.
	members := make([]*models.Contact, 0, len(group.Members))
	for _, id := range group.Members {
		c, err := contacts.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("member %s: %w", id, apperrors.ErrStaleGroup)
			}
			return fmt.Errorf("load member %s: %w", id, err)
		}
		if !c.IsActive() {
			return fmt.Errorf("member %s already merged: %w", id, apperrors.ErrStaleGroup)
		}
		members = append(members, c)
	}

	primary := SelectPrimary(members)
	rec.PrimaryID = primary.ID
	now := time.Now().UTC()

	for _, dup := range members {
		if dup.ID == primary.ID {
			continue
		}

		dupEmails, err := emails.ListByContact(ctx, dup.ID)
		if err != nil {
			return fmt.Errorf("list emails of %s: %w", dup.ID, err)
		}
		for _, e := range dupEmails {
			inserted, err := emails.Add(ctx, &models.ContactEmail{
				ID:           uuid.New(),
				ContactID:    primary.ID,
				Address:      e.Address,
				IsPrimary:    false,
				SourceSystem: e.SourceSystem,
			})
			if err != nil {
				return fmt.Errorf("migrate email to %s: %w", primary.ID, err)
			}
			if inserted {
				rec.EmailsMigrated++
			}
		}

		moved, err := transactions.Reassign(ctx, dup.ID, primary.ID)
		if err != nil {
			return fmt.Errorf("reassign transactions of %s: %w", dup.ID, err)
		}
		rec.TransactionsMigrated += int(moved)

		if err := contacts.SoftDelete(ctx, dup.ID, primary.ID, now); err != nil {
			return fmt.Errorf("retire %s: %w", dup.ID, err)
		}
	}

	if err := contacts.FlattenAliases(ctx, group.Members, primary.ID); err != nil {
		return fmt.Errorf("flatten aliases: %w", err)
	}

	if err := contacts.RecomputeFinancials(ctx, primary.ID); err != nil {
		return fmt.Errorf("recompute financials: %w", err)
	}

	if dryRun {
		return tx.Rollback(ctx)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// record persists the audit row outside the group transaction so skipped
// and failed outcomes survive the rollback. The group's deadline does not
// apply here: a timed-out group must still leave its row.
func (s *mergeService) record(ctx context.Context, rec *models.MergeRecord) {
	if err := s.auditRepo.Create(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to write merge audit record",
			zap.String("run_id", rec.RunID.String()),
			zap.Error(err))
	}
}
