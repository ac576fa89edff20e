package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eburns009/starhouse-crm/pkg/database"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

// MergeAuditRepository provides append-only access to the merge audit log.
// Rows are never updated or deleted; the log is the durable record of why
// each contact was merged where.
type MergeAuditRepository interface {
	Create(ctx context.Context, record *models.MergeRecord) error
	ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.MergeRecord, error)
	ListRecent(ctx context.Context, limit int) ([]*models.MergeRecord, error)
	WithTx(tx pgx.Tx) MergeAuditRepository
}

type mergeAuditRepository struct {
	q database.Querier
}

// NewMergeAuditRepository creates a new merge audit repository bound to q.
func NewMergeAuditRepository(q database.Querier) MergeAuditRepository {
	return &mergeAuditRepository{q: q}
}

var _ MergeAuditRepository = (*mergeAuditRepository)(nil)

func (r *mergeAuditRepository) WithTx(tx pgx.Tx) MergeAuditRepository {
	return &mergeAuditRepository{q: tx}
}

func (r *mergeAuditRepository) Create(ctx context.Context, record *models.MergeRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()

	members, err := json.Marshal(record.GroupMembers)
	if err != nil {
		return fmt.Errorf("failed to marshal group members: %w", err)
	}

	query := `
		INSERT INTO merge_audit (
			id, run_id, group_members, primary_id, tier, score,
			emails_migrated, transactions_migrated, status, error, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.q.Exec(ctx, query,
		record.ID,
		record.RunID,
		members,
		record.PrimaryID,
		record.Tier,
		record.Score,
		record.EmailsMigrated,
		record.TransactionsMigrated,
		record.Status,
		record.Error,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create merge record: %w", err)
	}

	return nil
}

func (r *mergeAuditRepository) ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.MergeRecord, error) {
	query := `
		SELECT id, run_id, group_members, primary_id, tier, score,
		       emails_migrated, transactions_migrated, status, error, created_at
		FROM merge_audit
		WHERE run_id = $1
		ORDER BY created_at`

	return r.list(ctx, query, runID)
}

func (r *mergeAuditRepository) ListRecent(ctx context.Context, limit int) ([]*models.MergeRecord, error) {
	query := `
		SELECT id, run_id, group_members, primary_id, tier, score,
		       emails_migrated, transactions_migrated, status, error, created_at
		FROM merge_audit
		ORDER BY created_at DESC
		LIMIT $1`

	return r.list(ctx, query, limit)
}

func (r *mergeAuditRepository) list(ctx context.Context, query string, args ...any) ([]*models.MergeRecord, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list merge records: %w", err)
	}
	defer rows.Close()

	var records []*models.MergeRecord
	for rows.Next() {
		var record models.MergeRecord
		var members []byte
		err := rows.Scan(
			&record.ID,
			&record.RunID,
			&members,
			&record.PrimaryID,
			&record.Tier,
			&record.Score,
			&record.EmailsMigrated,
			&record.TransactionsMigrated,
			&record.Status,
			&record.Error,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan merge record: %w", err)
		}
		if err := json.Unmarshal(members, &record.GroupMembers); err != nil {
			return nil, fmt.Errorf("failed to unmarshal group members: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating merge records: %w", err)
	}

	return records, nil
}
