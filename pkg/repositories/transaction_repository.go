package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eburns009/starhouse-crm/pkg/database"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

// TransactionRepository defines data access for financial transactions.
type TransactionRepository interface {
	// Upsert inserts a transaction idempotently, keyed by
	// (source_system, external_id). Returns whether a row was inserted.
	Upsert(ctx context.Context, tx *models.Transaction) (bool, error)
	CountByContact(ctx context.Context, contactID uuid.UUID) (int, error)
	// Reassign moves every transaction owned by from to the to contact and
	// returns how many rows moved. Rows are re-owned, never copied.
	Reassign(ctx context.Context, from, to uuid.UUID) (int64, error)
	// TransactionKeys returns each contact's (source|external_id) keys for
	// overlap scoring.
	TransactionKeys(ctx context.Context) (map[uuid.UUID][]string, error)
	// LastTransactionTimes returns each contact's most recent transaction
	// time, for mailability recency bonuses.
	LastTransactionTimes(ctx context.Context) (map[uuid.UUID]time.Time, error)
	WithTx(tx pgx.Tx) TransactionRepository
}

type transactionRepository struct {
	q database.Querier
}

// NewTransactionRepository creates a new transaction repository bound to q.
func NewTransactionRepository(q database.Querier) TransactionRepository {
	return &transactionRepository{q: q}
}

var _ TransactionRepository = (*transactionRepository)(nil)

func (r *transactionRepository) WithTx(tx pgx.Tx) TransactionRepository {
	return &transactionRepository{q: tx}
}

func (r *transactionRepository) Upsert(ctx context.Context, tx *models.Transaction) (bool, error) {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO transactions (id, contact_id, source_system, external_id, amount, occurred_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source_system, external_id) DO NOTHING`

	result, err := r.q.Exec(ctx, query,
		tx.ID,
		tx.ContactID,
		tx.SourceSystem,
		tx.ExternalID,
		tx.Amount,
		tx.OccurredAt,
		tx.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to upsert transaction: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *transactionRepository) CountByContact(ctx context.Context, contactID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE contact_id = $1`

	var count int
	if err := r.q.QueryRow(ctx, query, contactID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *transactionRepository) Reassign(ctx context.Context, from, to uuid.UUID) (int64, error) {
	query := `UPDATE transactions SET contact_id = $2 WHERE contact_id = $1`

	result, err := r.q.Exec(ctx, query, from, to)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign transactions: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *transactionRepository) TransactionKeys(ctx context.Context) (map[uuid.UUID][]string, error) {
	query := `SELECT contact_id, source_system, external_id FROM transactions`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[uuid.UUID][]string)
	for rows.Next() {
		var contactID uuid.UUID
		var source, externalID string
		if err := rows.Scan(&contactID, &source, &externalID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction key: %w", err)
		}
		keys[contactID] = append(keys[contactID], source+"|"+externalID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction keys: %w", err)
	}

	return keys, nil
}

func (r *transactionRepository) LastTransactionTimes(ctx context.Context) (map[uuid.UUID]time.Time, error) {
	query := `SELECT contact_id, MAX(occurred_at) FROM transactions GROUP BY contact_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list last transaction times: %w", err)
	}
	defer rows.Close()

	times := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var contactID uuid.UUID
		var last time.Time
		if err := rows.Scan(&contactID, &last); err != nil {
			return nil, fmt.Errorf("failed to scan last transaction time: %w", err)
		}
		times[contactID] = last
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating last transaction times: %w", err)
	}

	return times, nil
}
