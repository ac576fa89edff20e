package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eburns009/starhouse-crm/pkg/apperrors"
	"github.com/eburns009/starhouse-crm/pkg/database"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

// EmailRepository defines data access for contact emails.
type EmailRepository interface {
	// Add inserts an email idempotently: a case-insensitive duplicate for
	// the same contact is a no-op. Returns whether a row was inserted.
	Add(ctx context.Context, email *models.ContactEmail) (bool, error)
	ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.ContactEmail, error)
	// ListAddresses returns every address per contact in one pass, for bulk
	// matcher loads.
	ListAddresses(ctx context.Context) (map[uuid.UUID][]string, error)
	// SetPrimary atomically swaps the primary flag to the given address and
	// keeps the contact's denormalized email column in sync.
	SetPrimary(ctx context.Context, contactID uuid.UUID, address string) error
	WithTx(tx pgx.Tx) EmailRepository
}

type emailRepository struct {
	q database.Querier
}

// NewEmailRepository creates a new email repository bound to q.
func NewEmailRepository(q database.Querier) EmailRepository {
	return &emailRepository{q: q}
}

var _ EmailRepository = (*emailRepository)(nil)

func (r *emailRepository) WithTx(tx pgx.Tx) EmailRepository {
	return &emailRepository{q: tx}
}

func (r *emailRepository) Add(ctx context.Context, email *models.ContactEmail) (bool, error) {
	if email.ID == uuid.Nil {
		email.ID = uuid.New()
	}
	if email.CreatedAt.IsZero() {
		email.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO contact_emails (id, contact_id, address, is_primary, source_system, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (contact_id, lower(address)) DO NOTHING`

	result, err := r.q.Exec(ctx, query,
		email.ID,
		email.ContactID,
		email.Address,
		email.IsPrimary,
		email.SourceSystem,
		email.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to add email: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *emailRepository) ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.ContactEmail, error) {
	query := `
		SELECT id, contact_id, address, is_primary, source_system, created_at
		FROM contact_emails
		WHERE contact_id = $1
		ORDER BY is_primary DESC, created_at`

	rows, err := r.q.Query(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	defer rows.Close()

	var emails []*models.ContactEmail
	for rows.Next() {
		var email models.ContactEmail
		err := rows.Scan(
			&email.ID,
			&email.ContactID,
			&email.Address,
			&email.IsPrimary,
			&email.SourceSystem,
			&email.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan email: %w", err)
		}
		emails = append(emails, &email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating emails: %w", err)
	}

	return emails, nil
}

func (r *emailRepository) ListAddresses(ctx context.Context) (map[uuid.UUID][]string, error) {
	query := `SELECT contact_id, address FROM contact_emails ORDER BY contact_id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := make(map[uuid.UUID][]string)
	for rows.Next() {
		var contactID uuid.UUID
		var address string
		if err := rows.Scan(&contactID, &address); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses[contactID] = append(addresses[contactID], address)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}

func (r *emailRepository) SetPrimary(ctx context.Context, contactID uuid.UUID, address string) error {
	// Clear the old primary first; the partial unique index on
	// (contact_id) WHERE is_primary would reject the new flag otherwise.
	clear := `UPDATE contact_emails SET is_primary = false WHERE contact_id = $1 AND is_primary`
	if _, err := r.q.Exec(ctx, clear, contactID); err != nil {
		return fmt.Errorf("failed to clear primary email: %w", err)
	}

	set := `
		UPDATE contact_emails
		SET is_primary = true
		WHERE contact_id = $1 AND lower(address) = lower($2)`
	result, err := r.q.Exec(ctx, set, contactID, address)
	if err != nil {
		return fmt.Errorf("failed to set primary email: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("email %s not owned by contact %s: %w",
			address, contactID, apperrors.ErrNotFound)
	}

	sync := `UPDATE contacts SET email = $2, updated_at = now() WHERE id = $1`
	if _, err := r.q.Exec(ctx, sync, contactID, address); err != nil {
		return fmt.Errorf("failed to sync contact email: %w", err)
	}

	return nil
}
