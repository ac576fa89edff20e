package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eburns009/starhouse-crm/pkg/apperrors"
	"github.com/eburns009/starhouse-crm/pkg/database"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

// ContactRepository defines data access for contacts.
type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	Update(ctx context.Context, contact *models.Contact) error
	// ListActive returns all contacts that are neither deleted nor aliased.
	ListActive(ctx context.Context) ([]*models.Contact, error)
	// FindByEmail matches any owned email address, case-insensitively,
	// against active contacts only.
	FindByEmail(ctx context.Context, email string) (*models.Contact, error)
	// FindByIdentity resolves a (source_system, external_id) pair to its
	// owning active contact.
	FindByIdentity(ctx context.Context, sourceSystem, externalID string) (*models.Contact, error)
	// SoftDelete marks a contact merged away: deleted_at set, alias_of
	// pointing at the surviving contact.
	SoftDelete(ctx context.Context, id, aliasOf uuid.UUID, at time.Time) error
	// FlattenAliases re-points contacts already aliased to any group member
	// at the new root, so alias chains never exceed one hop.
	FlattenAliases(ctx context.Context, members []uuid.UUID, root uuid.UUID) error
	// RecomputeFinancials derives lifetime_total and transaction_count from
	// the transactions table. Totals are never carried forward by addition.
	RecomputeFinancials(ctx context.Context, id uuid.UUID) error
	// WithTx returns a repository bound to the given transaction.
	WithTx(tx pgx.Tx) ContactRepository
}

// contactRepository implements ContactRepository using PostgreSQL.
type contactRepository struct {
	q database.Querier
}

// NewContactRepository creates a new contact repository bound to q.
func NewContactRepository(q database.Querier) ContactRepository {
	return &contactRepository{q: q}
}

var _ ContactRepository = (*contactRepository)(nil)

func (r *contactRepository) WithTx(tx pgx.Tx) ContactRepository {
	return &contactRepository{q: tx}
}

const contactColumns = `
	id, first_name, last_name, additional_name, email, phone,
	billing_street, billing_city, billing_state, billing_postal_code, billing_country,
	source_system, field_sources, lifetime_total, transaction_count,
	created_at, updated_at, deleted_at, alias_of`

func (r *contactRepository) Create(ctx context.Context, contact *models.Contact) error {
	if contact.ID == uuid.Nil {
		contact.ID = uuid.New()
	}
	now := time.Now()
	if contact.CreatedAt.IsZero() {
		contact.CreatedAt = now
	}
	contact.UpdatedAt = now

	fieldSources, err := marshalFieldSources(contact.FieldSources)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contacts (
			id, first_name, last_name, additional_name, email, phone,
			billing_street, billing_city, billing_state, billing_postal_code, billing_country,
			source_system, field_sources, lifetime_total, transaction_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = r.q.Exec(ctx, query,
		contact.ID,
		contact.FirstName,
		contact.LastName,
		contact.AdditionalName,
		contact.Email,
		contact.Phone,
		contact.BillingStreet,
		contact.BillingCity,
		contact.BillingState,
		contact.BillingPostalCode,
		contact.BillingCountry,
		contact.SourceSystem,
		fieldSources,
		contact.LifetimeTotal,
		contact.TransactionCount,
		contact.CreatedAt,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}

	return nil
}

func (r *contactRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	query := `SELECT` + contactColumns + ` FROM contacts WHERE id = $1`

	contact, err := scanContact(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("contact %s: %w", id, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return contact, nil
}

func (r *contactRepository) Update(ctx context.Context, contact *models.Contact) error {
	contact.UpdatedAt = time.Now()

	fieldSources, err := marshalFieldSources(contact.FieldSources)
	if err != nil {
		return err
	}

	query := `
		UPDATE contacts
		SET first_name = $2, last_name = $3, additional_name = $4, email = $5, phone = $6,
		    billing_street = $7, billing_city = $8, billing_state = $9,
		    billing_postal_code = $10, billing_country = $11,
		    field_sources = $12, updated_at = $13
		WHERE id = $1`

	result, err := r.q.Exec(ctx, query,
		contact.ID,
		contact.FirstName,
		contact.LastName,
		contact.AdditionalName,
		contact.Email,
		contact.Phone,
		contact.BillingStreet,
		contact.BillingCity,
		contact.BillingState,
		contact.BillingPostalCode,
		contact.BillingCountry,
		fieldSources,
		contact.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("contact %s: %w", contact.ID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *contactRepository) ListActive(ctx context.Context) ([]*models.Contact, error) {
	query := `SELECT` + contactColumns + `
		FROM contacts
		WHERE deleted_at IS NULL AND alias_of IS NULL
		ORDER BY created_at`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*models.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

func (r *contactRepository) FindByEmail(ctx context.Context, email string) (*models.Contact, error) {
	query := `SELECT` + contactColumns + `
		FROM contacts
		WHERE deleted_at IS NULL AND alias_of IS NULL
		  AND id IN (
			SELECT contact_id FROM contact_emails WHERE lower(address) = lower($1)
		  )
		ORDER BY created_at
		LIMIT 1`

	contact, err := scanContact(r.q.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find contact by email: %w", err)
	}
	return contact, nil
}

func (r *contactRepository) FindByIdentity(ctx context.Context, sourceSystem, externalID string) (*models.Contact, error) {
	query := `SELECT` + contactColumns + `
		FROM contacts
		WHERE deleted_at IS NULL AND alias_of IS NULL
		  AND id IN (
			SELECT contact_id FROM external_identities
			WHERE source_system = $1 AND external_id = $2
		  )
		LIMIT 1`

	contact, err := scanContact(r.q.QueryRow(ctx, query, sourceSystem, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find contact by identity: %w", err)
	}
	return contact, nil
}

func (r *contactRepository) SoftDelete(ctx context.Context, id, aliasOf uuid.UUID, at time.Time) error {
	query := `
		UPDATE contacts
		SET deleted_at = $2, alias_of = $3, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.q.Exec(ctx, query, id, at, aliasOf)
	if err != nil {
		return fmt.Errorf("failed to soft-delete contact: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("contact %s already deleted: %w", id, apperrors.ErrStaleGroup)
	}

	return nil
}

func (r *contactRepository) FlattenAliases(ctx context.Context, members []uuid.UUID, root uuid.UUID) error {
	query := `UPDATE contacts SET alias_of = $1 WHERE alias_of = ANY($2) AND id <> $1`

	_, err := r.q.Exec(ctx, query, root, members)
	if err != nil {
		return fmt.Errorf("failed to flatten alias chains: %w", err)
	}
	return nil
}

func (r *contactRepository) RecomputeFinancials(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE contacts
		SET lifetime_total = COALESCE((SELECT SUM(amount) FROM transactions WHERE contact_id = $1), 0),
		    transaction_count = (SELECT COUNT(*) FROM transactions WHERE contact_id = $1),
		    updated_at = now()
		WHERE id = $1`

	_, err := r.q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to recompute financials: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*models.Contact, error) {
	var contact models.Contact
	var fieldSources []byte

	err := row.Scan(
		&contact.ID,
		&contact.FirstName,
		&contact.LastName,
		&contact.AdditionalName,
		&contact.Email,
		&contact.Phone,
		&contact.BillingStreet,
		&contact.BillingCity,
		&contact.BillingState,
		&contact.BillingPostalCode,
		&contact.BillingCountry,
		&contact.SourceSystem,
		&fieldSources,
		&contact.LifetimeTotal,
		&contact.TransactionCount,
		&contact.CreatedAt,
		&contact.UpdatedAt,
		&contact.DeletedAt,
		&contact.AliasOf,
	)
	if err != nil {
		return nil, err
	}

	if len(fieldSources) > 0 {
		if err := json.Unmarshal(fieldSources, &contact.FieldSources); err != nil {
			return nil, fmt.Errorf("failed to unmarshal field_sources: %w", err)
		}
	}

	return &contact, nil
}

func marshalFieldSources(sources map[string]string) ([]byte, error) {
	if len(sources) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal field_sources: %w", err)
	}
	return data, nil
}
