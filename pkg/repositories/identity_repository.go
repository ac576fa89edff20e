package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/eburns009/starhouse-crm/pkg/apperrors"
	"github.com/eburns009/starhouse-crm/pkg/database"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

// IdentityRepository defines data access for external identities.
// Identities are immutable once created: re-pointing one at a different
// contact requires an explicit re-link, never an import-time overwrite.
type IdentityRepository interface {
	// Add inserts an identity. Returns apperrors.ErrConflict when the
	// (source_system, external_id) pair already belongs to another contact.
	Add(ctx context.Context, identity *models.ExternalIdentity) error
	ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.ExternalIdentity, error)
	// ListAll returns identities grouped by contact for bulk matcher loads.
	ListAll(ctx context.Context) (map[uuid.UUID][]models.ExternalIdentity, error)
	WithTx(tx pgx.Tx) IdentityRepository
}

type identityRepository struct {
	q database.Querier
}

// NewIdentityRepository creates a new identity repository bound to q.
func NewIdentityRepository(q database.Querier) IdentityRepository {
	return &identityRepository{q: q}
}

var _ IdentityRepository = (*identityRepository)(nil)

func (r *identityRepository) WithTx(tx pgx.Tx) IdentityRepository {
	return &identityRepository{q: tx}
}

func (r *identityRepository) Add(ctx context.Context, identity *models.ExternalIdentity) error {
	if identity.ID == uuid.Nil {
		identity.ID = uuid.New()
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now()
	}

	// A re-insert for the same contact is an idempotent no-op; the same
	// pair on a different contact is a conflict to surface, not resolve.
	query := `
		INSERT INTO external_identities (id, contact_id, source_system, external_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source_system, external_id) DO NOTHING`

	result, err := r.q.Exec(ctx, query,
		identity.ID,
		identity.ContactID,
		identity.SourceSystem,
		identity.ExternalID,
		identity.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("identity %s/%s: %w",
				identity.SourceSystem, identity.ExternalID, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to add identity: %w", err)
	}

	if result.RowsAffected() == 0 {
		var owner uuid.UUID
		ownerQuery := `
			SELECT contact_id FROM external_identities
			WHERE source_system = $1 AND external_id = $2`
		if err := r.q.QueryRow(ctx, ownerQuery, identity.SourceSystem, identity.ExternalID).Scan(&owner); err != nil {
			return fmt.Errorf("failed to resolve identity owner: %w", err)
		}
		if owner != identity.ContactID {
			return fmt.Errorf("identity %s/%s belongs to contact %s: %w",
				identity.SourceSystem, identity.ExternalID, owner, apperrors.ErrConflict)
		}
	}

	return nil
}

func (r *identityRepository) ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.ExternalIdentity, error) {
	query := `
		SELECT id, contact_id, source_system, external_id, created_at
		FROM external_identities
		WHERE contact_id = $1
		ORDER BY source_system`

	rows, err := r.q.Query(ctx, query, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	var identities []*models.ExternalIdentity
	for rows.Next() {
		var identity models.ExternalIdentity
		err := rows.Scan(
			&identity.ID,
			&identity.ContactID,
			&identity.SourceSystem,
			&identity.ExternalID,
			&identity.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, &identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identities: %w", err)
	}

	return identities, nil
}

func (r *identityRepository) ListAll(ctx context.Context) (map[uuid.UUID][]models.ExternalIdentity, error) {
	query := `
		SELECT id, contact_id, source_system, external_id, created_at
		FROM external_identities`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	defer rows.Close()

	identities := make(map[uuid.UUID][]models.ExternalIdentity)
	for rows.Next() {
		var identity models.ExternalIdentity
		err := rows.Scan(
			&identity.ID,
			&identity.ContactID,
			&identity.SourceSystem,
			&identity.ExternalID,
			&identity.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities[identity.ContactID] = append(identities[identity.ContactID], identity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating identities: %w", err)
	}

	return identities, nil
}
