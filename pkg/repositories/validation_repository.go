package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/eburns009/starhouse-crm/pkg/apperrors"
	"github.com/eburns009/starhouse-crm/pkg/database"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

// ValidationRepository defines data access for postal address validations.
type ValidationRepository interface {
	Create(ctx context.Context, validation *models.AddressValidation) error
	// GetLatest returns the most recent validation for a contact, or
	// apperrors.ErrNotFound when the address was never validated.
	GetLatest(ctx context.Context, contactID uuid.UUID) (*models.AddressValidation, error)
	// LatestByContact returns the most recent validation per contact in one
	// pass, for batch scoring.
	LatestByContact(ctx context.Context) (map[uuid.UUID]*models.AddressValidation, error)
	WithTx(tx pgx.Tx) ValidationRepository
}

type validationRepository struct {
	q database.Querier
}

// NewValidationRepository creates a new validation repository bound to q.
func NewValidationRepository(q database.Querier) ValidationRepository {
	return &validationRepository{q: q}
}

var _ ValidationRepository = (*validationRepository)(nil)

func (r *validationRepository) WithTx(tx pgx.Tx) ValidationRepository {
	return &validationRepository{q: tx}
}

func (r *validationRepository) Create(ctx context.Context, validation *models.AddressValidation) error {
	if validation.ID == uuid.Nil {
		validation.ID = uuid.New()
	}
	if validation.CreatedAt.IsZero() {
		validation.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO address_validations (
			id, contact_id, deliverable, vacant, match_level, ncoa_move_date, validated_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.q.Exec(ctx, query,
		validation.ID,
		validation.ContactID,
		validation.Deliverable,
		validation.Vacant,
		validation.MatchLevel,
		validation.NCOAMoveDate,
		validation.ValidatedAt,
		validation.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create validation: %w", err)
	}

	return nil
}

const validationColumns = `
	id, contact_id, deliverable, vacant, match_level, ncoa_move_date, validated_at, created_at`

func (r *validationRepository) GetLatest(ctx context.Context, contactID uuid.UUID) (*models.AddressValidation, error) {
	query := `SELECT` + validationColumns + `
		FROM address_validations
		WHERE contact_id = $1
		ORDER BY validated_at DESC
		LIMIT 1`

	validation, err := scanValidation(r.q.QueryRow(ctx, query, contactID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest validation: %w", err)
	}
	return validation, nil
}

func (r *validationRepository) LatestByContact(ctx context.Context) (map[uuid.UUID]*models.AddressValidation, error) {
	query := `SELECT DISTINCT ON (contact_id)` + validationColumns + `
		FROM address_validations
		ORDER BY contact_id, validated_at DESC`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list validations: %w", err)
	}
	defer rows.Close()

	latest := make(map[uuid.UUID]*models.AddressValidation)
	for rows.Next() {
		validation, err := scanValidation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan validation: %w", err)
		}
		latest[validation.ContactID] = validation
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating validations: %w", err)
	}

	return latest, nil
}

func scanValidation(row rowScanner) (*models.AddressValidation, error) {
	var validation models.AddressValidation
	err := row.Scan(
		&validation.ID,
		&validation.ContactID,
		&validation.Deliverable,
		&validation.Vacant,
		&validation.MatchLevel,
		&validation.NCOAMoveDate,
		&validation.ValidatedAt,
		&validation.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &validation, nil
}
