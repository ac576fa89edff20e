package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/eburns009/starhouse-crm/pkg/apperrors"
	"github.com/eburns009/starhouse-crm/pkg/logging"
	"github.com/eburns009/starhouse-crm/pkg/matching"
	"github.com/eburns009/starhouse-crm/pkg/models"
	"github.com/eburns009/starhouse-crm/pkg/repositories"
)

// ImportOptions controls one import run.
type ImportOptions struct {
	// DryRun resolves and reconciles every row without writing, reporting
	// what a real run would do.
	DryRun bool
}

// ImportSummary reports the outcome of one import run.
type ImportSummary struct {
	Source            string `json:"source"`
	Rows              int    `json:"rows"`
	Created           int    `json:"created"`
	Updated           int    `json:"updated"`
	Unchanged         int    `json:"unchanged"`
	TransactionsAdded int    `json:"transactions_added"`
	Skipped           int    `json:"skipped"`
	IdentityConflicts int    `json:"identity_conflicts"`
	DryRun            bool   `json:"dry_run"`
}

// ImportService reconciles source-system CSV exports into the contact set.
type ImportService interface {
	// Import reads a CSV export for the named source system and reconciles
	// each row: resolve by external identity first, then by email; update
	// fields the source-of-record policy allows; accumulate emails and
	// transactions idempotently. Each row runs in its own transaction, so
	// a failed row rolls back cleanly, is skipped and counted, never fatal.
	Import(ctx context.Context, source string, r io.Reader, opts ImportOptions) (*ImportSummary, error)
}

type importService struct {
	db           TxBeginner
	contacts     repositories.ContactRepository
	emails       repositories.EmailRepository
	identities   repositories.IdentityRepository
	transactions repositories.TransactionRepository
	policy       models.SourcePolicy
	logger       *zap.Logger
}

// NewImportService creates an import service with the given source-of-record
// policy.
func NewImportService(
	db TxBeginner,
	contacts repositories.ContactRepository,
	emails repositories.EmailRepository,
	identities repositories.IdentityRepository,
	transactions repositories.TransactionRepository,
	policy models.SourcePolicy,
	logger *zap.Logger,
) ImportService {
	return &importService{
		db:           db,
		contacts:     contacts,
		emails:       emails,
		identities:   identities,
		transactions: transactions,
		policy:       policy,
		logger:       logger.Named("import"),
	}
}

var _ ImportService = (*importService)(nil)

// importRepos is the repository set one row writes through, bound to that
// row's transaction.
type importRepos struct {
	contacts     repositories.ContactRepository
	emails       repositories.EmailRepository
	identities   repositories.IdentityRepository
	transactions repositories.TransactionRepository
}

// rowOutcome accumulates what one row did; it is folded into the summary
// only after the row's transaction commits.
type rowOutcome struct {
	created          bool
	updated          bool
	unchanged        bool
	txAdded          bool
	identityConflict bool
}

func (s *importService) Import(ctx context.Context, source string, r io.Reader, opts ImportOptions) (*ImportSummary, error) {
	if !models.KnownSource(source) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownSource, source)
	}
	mapper, err := mapperFor(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnknownSource, source)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	summary := &ImportSummary{Source: source, DryRun: opts.DryRun}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("malformed csv row",
				zap.String("source", source),
				zap.Int("line", line),
				zap.Error(err))
			summary.Skipped++
			continue
		}
		summary.Rows++

		get := func(column string) string {
			i, ok := columns[column]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		row, err := mapper(get)
		var outcome *rowOutcome
		if err != nil {
			err = fmt.Errorf("%w: %s", apperrors.ErrValidation, err)
		} else {
			outcome, err = s.importRow(ctx, source, row, opts.DryRun)
		}
		if err != nil {
			s.logger.Warn("row skipped",
				zap.String("source", source),
				zap.Int("line", line),
				zap.String("error", logging.SanitizeError(err)))
			summary.Skipped++
			continue
		}
		summary.apply(outcome)
	}

	s.logger.Info("import complete",
		zap.String("source", source),
		zap.Bool("dry_run", opts.DryRun),
		zap.Int("rows", summary.Rows),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated),
		zap.Int("transactions_added", summary.TransactionsAdded),
		zap.Int("skipped", summary.Skipped),
		zap.Int("identity_conflicts", summary.IdentityConflicts))

	return summary, nil
}

func (s *ImportSummary) apply(o *rowOutcome) {
	if o.created {
		s.Created++
	}
	if o.updated {
		s.Updated++
	}
	if o.unchanged {
		s.Unchanged++
	}
	if o.txAdded {
		s.TransactionsAdded++
	}
	if o.identityConflict {
		s.IdentityConflicts++
	}
}

// importRow runs one row inside its own transaction so a mid-row failure
// cannot leave a half-written contact behind. Dry runs read through the
// base repositories and write nothing, so no transaction is opened.
func (s *importService) importRow(ctx context.Context, source string, row *importRow, dryRun bool) (*rowOutcome, error) {
	if dryRun {
		repos := importRepos{
			contacts:     s.contacts,
			emails:       s.emails,
			identities:   s.identities,
			transactions: s.transactions,
		}
		return s.reconcileRow(ctx, repos, source, row, true)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	repos := importRepos{
		contacts:     s.contacts.WithTx(tx),
		emails:       s.emails.WithTx(tx),
		identities:   s.identities.WithTx(tx),
		transactions: s.transactions.WithTx(tx),
	}
	outcome, err := s.reconcileRow(ctx, repos, source, row, false)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return outcome, nil
}

// reconcileRow resolves one row to an existing contact or creates a new
// one, then applies field, email, identity, and transaction updates.
func (s *importService) reconcileRow(ctx context.Context, repos importRepos, source string, row *importRow, dryRun bool) (*rowOutcome, error) {
	email := matching.NormalizeEmail(row.Email)
	if row.ExternalID == "" && email == "" {
		return nil, fmt.Errorf("%w: row has neither an external id nor an email", apperrors.ErrValidation)
	}

	contact, err := s.resolve(ctx, repos, source, row.ExternalID, email)
	if err != nil {
		return nil, err
	}

	outcome := &rowOutcome{}

	if contact == nil {
		contact = s.newContact(source, row, email)
		if !dryRun {
			if err := repos.contacts.Create(ctx, contact); err != nil {
				return nil, fmt.Errorf("create contact: %w", err)
			}
			if email != "" {
				if _, err := repos.emails.Add(ctx, &models.ContactEmail{
					ID:           uuid.New(),
					ContactID:    contact.ID,
					Address:      email,
					IsPrimary:    true,
					SourceSystem: source,
				}); err != nil {
					return nil, fmt.Errorf("add email: %w", err)
				}
			}
		}
		outcome.created = true
	} else {
		changed := s.applyPolicy(contact, source, row)

		if email != "" && !dryRun {
			inserted, err := repos.emails.Add(ctx, &models.ContactEmail{
				ID:           uuid.New(),
				ContactID:    contact.ID,
				Address:      email,
				IsPrimary:    false,
				SourceSystem: source,
			})
			if err != nil {
				return nil, fmt.Errorf("add email: %w", err)
			}
			changed = changed || inserted

			if !strings.EqualFold(contact.Email, email) &&
				s.policy.Allows(models.FieldEmail, source, contact.FieldSources[models.FieldEmail]) {
				if err := repos.emails.SetPrimary(ctx, contact.ID, email); err != nil {
					return nil, fmt.Errorf("set primary email: %w", err)
				}
				contact.Email = email
				contact.FieldSources[models.FieldEmail] = source
				changed = true
			}
		}

		if changed {
			if !dryRun {
				if err := repos.contacts.Update(ctx, contact); err != nil {
					return nil, fmt.Errorf("update contact: %w", err)
				}
			}
			outcome.updated = true
		} else {
			outcome.unchanged = true
		}
	}

	if row.ExternalID != "" && !dryRun {
		err := repos.identities.Add(ctx, &models.ExternalIdentity{
			ID:           uuid.New(),
			ContactID:    contact.ID,
			SourceSystem: source,
			ExternalID:   row.ExternalID,
		})
		if errors.Is(err, apperrors.ErrConflict) {
			// The pair belongs to another live contact. Never re-link on
			// import; surface it and move on.
			s.logger.Warn("external identity conflict",
				zap.String("source", source),
				zap.String("external_id", row.ExternalID),
				zap.String("contact_id", contact.ID.String()))
			outcome.identityConflict = true
		} else if err != nil {
			return nil, fmt.Errorf("add identity: %w", err)
		}
	}

	if row.hasTransaction() {
		if dryRun {
			outcome.txAdded = true
		} else {
			inserted, err := repos.transactions.Upsert(ctx, &models.Transaction{
				ID:           uuid.New(),
				ContactID:    contact.ID,
				SourceSystem: source,
				ExternalID:   row.TxExternalID,
				Amount:       row.TxAmount,
				OccurredAt:   row.TxOccurredAt,
			})
			if err != nil {
				return nil, fmt.Errorf("upsert transaction: %w", err)
			}
			if inserted {
				outcome.txAdded = true
				if err := repos.contacts.RecomputeFinancials(ctx, contact.ID); err != nil {
					return nil, fmt.Errorf("recompute financials: %w", err)
				}
			}
		}
	}

	return outcome, nil
}

// resolve finds the contact a row belongs to: external identity first, then
// any owned email. Returns nil when the row is new.
func (s *importService) resolve(ctx context.Context, repos importRepos, source, externalID, email string) (*models.Contact, error) {
	if externalID != "" {
		c, err := repos.contacts.FindByIdentity(ctx, source, externalID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("resolve by identity: %w", err)
		}
	}
	if email != "" {
		c, err := repos.contacts.FindByEmail(ctx, email)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("resolve by email: %w", err)
		}
	}
	return nil, nil
}

func (s *importService) newContact(source string, row *importRow, email string) *models.Contact {
	now := time.Now().UTC()
	c := &models.Contact{
		ID:             uuid.New(),
		FirstName:      row.FirstName,
		LastName:       row.LastName,
		AdditionalName: row.AdditionalName,
		Email:          email,
		Phone:          row.Phone,
		SourceSystem:   source,
		FieldSources:   map[string]string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if row.FirstName != "" || row.LastName != "" || row.AdditionalName != "" {
		c.FieldSources[models.FieldName] = source
	}
	if email != "" {
		c.FieldSources[models.FieldEmail] = source
	}
	if row.Phone != "" {
		c.FieldSources[models.FieldPhone] = source
	}
	if row.BillingStreet != "" {
		c.BillingStreet = row.BillingStreet
		c.BillingCity = row.BillingCity
		c.BillingState = row.BillingState
		c.BillingPostalCode = row.BillingPostalCode
		c.BillingCountry = row.BillingCountry
		c.FieldSources[models.FieldAddress] = source
	}
	return c
}

// applyPolicy overwrites reconciled fields the source-of-record policy
// permits and records which source wrote them. Returns whether anything
// changed.
func (s *importService) applyPolicy(contact *models.Contact, source string, row *importRow) bool {
	if contact.FieldSources == nil {
		contact.FieldSources = map[string]string{}
	}
	changed := false

	hasName := row.FirstName != "" || row.LastName != "" || row.AdditionalName != ""
	if hasName && s.policy.Allows(models.FieldName, source, contact.FieldSources[models.FieldName]) {
		if contact.FirstName != row.FirstName || contact.LastName != row.LastName ||
			(row.AdditionalName != "" && contact.AdditionalName != row.AdditionalName) {
			contact.FirstName = row.FirstName
			contact.LastName = row.LastName
			if row.AdditionalName != "" {
				contact.AdditionalName = row.AdditionalName
			}
			contact.FieldSources[models.FieldName] = source
			changed = true
		}
	}

	if row.Phone != "" && s.policy.Allows(models.FieldPhone, source, contact.FieldSources[models.FieldPhone]) {
		if contact.Phone != row.Phone {
			contact.Phone = row.Phone
			contact.FieldSources[models.FieldPhone] = source
			changed = true
		}
	}

	if row.BillingStreet != "" && s.policy.Allows(models.FieldAddress, source, contact.FieldSources[models.FieldAddress]) {
		if contact.BillingStreet != row.BillingStreet || contact.BillingCity != row.BillingCity ||
			contact.BillingState != row.BillingState || contact.BillingPostalCode != row.BillingPostalCode {
			contact.BillingStreet = row.BillingStreet
			contact.BillingCity = row.BillingCity
			contact.BillingState = row.BillingState
			contact.BillingPostalCode = row.BillingPostalCode
			contact.BillingCountry = row.BillingCountry
			contact.FieldSources[models.FieldAddress] = source
			changed = true
		}
	}

	return changed
}
