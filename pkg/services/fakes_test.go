package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/eburns009/starhouse-crm/pkg/apperrors"
	"github.com/eburns009/starhouse-crm/pkg/models"
	"github.com/eburns009/starhouse-crm/pkg/repositories"
)

// fakeState is shared in-memory storage backing the fake repositories, so
// cross-repository effects (reassigned transactions changing financials)
// behave like the real database.
type fakeState struct {
	contacts    map[uuid.UUID]*models.Contact
	emails      []*models.ContactEmail
	identities  []*models.ExternalIdentity
	txs         []*models.Transaction
	validations []*models.AddressValidation
	audit       []*models.MergeRecord
}

func newFakeState() *fakeState {
	return &fakeState{contacts: map[uuid.UUID]*models.Contact{}}
}

// fakeTx satisfies pgx.Tx for the methods the merge service touches.
type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if !t.committed {
		t.rolledBack = true
	}
	return nil
}

// fakeDB hands out fakeTx values and remembers them for assertions.
type fakeDB struct {
	txs []*fakeTx
}

func (db *fakeDB) BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error) {
	tx := &fakeTx{}
	db.txs = append(db.txs, tx)
	return tx, nil
}

type fakeContacts struct{ s *fakeState }

var _ repositories.ContactRepository = (*fakeContacts)(nil)

func (r *fakeContacts) WithTx(tx pgx.Tx) repositories.ContactRepository { return r }

func (r *fakeContacts) Create(ctx context.Context, c *models.Contact) error {
	r.s.contacts[c.ID] = c
	return nil
}

func (r *fakeContacts) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return c, nil
}

func (r *fakeContacts) Update(ctx context.Context, c *models.Contact) error {
	if _, ok := r.s.contacts[c.ID]; !ok {
		return apperrors.ErrNotFound
	}
	r.s.contacts[c.ID] = c
	return nil
}

func (r *fakeContacts) ListActive(ctx context.Context) ([]*models.Contact, error) {
	out := make([]*models.Contact, 0, len(r.s.contacts))
	for _, c := range r.s.contacts {
		if c.IsActive() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *fakeContacts) FindByEmail(ctx context.Context, email string) (*models.Contact, error) {
	for _, e := range r.s.emails {
		if strings.EqualFold(e.Address, email) {
			if c, ok := r.s.contacts[e.ContactID]; ok && c.IsActive() {
				return c, nil
			}
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeContacts) FindByIdentity(ctx context.Context, sourceSystem, externalID string) (*models.Contact, error) {
	for _, id := range r.s.identities {
		if id.SourceSystem == sourceSystem && id.ExternalID == externalID {
			if c, ok := r.s.contacts[id.ContactID]; ok && c.IsActive() {
				return c, nil
			}
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeContacts) SoftDelete(ctx context.Context, id, aliasOf uuid.UUID, at time.Time) error {
	c, ok := r.s.contacts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if !c.IsActive() {
		return apperrors.ErrStaleGroup
	}
	c.DeletedAt = &at
	c.AliasOf = &aliasOf
	return nil
}

func (r *fakeContacts) FlattenAliases(ctx context.Context, members []uuid.UUID, root uuid.UUID) error {
	set := map[uuid.UUID]bool{}
	for _, m := range members {
		set[m] = true
	}
	for _, c := range r.s.contacts {
		if c.AliasOf != nil && set[*c.AliasOf] && c.ID != root {
			alias := root
			c.AliasOf = &alias
		}
	}
	return nil
}

func (r *fakeContacts) RecomputeFinancials(ctx context.Context, id uuid.UUID) error {
	c, ok := r.s.contacts[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	total := decimal.Zero
	count := 0
	for _, tx := range r.s.txs {
		if tx.ContactID == id {
			total = total.Add(tx.Amount)
			count++
		}
	}
	c.LifetimeTotal = total
	c.TransactionCount = count
	return nil
}

type fakeEmails struct{ s *fakeState }

var _ repositories.EmailRepository = (*fakeEmails)(nil)

func (r *fakeEmails) WithTx(tx pgx.Tx) repositories.EmailRepository { return r }

func (r *fakeEmails) Add(ctx context.Context, email *models.ContactEmail) (bool, error) {
	for _, e := range r.s.emails {
		if e.ContactID == email.ContactID && strings.EqualFold(e.Address, email.Address) {
			return false, nil
		}
	}
	r.s.emails = append(r.s.emails, email)
	return true, nil
}

func (r *fakeEmails) ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.ContactEmail, error) {
	var out []*models.ContactEmail
	for _, e := range r.s.emails {
		if e.ContactID == contactID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEmails) ListAddresses(ctx context.Context) (map[uuid.UUID][]string, error) {
	out := map[uuid.UUID][]string{}
	for _, e := range r.s.emails {
		out[e.ContactID] = append(out[e.ContactID], e.Address)
	}
	return out, nil
}

func (r *fakeEmails) SetPrimary(ctx context.Context, contactID uuid.UUID, address string) error {
	var found bool
	for _, e := range r.s.emails {
		if e.ContactID == contactID {
			e.IsPrimary = strings.EqualFold(e.Address, address)
			found = found || e.IsPrimary
		}
	}
	if !found {
		return apperrors.ErrNotFound
	}
	if c, ok := r.s.contacts[contactID]; ok {
		c.Email = address
	}
	return nil
}

type fakeIdentities struct{ s *fakeState }

var _ repositories.IdentityRepository = (*fakeIdentities)(nil)

func (r *fakeIdentities) WithTx(tx pgx.Tx) repositories.IdentityRepository { return r }

func (r *fakeIdentities) Add(ctx context.Context, identity *models.ExternalIdentity) error {
	for _, id := range r.s.identities {
		if id.SourceSystem == identity.SourceSystem && id.ExternalID == identity.ExternalID {
			if id.ContactID == identity.ContactID {
				return nil
			}
			return apperrors.ErrConflict
		}
	}
	r.s.identities = append(r.s.identities, identity)
	return nil
}

func (r *fakeIdentities) ListByContact(ctx context.Context, contactID uuid.UUID) ([]*models.ExternalIdentity, error) {
	var out []*models.ExternalIdentity
	for _, id := range r.s.identities {
		if id.ContactID == contactID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeIdentities) ListAll(ctx context.Context) (map[uuid.UUID][]models.ExternalIdentity, error) {
	out := map[uuid.UUID][]models.ExternalIdentity{}
	for _, id := range r.s.identities {
		out[id.ContactID] = append(out[id.ContactID], *id)
	}
	return out, nil
}

type fakeTransactions struct{ s *fakeState }

var _ repositories.TransactionRepository = (*fakeTransactions)(nil)

func (r *fakeTransactions) WithTx(tx pgx.Tx) repositories.TransactionRepository { return r }

func (r *fakeTransactions) Upsert(ctx context.Context, tx *models.Transaction) (bool, error) {
	for _, existing := range r.s.txs {
		if existing.SourceSystem == tx.SourceSystem && existing.ExternalID == tx.ExternalID {
			return false, nil
		}
	}
	r.s.txs = append(r.s.txs, tx)
	return true, nil
}

func (r *fakeTransactions) CountByContact(ctx context.Context, contactID uuid.UUID) (int, error) {
	n := 0
	for _, tx := range r.s.txs {
		if tx.ContactID == contactID {
			n++
		}
	}
	return n, nil
}

func (r *fakeTransactions) Reassign(ctx context.Context, from, to uuid.UUID) (int64, error) {
	var moved int64
	for _, tx := range r.s.txs {
		if tx.ContactID == from {
			tx.ContactID = to
			moved++
		}
	}
	return moved, nil
}

func (r *fakeTransactions) TransactionKeys(ctx context.Context) (map[uuid.UUID][]string, error) {
	out := map[uuid.UUID][]string{}
	for _, tx := range r.s.txs {
		out[tx.ContactID] = append(out[tx.ContactID], tx.SourceSystem+"|"+tx.ExternalID)
	}
	return out, nil
}

func (r *fakeTransactions) LastTransactionTimes(ctx context.Context) (map[uuid.UUID]time.Time, error) {
	out := map[uuid.UUID]time.Time{}
	for _, tx := range r.s.txs {
		if tx.OccurredAt.After(out[tx.ContactID]) {
			out[tx.ContactID] = tx.OccurredAt
		}
	}
	return out, nil
}

type fakeValidations struct{ s *fakeState }

var _ repositories.ValidationRepository = (*fakeValidations)(nil)

func (r *fakeValidations) WithTx(tx pgx.Tx) repositories.ValidationRepository { return r }

func (r *fakeValidations) Create(ctx context.Context, v *models.AddressValidation) error {
	r.s.validations = append(r.s.validations, v)
	return nil
}

func (r *fakeValidations) GetLatest(ctx context.Context, contactID uuid.UUID) (*models.AddressValidation, error) {
	var latest *models.AddressValidation
	for _, v := range r.s.validations {
		if v.ContactID == contactID && (latest == nil || v.ValidatedAt.After(latest.ValidatedAt)) {
			latest = v
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	return latest, nil
}

func (r *fakeValidations) LatestByContact(ctx context.Context) (map[uuid.UUID]*models.AddressValidation, error) {
	out := map[uuid.UUID]*models.AddressValidation{}
	for _, v := range r.s.validations {
		if cur, ok := out[v.ContactID]; !ok || v.ValidatedAt.After(cur.ValidatedAt) {
			out[v.ContactID] = v
		}
	}
	return out, nil
}

type fakeAudit struct{ s *fakeState }

var _ repositories.MergeAuditRepository = (*fakeAudit)(nil)

func (r *fakeAudit) WithTx(tx pgx.Tx) repositories.MergeAuditRepository { return r }

func (r *fakeAudit) Create(ctx context.Context, record *models.MergeRecord) error {
	r.s.audit = append(r.s.audit, record)
	return nil
}

func (r *fakeAudit) ListByRun(ctx context.Context, runID uuid.UUID) ([]*models.MergeRecord, error) {
	var out []*models.MergeRecord
	for _, rec := range r.s.audit {
		if rec.RunID == runID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeAudit) ListRecent(ctx context.Context, limit int) ([]*models.MergeRecord, error) {
	out := append([]*models.MergeRecord(nil), r.s.audit...)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// slowContacts delays member loads so a short group timeout fires mid-merge.
type slowContacts struct {
	repositories.ContactRepository
	delay time.Duration
}

func (r *slowContacts) WithTx(tx pgx.Tx) repositories.ContactRepository { return r }

func (r *slowContacts) GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.ContactRepository.GetByID(ctx, id)
}

// deadlineAudit rejects writes on an expired context the way a live
// connection would.
type deadlineAudit struct {
	repositories.MergeAuditRepository
}

func (r *deadlineAudit) Create(ctx context.Context, rec *models.MergeRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.MergeAuditRepository.Create(ctx, rec)
}
