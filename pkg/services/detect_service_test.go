package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eburns009/starhouse-crm/pkg/matching"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

func newDetectFixture() (*fakeState, DetectionService) {
	state := newFakeState()
	logger := zap.NewNop()
	sim := matching.LevenshteinSimilarity{}
	svc := NewDetectionService(
		&fakeContacts{s: state},
		&fakeEmails{s: state},
		&fakeIdentities{s: state},
		&fakeTransactions{s: state},
		matching.NewMatcher(sim, 0.9, logger),
		matching.NewGroupScorer(sim, 0.9),
		logger,
	)
	return state, svc
}

func TestDetect_GroupsSharedEmail(t *testing.T) {
	state, svc := newDetectFixture()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	a := seedContact(state, 3, base)
	a.Email = "jane@example.org"
	b := seedContact(state, 0, base.AddDate(0, 2, 0))
	b.Email = "jane@example.org"
	seedEmail(state, a.ID, "jane@example.org", true)
	seedEmail(state, b.ID, "jane@example.org", true)

	result, err := svc.Detect(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Groups, 1)
	group := result.Groups[0]
	assert.Equal(t, models.TierHigh, group.Tier)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, group.Members)
	assert.Equal(t, a.ID, group.PrimaryID, "contact with transactions should be primary")
	assert.GreaterOrEqual(t, group.Score, 50, "shared email alone is worth 50")
	assert.NotEmpty(t, group.ScoreBand)
}

func TestDetect_NoDuplicates(t *testing.T) {
	state, svc := newDetectFixture()
	base := time.Now()

	a := seedContact(state, 0, base)
	a.Email = "jane@example.org"
	a.FirstName, a.LastName = "Jane", "Doe"
	b := seedContact(state, 0, base)
	b.Email = "bob@elsewhere.net"
	b.FirstName, b.LastName = "Bob", "Smith"
	seedEmail(state, a.ID, "jane@example.org", true)
	seedEmail(state, b.ID, "bob@elsewhere.net", true)

	result, err := svc.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Groups)
	assert.Empty(t, result.Conflicts)
	assert.Len(t, result.Records, 2)
}

func TestDetect_ReportsIdentityConflicts(t *testing.T) {
	state, svc := newDetectFixture()
	base := time.Now()

	a := seedContact(state, 0, base)
	a.FirstName, a.LastName = "Jane", "Doe"
	b := seedContact(state, 0, base)
	b.FirstName, b.LastName = "Bob", "Smith"
	for _, c := range []*models.Contact{a, b} {
		state.identities = append(state.identities, &models.ExternalIdentity{
			ID:           uuid.New(),
			ContactID:    c.ID,
			SourceSystem: models.SourceKajabi,
			ExternalID:   "k-500",
		})
	}

	result, err := svc.Detect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Groups, "a shared identity is a conflict, not a match")
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "k-500", result.Conflicts[0].ExternalID)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, result.Conflicts[0].ContactIDs)
}
