package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/eburns009/starhouse-crm/pkg/models"
)

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newTestScorer() *MailabilityScorer {
	s := NewMailabilityScorer([]string{models.SourceKajabi})
	s.now = func() time.Time { return testNow }
	return s
}

func mailableContact() *models.Contact {
	return &models.Contact{
		ID:                uuid.New(),
		FirstName:         "Corin",
		LastName:          "Blanchard",
		BillingStreet:     "123 Main St",
		BillingCity:       "Boulder",
		BillingState:      "CO",
		BillingPostalCode: "80302",
		SourceSystem:      models.SourceZoho,
		UpdatedAt:         testNow.AddDate(-2, 0, 0),
	}
}

func validation(level string, age time.Duration) *models.AddressValidation {
	return &models.AddressValidation{
		Deliverable: true,
		MatchLevel:  level,
		ValidatedAt: testNow.Add(-age),
	}
}

func days(n int) time.Duration { return time.Duration(n) * 24 * time.Hour }

func TestScore_Disqualifiers(t *testing.T) {
	moveDate := testNow.AddDate(0, -1, 0)

	tests := []struct {
		name       string
		contact    *models.Contact
		validation *models.AddressValidation
		reason     string
	}{
		{
			name:    "ncoa move zeroes everything",
			contact: mailableContact(),
			validation: &models.AddressValidation{
				Deliverable:  true,
				MatchLevel:   models.MatchLevelFull,
				ValidatedAt:  testNow.Add(-days(10)),
				NCOAMoveDate: &moveDate,
			},
			reason: ReasonNCOAMove,
		},
		{
			name:    "vacant address",
			contact: mailableContact(),
			validation: &models.AddressValidation{
				Deliverable: true,
				Vacant:      true,
				MatchLevel:  models.MatchLevelFull,
				ValidatedAt: testNow.Add(-days(10)),
			},
			reason: ReasonVacant,
		},
		{
			name:    "not deliverable",
			contact: mailableContact(),
			validation: &models.AddressValidation{
				Deliverable: false,
				MatchLevel:  models.MatchLevelFull,
				ValidatedAt: testNow.Add(-days(10)),
			},
			reason: ReasonNotDeliverable,
		},
		{
			name:    "incomplete address",
			contact: &models.Contact{ID: uuid.New(), BillingStreet: "123 Main St"},
			reason:  ReasonIncompleteAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newTestScorer().Score(tt.contact, tt.validation, nil)
			assert.Equal(t, 0, got.Score)
			assert.Equal(t, TierVeryLow, got.Tier)
			assert.True(t, got.Disqualified)
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestScore_DisqualifierBeatsFreshActivity(t *testing.T) {
	// A move on record must zero the score even when the contact transacted
	// yesterday.
	moveDate := testNow.AddDate(0, -2, 0)
	v := validation(models.MatchLevelFull, days(10))
	v.NCOAMoveDate = &moveDate
	lastTx := testNow.Add(-24 * time.Hour)

	got := newTestScorer().Score(mailableContact(), v, &lastTx)
	assert.Equal(t, 0, got.Score)
	assert.Equal(t, TierVeryLow, got.Tier)
}

func TestScore_ValidatedBases(t *testing.T) {
	tests := []struct {
		name string
		v    *models.AddressValidation
		want int
	}{
		{name: "validated within 90 days", v: validation(models.MatchLevelFull, days(10)), want: 70},
		{name: "validated within a year", v: validation(models.MatchLevelFull, days(200)), want: 65},
		{name: "validated over a year ago", v: validation(models.MatchLevelFull, days(400)), want: 60},
		{name: "secondary unit match", v: validation(models.MatchLevelSecondary, days(10)), want: 50},
		{name: "partial match", v: validation(models.MatchLevelPartial, days(10)), want: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Contact with no bonus-earning activity
			got := newTestScorer().Score(mailableContact(), tt.v, nil)
			assert.Equal(t, tt.want, got.Score)
		})
	}
}

func TestScore_BonusesAddToBase(t *testing.T) {
	c := mailableContact()
	c.SourceSystem = models.SourceKajabi              // trusted +5
	c.UpdatedAt = testNow.Add(-days(30))              // +10
	lastTx := testNow.Add(-days(7))                   // +20
	v := validation(models.MatchLevelFull, days(10))  // base 70

	got := newTestScorer().Score(c, v, &lastTx)
	assert.Equal(t, 105, got.Score)
	assert.Equal(t, TierVeryHigh, got.Tier)
}

func TestScore_UnvalidatedCappedBelowValidatedFloor(t *testing.T) {
	// Maximum possible unvalidated score: fresh transaction, fresh update,
	// trusted source.
	c := mailableContact()
	c.SourceSystem = models.SourceKajabi
	c.UpdatedAt = testNow.Add(-days(1))
	lastTx := testNow.Add(-days(1))

	unvalidated := newTestScorer().Score(c, nil, &lastTx)
	assert.Equal(t, unvalidatedCap, unvalidated.Score)
	assert.Equal(t, "unvalidated", unvalidated.Reason)

	// The weakest validated contact still beats it.
	stale := mailableContact()
	validated := newTestScorer().Score(stale, validation(models.MatchLevelPartial, days(900)), nil)
	assert.Greater(t, validated.Score, unvalidated.Score)
}

func TestScore_ValidatedVsUnvalidatedExample(t *testing.T) {
	// Contact A: DPV confirmed 10 days ago, no move. Contact B: never
	// validated but transacted yesterday. A must be "high" or better and
	// strictly outrank B.
	a := newTestScorer().Score(mailableContact(), validation(models.MatchLevelFull, days(10)), nil)
	lastTx := testNow.Add(-24 * time.Hour)
	b := newTestScorer().Score(mailableContact(), nil, &lastTx)

	assert.GreaterOrEqual(t, tierRankForTest(t, a.Tier), tierRankForTest(t, TierHigh))
	assert.Greater(t, a.Score, b.Score)
}

func tierRankForTest(t *testing.T, tier string) int {
	t.Helper()
	return tierRank(tier)
}

func TestScore_TierBoundaries(t *testing.T) {
	assert.Equal(t, TierVeryHigh, scoreTier(80))
	assert.Equal(t, TierHigh, scoreTier(79))
	assert.Equal(t, TierHigh, scoreTier(60))
	assert.Equal(t, TierMedium, scoreTier(59))
	assert.Equal(t, TierMedium, scoreTier(40))
	assert.Equal(t, TierLow, scoreTier(39))
}

func TestAssessment_Mailable(t *testing.T) {
	assert.True(t, Assessment{Tier: TierVeryHigh}.Mailable(TierHigh))
	assert.True(t, Assessment{Tier: TierHigh}.Mailable(TierHigh))
	assert.False(t, Assessment{Tier: TierMedium}.Mailable(TierHigh))
	assert.False(t, Assessment{Tier: TierVeryHigh, Disqualified: true}.Mailable(TierLow))
}
