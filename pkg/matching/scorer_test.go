package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestScorer() *GroupScorer {
	return NewGroupScorer(LevenshteinSimilarity{}, 0.9)
}

func TestScoreBand(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{score: 100, want: BandVeryHigh},
		{score: 90, want: BandVeryHigh},
		{score: 89, want: BandHigh},
		{score: 70, want: BandHigh},
		{score: 69, want: BandMedium},
		{score: 50, want: BandMedium},
		{score: 49, want: BandLow},
		{score: 0, want: BandLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreBand(tt.score), "score %d", tt.score)
	}
}

func TestGroupScorer_EmailAndNameExact(t *testing.T) {
	a := record(contact("Corin", "Blanchard", "corin@x.org"))
	b := record(contact("Corin", "Blanchard", "corin@x.org"))

	score, band := newTestScorer().Score([]ContactRecord{a, b})
	// email exact 50 + name exact 30
	assert.Equal(t, 80, score)
	assert.Equal(t, BandHigh, band)
}

func TestGroupScorer_EmailExactSupersedesDomain(t *testing.T) {
	a := record(contact("A", "One", "shared@x.org"))
	b := record(contact("B", "Two", "shared@x.org"))

	score, _ := newTestScorer().Score([]ContactRecord{a, b})
	assert.Equal(t, PointsEmailExact, score)
}

func TestGroupScorer_DomainMatchOnly(t *testing.T) {
	a := record(contact("A", "One", "alpha@x.org"))
	b := record(contact("B", "Two", "beta@x.org"))

	score, band := newTestScorer().Score([]ContactRecord{a, b})
	assert.Equal(t, PointsEmailDomain, score)
	assert.Equal(t, BandLow, band)
}

func TestGroupScorer_FuzzyNameSupersededByExact(t *testing.T) {
	exact := newTestScorer()

	a := record(contact("Corin", "Blanchard", "a@x.org"))
	b := record(contact("Corin", "Blanchard", "b@y.org"))
	score, _ := exact.Score([]ContactRecord{a, b})
	// name exact 30, nothing else
	assert.Equal(t, PointsNameExact, score)

	c := record(contact("Corin", "Blanchart", "c@z.org"))
	score, _ = exact.Score([]ContactRecord{a, c})
	assert.Equal(t, PointsNameFuzzy, score)
}

func TestGroupScorer_FullHouse(t *testing.T) {
	a := contact("Corin", "Blanchard", "corin@x.org")
	a.Phone = "303-555-0189"
	a.BillingStreet = "123 Main St"
	a.BillingPostalCode = "80302"
	b := contact("Corin", "Blanchard", "corin@x.org")
	b.Phone = "(303) 555-0189"
	b.BillingStreet = "123 Main Street"
	b.BillingPostalCode = "80302-1111"

	ra := record(a)
	ra.TransactionKeys = []string{"paypal|tx-1"}
	rb := record(b)
	rb.TransactionKeys = []string{"paypal|tx-1", "paypal|tx-2"}

	score, band := newTestScorer().Score([]ContactRecord{ra, rb})
	// 50 email + 30 name + 15 phone + 15 address + 10 tx overlap
	assert.Equal(t, 120, score)
	assert.Equal(t, BandVeryHigh, band)
}

func TestGroupScorer_GroupScoredByStrongestPair(t *testing.T) {
	a := record(contact("Corin", "Blanchard", "corin@x.org"))
	b := record(contact("Corin", "Blanchard", "corin@x.org"))
	c := record(contact("Renata", "Vasquez", "renata@q.org"))

	score, _ := newTestScorer().Score([]ContactRecord{a, c, b})
	assert.Equal(t, 80, score)
}
