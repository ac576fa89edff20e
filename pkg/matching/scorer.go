package matching

// Point values for duplicate-group confidence scoring. Additive per pair;
// email-exact supersedes domain-match and name-exact supersedes fuzzy, so a
// single signal is never counted twice.
const (
	PointsEmailExact   = 50
	PointsEmailDomain  = 10
	PointsNameExact    = 30
	PointsNameFuzzy    = 20
	PointsPhoneMatch   = 15
	PointsAddressMatch = 15
	PointsTxOverlap    = 10
)

// Score bands for review ranking.
const (
	BandVeryHigh = "very_high" // >= 90: auto-merge candidate
	BandHigh     = "high"      // 70-89: manual review
	BandMedium   = "medium"    // 50-69: possible
	BandLow      = "low"       // < 50: likely false positive
)

// ScoreBand maps a numeric score to its review band.
func ScoreBand(score int) string {
	switch {
	case score >= 90:
		return BandVeryHigh
	case score >= 70:
		return BandHigh
	case score >= 50:
		return BandMedium
	default:
		return BandLow
	}
}

// GroupScorer assigns numeric confidence scores to duplicate groups for
// manual-review ranking. The score never changes merge eligibility; that is
// decided by the group tier alone.
type GroupScorer struct {
	sim       Similarity
	threshold float64
}

// NewGroupScorer creates a scorer sharing the matcher's similarity strategy
// and fuzzy threshold.
func NewGroupScorer(sim Similarity, threshold float64) *GroupScorer {
	return &GroupScorer{sim: sim, threshold: threshold}
}

// Score evaluates every pair of member records and scores the group by its
// strongest pair.
func (s *GroupScorer) Score(members []ContactRecord) (int, string) {
	best := 0
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if score := s.scorePair(members[i], members[j]); score > best {
				best = score
			}
		}
	}
	return best, ScoreBand(best)
}

func (s *GroupScorer) scorePair(a, b ContactRecord) int {
	score := 0

	aEmails := MatchKeyEmailCandidates(a)
	bEmails := MatchKeyEmailCandidates(b)
	switch {
	case sharedString(aEmails, bEmails):
		score += PointsEmailExact
	case sharedDomain(aEmails, bEmails):
		score += PointsEmailDomain
	}

	aName := NormalizeName(a.Contact.FullName())
	bName := NormalizeName(b.Contact.FullName())
	if aName != "" && bName != "" {
		switch {
		case aName == bName:
			score += PointsNameExact
		case s.sim.Score(aName, bName) >= s.threshold:
			score += PointsNameFuzzy
		}
	}

	if p := NormalizePhone(a.Contact.Phone); p != "" && p == NormalizePhone(b.Contact.Phone) {
		score += PointsPhoneMatch
	}

	aAddr := AddressKey(a.Contact.BillingStreet, a.Contact.BillingPostalCode)
	if aAddr != "" && aAddr == AddressKey(b.Contact.BillingStreet, b.Contact.BillingPostalCode) {
		score += PointsAddressMatch
	}

	if sharedString(a.TransactionKeys, b.TransactionKeys) {
		score += PointsTxOverlap
	}

	return score
}

func sharedString(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}

func sharedDomain(aEmails, bEmails []string) bool {
	domains := make(map[string]bool, len(aEmails))
	for _, e := range aEmails {
		if d := EmailDomain(e); d != "" {
			domains[d] = true
		}
	}
	for _, e := range bEmails {
		if domains[EmailDomain(e)] {
			return true
		}
	}
	return false
}
