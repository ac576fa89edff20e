// Package scoring computes mailability scores for the mailing-list export.
//
// The design is validation-first: disqualifiers are checked before anything
// else, a validated address earns a base score from validation recency, and
// recency/source signals are bonuses on top of that base, never a
// substitute for it. An unvalidated address is capped strictly below the
// lowest validated base so validated addresses always outrank unvalidated
// ones regardless of how fresh the unvalidated record looks.
package scoring

import (
	"time"

	"github.com/eburns009/starhouse-crm/pkg/models"
)

// Mailability tiers.
const (
	TierVeryHigh = "very_high"
	TierHigh     = "high"
	TierMedium   = "medium"
	TierLow      = "low"
	TierVeryLow  = "very_low"
)

// Disqualification reasons reported on zero-score assessments.
const (
	ReasonNCOAMove          = "ncoa_move"
	ReasonVacant            = "vacant"
	ReasonNotDeliverable    = "not_deliverable"
	ReasonIncompleteAddress = "incomplete_address"
)

// Validated base scores by recency. The 50-point floor for any validated
// address is the hard boundary unvalidated scores may never reach.
const (
	baseValidatedRecent  = 70 // deliverable, validated within 90 days
	baseValidatedYear    = 65 // within 1 year
	baseValidatedStale   = 60 // older than 1 year
	baseValidatedPartial = 50 // secondary-unit or partial match
	unvalidatedBase      = 15
	unvalidatedCap       = 40
)

// Assessment is the scored mailability of one contact.
type Assessment struct {
	ContactID    string `json:"contact_id"`
	Score        int    `json:"score"`
	Tier         string `json:"tier"`
	Disqualified bool   `json:"disqualified"`
	Reason       string `json:"reason,omitempty"`
}

// Mailable reports whether the contact may appear in an export restricted
// to minTier ("very_high", "high", "medium", "low").
func (a Assessment) Mailable(minTier string) bool {
	if a.Disqualified {
		return false
	}
	return tierRank(a.Tier) >= tierRank(minTier)
}

func tierRank(tier string) int {
	switch tier {
	case TierVeryHigh:
		return 4
	case TierHigh:
		return 3
	case TierMedium:
		return 2
	case TierLow:
		return 1
	}
	return 0
}

// MailabilityScorer scores contacts for mailing-list export. The clock is
// injectable for tests.
type MailabilityScorer struct {
	trusted map[string]bool
	now     func() time.Time
}

// NewMailabilityScorer creates a scorer treating the given source systems
// as trusted (platform of record).
func NewMailabilityScorer(trustedSources []string) *MailabilityScorer {
	trusted := make(map[string]bool, len(trustedSources))
	for _, s := range trustedSources {
		trusted[s] = true
	}
	return &MailabilityScorer{trusted: trusted, now: time.Now}
}

// Score assesses one contact. validation is the most recent postal
// validation record, nil when the address has never been validated; lastTx
// is the contact's most recent transaction time, nil when none exist.
//
// Tiers evaluate top to bottom, first match wins: disqualifiers, then the
// validated base by recency, then bonuses; the unvalidated fallback is a
// pure recency/source heuristic capped below every validated base.
func (s *MailabilityScorer) Score(contact *models.Contact, validation *models.AddressValidation, lastTx *time.Time) Assessment {
	out := Assessment{ContactID: contact.ID.String()}

	if reason := disqualify(contact, validation); reason != "" {
		out.Tier = TierVeryLow
		out.Disqualified = true
		out.Reason = reason
		return out
	}

	now := s.now()

	if validation != nil {
		out.Score = s.validatedBase(validation, now) + s.bonuses(contact, lastTx, now)
	} else {
		score := unvalidatedBase + s.bonuses(contact, lastTx, now)
		if score > unvalidatedCap {
			score = unvalidatedCap
		}
		out.Score = score
		out.Reason = "unvalidated"
	}

	out.Tier = scoreTier(out.Score)
	return out
}

// disqualify returns the first matching disqualifier reason, or "".
func disqualify(contact *models.Contact, validation *models.AddressValidation) string {
	if validation != nil {
		if validation.NCOAMoveDate != nil {
			return ReasonNCOAMove
		}
		if validation.Vacant {
			return ReasonVacant
		}
		if !validation.Deliverable {
			return ReasonNotDeliverable
		}
	}
	if !contact.HasCompleteAddress() {
		return ReasonIncompleteAddress
	}
	return ""
}

func (s *MailabilityScorer) validatedBase(v *models.AddressValidation, now time.Time) int {
	if v.MatchLevel != models.MatchLevelFull {
		return baseValidatedPartial
	}
	age := now.Sub(v.ValidatedAt)
	switch {
	case age <= 90*24*time.Hour:
		return baseValidatedRecent
	case age <= 365*24*time.Hour:
		return baseValidatedYear
	default:
		return baseValidatedStale
	}
}

func (s *MailabilityScorer) bonuses(contact *models.Contact, lastTx *time.Time, now time.Time) int {
	bonus := 0

	if lastTx != nil {
		switch age := now.Sub(*lastTx); {
		case age <= 30*24*time.Hour:
			bonus += 20
		case age <= 90*24*time.Hour:
			bonus += 15
		case age <= 180*24*time.Hour:
			bonus += 10
		case age <= 365*24*time.Hour:
			bonus += 5
		}
	}

	switch age := now.Sub(contact.UpdatedAt); {
	case age <= 90*24*time.Hour:
		bonus += 10
	case age <= 365*24*time.Hour:
		bonus += 5
	}

	if s.trusted[contact.SourceSystem] {
		bonus += 5
	}

	return bonus
}

func scoreTier(score int) string {
	switch {
	case score >= 80:
		return TierVeryHigh
	case score >= 60:
		return TierHigh
	case score >= 40:
		return TierMedium
	default:
		return TierLow
	}
}
