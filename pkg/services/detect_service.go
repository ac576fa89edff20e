package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/eburns009/starhouse-crm/pkg/matching"
	"github.com/eburns009/starhouse-crm/pkg/models"
	"github.com/eburns009/starhouse-crm/pkg/repositories"
)

// DetectionService runs duplicate detection over the active contact set.
type DetectionService interface {
	// Detect loads every active contact with its emails, identities, and
	// transaction keys, runs the matcher, and returns scored groups with a
	// provisional primary chosen for each.
	Detect(ctx context.Context) (*DetectionResult, error)
}

// DetectionResult is one detection pass: scored groups ordered by
// confidence, plus any identity conflicts found along the way.
type DetectionResult struct {
	Groups    []*models.DuplicateGroup  `json:"groups"`
	Conflicts []models.IdentityConflict `json:"conflicts,omitempty"`

	// Records indexes the loaded contact records by ID so callers (the
	// merge engine, reports) can resolve group members without re-querying.
	Records map[string]matching.ContactRecord `json:"-"`
}

type detectionService struct {
	contacts     repositories.ContactRepository
	emails       repositories.EmailRepository
	identities   repositories.IdentityRepository
	transactions repositories.TransactionRepository
	matcher      *matching.Matcher
	scorer       *matching.GroupScorer
	logger       *zap.Logger
}

// NewDetectionService creates a detection service.
func NewDetectionService(
	contacts repositories.ContactRepository,
	emails repositories.EmailRepository,
	identities repositories.IdentityRepository,
	transactions repositories.TransactionRepository,
	matcher *matching.Matcher,
	scorer *matching.GroupScorer,
	logger *zap.Logger,
) DetectionService {
	return &detectionService{
		contacts:     contacts,
		emails:       emails,
		identities:   identities,
		transactions: transactions,
		matcher:      matcher,
		scorer:       scorer,
		logger:       logger.Named("detection"),
	}
}

var _ DetectionService = (*detectionService)(nil)

func (s *detectionService) Detect(ctx context.Context) (*DetectionResult, error) {
	records, err := s.loadRecords(ctx)
	if err != nil {
		return nil, err
	}

	result := s.matcher.Match(records)

	index := make(map[string]matching.ContactRecord, len(records))
	for _, r := range records {
		index[r.Contact.ID.String()] = r
	}

	for _, group := range result.Groups {
		members := make([]matching.ContactRecord, 0, len(group.Members))
		candidates := make([]*models.Contact, 0, len(group.Members))
		for _, id := range group.Members {
			rec, ok := index[id.String()]
			if !ok {
				continue
			}
			members = append(members, rec)
			candidates = append(candidates, rec.Contact)
		}
		group.Score, group.ScoreBand = s.scorer.Score(members)
		group.PrimaryID = SelectPrimary(candidates).ID
	}

	s.logger.Info("detection pass complete",
		zap.Int("contacts", len(records)),
		zap.Int("groups", len(result.Groups)),
		zap.Int("conflicts", len(result.Conflicts)))

	return &DetectionResult{
		Groups:    result.Groups,
		Conflicts: result.Conflicts,
		Records:   index,
	}, nil
}

// loadRecords assembles matcher input in four bulk queries rather than one
// query per contact.
func (s *detectionService) loadRecords(ctx context.Context) ([]matching.ContactRecord, error) {
	contacts, err := s.contacts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	emails, err := s.emails.ListAddresses(ctx)
	if err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}

	identities, err := s.identities.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}

	txKeys, err := s.transactions.TransactionKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transaction keys: %w", err)
	}

	records := make([]matching.ContactRecord, 0, len(contacts))
	for _, c := range contacts {
		records = append(records, matching.ContactRecord{
			Contact:         c,
			Emails:          emails[c.ID],
			Identities:      identities[c.ID],
			TransactionKeys: txKeys[c.ID],
		})
	}
	return records, nil
}
