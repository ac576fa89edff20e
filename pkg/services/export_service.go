package services

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eburns009/starhouse-crm/pkg/models"
	"github.com/eburns009/starhouse-crm/pkg/repositories"
	"github.com/eburns009/starhouse-crm/pkg/scoring"
)

// ScoredContact pairs a contact with its mailability assessment.
type ScoredContact struct {
	Contact    *models.Contact    `json:"contact"`
	Assessment scoring.Assessment `json:"assessment"`
}

// ExportSummary reports the outcome of one export.
type ExportSummary struct {
	Scored       int    `json:"scored"`
	Exported     int    `json:"exported"`
	Disqualified int    `json:"disqualified"`
	MinTier      string `json:"min_tier"`
}

// ExportService scores contact mailability and produces mail-house CSVs.
type ExportService interface {
	// ScoreAll assesses every active contact, ordered by score descending.
	ScoreAll(ctx context.Context) ([]ScoredContact, error)

	// ExportMailingList writes a mail-house CSV of contacts at or above
	// minTier. Disqualified addresses never appear regardless of tier.
	ExportMailingList(ctx context.Context, w io.Writer, minTier string) (*ExportSummary, error)
}

type exportService struct {
	contacts     repositories.ContactRepository
	validations  repositories.ValidationRepository
	transactions repositories.TransactionRepository
	scorer       *scoring.MailabilityScorer
	logger       *zap.Logger
}

// NewExportService creates an export service.
func NewExportService(
	contacts repositories.ContactRepository,
	validations repositories.ValidationRepository,
	transactions repositories.TransactionRepository,
	scorer *scoring.MailabilityScorer,
	logger *zap.Logger,
) ExportService {
	return &exportService{
		contacts:     contacts,
		validations:  validations,
		transactions: transactions,
		scorer:       scorer,
		logger:       logger.Named("export"),
	}
}

var _ ExportService = (*exportService)(nil)

func (s *exportService) ScoreAll(ctx context.Context) ([]ScoredContact, error) {
	contacts, err := s.contacts.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	validations, err := s.validations.LatestByContact(ctx)
	if err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}

	lastTx, err := s.transactions.LastTransactionTimes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transaction times: %w", err)
	}

	scored := make([]ScoredContact, 0, len(contacts))
	for _, c := range contacts {
		var last *time.Time
		if t, ok := lastTx[c.ID]; ok {
			last = &t
		}
		scored = append(scored, ScoredContact{
			Contact:    c,
			Assessment: s.scorer.Score(c, validations[c.ID], last),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Assessment.Score > scored[j].Assessment.Score
	})
	return scored, nil
}

// Mail-house CSV layout.
var exportHeader = []string{
	"contact_id", "first_name", "last_name", "organization",
	"street", "city", "state", "postal_code", "country",
	"email", "mailability_score", "mailability_tier",
}

func (s *exportService) ExportMailingList(ctx context.Context, w io.Writer, minTier string) (*ExportSummary, error) {
	scored, err := s.ScoreAll(ctx)
	if err != nil {
		return nil, err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	summary := &ExportSummary{Scored: len(scored), MinTier: minTier}
	for _, sc := range scored {
		if sc.Assessment.Disqualified {
			summary.Disqualified++
			continue
		}
		if !sc.Assessment.Mailable(minTier) {
			continue
		}
		c := sc.Contact
		record := []string{
			c.ID.String(),
			c.FirstName, c.LastName, c.AdditionalName,
			c.BillingStreet, c.BillingCity, c.BillingState,
			c.BillingPostalCode, c.BillingCountry,
			c.Email,
			strconv.Itoa(sc.Assessment.Score),
			sc.Assessment.Tier,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
		summary.Exported++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush: %w", err)
	}

	s.logger.Info("mailing list exported",
		zap.String("min_tier", minTier),
		zap.Int("scored", summary.Scored),
		zap.Int("exported", summary.Exported),
		zap.Int("disqualified", summary.Disqualified))
	return summary, nil
}
