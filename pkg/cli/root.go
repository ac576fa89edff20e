// Package cli implements the starhouse command-line interface.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eburns009/starhouse-crm/pkg/audit"
	"github.com/eburns009/starhouse-crm/pkg/config"
	"github.com/eburns009/starhouse-crm/pkg/database"
	"github.com/eburns009/starhouse-crm/pkg/logging"
	"github.com/eburns009/starhouse-crm/pkg/matching"
	"github.com/eburns009/starhouse-crm/pkg/repositories"
	"github.com/eburns009/starhouse-crm/pkg/scoring"
	"github.com/eburns009/starhouse-crm/pkg/services"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "starhouse",
	Short: "Contact identity resolution and merge engine",
	Long: `starhouse imports contact exports from the source systems, detects
duplicate contacts, merges them under an auditable policy, and produces
mailability-scored mailing lists.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to config file")
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(scoreAddressesCmd)
	rootCmd.AddCommand(migrateCmd)
}

// Execute runs the CLI. Errors are reported by cobra; callers only need
// the exit status.
func Execute(version string) error {
	rootCmd.Version = version
	return rootCmd.Execute()
}

// app bundles the wired-up services behind each command.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *database.DB

	imports   services.ImportService
	detection services.DetectionService
	merges    services.MergeService
	exports   services.ExportService
	auditRepo repositories.MergeAuditRepository
}

// newApp loads config, connects to the database, and wires every service.
// The returned cleanup closes the pool and flushes the logger.
func newApp(ctx context.Context) (*app, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.Database.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		logger.Sync() //nolint:errcheck
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	contacts := repositories.NewContactRepository(db)
	emails := repositories.NewEmailRepository(db)
	identities := repositories.NewIdentityRepository(db)
	transactions := repositories.NewTransactionRepository(db)
	validations := repositories.NewValidationRepository(db)
	auditRepo := repositories.NewMergeAuditRepository(db)

	sim := matching.LevenshteinSimilarity{}
	matcher := matching.NewMatcher(sim, cfg.Matching.FuzzyThreshold, logger)
	groupScorer := matching.NewGroupScorer(sim, cfg.Matching.FuzzyThreshold)
	mailScorer := scoring.NewMailabilityScorer(cfg.Scoring.TrustedSources)

	a := &app{
		cfg:    cfg,
		logger: logger,
		db:     db,

		imports: services.NewImportService(
			db, contacts, emails, identities, transactions, cfg.SourcePolicy, logger),
		detection: services.NewDetectionService(
			contacts, emails, identities, transactions, matcher, groupScorer, logger),
		merges: services.NewMergeService(
			db, contacts, emails, transactions, auditRepo,
			audit.NewMergeAuditor(logger), logger),
		exports: services.NewExportService(
			contacts, validations, transactions, mailScorer, logger),
		auditRepo: auditRepo,
	}

	cleanup := func() {
		db.Close()
		logger.Sync() //nolint:errcheck
	}
	return a, cleanup, nil
}
