package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eburns009/starhouse-crm/pkg/services"
)

var (
	importSource string
	importFile   string
	importDryRun bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a source-system CSV export",
	Long: `Import reconciles a CSV export against the existing contact set.
Rows resolve by external identity first, then by email; re-running the
same file is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, cleanup, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("open %s: %w", importFile, err)
		}
		defer f.Close()

		summary, err := app.imports.Import(ctx, importSource, f,
			services.ImportOptions{DryRun: importDryRun})
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		if summary.DryRun {
			fmt.Printf("%s (no changes written)\n", bold("Dry run"))
		}
		fmt.Printf("%s: %d rows\n", bold(summary.Source), summary.Rows)
		fmt.Printf("  created:      %d\n", summary.Created)
		fmt.Printf("  updated:      %d\n", summary.Updated)
		fmt.Printf("  unchanged:    %d\n", summary.Unchanged)
		fmt.Printf("  transactions: %d\n", summary.TransactionsAdded)
		if summary.Skipped > 0 {
			fmt.Printf("  %s      %d\n", color.YellowString("skipped:"), summary.Skipped)
		}
		if summary.IdentityConflicts > 0 {
			fmt.Printf("  %s    %d\n", color.RedString("conflicts:"), summary.IdentityConflicts)
		}
		if summary.Skipped > 0 {
			return fmt.Errorf("%d rows skipped", summary.Skipped)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importSource, "source", "", "source system (kajabi, paypal, zoho, tickettailor, quickbooks, google_contacts)")
	importCmd.Flags().StringVar(&importFile, "file", "", "path to the CSV export")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report what would change without writing")
	importCmd.MarkFlagRequired("source") //nolint:errcheck
	importCmd.MarkFlagRequired("file")   //nolint:errcheck
}
