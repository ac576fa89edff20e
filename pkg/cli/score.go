package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eburns009/starhouse-crm/pkg/logging"
	"github.com/eburns009/starhouse-crm/pkg/scoring"
)

var (
	scoreOut     string
	scoreMinTier string
)

var scoreAddressesCmd = &cobra.Command{
	Use:   "score-addresses",
	Short: "Score mailability and export a mailing list",
	Long: `Score assesses every active contact's mailability from its latest
postal validation and activity. With --out it writes a mail-house CSV of
contacts at or above --min-tier; otherwise it prints the assessments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, cleanup, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		if scoreOut != "" {
			f, err := os.Create(scoreOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", scoreOut, err)
			}
			defer f.Close()

			summary, err := app.exports.ExportMailingList(ctx, f, scoreMinTier)
			if err != nil {
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("close %s: %w", scoreOut, err)
			}

			fmt.Printf("%d of %d contacts exported to %s (min tier %s, %d disqualified)\n",
				summary.Exported, summary.Scored, scoreOut, summary.MinTier, summary.Disqualified)
			return nil
		}

		scored, err := app.exports.ScoreAll(ctx)
		if err != nil {
			return err
		}

		tierColor := map[string]func(format string, a ...interface{}) string{
			scoring.TierVeryHigh: color.GreenString,
			scoring.TierHigh:     color.GreenString,
			scoring.TierMedium:   color.YellowString,
			scoring.TierLow:      color.HiBlackString,
			scoring.TierVeryLow:  color.RedString,
		}

		for _, sc := range scored {
			label := tierColor[sc.Assessment.Tier]("%-9s", sc.Assessment.Tier)
			line := fmt.Sprintf("%3d %s %s %s", sc.Assessment.Score, label,
				sc.Contact.FullName(), logging.MaskEmail(sc.Contact.Email))
			if sc.Assessment.Reason != "" {
				line += "  (" + sc.Assessment.Reason + ")"
			}
			fmt.Println(line)
		}
		fmt.Printf("\n%d contacts scored\n", len(scored))
		return nil
	},
}

func init() {
	scoreAddressesCmd.Flags().StringVar(&scoreOut, "out", "", "write a mailing-list CSV to this path")
	scoreAddressesCmd.Flags().StringVar(&scoreMinTier, "min-tier", scoring.TierHigh, "lowest mailability tier to export")
}
