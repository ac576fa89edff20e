package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eburns009/starhouse-crm/pkg/logging"
	"github.com/eburns009/starhouse-crm/pkg/models"
)

var (
	detectMinConfidence string
	detectJSON          bool
)

var detectCmd = &cobra.Command{
	Use:   "detect-duplicates",
	Short: "Detect duplicate contact groups",
	Long: `Detect runs the matcher over every active contact and prints the
duplicate groups it finds, strongest first. Nothing is merged; pass a member
contact ID to "starhouse merge --group" to act on one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, cleanup, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		result, err := app.detection.Detect(ctx)
		if err != nil {
			return err
		}

		minRank := models.ConfidenceTier(detectMinConfidence).Rank()
		if minRank == 0 && detectMinConfidence != "" {
			return fmt.Errorf("unknown confidence tier %q", detectMinConfidence)
		}

		groups := make([]*models.DuplicateGroup, 0, len(result.Groups))
		for _, g := range result.Groups {
			if g.Tier.Rank() >= minRank {
				groups = append(groups, g)
			}
		}
		sort.SliceStable(groups, func(i, j int) bool {
			if groups[i].Tier.Rank() != groups[j].Tier.Rank() {
				return groups[i].Tier.Rank() > groups[j].Tier.Rank()
			}
			return groups[i].Score > groups[j].Score
		})

		if detectJSON {
			out := struct {
				Groups    []*models.DuplicateGroup  `json:"groups"`
				Conflicts []models.IdentityConflict `json:"conflicts,omitempty"`
			}{groups, result.Conflicts}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		tierColor := map[models.ConfidenceTier]func(format string, a ...interface{}) string{
			models.TierHigh:   color.GreenString,
			models.TierMedium: color.YellowString,
			models.TierLow:    color.HiBlackString,
		}

		for _, g := range groups {
			fmt.Printf("%s %s  score %d (%s)  keys %s\n",
				tierColor[g.Tier]("[%s]", g.Tier), g.ID, g.Score, g.ScoreBand,
				strings.Join(g.MatchKeys, ","))
			for _, id := range g.Members {
				marker := " "
				if id == g.PrimaryID {
					marker = "*"
				}
				rec, ok := result.Records[id.String()]
				if !ok {
					continue
				}
				fmt.Printf("  %s %s  %s  %s\n", marker, id,
					rec.Contact.FullName(), logging.MaskEmail(rec.Contact.Email))
			}
		}

		for _, c := range result.Conflicts {
			fmt.Printf("%s %s/%s shared by %d contacts\n",
				color.RedString("[conflict]"), c.SourceSystem, c.ExternalID, len(c.ContactIDs))
		}

		fmt.Printf("\n%d groups, %d conflicts\n", len(groups), len(result.Conflicts))
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectMinConfidence, "min-confidence", "", "lowest tier to report (high, medium, low)")
	detectCmd.Flags().BoolVar(&detectJSON, "json", false, "emit JSON instead of a table")
}
