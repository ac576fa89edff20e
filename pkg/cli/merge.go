package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/eburns009/starhouse-crm/pkg/models"
	"github.com/eburns009/starhouse-crm/pkg/services"
)

var (
	mergeContact string
	mergeAuto    bool
	mergeExecute bool
	mergeWorkers int
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate contact groups",
	Long: `Merge re-runs detection and merges duplicate groups into their primary
contact, one transaction per group. Without --execute every group is a dry
run and nothing is written.

With --auto, every high-confidence group is merged. With --group <contact-id>,
only the group containing that contact is merged; reviewing a specific group
this way also permits medium- and low-tier merges.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !mergeAuto && mergeContact == "" {
			return fmt.Errorf("nothing selected: pass --auto or --group <contact-id>")
		}

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

		var groups []*models.DuplicateGroup
		force := false
		if mergeContact != "" {
			contactID, err := uuid.Parse(mergeContact)
			if err != nil {
				return fmt.Errorf("invalid contact id %q: %w", mergeContact, err)
			}
			group := findGroup(result.Groups, contactID)
			if group == nil {
				return fmt.Errorf("no duplicate group contains contact %s", contactID)
			}
			groups = []*models.DuplicateGroup{group}
			force = true
		} else {
			for _, g := range result.Groups {
				if g.AutoMergeable() {
					groups = append(groups, g)
				}
			}
		}

		workers := mergeWorkers
		if workers == 0 {
			workers = app.cfg.Merge.Workers
		}

		summary, err := app.merges.Run(ctx, groups, services.MergeOptions{
			DryRun:       !mergeExecute,
			Force:        force,
			Workers:      workers,
			GroupTimeout: app.cfg.Merge.GroupTimeout,
		})
		if err != nil {
			return err
		}

		bold := color.New(color.Bold).SprintFunc()
		if !mergeExecute {
			fmt.Printf("%s (pass --execute to write)\n", bold("Dry run"))
		}
		fmt.Printf("run %s\n", summary.RunID)
		fmt.Printf("  %s  %d\n", color.GreenString("merged:"), summary.Merged)
		fmt.Printf("  skipped: %d\n", summary.Skipped)
		if summary.Failed > 0 {
			fmt.Printf("  %s  %d\n", color.RedString("failed:"), summary.Failed)
		}
		for _, rec := range summary.Records {
			if rec.Status == models.MergeStatusFailed {
				fmt.Printf("  %s group %v: %s\n", color.RedString("!"), rec.GroupMembers, rec.Error)
			}
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d groups failed", summary.Failed, len(groups))
		}
		return nil
	},
}

// findGroup returns the group containing the given contact, or nil.
func findGroup(groups []*models.DuplicateGroup, contactID uuid.UUID) *models.DuplicateGroup {
	for _, g := range groups {
		for _, id := range g.Members {
			if id == contactID {
				return g
			}
		}
	}
	return nil
}

func init() {
	mergeCmd.Flags().StringVar(&mergeContact, "group", "", "merge only the group containing this contact id")
	mergeCmd.Flags().BoolVar(&mergeAuto, "auto", false, "merge every high-confidence group")
	mergeCmd.Flags().BoolVar(&mergeExecute, "execute", false, "write merges; the default is a dry run")
	mergeCmd.Flags().IntVar(&mergeWorkers, "workers", 0, "concurrent merge groups (default from config)")
}
