package cmd

import (
	"errors"
	"fmt"
	"os"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/abhisek/opoplan/internal/plans"
	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/theme"
	uitheme "github.com/abhisek/opoplan/internal/ui/theme"
)

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Work with custom block configurations",
}

var blocksValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check a blocks configuration without creating a plan",
	Long: `Check a JSON blocks configuration (the blocksConfig of a custom plan)
and report every problem grouped by block number. No database is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read blocks: %w", err)
		}
		blocks, err := plans.ParseBlocks(raw)
		if err != nil {
			return err
		}

		minutes, _ := cmd.Flags().GetInt("minutes")
		ids, _ := cmd.Flags().GetStringSlice("themes")
		var known map[theme.Ref]bool
		if len(ids) > 0 {
			known = make(map[theme.Ref]bool, len(ids))
			for _, id := range ids {
				ref, err := theme.ParseRef(id)
				if err != nil {
					return fmt.Errorf("--themes: %w", err)
				}
				known[ref] = true
			}
		}

		err = schedule.ValidateBlocks(blocks, minutes, schedule.DefaultConfig().MaxActivitiesPerDay, known)
		var be *schedule.BlockValidationError
		if errors.As(err, &be) {
			printBlockProblems(cmd.OutOrStdout(), be)
			return fmt.Errorf("%d problems in %d blocks", len(be.Problems), len(be.ByBlock()))
		}
		if err != nil {
			return err
		}
		lipgloss.Fprintln(cmd.OutOrStdout(), uitheme.Good.Render(fmt.Sprintf("%d blocks OK", len(blocks))))
		return nil
	},
}

func init() {
	blocksValidateCmd.Flags().Int("minutes", 0, "Daily minute budget (0 means a whole day)")
	blocksValidateCmd.Flags().StringSlice("themes", nil, "Theme ids the blocks may reference, e.g. 1,2,7-2")
	blocksCmd.AddCommand(blocksValidateCmd)
}
