package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/opoplan/internal/app"
	"github.com/abhisek/opoplan/internal/plans"
	"github.com/abhisek/opoplan/internal/schedule"
	"github.com/abhisek/opoplan/internal/store"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Create and inspect study plans",
}

var planCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a plan from a JSON request and generate its sessions",
	Long: `Create a plan from a JSON request file and generate its sessions inline.

The file holds the same body as POST /api/plans. With --custom it holds a
custom-blocks request (POST /api/plans/custom) instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		file, _ := cmd.Flags().GetString("file")
		custom, _ := cmd.Flags().GetBool("custom")

		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read request: %w", err)
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		var res *plans.CreateResult
		if custom {
			var req plans.CustomRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("parse request: %w", err)
			}
			res, err = a.Plans.CreateCustom(ctx, user, req)
		} else {
			var req plans.CreateRequest
			if err := json.Unmarshal(raw, &req); err != nil {
				return fmt.Errorf("parse request: %w", err)
			}
			res, err = a.Plans.Create(ctx, user, req)
		}
		if err != nil {
			var be *schedule.BlockValidationError
			if errors.As(err, &be) {
				printBlockProblems(cmd.ErrOrStderr(), be)
			}
			return err
		}
		printCreateResult(out, res)

		// Generation failures are recorded on the plan and shown below.
		_ = a.Plans.Generate(ctx, res.Plan.ID)
		return showPlan(cmd, a, res.Plan.ID)
	},
}

var planStatusCmd = &cobra.Command{
	Use:   "status <plan-id>",
	Short: "Show a plan, its generation state and progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		return showPlan(cmd, a, args[0])
	},
}

var planSessionsCmd = &cobra.Command{
	Use:   "sessions <plan-id>",
	Short: "List a plan's sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := sessionFlags(cmd)
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sessions, err := a.Plans.Sessions(cmd.Context(), "", args[0], f)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		printSessions(cmd.OutOrStdout(), sessions)
		return nil
	},
}

var planReportCmd = &cobra.Command{
	Use:   "report <plan-id>",
	Short: "Show per-theme statistics, block equity and part breakdowns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		stats, err := a.Plans.ThemeStats(ctx, "", args[0])
		if err != nil {
			return fmt.Errorf("theme stats: %w", err)
		}
		eq, err := a.Plans.Equity(ctx, "", args[0])
		if err != nil {
			return fmt.Errorf("equity: %w", err)
		}
		parts, err := a.Plans.Parts(ctx, "", args[0])
		if err != nil {
			return fmt.Errorf("parts: %w", err)
		}
		printThemeStats(out, stats)
		fmt.Fprintln(out)
		printEquity(out, eq)
		fmt.Fprintln(out)
		printParts(out, parts)
		return nil
	},
}

var planRegenerateCmd = &cobra.Command{
	Use:   "regenerate <plan-id>",
	Short: "Recompute a plan's sessions from its stored inputs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.Plans.Regenerate(cmd.Context(), "", args[0]); err != nil {
			return err
		}
		_ = a.Plans.Generate(cmd.Context(), args[0])
		return showPlan(cmd, a, args[0])
	},
}

var planSetStatusCmd = &cobra.Command{
	Use:   "set-status <plan-id> <ACTIVE|PAUSED|CANCELLED|COMPLETED>",
	Short: "Pause, resume, cancel or complete a plan",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.Plans.SetStatus(cmd.Context(), "", args[0], plans.StatusRequest{Status: args[1]})
		if err != nil {
			return err
		}
		if p.Status == store.PlanActive && p.GenerationState == store.GenerationQueued {
			_ = a.Plans.Generate(cmd.Context(), p.ID)
		}
		return showPlan(cmd, a, p.ID)
	},
}

func showPlan(cmd *cobra.Command, a *app.App, planID string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	p, err := a.Plans.Plan(ctx, "", planID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	printPlan(out, p)

	gen, err := a.Plans.GenerationStatus(ctx, "", planID)
	if err != nil {
		return fmt.Errorf("generation status: %w", err)
	}
	printGeneration(out, gen)
	if gen.SessionCount == 0 {
		return nil
	}

	prog, err := a.Plans.Progress(ctx, "", planID)
	if err != nil {
		return fmt.Errorf("progress: %w", err)
	}
	printProgress(out, prog)
	return nil
}

func sessionFlags(cmd *cobra.Command) (store.SessionFilter, error) {
	var f store.SessionFilter
	if v, _ := cmd.Flags().GetString("from"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("--from: %w", err)
		}
		f.From = d.Time
	}
	if v, _ := cmd.Flags().GetString("to"); v != "" {
		d, err := schedule.ParseDate(v)
		if err != nil {
			return f, fmt.Errorf("--to: %w", err)
		}
		f.To = d.Time
	}
	if v, _ := cmd.Flags().GetString("type"); v != "" {
		var t schedule.SessionType
		if err := t.UnmarshalText([]byte(v)); err != nil {
			return f, fmt.Errorf("--type: %w", err)
		}
		f.Type = t
	}
	f.Limit, _ = cmd.Flags().GetInt("limit")
	return f, nil
}

func init() {
	planCreateCmd.Flags().String("user", "", "User id that owns the plan (required)")
	planCreateCmd.Flags().String("file", "", "JSON request file (required)")
	planCreateCmd.Flags().Bool("custom", false, "The file is a custom-blocks request")
	_ = planCreateCmd.MarkFlagRequired("user")
	_ = planCreateCmd.MarkFlagRequired("file")

	planSessionsCmd.Flags().String("from", "", "First date (YYYY-MM-DD)")
	planSessionsCmd.Flags().String("to", "", "Last date (YYYY-MM-DD)")
	planSessionsCmd.Flags().String("type", "", "Session type (STUDY, REVIEW, FLASH_REVIEW, TEST, SIMULATION)")
	planSessionsCmd.Flags().Int("limit", 0, "Maximum number of sessions to show")

	planCmd.AddCommand(planCreateCmd)
	planCmd.AddCommand(planStatusCmd)
	planCmd.AddCommand(planSessionsCmd)
	planCmd.AddCommand(planReportCmd)
	planCmd.AddCommand(planRegenerateCmd)
	planCmd.AddCommand(planSetStatusCmd)
}
