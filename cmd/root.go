package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/opoplan/internal/app"
	"github.com/abhisek/opoplan/internal/config"
	"github.com/abhisek/opoplan/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:           "opoplan",
	Short:         "Exam study calendar planner",
	Long:          "opoplan turns a syllabus, an exam date and weekly availability into a day-by-day study calendar.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides OPOPLAN_DB env var)")
	rootCmd.PersistentFlags().String("env-file", ".env", "Optional dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().String("log-mode", "", "Log encoder: development or production (overrides OPOPLAN_LOG_MODE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(themesCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(blocksCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the dotenv file and the environment, then applies
// command-line overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	if err := config.LoadDotEnv(envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	if m, _ := cmd.Flags().GetString("log-mode"); m != "" {
		cfg.LogMode = m
	}
	return cfg, cfg.Validate()
}

// openApp builds the application for one command. The database path comes
// from --db, then OPOPLAN_DB, then the XDG default.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return app.New(cmd.Context(), cfg, log)
}
