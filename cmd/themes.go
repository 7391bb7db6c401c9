package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/opoplan/internal/theme"
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "Manage the syllabus theme catalog",
}

var themesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import themes from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		themes, err := theme.LoadFile(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Plans.ImportThemes(cmd.Context(), themes); err != nil {
			return fmt.Errorf("import themes: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d themes.\n", len(themes))
		return nil
	},
}

var themesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the theme catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		themes, err := a.Plans.Themes(cmd.Context())
		if err != nil {
			return fmt.Errorf("list themes: %w", err)
		}
		if len(themes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No themes found. Import a catalog with: opoplan themes import <file>")
			return nil
		}
		printThemes(cmd.OutOrStdout(), themes)
		return nil
	},
}

func init() {
	themesCmd.AddCommand(themesImportCmd)
	themesCmd.AddCommand(themesListCmd)
}
