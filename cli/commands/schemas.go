package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbre/cli/internal/ui"
	"github.com/satishbabariya/dbre/cli/internal/version"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List the schemas of the database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		schemas, err := a.service.Schemas(cmd.Context())
		if err != nil {
			return err
		}
		if len(schemas) == 0 {
			ui.PrintWarning("No schemas found (is the database reachable?)")
			return nil
		}
		names := make([]string, len(schemas))
		for i, s := range schemas {
			names[i] = s.Name
		}
		ui.PrintList(names)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Get().FullString())
	},
}

func init() {
	rootCmd.AddCommand(schemasCmd)
	rootCmd.AddCommand(versionCmd)
}
