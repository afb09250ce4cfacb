package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbre/cli/internal/ui"
	"github.com/satishbabariya/dbre/cli/internal/version"
	"github.com/satishbabariya/dbre/internal/debug"
)

var (
	schemaFlag  string
	configFlag  string
	debugFlag   bool
	interactive bool
	noColor     bool
)

var rootCmd = &cobra.Command{
	Use:   "dbre",
	Short: "Reverse engineer a relational schema into domain entities",
	Long: `dbre reads the metadata of a live database, infers entities and their
relationships, and plans which generated types to create, refresh or remove.

Connection settings are read from database.properties, the connection block
of .dbre.yaml, or DATABASE_URL.`,
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug.Init(debugFlag)
		ui.SetColor(!noColor)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&schemaFlag, "schema", "s", "", "Database schema to introspect")
	flags.StringVarP(&configFlag, "config", "c", "", "Config file (default .dbre.yaml in ., $HOME or $HOME/.config/dbre)")
	flags.BoolVar(&debugFlag, "debug", false, "Log debug output to stderr")
	flags.BoolVarP(&interactive, "interactive", "i", false, "Prompt for a schema when none is configured")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")

	_ = rootCmd.RegisterFlagCompletionFunc("schema", completeSchemas)
}

// Execute is the main entry point for the CLI
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}
