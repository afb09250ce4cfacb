package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbre/cli/internal/ui"
	"github.com/satishbabariya/dbre/inference"
	"github.com/satishbabariya/dbre/snapshot"
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Read the database schema and show the inferred entities",
	Long: `Introspect reads table metadata, caches it in the snapshot file and
shows the tables with the entities and relationships inferred from them.

--force always reads the live database. --safe reads without touching the
snapshot file and requires --schema.`,
	Args: cobra.NoArgs,
	RunE: runIntrospect,
}

var (
	introspectForce bool
	introspectSafe  bool
)

func init() {
	introspectCmd.Flags().BoolVarP(&introspectForce, "force", "f", false, "Ignore the cache and snapshot file")
	introspectCmd.Flags().BoolVar(&introspectSafe, "safe", false, "Read without side effects")

	rootCmd.AddCommand(introspectCmd)
}

func runIntrospect(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	spinner, _ := ui.PrintSpinner("Reading schema metadata...")
	db, err := a.database(cmd.Context(), snapshot.ReadMode{ForceRefresh: introspectForce, SafeMode: introspectSafe})
	if spinner != nil {
		_ = spinner.Stop()
	}
	if err != nil {
		return err
	}

	ui.PrintHeader("dbre", "Schema "+db.Schema.Name+" of "+db.Name)
	if len(db.Tables) == 0 {
		ui.PrintWarning("No tables found")
		return nil
	}
	ui.PrintSection("Tables")
	ui.PrintTable(ui.TableHeaders, ui.TableRows(db))

	res, err := inference.NewEngine().Infer(db)
	if err != nil {
		return err
	}
	if rows := ui.EntityRows(res); len(rows) > 0 {
		ui.PrintSection("Relationships")
		ui.PrintTable(ui.EntityHeaders, rows)
	}
	if len(res.JoinTables) > 0 {
		names := make([]string, len(res.JoinTables))
		for i, t := range res.JoinTables {
			names[i] = t.QualifiedName()
		}
		ui.PrintSection("Join tables")
		ui.PrintList(names)
	}
	ui.PrintSuccess("%d entities from %d tables", len(res.Entities), len(db.Tables))
	return nil
}
