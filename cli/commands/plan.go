package commands

import (
	"github.com/spf13/cobra"

	"github.com/satishbabariya/dbre/cli/internal/config"
	"github.com/satishbabariya/dbre/cli/internal/manifest"
	"github.com/satishbabariya/dbre/cli/internal/ui"
	"github.com/satishbabariya/dbre/reconcile"
	"github.com/satishbabariya/dbre/snapshot"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Plan which managed types to create, update or delete",
	Long: `Plan compares the inferred entities with the managed types listed in
the manifest (.dbre/managed.yaml by default).

Types whose table disappeared are only deleted when they were not
customized and allow deletion. --apply records the outcome in the manifest.`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

var (
	planApply    bool
	planMarkdown bool
)

func init() {
	planCmd.Flags().BoolVar(&planApply, "apply", false, "Write the resulting managed types to the manifest")
	planCmd.Flags().BoolVar(&planMarkdown, "markdown", false, "Render the plan as a markdown report")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	db, err := a.database(cmd.Context(), snapshot.ReadMode{})
	if err != nil {
		return err
	}
	plan, m, err := a.plan(db)
	if err != nil {
		return err
	}

	if planMarkdown {
		if err := ui.PrintMarkdown(ui.PlanMarkdown(db.Schema.Name, plan)); err != nil {
			return err
		}
	} else {
		printPlan(plan)
	}

	if !planApply {
		return nil
	}
	if plan.Empty() {
		ui.PrintInfo("Manifest already up to date")
		return nil
	}
	m.Types = plan.Apply(m.Managed())
	if err := manifest.Save(config.AppFs, a.cfg.ManifestPath, m); err != nil {
		return err
	}
	ui.PrintSuccess("Recorded %d managed types in %s", len(m.Types), a.cfg.ManifestPath)
	return nil
}

func printPlan(plan *reconcile.Plan) {
	if plan.Empty() {
		ui.PrintSuccess("Everything is up to date")
		return
	}
	var rows [][]string
	for _, c := range plan.Creates {
		rows = append(rows, []string{"create", c.Entity.TypeName, c.Entity.Table.QualifiedName(), c.Namespace})
	}
	for _, u := range plan.Updates {
		rows = append(rows, []string{"update", u.Managed.TypeName(), u.Entity.Table.QualifiedName(), u.Managed.Namespace()})
	}
	for _, d := range plan.Deletes {
		rows = append(rows, []string{"delete", d.Managed.TypeName(), d.Managed.Table(), d.Managed.Namespace()})
	}
	ui.PrintTable([]string{"Action", "Type", "Table", "Package"}, rows)
	for _, k := range plan.Kept {
		ui.PrintWarning("Keeping %s: table %s is gone but the type is customized or protected", k.TypeName(), k.Table())
	}
	ui.PrintInfo("%d creates, %d updates, %d deletes", len(plan.Creates), len(plan.Updates), len(plan.Deletes))
}
