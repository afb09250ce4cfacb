package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/dbre/inference"
	"github.com/satishbabariya/dbre/model"
	"github.com/satishbabariya/dbre/reconcile"
)

// TableRows summarises the tables of db, one row per table.
func TableRows(db *model.Database) [][]string {
	rows := make([][]string, 0, len(db.Tables))
	for _, t := range db.Tables {
		rows = append(rows, []string{
			t.QualifiedName(),
			strings.Join(t.PrimaryKeyNames(), ", "),
			strconv.Itoa(len(t.Columns)),
			strconv.Itoa(len(t.ImportedKeys)),
			strconv.Itoa(len(t.ExportedKeys)),
			strconv.Itoa(len(t.Indices)),
		})
	}
	return rows
}

// TableHeaders label the columns of TableRows.
var TableHeaders = []string{"Table", "Primary key", "Columns", "Imports", "Exports", "Indices"}

// EntityRows lists every association of the inferred entities.
func EntityRows(res *inference.Result) [][]string {
	var rows [][]string
	for _, e := range res.Entities {
		for _, a := range e.Associations {
			side := "inverse"
			if a.Owning {
				side = "owning"
			}
			rows = append(rows, []string{e.TypeName, a.FieldName, a.Kind.String(), a.TargetType, side})
		}
	}
	return rows
}

// EntityHeaders label the columns of EntityRows.
var EntityHeaders = []string{"Entity", "Field", "Kind", "Target", "Side"}

// PlanMarkdown renders plan as a markdown report.
func PlanMarkdown(schema string, plan *reconcile.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Reconciliation plan for `%s`\n\n", schema)
	if plan.Empty() {
		b.WriteString("Everything is up to date.\n")
		return b.String()
	}

	if len(plan.Creates) > 0 {
		b.WriteString("## Create\n\n| Type | Table | Package | Identifier |\n|---|---|---|---|\n")
		for _, c := range plan.Creates {
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				c.Entity.TypeName, c.Entity.Table.QualifiedName(), c.Namespace, identifier(c.Entity))
		}
		b.WriteString("\n")
	}
	if len(plan.Updates) > 0 {
		b.WriteString("## Update\n\n| Type | Table | Associations | Retired identifier |\n|---|---|---|---|\n")
		for _, u := range plan.Updates {
			retired := ""
			if u.RetireIdentifier != nil {
				retired = u.RetireIdentifier.Name
			}
			fmt.Fprintf(&b, "| %s | %s | %d | %s |\n",
				u.Managed.TypeName(), u.Entity.Table.QualifiedName(), len(u.Entity.Associations), retired)
		}
		b.WriteString("\n")
	}
	if len(plan.Deletes) > 0 {
		b.WriteString("## Delete\n\n")
		for _, d := range plan.Deletes {
			fmt.Fprintf(&b, "- %s (table `%s`)", d.Managed.TypeName(), d.Managed.Table())
			if d.IdentifierType != nil {
				fmt.Fprintf(&b, " with identifier %s", d.IdentifierType.Name)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if len(plan.Kept) > 0 {
		b.WriteString("## Kept\n\nThese types lost their table but were customized or may not be deleted:\n\n")
		for _, k := range plan.Kept {
			fmt.Fprintf(&b, "- %s (table `%s`)\n", k.TypeName(), k.Table())
		}
		b.WriteString("\n")
	}
	return b.String()
}

func identifier(e *inference.Entity) string {
	if e.Identifier.Composite {
		return e.Identifier.TypeName
	}
	if len(e.Identifier.Fields) == 1 {
		return e.Identifier.Fields[0].Name
	}
	return ""
}
