package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pebble/pkg/database"
	"github.com/mesh-intelligence/pebble/pkg/filter"
	"github.com/mesh-intelligence/pebble/pkg/schema"
	"github.com/mesh-intelligence/pebble/pkg/table"
)

func newFilterCmd(a *app) *cobra.Command {
	var (
		scope         string
		caseSensitive bool
	)
	cmd := &cobra.Command{
		Use:   "filter <table> <expression>...",
		Short: "List the entries of a table that match filter expressions",
		Long: `Filter evaluates each expression against every entry of the table.
An expression is "<field-path> <operator> <literal>" with operators
==, !=, <, >, <=, >=, in, not in, is, is not. The scope decides how the
expressions combine: all (every one matches), any (at least one) or
none (no expression matches).`,
		Example: `  pebble filter users "age >= 18"
  pebble filter users "role in ['admin', 'owner']" "name == 'ada'" --scope any`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, exprs := args[0], args[1:]
			sc, err := filter.ParseScope(scope)
			if err != nil {
				return err
			}
			return a.withTable(cmd.Context(), name, false, func(t *table.Table) error {
				res, err := t.Filter(sc, exprs, a.filterOptions(caseSensitive)...)
				if err != nil {
					return err
				}
				a.logger.Debug("filter evaluated",
					"table", name,
					"scope", sc,
					"considered", res.Considered,
					"matched", res.Matched,
				)
				def := t.Definition()
				rows := make([]entryRow, len(res.Entries))
				for i, e := range res.Entries {
					rows[i] = entryRow{table: name, def: def, entry: e}
				}
				return a.printEntries(cmd.OutOrStdout(), rows, false)
			})
		},
	}
	cmd.Flags().StringVar(&scope, "scope", "all", "how expressions combine: all, any or none")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "compare strings exactly")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var caseSensitive bool
	cmd := &cobra.Command{
		Use:   "query <query>",
		Short: "Run a query across tables",
		Long: `Query evaluates filter clauses joined by AND and OR, strictly left to
right with no precedence. Each clause names its table as the first
segment of the field path; with a single table the prefix may be omitted.`,
		Example: `  pebble query "users.name == 'alice' AND users.age >= 18"
  pebble query "orders.total > 100 OR users.role == 'admin'"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(cmd.Context(), false, func(db *database.Database) error {
				res, err := db.Query(args[0], a.filterOptions(caseSensitive)...)
				if err != nil {
					return err
				}
				defs := make(map[string]*schema.Definition)
				rows := make([]entryRow, len(res.Matches))
				for i, m := range res.Matches {
					def, ok := defs[m.Table]
					if !ok {
						t, err := db.Table(m.Table)
						if err != nil {
							return err
						}
						def = t.Definition()
						defs[m.Table] = def
					}
					rows[i] = entryRow{table: m.Table, def: def, entry: m.Entry}
				}
				return a.printEntries(cmd.OutOrStdout(), rows, true)
			})
		},
	}
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "compare strings exactly")
	return cmd
}
