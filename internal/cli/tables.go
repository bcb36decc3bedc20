package cli

import (
	"fmt"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pebble/internal/codec"
	"github.com/mesh-intelligence/pebble/pkg/database"
	"github.com/mesh-intelligence/pebble/pkg/schema"
	"github.com/mesh-intelligence/pebble/pkg/table"
)

func newCreateCmd(a *app) *cobra.Command {
	var schemaJSON string
	cmd := &cobra.Command{
		Use:   "create <table>",
		Short: "Create a table",
		Long: `Create registers an empty table. The optional schema is a JSON definition:

  {"fields": [{"name": "email", "type": "string", "required": true},
              {"name": "role", "type": "string", "default": "member",
               "choices": ["member", "admin"]}],
   "unique": [["email"]],
   "indexes": [["role"]],
   "primary_key": ["email"],
   "constraints": {"max_entries": 1000}}

Field types: ` + fieldTypeList(),
		Example: `  pebble create users --schema '{"fields":[{"name":"email","type":"string","required":true}],"unique":[["email"]]}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			def := schema.MustDefinition()
			if schemaJSON != "" {
				var err error
				def, err = codec.DecodeDefinition([]byte(schemaJSON))
				if err != nil {
					return fmt.Errorf("schema: %w", err)
				}
			}
			return a.withDatabase(cmd.Context(), true, func(db *database.Database) error {
				if _, err := db.CreateTable(name, def); err != nil {
					return err
				}
				return a.printResult(cmd.OutOrStdout(), map[string]any{"table": name}, "created table %s", name)
			})
		},
	}
	cmd.Flags().StringVar(&schemaJSON, "schema", "", "table definition as JSON")
	return cmd
}

func fieldTypeList() string {
	var s string
	for i, ft := range schema.FieldTypes() {
		if i > 0 {
			s += ", "
		}
		s += ft.String()
	}
	return s
}

func newTablesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withDatabase(cmd.Context(), false, func(db *database.Database) error {
				type tableInfo struct {
					Name    string `json:"name"`
					Entries int    `json:"entries"`
					Bytes   int    `json:"bytes"`
					Limit   int    `json:"max_entries"`
				}
				var infos []tableInfo
				for _, name := range db.TableNames() {
					t, err := db.Table(name)
					if err != nil {
						return err
					}
					infos = append(infos, tableInfo{
						Name:    name,
						Entries: t.Len(),
						Bytes:   t.Size(),
						Limit:   t.Definition().MaxEntries(),
					})
				}
				w := cmd.OutOrStdout()
				if a.flags.jsonMode {
					if infos == nil {
						infos = []tableInfo{}
					}
					return writeJSON(w, infos)
				}
				if len(infos) == 0 {
					_, _ = fmt.Fprintln(w, "(0 tables)")
					return nil
				}
				tw := prettytable.NewWriter()
				tw.SetOutputMirror(w)
				tw.SetStyle(prettytable.StyleLight)
				tw.AppendHeader(prettytable.Row{"table", "entries", "bytes", "max entries"})
				for _, info := range infos {
					tw.AppendRow(prettytable.Row{info.Name, info.Entries, info.Bytes, info.Limit})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func newConfigureCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "configure <table> <path> <value>",
		Short: "Change a table definition or constraint",
		Long: `Configure changes one setting of a table. The path is rooted at
"definition." or "constraints."; the value is JSON, or a bare string.

Stored entries are not re-validated; indexes are rebuilt.`,
		Example: `  pebble configure users definition.fields.age '{"type":"integer"}'
  pebble configure users definition.unique '[["email"]]'
  pebble configure users constraints.max_entries 500`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path := args[0], args[1]
			value, err := codec.DecodeValue(0, []byte(args[2]))
			if err != nil {
				value = args[2]
			}
			return a.withTable(cmd.Context(), name, true, func(t *table.Table) error {
				if err := t.Configure(path, value); err != nil {
					return err
				}
				return a.printResult(cmd.OutOrStdout(),
					map[string]any{"table": name, "path": path},
					"configured %s %s", name, path)
			})
		},
	}
}

func newDropCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drop <table>",
		Short: "Drop a table and all its entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return a.withDatabase(cmd.Context(), false, func(db *database.Database) error {
				if err := db.DropTable(cmd.Context(), name); err != nil {
					return err
				}
				return a.printResult(cmd.OutOrStdout(), map[string]any{"table": name}, "dropped table %s", name)
			})
		},
	}
}
