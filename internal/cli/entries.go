package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pebble/internal/codec"
	"github.com/mesh-intelligence/pebble/pkg/table"
	"github.com/mesh-intelligence/pebble/pkg/types"
)

func newAddCmd(a *app) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "add <table> <json>",
		Short: "Add an entry to a table",
		Long: `Add validates a JSON object against the table definition and stores it.
Declared dates, times, decimals, UUIDs, sets and tuples are given as their
JSON wire forms ("2024-05-01", "09:30:00", "19.99", ...). Without --id a
UUID v7 identifier is generated.`,
		Example: `  pebble add users '{"email":"ada@example.com","age":36}'
  pebble add users '{"email":"bob@example.com"}' --id bob`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return a.withTable(cmd.Context(), name, true, func(t *table.Table) error {
				payload, err := codec.DecodePayload(t.Definition(), []byte(args[1]))
				if err != nil {
					return fmt.Errorf("payload: %w", err)
				}
				newID, err := t.Add(id, payload)
				if err != nil {
					return err
				}
				return a.printResult(cmd.OutOrStdout(), map[string]any{"table": name, "id": newID}, "%s", newID)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "entry identifier (default: generated UUID v7)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <table> <id>",
		Short: "Print an entry as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, id := args[0], args[1]
			return a.withTable(cmd.Context(), name, false, func(t *table.Table) error {
				r, err := t.Get(id)
				if errors.Is(err, types.ErrNotFound) {
					return fmt.Errorf("entry %q not found in table %q: %w", id, name, err)
				}
				if err != nil {
					return err
				}
				return printRecord(cmd.OutOrStdout(), t.Definition(), r)
			})
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <table> <id>...",
		Short: "Delete entries",
		Long:  "Delete removes the named entries. If any identifier is unknown nothing is removed.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ids := args[0], args[1:]
			return a.withTable(cmd.Context(), name, true, func(t *table.Table) error {
				if err := t.RemoveMany(ids...); err != nil {
					return err
				}
				return a.printResult(cmd.OutOrStdout(),
					map[string]any{"table": name, "deleted": ids},
					"deleted %d from %s", len(ids), name)
			})
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list <table>",
		Short: "List the entries of a table in insertion order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			return a.withTable(cmd.Context(), name, false, func(t *table.Table) error {
				def := t.Definition()
				entries := t.Entries()
				rows := make([]entryRow, len(entries))
				for i, e := range entries {
					rows[i] = entryRow{table: name, def: def, entry: e}
				}
				return a.printEntries(cmd.OutOrStdout(), rows, false)
			})
		},
	}
}
