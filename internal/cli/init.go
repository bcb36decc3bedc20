package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pebble/pkg/database"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize pebble storage",
		Long:  "Create the configuration and data directories and initialize the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// setup already wrote config.yaml; opening the store creates the
			// data directory.
			var tables int
			err := a.withDatabase(cmd.Context(), false, func(db *database.Database) error {
				tables = len(db.TableNames())
				return nil
			})
			if err != nil {
				return err
			}
			return a.printResult(cmd.OutOrStdout(),
				map[string]any{
					"config_dir": a.configDir,
					"data_dir":   a.cfg.DataDir,
					"backend":    a.cfg.Backend,
					"tables":     tables,
				},
				"pebble initialized\n  config:  %s\n  data:    %s\n  backend: %s\n  tables:  %d",
				a.configDir, a.cfg.DataDir, a.cfg.Backend, tables)
		},
	}
}
