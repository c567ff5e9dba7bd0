package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tablestore/internal/paths"
	"github.com/mesh-intelligence/tablestore/internal/sqlite"
)

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize tablestore configuration and storage",
		Long:  "Create the configuration directory with a default config.yaml, then create\nthe data directory and its SQLite database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(a.configDir, 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}

			// Record the data dir in the new config only when given explicitly.
			var dataDir string
			if cmd.Flags().Changed("data-dir") {
				dataDir = a.settings.DataDir
			}
			configPath := paths.ConfigFile(a.configDir)
			written, err := writeConfigIfMissing(configPath, dataDir)
			if err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			if written {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", configPath)
			}

			backend := sqlite.NewBackend(a.logger.Sugar())
			if err := backend.Attach(a.settings.storeConfig()); err != nil {
				return fmt.Errorf("initialize storage: %w", err)
			}
			if err := backend.Detach(); err != nil {
				return fmt.Errorf("finalize storage: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Initialized storage in %s\n", a.settings.DataDir)
			return nil
		},
	}
}
