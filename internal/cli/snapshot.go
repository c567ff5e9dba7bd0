package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tablestore/internal/sqlite"
)

func (a *app) newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a JSONL snapshot of every entity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attach()
			if err != nil {
				return err
			}
			defer backend.Detach()

			stats, err := backend.Export(cmd.Context(), out)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d databases, %d tables, %d columns, %d rows, %d values to %s\n",
				stats.Databases, stats.Tables, stats.Columns, stats.Rows, stats.Values, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "snapshot directory")
	cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) newImportCmd() *cobra.Command {
	var in string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSONL snapshot into an empty store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := a.attach()
			if err != nil {
				return err
			}
			defer backend.Detach()

			stats, err := backend.Import(cmd.Context(), in)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d databases, %d tables, %d columns, %d rows, %d values from %s\n",
				stats.Databases, stats.Tables, stats.Columns, stats.Rows, stats.Values, in)
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "snapshot directory")
	cmd.MarkFlagRequired("in")
	return cmd
}

// attach opens the configured backend.
func (a *app) attach() (*sqlite.Backend, error) {
	backend := sqlite.NewBackend(a.logger.Sugar())
	if err := backend.Attach(a.settings.storeConfig()); err != nil {
		return nil, fmt.Errorf("attach storage: %w", err)
	}
	return backend, nil
}
