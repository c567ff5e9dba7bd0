package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tablestore/internal/httpapi"
	pubsqlite "github.com/mesh-intelligence/tablestore/pkg/sqlite"
)

func (a *app) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long:  "Attach the storage backend and serve the JSON HTTP API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sugar := a.logger.Sugar()
			store, err := pubsqlite.Open(a.settings.storeConfig(), sugar)
			if err != nil {
				return fmt.Errorf("attach storage: %w", err)
			}
			defer store.Detach()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := httpapi.New(store, sugar, a.settings.serverOptions())
			if err := srv.Serve(ctx, a.settings.ListenAddr); err != nil {
				return err
			}
			sugar.Infow("server stopped")
			return nil
		},
	}
	cmd.Flags().String("addr", defaultListenAddr, "listen address (config listen_addr)")
	return cmd
}
