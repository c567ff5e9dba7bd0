// Package cli implements the tablestore command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/tablestore/internal/paths"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Version is set at build time via -ldflags.
var Version = "dev"

const modulePath = "github.com/mesh-intelligence/tablestore"

// errUsage marks errors caused by bad input rather than the environment.
var errUsage = errors.New("usage error")

// app carries the state shared by the subcommands of one invocation.
type app struct {
	configDir string
	dataDir   string
	logLevel  string

	viper    *viper.Viper
	settings settings
	logger   *zap.Logger
}

// NewRootCmd creates the top-level "tablestore" command with global flags
// and all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "tablestore",
		Short: "A dynamic, typed tabular data store",
		Long: "tablestore manages databases of user-defined tables whose columns carry\n" +
			"type descriptors, and serves them over a JSON HTTP API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "", "configuration directory (env "+paths.EnvConfigDir+")")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "data directory (env "+paths.EnvDataDir+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(a.newVersionCmd())
	root.AddCommand(a.newInitCmd())
	root.AddCommand(a.newServeCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newImportCmd())

	return root
}

// load resolves directories, reads the config file, and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	configDir, err := paths.ResolveConfigDir(a.configDir)
	if err != nil {
		return fmt.Errorf("resolve config dir: %w", err)
	}
	a.configDir = configDir

	v, err := newViper(configDir)
	if err != nil {
		return err
	}
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag(cfgKeyLogLevel, f); err != nil {
			return err
		}
	}
	if f := cmd.Flags().Lookup("addr"); f != nil {
		if err := v.BindPFlag(cfgKeyListenAddr, f); err != nil {
			return err
		}
	}
	a.viper = v

	s, err := decodeSettings(v)
	if err != nil {
		return err
	}
	s.DataDir, err = paths.ResolveDataDir(a.dataDir, s.DataDir)
	if err != nil {
		return fmt.Errorf("resolve data dir: %w", err)
	}
	if err := s.storeConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	a.settings = s

	logger, err := newLogger(s.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	a.logger = logger
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	root := NewRootCmd()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, errUsage) {
			return exitUserError
		}
		return exitSysError
	}
	return exitSuccess
}
