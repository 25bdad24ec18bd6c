// Package cli implements postcode-ctl, the operator tool for the postcode data.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"postcode-api/internal/config"
	"postcode-api/internal/logger"
)

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// options are the persistent flags; empty values keep the configured setting.
type options struct {
	dataDir  string
	logLevel string
}

func NewRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          "postcode-ctl",
		Short:        "Manage and query UK postcode partition data",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "partition root (default DATA_DIR)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (default LOG_LEVEL)")

	cmd.AddCommand(
		migrateHeadersCmd(opts),
		importCmd(opts),
		areaTypesCmd(opts),
		lookupCmd(opts),
		versionCmd(),
	)
	return cmd
}

// load reads the configuration, applies the persistent flags and sets up the logger.
func (o *options) load() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)
	return cfg, nil
}
