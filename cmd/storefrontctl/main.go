// Command storefrontctl runs storefront maintenance tasks against the
// configured stores.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/config"
	"github.com/utafrali/storefront/pkg/logger"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "storefrontctl",
		Short: "Storefront maintenance commands",
		Long: `storefrontctl runs one-off maintenance tasks for the storefront service.

It reads the same environment (and optional .env file) as the server.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (defaults to LOG_LEVEL)")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newReconcileRatingsCmd(opts),
	)
	return cmd
}

// load reads the service configuration and builds a stderr logger so that
// stdout carries only command output.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	return cfg, logger.NewWithWriter("storefrontctl", level, os.Stderr), nil
}
