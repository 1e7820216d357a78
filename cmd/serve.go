package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethpandaops/querycat/pkg/api"
	"github.com/ethpandaops/querycat/pkg/observability"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra commands are typically global
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the query API and metrics server",
	Long:  `Serve the loaded catalogs over HTTP and expose Prometheus metrics until interrupted.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	// Silence usage on error
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	if !env.cfg.API.Enabled {
		logger.Info("Enabling API for serve")
		env.cfg.API.Enabled = true
	}
	if validationErr := env.cfg.API.Validate(); validationErr != nil {
		return validationErr
	}

	logger.WithField("sources", len(env.store.Sources())).Info("Catalogs loaded")

	if env.cfg.MetricsAddr != "" {
		observability.StartMetricsServer(env.cfg.MetricsAddr, logger)
	}

	svc := api.NewService(&env.cfg.API, env.store, env.resolver, logger)
	if err := svc.Start(cmd.Context()); err != nil {
		return err
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	if err := svc.Stop(); err != nil {
		logger.WithError(err).Error("Failed to stop API service")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return observability.StopMetricsServer(ctx)
}
