package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/ethpandaops/querycat/pkg/driver"
	"github.com/ethpandaops/querycat/pkg/output"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// ErrServiceQueriesUnsupported is returned when the configured driver has no
// saved searches or fired alerts
var ErrServiceQueriesUnsupported = errors.New("driver does not expose saved searches or fired alerts")

//nolint:gochecknoglobals // Cobra commands are typically global
var queriesSavedSearchesCmd = &cobra.Command{
	Use:   "saved-searches",
	Short: "List searches saved on the backend",
	Long:  `List the saved searches stored on the configured backend (Splunk) with their query text.`,
	Args:  cobra.NoArgs,
	RunE:  runQueriesSavedSearches,
}

//nolint:gochecknoglobals // Cobra commands are typically global
var queriesFiredAlertsCmd = &cobra.Command{
	Use:   "fired-alerts",
	Short: "List alerts that have fired on the backend",
	Args:  cobra.NoArgs,
	RunE:  runQueriesFiredAlerts,
}

func init() {
	queriesCmd.AddCommand(queriesSavedSearchesCmd, queriesFiredAlertsCmd)
}

// withServiceCatalog connects the configured driver and hands it to fn when it
// exposes backend-side searches and alerts
func withServiceCatalog(cmd *cobra.Command, fn func(ctx context.Context, svc driver.ServiceCatalog) error) error {
	cmd.SilenceUsage = true

	env, err := loadEnvironment(cmd)
	if err != nil {
		return err
	}

	if validationErr := env.cfg.Driver.Validate(); validationErr != nil {
		return fmt.Errorf("driver config validation failed: %w", validationErr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	drv, err := driver.New(&env.cfg.Driver, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := drv.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("Failed to close driver")
		}
	}()

	svc, ok := drv.(driver.ServiceCatalog)
	if !ok {
		return fmt.Errorf("%w: %s", ErrServiceQueriesUnsupported, drv.Name())
	}

	if err := drv.Connect(ctx); err != nil {
		return err
	}

	return fn(ctx, svc)
}

func runQueriesSavedSearches(cmd *cobra.Command, _ []string) error {
	return withServiceCatalog(cmd, func(ctx context.Context, svc driver.ServiceCatalog) error {
		return printSavedSearches(ctx, cmd.OutOrStdout(), svc)
	})
}

func runQueriesFiredAlerts(cmd *cobra.Command, _ []string) error {
	return withServiceCatalog(cmd, func(ctx context.Context, svc driver.ServiceCatalog) error {
		return printFiredAlerts(ctx, cmd.OutOrStdout(), svc)
	})
}

func printSavedSearches(ctx context.Context, w io.Writer, svc driver.ServiceCatalog) error {
	searches, err := svc.SavedSearches(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(searches))
	for _, s := range searches {
		rows = append(rows, []string{s.Name, output.Cell(s.Query)})
	}

	return output.Table(w, []string{"NAME", "QUERY"}, rows)
}

func printFiredAlerts(ctx context.Context, w io.Writer, svc driver.ServiceCatalog) error {
	alerts, err := svc.FiredAlerts(ctx)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{a.Name, cast.ToString(a.Count)})
	}

	return output.Table(w, []string{"NAME", "COUNT"}, rows)
}
