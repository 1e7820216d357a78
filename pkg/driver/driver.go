// Package driver dispatches resolved query strings to a backend analytics store
package driver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/querycat/pkg/observability"
	"github.com/sirupsen/logrus"
)

// Driver errors
var (
	ErrNotConnected         = errors.New("driver is not connected")
	ErrMissingConnectionArg = errors.New("required connection arguments missing")
	ErrAuthentication       = errors.New("authentication failed")
	ErrBackendResponse      = errors.New("backend error")
	ErrTableNotFound        = errors.New("table not found")
)

// Result holds the rows returned by a backend query
type Result struct {
	Columns []string
	Rows    []map[string]interface{}
	// Partial is set when the backend returned incomplete results
	Partial bool
}

// Driver is a connection to a backend analytics store
type Driver interface {
	// Name returns the driver type
	Name() string
	// Dialect returns the query dialect the backend expects
	Dialect() string
	// Connect authenticates against the backend
	Connect(ctx context.Context) error
	// Connected reports whether Connect succeeded
	Connected() bool
	// Query executes a fully resolved query string
	Query(ctx context.Context, query string) (*Result, error)
	// Close releases idle connections
	Close() error
}

// Schema maps table names to their columns and column types
type Schema map[string]map[string]string

// SchemaProvider is implemented by drivers that can describe the backend's tables
type SchemaProvider interface {
	Schema(ctx context.Context) (Schema, error)
}

// SavedSearch is a search stored on the backend
type SavedSearch struct {
	Name  string
	Query string
}

// FiredAlert is an alert that has triggered on the backend
type FiredAlert struct {
	Name  string
	Count int
}

// ServiceCatalog is implemented by drivers that expose backend-side searches and alerts
type ServiceCatalog interface {
	SavedSearches(ctx context.Context) ([]SavedSearch, error)
	FiredAlerts(ctx context.Context) ([]FiredAlert, error)
}

// CheckTable verifies that table exists when the driver can describe its
// schema. Drivers without a schema, and an empty table name, always pass.
func CheckTable(ctx context.Context, d Driver, table string) error {
	provider, ok := d.(SchemaProvider)
	if !ok || table == "" {
		return nil
	}

	schema, err := provider.Schema(ctx)
	if err != nil {
		return err
	}

	if _, found := schema[table]; !found {
		return fmt.Errorf("%w: %s not found", ErrTableNotFound, table)
	}

	return nil
}

// New creates the driver selected by cfg.Type
func New(cfg *Config, log logrus.FieldLogger) (Driver, error) {
	switch cfg.Type {
	case TypeSplunk:
		return NewSplunk(&cfg.Splunk, log)
	case TypeLogAnalytics:
		return NewLogAnalytics(&cfg.LogAnalytics, log, nil)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Type)
	}
}

// observe records metrics for a finished backend query
func observe(driver string, started time.Time, result *Result, err error) {
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case result != nil && result.Partial:
		status = "partial"
	}

	observability.BackendQueries.WithLabelValues(driver, status).Inc()
	observability.BackendQueryDuration.WithLabelValues(driver).Observe(time.Since(started).Seconds())

	if result != nil {
		observability.BackendRowsReturned.WithLabelValues(driver).Add(float64(len(result.Rows)))
	}
}
