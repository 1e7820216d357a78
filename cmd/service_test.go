package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/ethpandaops/querycat/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServiceCatalog struct {
	searches []driver.SavedSearch
	alerts   []driver.FiredAlert
	err      error
}

func (f *fakeServiceCatalog) SavedSearches(context.Context) ([]driver.SavedSearch, error) {
	return f.searches, f.err
}

func (f *fakeServiceCatalog) FiredAlerts(context.Context) ([]driver.FiredAlert, error) {
	return f.alerts, f.err
}

func TestPrintSavedSearches(t *testing.T) {
	svc := &fakeServiceCatalog{searches: []driver.SavedSearch{
		{Name: "auth failures", Query: "index=auth action=failure"},
		{Name: "empty", Query: ""},
	}}

	var buf bytes.Buffer
	require.NoError(t, printSavedSearches(context.Background(), &buf, svc))

	out := buf.String()
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "QUERY")
	assert.Contains(t, out, "index=auth action=failure")
	assert.Regexp(t, `empty\s+-`, out)
}

func TestPrintFiredAlerts(t *testing.T) {
	svc := &fakeServiceCatalog{alerts: []driver.FiredAlert{
		{Name: "brute force", Count: 2},
		{Name: "disk full", Count: 5},
	}}

	var buf bytes.Buffer
	require.NoError(t, printFiredAlerts(context.Background(), &buf, svc))

	out := buf.String()
	assert.Contains(t, out, "COUNT")
	assert.Regexp(t, `brute force\s+2`, out)
	assert.Regexp(t, `disk full\s+5`, out)
}

func TestPrintServiceErrors(t *testing.T) {
	svc := &fakeServiceCatalog{err: driver.ErrAuthentication}

	var buf bytes.Buffer
	err := printSavedSearches(context.Background(), &buf, svc)
	require.True(t, errors.Is(err, driver.ErrAuthentication))

	err = printFiredAlerts(context.Background(), &buf, svc)
	require.ErrorIs(t, err, driver.ErrAuthentication)
	assert.Empty(t, buf.String())
}
