package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)
	return log
}

func TestStore_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "extra.yaml"), []byte(`
sources:
  dns_lookups:
    description: DNS lookups
    args:
      query: 'DeviceEvents | where ActionType == "DnsQueryResponse"'
  host_connections:
    description: Overridden host query
    args:
      query: 'Custom | where Host == "{hostname}"'
    parameters:
      hostname:
        type: str
`), 0o644))

	store := NewStore(newTestLogger())
	require.NoError(t, store.Load([]string{dir}))

	assert.Len(t, store.Catalogs(), 2)

	entry, err := store.Lookup("dns_lookups")
	require.NoError(t, err)
	assert.Equal(t, "extra", entry.Catalog.Name)
	assert.Equal(t, "dns_lookups", entry.Source.Name)

	// Later catalogs win on name collision
	entry, err = store.Lookup("host_connections")
	require.NoError(t, err)
	assert.Equal(t, "extra", entry.Catalog.Name)
	assert.Contains(t, entry.Source.Template, "Custom")

	// Built-in sources remain reachable
	entry, err = store.Lookup("list_connections")
	require.NoError(t, err)
	assert.Equal(t, "network_events", entry.Catalog.Name)

	names := make([]string, 0)
	for _, e := range store.Sources() {
		names = append(names, e.Source.Name)
	}
	assert.Equal(t, []string{
		"dns_lookups",
		"host_connections",
		"ip_connections",
		"list_connections",
		"protocol_connections",
		"url_connections",
	}, names)
}

func TestStore_LoadInvalidCatalog(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("sources:\n  q:\n    args: {}\n"), 0o644))

	store := NewStore(newTestLogger())
	err := store.Load([]string{dir})

	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestStore_UnknownSource(t *testing.T) {
	store := NewStore(newTestLogger())
	require.NoError(t, store.Load(nil))

	_, err := store.Lookup("nope")
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = store.Catalog("nope")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}
