package driver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	return log
}

// splunkServerConfig points a SplunkConfig at an httptest server
func splunkServerConfig(t *testing.T, srv *httptest.Server) SplunkConfig {
	t.Helper()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	return SplunkConfig{
		Host:     u.Hostname(),
		Port:     port,
		Scheme:   "http",
		Username: "admin",
		Password: "changeme",
	}
}

func TestApplyConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		cs       string
		expected SplunkConfig
		wantErr  bool
	}{
		{
			name: "full connection string",
			cs:   "host=splunk.local;port=8090;username=admin;password=secret;verify=True;http_scheme=http",
			expected: SplunkConfig{
				Host: "splunk.local", Port: 8090, Username: "admin", Password: "secret", Verify: true, Scheme: "http",
			},
		},
		{
			name:     "whitespace and trailing separator",
			cs:       " host = a ; token = t ;",
			expected: SplunkConfig{Host: "a", Token: "t"},
		},
		{
			name:     "namespace",
			cs:       "host=a;owner=nobody;app=search",
			expected: SplunkConfig{Host: "a", Owner: "nobody", App: "search"},
		},
		{
			name:    "malformed item",
			cs:      "host",
			wantErr: true,
		},
		{
			name:    "bad port",
			cs:      "host=a;port=abc",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg SplunkConfig
			err := applyConnectionString(&cfg, tt.cs)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg)
		})
	}
}

func TestSplunkMissingArgs(t *testing.T) {
	tests := []struct {
		name     string
		cfg      SplunkConfig
		expected []string
	}{
		{name: "nothing set", cfg: SplunkConfig{}, expected: []string{"host", "username", "password"}},
		{name: "token replaces credentials", cfg: SplunkConfig{Host: "h", Token: "t"}, expected: nil},
		{name: "password missing", cfg: SplunkConfig{Host: "h", Username: "u"}, expected: []string{"password"}},
		{name: "complete", cfg: SplunkConfig{Host: "h", Username: "u", Password: "p"}, expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.cfg.missingArgs())
		})
	}
}

func TestSplunkConnectMissingArgs(t *testing.T) {
	d, err := NewSplunk(&SplunkConfig{Host: "h"}, newTestLogger())
	require.NoError(t, err)

	err = d.Connect(context.Background())
	require.ErrorIs(t, err, ErrMissingConnectionArg)
	assert.Contains(t, err.Error(), "username, password")
	assert.False(t, d.Connected())
}

func TestSplunkQueryNotConnected(t *testing.T) {
	d, err := NewSplunk(&SplunkConfig{Host: "h", Token: "t"}, newTestLogger())
	require.NoError(t, err)

	_, err = d.Query(context.Background(), "index=main")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSplunkConnectAndQuery(t *testing.T) {
	var gotSearch, gotAuth, gotMode, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		switch r.URL.Path {
		case "/services/auth/login":
			if r.PostForm.Get("password") != "changeme" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"sessionKey":"abc123"}`))
		default:
			gotPath = r.URL.Path
			gotSearch = r.PostForm.Get("search")
			gotMode = r.PostForm.Get("exec_mode")
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"fields":[{"name":"host"},"count"],"results":[{"host":"web-1","count":"3"}]}`))
		}
	}))
	defer srv.Close()

	cfg := splunkServerConfig(t, srv)
	d, err := NewSplunk(&cfg, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, TypeSplunk, d.Name())
	assert.Equal(t, "splunk", d.Dialect())

	require.NoError(t, d.Connect(context.Background()))
	assert.True(t, d.Connected())

	result, err := d.Query(context.Background(), "index=main | stats count by host")
	require.NoError(t, err)

	assert.Equal(t, "/services/search/jobs", gotPath)
	assert.Equal(t, "search index=main | stats count by host", gotSearch)
	assert.Equal(t, "oneshot", gotMode)
	assert.Equal(t, "Splunk abc123", gotAuth)
	assert.Equal(t, []string{"host", "count"}, result.Columns)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "web-1", result.Rows[0]["host"])

	require.NoError(t, d.Close())
	assert.False(t, d.Connected())
}

func TestSplunkLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := splunkServerConfig(t, srv)
	d, err := NewSplunk(&cfg, newTestLogger())
	require.NoError(t, err)

	require.ErrorIs(t, d.Connect(context.Background()), ErrAuthentication)
	assert.False(t, d.Connected())
}

func TestSplunkTokenNamespaceAndEmptyResults(t *testing.T) {
	var gotPath, gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	cfg := splunkServerConfig(t, srv)
	cfg.Username, cfg.Password = "", ""
	cfg.Token = "tok"
	cfg.Owner = "nobody"
	cfg.App = "search"

	d, err := NewSplunk(&cfg, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))

	result, err := d.Query(context.Background(), "| tstats count")
	require.NoError(t, err)
	assert.Empty(t, result.Rows)
	assert.Equal(t, "/servicesNS/nobody/search/search/jobs", gotPath)
	assert.Equal(t, "Splunk tok", gotAuth)
}

func TestSplunkBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/services/auth/login" {
			_, _ = w.Write([]byte(`{"sessionKey":"k"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"messages":[{"type":"FATAL","text":"Unknown search command 'foo'."}]}`))
	}))
	defer srv.Close()

	cfg := splunkServerConfig(t, srv)
	d, err := NewSplunk(&cfg, newTestLogger())
	require.NoError(t, err)
	require.NoError(t, d.Connect(context.Background()))

	_, err = d.Query(context.Background(), "| foo")
	require.ErrorIs(t, err, ErrBackendResponse)
	assert.Contains(t, err.Error(), "Unknown search command")
}

func TestSearchCommand(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{query: "index=main", expected: "search index=main"},
		{query: "search index=main", expected: "search index=main"},
		{query: "  | tstats count", expected: "| tstats count"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.expected, searchCommand(tt.query))
		})
	}
}
