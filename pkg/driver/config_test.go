package driver

import (
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/ethpandaops/querycat/pkg/observability"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, defaults.Set(cfg))

	assert.Equal(t, TypeLogAnalytics, cfg.Type)
	assert.Equal(t, 8089, cfg.Splunk.Port)
	assert.Equal(t, "https", cfg.Splunk.Scheme)
	assert.Equal(t, 60*time.Second, cfg.Splunk.QueryTimeout)
	assert.Equal(t, "https://api.loganalytics.io", cfg.LogAnalytics.Endpoint)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "splunk", cfg: Config{Type: TypeSplunk}},
		{
			name: "loganalytics with workspace",
			cfg:  Config{Type: TypeLogAnalytics, LogAnalytics: LogAnalyticsConfig{WorkspaceID: "ws"}},
		},
		{
			name:    "loganalytics without workspace",
			cfg:     Config{Type: TypeLogAnalytics},
			wantErr: ErrWorkspaceIDRequired,
		},
		{
			name: "partial client secret",
			cfg: Config{Type: TypeLogAnalytics, LogAnalytics: LogAnalyticsConfig{
				WorkspaceID: "ws", TenantID: "t", ClientID: "c",
			}},
			wantErr: ErrPartialClientSecrets,
		},
		{name: "unknown", cfg: Config{Type: "elastic"}, wantErr: ErrUnknownDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNew(t *testing.T) {
	d, err := New(&Config{Type: TypeSplunk, Splunk: SplunkConfig{ConnectionString: "host=h;token=t"}}, newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, TypeSplunk, d.Name())

	_, err = New(&Config{Type: "nope"}, newTestLogger())
	require.ErrorIs(t, err, ErrUnknownDriver)
}

func TestObserve(t *testing.T) {
	const name = "observe-test"

	success := observability.BackendQueries.WithLabelValues(name, "success")
	partial := observability.BackendQueries.WithLabelValues(name, "partial")
	failed := observability.BackendQueries.WithLabelValues(name, "error")
	rows := observability.BackendRowsReturned.WithLabelValues(name)

	observe(name, time.Now(), &Result{Rows: make([]map[string]interface{}, 3)}, nil)
	observe(name, time.Now(), &Result{Partial: true}, nil)
	observe(name, time.Now(), nil, ErrBackendResponse)

	assert.InDelta(t, 1, promtestutil.ToFloat64(success), 0)
	assert.InDelta(t, 1, promtestutil.ToFloat64(partial), 0)
	assert.InDelta(t, 1, promtestutil.ToFloat64(failed), 0)
	assert.InDelta(t, 3, promtestutil.ToFloat64(rows), 0)
}
