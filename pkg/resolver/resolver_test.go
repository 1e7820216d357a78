package resolver

import (
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethpandaops/querycat/pkg/catalog"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

var leftoverPlaceholder = regexp.MustCompile(`\{[A-Za-z_][A-Za-z0-9_]*\}`)

func newTestResolver(t *testing.T, opts ...Option) *Resolver {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithLogger(log),
	}

	return New(append(base, opts...)...)
}

func networkCatalog(t *testing.T) *catalog.QueryCatalog {
	t.Helper()

	catalogs, err := catalog.Builtin()
	require.NoError(t, err)
	require.NotEmpty(t, catalogs)

	return catalogs[0]
}

func TestResolve_ListConnectionsWithOverrides(t *testing.T) {
	r := newTestResolver(t)
	cat := networkCatalog(t)

	ts1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts2 := time.Date(2024, 1, 2, 6, 30, 0, 0, time.UTC)

	query, err := r.Resolve(cat, "list_connections", map[string]interface{}{
		"table": "T",
		"start": ts1,
		"end":   ts2,
	})
	require.NoError(t, err)

	tIdx := strings.Index(query, "T\n")
	startIdx := strings.Index(query, "datetime(2024-01-01T00:00:00.000000Z)")
	endIdx := strings.Index(query, "datetime(2024-01-02T06:30:00.000000Z)")

	require.GreaterOrEqual(t, tIdx, 0)
	require.Greater(t, startIdx, tIdx)
	require.Greater(t, endIdx, startIdx)
	assert.False(t, leftoverPlaceholder.MatchString(query), query)
}

func TestResolve_DefaultsOnly(t *testing.T) {
	r := newTestResolver(t)
	cat := networkCatalog(t)

	query, err := r.Resolve(cat, "list_connections", nil)
	require.NoError(t, err)

	assert.Contains(t, query, "DeviceNetworkEvents")
	// -30 and 0 are day offsets from the clock
	assert.Contains(t, query, "datetime(2024-05-16T12:00:00.000000Z)")
	assert.Contains(t, query, "datetime(2024-06-15T12:00:00.000000Z)")
	assert.False(t, leftoverPlaceholder.MatchString(query))
}

func TestResolve_AllSourcesWithDefaultsOrRequiredValues(t *testing.T) {
	r := newTestResolver(t)
	cat := networkCatalog(t)

	for _, name := range cat.SourceNames() {
		t.Run(name, func(t *testing.T) {
			plan, err := Plan(cat, name)
			require.NoError(t, err)

			overrides := map[string]interface{}{}
			for _, p := range plan {
				if p.Required {
					overrides[p.Name] = "value"
				}
			}

			query, err := r.Resolve(cat, name, overrides)
			require.NoError(t, err)
			assert.NotErrorIs(t, err, ErrMissingRequiredParameter)
			assert.False(t, leftoverPlaceholder.MatchString(query), query)
		})
	}
}

func TestResolve_OverridesTakePrecedence(t *testing.T) {
	r := newTestResolver(t)
	cat := networkCatalog(t)

	query, err := r.Resolve(cat, "host_connections", map[string]interface{}{"hostname": "X"})
	require.NoError(t, err)
	assert.Contains(t, query, `DeviceName has "X"`)

	query, err = r.Resolve(cat, "host_connections", map[string]interface{}{
		"hostname": "X",
		"table":    "MyTable",
	})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(query, "MyTable"))
	assert.NotContains(t, query, "DeviceNetworkEvents")
}

func TestResolve_ProtocolConnections(t *testing.T) {
	r := newTestResolver(t)

	query, err := r.Resolve(networkCatalog(t), "protocol_connections", map[string]interface{}{"protocol": "443"})
	require.NoError(t, err)
	assert.Contains(t, query, "RemotePort == 443")
}

func TestResolve_IPConnectionsSingleWhere(t *testing.T) {
	r := newTestResolver(t)

	query, err := r.Resolve(networkCatalog(t), "ip_connections", map[string]interface{}{"ip": "10.0.0.1"})
	require.NoError(t, err)
	assert.Contains(t, query, `| where RemoteIP has "10.0.0.1" or LocalIP has "10.0.0.1"`)
	assert.NotContains(t, query, "or where")
}

func TestResolve_Idempotent(t *testing.T) {
	r := newTestResolver(t)
	cat := networkCatalog(t)
	overrides := map[string]interface{}{"url": "contoso.com", "start": -7}

	first, err := r.Resolve(cat, "url_connections", overrides)
	require.NoError(t, err)
	second, err := r.Resolve(cat, "url_connections", overrides)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestResolve_UnknownSource(t *testing.T) {
	r := newTestResolver(t)

	query, err := r.Resolve(networkCatalog(t), "no_such_source", map[string]interface{}{"hostname": "X"})

	assert.Empty(t, query)
	require.ErrorIs(t, err, ErrUnknownSource)

	var rErr *Error
	require.True(t, errors.As(err, &rErr))
	assert.Equal(t, KindUnknownSource, rErr.Kind)
	assert.Equal(t, "no_such_source", rErr.Source)
}

func TestResolve_MissingRequiredParameter(t *testing.T) {
	r := newTestResolver(t)

	query, err := r.Resolve(networkCatalog(t), "host_connections", nil)

	assert.Empty(t, query)
	require.ErrorIs(t, err, ErrMissingRequiredParameter)
	assert.NotErrorIs(t, err, ErrUnknownSource)

	var rErr *Error
	require.True(t, errors.As(err, &rErr))
	assert.Equal(t, []string{"hostname"}, rErr.Parameters)
	assert.Equal(t, `missing required parameter: source "host_connections": hostname`, err.Error())
}

func TestResolve_MalformedTemplate(t *testing.T) {
	r := newTestResolver(t)
	cat := &catalog.QueryCatalog{
		Sources: map[string]*catalog.SourceTemplate{
			"broken": {
				Name:     "broken",
				Template: `T | where A == "{declared}" and B == "{undeclared}"`,
				Parameters: map[string]*catalog.ParameterSpec{
					"declared": {Name: "declared", Type: catalog.TypeString, Default: "a", HasDefault: true},
				},
			},
		},
	}

	query, err := r.Resolve(cat, "broken", map[string]interface{}{"undeclared": "ignored"})

	assert.Empty(t, query)
	require.ErrorIs(t, err, ErrMalformedTemplate)

	var rErr *Error
	require.True(t, errors.As(err, &rErr))
	assert.Equal(t, []string{"undeclared"}, rErr.Parameters)
}

func TestResolve_TypedValues(t *testing.T) {
	cat := &catalog.QueryCatalog{
		Defaults: catalog.Defaults{Parameters: map[string]*catalog.ParameterSpec{
			"start": {Name: "start", Type: catalog.TypeDatetime, Default: -1, HasDefault: true},
		}},
		Sources: map[string]*catalog.SourceTemplate{
			"typed": {
				Name:     "typed",
				Template: "T | where Timestamp >= datetime({start}) | where Port in ({ports}) | take {limit} | extend flag={flag}",
				Parameters: map[string]*catalog.ParameterSpec{
					"ports": {Name: "ports", Type: catalog.TypeList},
					"limit": {Name: "limit", Type: catalog.TypeInt, Default: 100, HasDefault: true},
					"flag":  {Name: "flag", Type: catalog.TypeBool, Default: false, HasDefault: true},
				},
			},
		},
	}

	tests := []struct {
		name      string
		dialect   string
		overrides map[string]interface{}
		contains  []string
		wantErr   error
	}{
		{
			name:      "kql list and defaults",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []int{80, 443}},
			contains: []string{
				"datetime(2024-06-14T12:00:00.000000Z)",
				"Port in ('80','443')",
				"take 100",
				"flag=false",
			},
		},
		{
			name:      "splunk list from comma string",
			dialect:   DialectSplunk,
			overrides: map[string]interface{}{"ports": "80, 443", "limit": "5", "flag": "true"},
			contains: []string{
				"datetime(2024-06-14T12:00:00.000000)",
				`Port in ("80","443")`,
				"take 5",
				"flag=true",
			},
		},
		{
			name:      "string day offset",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": "-0.5"},
			contains:  []string{"datetime(2024-06-15T00:00:00.000000Z)"},
		},
		{
			name:      "absolute datetime string",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": "2024-02-03T04:05:06Z"},
			contains:  []string{"datetime(2024-02-03T04:05:06.000000Z)"},
		},
		{
			name:      "invalid int",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "limit": "many"},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "invalid datetime",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": "yesterday-ish"},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "NaN day offset",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": "NaN"},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "infinite day offset",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": "Inf"},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "negative infinite day offset",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": "-Inf"},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "string day offset beyond duration range",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": "-200000"},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "numeric day offset beyond duration range",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": -1e6},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "large day offset within range",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": -3650},
			contains:  []string{"datetime(2014-06-18T12:00:00.000000Z)"},
		},
		{
			name:      "json whole number int",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "limit": float64(250)},
			contains:  []string{"take 250"},
		},
		{
			name:      "json int beyond int64",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "limit": 1e20},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "json fractional int",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "limit": 2.5},
			wantErr:   ErrInvalidParameterValue,
		},
		{
			name:      "bool is not a datetime",
			dialect:   DialectKQL,
			overrides: map[string]interface{}{"ports": []string{"22"}, "start": true},
			wantErr:   ErrInvalidParameterValue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := FormatterFor(tt.dialect)
			require.NoError(t, err)

			r := newTestResolver(t, WithFormatter(f))
			query, err := r.Resolve(cat, "typed", tt.overrides)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, query)
				return
			}

			require.NoError(t, err)
			for _, want := range tt.contains {
				assert.Contains(t, query, want)
			}
		})
	}
}

func TestResolve_ConcurrentCallers(t *testing.T) {
	r := newTestResolver(t)
	cat := networkCatalog(t)

	expected, err := r.Resolve(cat, "host_connections", map[string]interface{}{"hostname": "dc01"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]string, 16)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, resolveErr := r.Resolve(cat, "host_connections", map[string]interface{}{"hostname": "dc01"})
			if resolveErr == nil {
				results[i] = q
			}
		}(i)
	}
	wg.Wait()

	for _, q := range results {
		assert.Equal(t, expected, q)
	}
}

func TestPlan(t *testing.T) {
	plan, err := Plan(networkCatalog(t), "host_connections")
	require.NoError(t, err)

	names := make([]string, 0, len(plan))
	for _, p := range plan {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"add_query_items", "end", "hostname", "start", "table"}, names)

	byName := make(map[string]Parameter)
	for _, p := range plan {
		byName[p.Name] = p
	}
	assert.True(t, byName["hostname"].Required)
	assert.Equal(t, OriginLocal, byName["hostname"].Origin)
	assert.False(t, byName["start"].Required)
	assert.Equal(t, OriginGlobal, byName["start"].Origin)
	assert.Equal(t, catalog.TypeDatetime, byName["start"].Type)

	_, err = Plan(networkCatalog(t), "missing")
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "success", Status(nil))
	assert.Equal(t, "missing_parameter", Status(&Error{Kind: KindMissingParameter}))
	assert.Equal(t, "error", Status(errors.New("boom")))
}
