package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/ethpandaops/querycat/pkg/resolver"
	"github.com/sirupsen/logrus"
)

const logAnalyticsScope = "https://api.loganalytics.io/.default"

// logAnalytics implements Driver over the Azure Log Analytics query API
type logAnalytics struct {
	cfg        LogAnalyticsConfig
	log        logrus.FieldLogger
	httpClient *http.Client
	credential azcore.TokenCredential

	mu        sync.RWMutex
	connected bool
	schema    Schema
}

// NewLogAnalytics creates a Log Analytics driver. When credential is nil one is
// built from the config at connect time: client secret if configured, otherwise
// the default Azure credential chain.
func NewLogAnalytics(cfg *LogAnalyticsConfig, log logrus.FieldLogger, credential azcore.TokenCredential) (Driver, error) {
	merged := *cfg
	merged.SetDefaults()

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &logAnalytics{
		cfg:        merged,
		log:        log.WithField("component", "loganalytics"),
		httpClient: &http.Client{},
		credential: credential,
	}, nil
}

func (l *logAnalytics) Name() string    { return TypeLogAnalytics }
func (l *logAnalytics) Dialect() string { return resolver.DialectKQL }

func (l *logAnalytics) Connected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.connected
}

func (l *logAnalytics) Connect(ctx context.Context) error {
	if l.credential == nil {
		cred, err := l.newCredential()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAuthentication, err)
		}
		l.credential = cred
	}

	tokenCtx, cancel := withDefaultTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	// Fetching a token up front surfaces credential problems before the first query
	if _, err := l.token(tokenCtx); err != nil {
		return err
	}

	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()

	l.log.WithField("workspace", l.cfg.WorkspaceID).Info("Connected to Log Analytics workspace")

	return nil
}

func (l *logAnalytics) newCredential() (azcore.TokenCredential, error) {
	if l.cfg.ClientSecret != "" {
		return azidentity.NewClientSecretCredential(l.cfg.TenantID, l.cfg.ClientID, l.cfg.ClientSecret, nil)
	}

	return azidentity.NewDefaultAzureCredential(nil)
}

func (l *logAnalytics) token(ctx context.Context) (string, error) {
	tok, err := l.credential.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{logAnalyticsScope}})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	return tok.Token, nil
}

type laColumn struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type laTable struct {
	Name    string          `json:"name"`
	Columns []laColumn      `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

type laError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type laResponse struct {
	Tables []laTable `json:"tables"`
	Error  *laError  `json:"error"`
}

func (l *logAnalytics) Query(ctx context.Context, query string) (*Result, error) {
	if !l.Connected() {
		return nil, ErrNotConnected
	}

	started := time.Now()
	result, err := l.query(ctx, query)
	observe(TypeLogAnalytics, started, result, err)

	return result, err
}

func (l *logAnalytics) query(ctx context.Context, query string) (*Result, error) {
	ctx, cancel := withDefaultTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	token, err := l.token(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, err
	}

	l.log.WithField("query", query).Debug("Executing Log Analytics query")

	var parsed laResponse
	if err := l.call(ctx, http.MethodPost, "query", token, payload, &parsed); err != nil {
		return nil, err
	}

	result := flattenTables(parsed.Tables)

	// A 200 carrying an error object means the service gave up part way through
	if parsed.Error != nil {
		result.Partial = true
		l.log.WithField("error", parsed.Error.Message).Warn("Query returned partial results")
	}

	if len(result.Rows) == 0 {
		l.log.Warn("Query did not return any results")
	}

	return result, nil
}

// workspaceURL returns the URL of a workspace API endpoint
func (l *logAnalytics) workspaceURL(endpoint string) string {
	return fmt.Sprintf("%s/v1/workspaces/%s/%s", strings.TrimRight(l.cfg.Endpoint, "/"), l.cfg.WorkspaceID, endpoint)
}

// call sends a request to a workspace endpoint and decodes a 200 response into out
func (l *logAnalytics) call(ctx context.Context, method, endpoint, token string, payload []byte, out interface{}) error {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, l.workspaceURL(endpoint), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Prefer", "include-statistics=false")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			l.log.WithError(closeErr).Debug("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var failed laResponse
		_ = json.Unmarshal(body, &failed)

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w (status %d): %s", ErrAuthentication, resp.StatusCode, laMessage(failed.Error, body))
		}
		return fmt.Errorf("%w (status %d): %s", ErrBackendResponse, resp.StatusCode, laMessage(failed.Error, body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

type laMetadata struct {
	Tables []laTable `json:"tables"`
}

// Schema returns the workspace tables and their columns. The first successful
// lookup is kept until Close.
func (l *logAnalytics) Schema(ctx context.Context) (Schema, error) {
	if !l.Connected() {
		return nil, ErrNotConnected
	}

	l.mu.RLock()
	cached := l.schema
	l.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	ctx, cancel := withDefaultTimeout(ctx, l.cfg.QueryTimeout)
	defer cancel()

	token, err := l.token(ctx)
	if err != nil {
		return nil, err
	}

	var meta laMetadata
	if err := l.call(ctx, http.MethodGet, "metadata", token, nil, &meta); err != nil {
		return nil, err
	}

	schema := make(Schema, len(meta.Tables))
	for _, t := range meta.Tables {
		columns := make(map[string]string, len(t.Columns))
		for _, c := range t.Columns {
			columns[c.Name] = c.Type
		}
		schema[t.Name] = columns
	}

	l.mu.Lock()
	l.schema = schema
	l.mu.Unlock()

	l.log.WithField("tables", len(schema)).Debug("Loaded workspace schema")

	return schema, nil
}

// flattenTables turns the primary result table into column-keyed rows
func flattenTables(tables []laTable) *Result {
	result := &Result{}
	if len(tables) == 0 {
		return result
	}

	primary := tables[0]
	for _, t := range tables {
		if t.Name == "PrimaryResult" {
			primary = t
			break
		}
	}

	for _, c := range primary.Columns {
		result.Columns = append(result.Columns, c.Name)
	}

	result.Rows = make([]map[string]interface{}, 0, len(primary.Rows))
	for _, values := range primary.Rows {
		row := make(map[string]interface{}, len(primary.Columns))
		for i, c := range primary.Columns {
			if i < len(values) {
				row[c.Name] = values[i]
			}
		}
		result.Rows = append(result.Rows, row)
	}

	return result
}

func laMessage(e *laError, body []byte) string {
	if e != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	return string(body)
}

func (l *logAnalytics) Close() error {
	l.mu.Lock()
	l.connected = false
	l.schema = nil
	l.mu.Unlock()

	l.httpClient.CloseIdleConnections()

	return nil
}
