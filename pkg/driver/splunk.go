package driver

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethpandaops/querycat/pkg/resolver"
	"github.com/sirupsen/logrus"
)

// splunk implements Driver over the Splunk REST API using one-shot searches
type splunk struct {
	cfg        SplunkConfig
	log        logrus.FieldLogger
	httpClient *http.Client
	baseURL    string

	mu         sync.RWMutex
	sessionKey string
	connected  bool
}

// NewSplunk creates a Splunk driver. A connection string, when present,
// overrides the individual fields.
func NewSplunk(cfg *SplunkConfig, log logrus.FieldLogger) (Driver, error) {
	merged := *cfg
	if merged.ConnectionString != "" {
		if err := applyConnectionString(&merged, merged.ConnectionString); err != nil {
			return nil, err
		}
	}
	merged.SetDefaults()

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !merged.Verify, //nolint:gosec // Splunk management ports commonly use self-signed certificates
		},
	}

	return &splunk{
		cfg:        merged,
		log:        log.WithField("component", "splunk"),
		httpClient: &http.Client{Transport: transport},
		baseURL:    fmt.Sprintf("%s://%s:%d", merged.Scheme, merged.Host, merged.Port),
	}, nil
}

// applyConnectionString parses "host=...;port=...;username=..." into cfg
func applyConnectionString(cfg *SplunkConfig, cs string) error {
	for _, item := range strings.Split(cs, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		key, value, found := strings.Cut(item, "=")
		if !found {
			return fmt.Errorf("%w: malformed connection string item %q", ErrMissingConnectionArg, item)
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "host":
			cfg.Host = value
		case "port":
			port, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("invalid port %q: %w", value, err)
			}
			cfg.Port = port
		case "scheme", "http_scheme":
			cfg.Scheme = value
		case "verify":
			cfg.Verify = strings.Contains(strings.ToLower(value), "true")
		case "username":
			cfg.Username = value
		case "password":
			cfg.Password = value
		case "token":
			cfg.Token = value
		case "owner":
			cfg.Owner = value
		case "app":
			cfg.App = value
		}
	}

	return nil
}

// missingArgs lists required connection arguments that are unset. A token
// replaces username and password.
func (c *SplunkConfig) missingArgs() []string {
	var missing []string
	if c.Host == "" {
		missing = append(missing, "host")
	}
	if c.Token != "" {
		return missing
	}
	if c.Username == "" {
		missing = append(missing, "username")
	}
	if c.Password == "" {
		missing = append(missing, "password")
	}

	return missing
}

func (s *splunk) Name() string    { return TypeSplunk }
func (s *splunk) Dialect() string { return resolver.DialectSplunk }

func (s *splunk) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.connected
}

func (s *splunk) Connect(ctx context.Context) error {
	if missing := s.cfg.missingArgs(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConnectionArg, strings.Join(missing, ", "))
	}

	sessionKey := s.cfg.Token
	if sessionKey == "" {
		key, err := s.login(ctx)
		if err != nil {
			return err
		}
		sessionKey = key
	}

	s.mu.Lock()
	s.sessionKey = sessionKey
	s.connected = true
	s.mu.Unlock()

	s.log.WithField("host", s.cfg.Host).Info("Connected to Splunk")

	return nil
}

func (s *splunk) login(ctx context.Context) (string, error) {
	ctx, cancel := withDefaultTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	form := url.Values{
		"username":    {s.cfg.Username},
		"password":    {s.cfg.Password},
		"output_mode": {"json"},
	}

	body, status, err := s.post(ctx, "/services/auth/login", form, "")
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized {
		return "", fmt.Errorf("%w: splunk rejected credentials for %s", ErrAuthentication, s.cfg.Username)
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w (status %d): %s", ErrBackendResponse, status, splunkMessage(body))
	}

	var resp struct {
		SessionKey string `json:"sessionKey"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse login response: %w", err)
	}
	if resp.SessionKey == "" {
		return "", fmt.Errorf("%w: empty session key", ErrAuthentication)
	}

	return resp.SessionKey, nil
}

// splunkField accepts both the object and the bare string forms of a field
type splunkField struct {
	Name string
}

func (f *splunkField) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		f.Name = name
		return nil
	}

	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	f.Name = obj.Name

	return nil
}

type splunkSearchResponse struct {
	Fields  []splunkField            `json:"fields"`
	Results []map[string]interface{} `json:"results"`
}

func (s *splunk) Query(ctx context.Context, query string) (*Result, error) {
	s.mu.RLock()
	connected, sessionKey := s.connected, s.sessionKey
	s.mu.RUnlock()

	if !connected {
		return nil, ErrNotConnected
	}

	started := time.Now()
	result, err := s.oneshot(ctx, sessionKey, query)
	observe(TypeSplunk, started, result, err)

	return result, err
}

func (s *splunk) oneshot(ctx context.Context, sessionKey, query string) (*Result, error) {
	ctx, cancel := withDefaultTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	form := url.Values{
		"search":      {searchCommand(query)},
		"exec_mode":   {"oneshot"},
		"output_mode": {"json"},
		"count":       {"0"},
	}

	body, status, err := s.post(ctx, s.jobsPath(), form, sessionKey)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: session rejected", ErrAuthentication)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return nil, fmt.Errorf("%w (status %d): %s", ErrBackendResponse, status, splunkMessage(body))
	}

	var resp splunkSearchResponse
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse search response: %w", err)
		}
	}

	result := &Result{Rows: resp.Results}
	for _, f := range resp.Fields {
		result.Columns = append(result.Columns, f.Name)
	}
	if len(result.Columns) == 0 {
		result.Columns = columnsFromRows(result.Rows)
	}

	if len(result.Rows) == 0 {
		s.log.Warn("Query did not return any results")
	}

	return result, nil
}

// jobsPath scopes the search to the configured namespace when owner/app are set
func (s *splunk) jobsPath() string {
	return s.servicePath("search/jobs")
}

// servicePath prefixes an endpoint with /services, or with the
// /servicesNS/<owner>/<app> namespace when owner or app is configured
func (s *splunk) servicePath(endpoint string) string {
	if s.cfg.Owner != "" || s.cfg.App != "" {
		owner, app := s.cfg.Owner, s.cfg.App
		if owner == "" {
			owner = "-"
		}
		if app == "" {
			app = "-"
		}
		return fmt.Sprintf("/servicesNS/%s/%s/%s", url.PathEscape(owner), url.PathEscape(app), endpoint)
	}

	return "/services/" + endpoint
}

func (s *splunk) post(ctx context.Context, path string, form url.Values, sessionKey string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return s.do(req, sessionKey)
}

func (s *splunk) get(ctx context.Context, path string, query url.Values, sessionKey string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	return s.do(req, sessionKey)
}

func (s *splunk) do(req *http.Request, sessionKey string) ([]byte, int, error) {
	if sessionKey != "" {
		req.Header.Set("Authorization", "Splunk "+sessionKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.log.WithError(closeErr).Debug("Failed to close response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response: %w", err)
	}

	return body, resp.StatusCode, nil
}

func (s *splunk) Close() error {
	s.mu.Lock()
	s.connected = false
	s.sessionKey = ""
	s.mu.Unlock()

	s.httpClient.CloseIdleConnections()

	return nil
}

// searchCommand prefixes "search" unless the query already starts with a command
func searchCommand(query string) string {
	trimmed := strings.TrimSpace(query)
	if strings.HasPrefix(trimmed, "search") || strings.HasPrefix(trimmed, "|") {
		return trimmed
	}

	return "search " + trimmed
}

// splunkMessage extracts the first message text from an error body
func splunkMessage(body []byte) string {
	var resp struct {
		Messages []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(body, &resp); err == nil && len(resp.Messages) > 0 {
		return resp.Messages[0].Text
	}

	return string(body)
}

func columnsFromRows(rows []map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var cols []string

	for _, row := range rows {
		for k := range row {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		}
	}
	sort.Strings(cols)

	return cols
}
