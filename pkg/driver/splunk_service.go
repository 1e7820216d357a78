package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"

	"github.com/spf13/cast"
)

// splunkEntry is one item of a Splunk REST collection
type splunkEntry struct {
	Name    string                 `json:"name"`
	Content map[string]interface{} `json:"content"`
}

type splunkCollection struct {
	Entry []splunkEntry `json:"entry"`
}

// SavedSearches lists the searches saved on the Splunk server
func (s *splunk) SavedSearches(ctx context.Context) ([]SavedSearch, error) {
	entries, err := s.collection(ctx, "saved/searches")
	if err != nil {
		return nil, err
	}

	searches := make([]SavedSearch, 0, len(entries))
	for _, e := range entries {
		searches = append(searches, SavedSearch{
			Name:  e.Name,
			Query: cast.ToString(e.Content["search"]),
		})
	}

	sort.Slice(searches, func(i, j int) bool { return searches[i].Name < searches[j].Name })

	return searches, nil
}

// FiredAlerts lists alerts that have fired together with their trigger counts
func (s *splunk) FiredAlerts(ctx context.Context) ([]FiredAlert, error) {
	entries, err := s.collection(ctx, "alerts/fired_alerts")
	if err != nil {
		return nil, err
	}

	alerts := make([]FiredAlert, 0, len(entries))
	for _, e := range entries {
		// "-" is Splunk's summary entry across all alerts
		if e.Name == "-" {
			continue
		}
		alerts = append(alerts, FiredAlert{
			Name:  e.Name,
			Count: cast.ToInt(e.Content["triggered_alert_count"]),
		})
	}

	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Name < alerts[j].Name })

	return alerts, nil
}

func (s *splunk) collection(ctx context.Context, endpoint string) ([]splunkEntry, error) {
	s.mu.RLock()
	connected, sessionKey := s.connected, s.sessionKey
	s.mu.RUnlock()

	if !connected {
		return nil, ErrNotConnected
	}

	ctx, cancel := withDefaultTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	query := url.Values{
		"output_mode": {"json"},
		"count":       {"0"},
	}

	body, status, err := s.get(ctx, s.servicePath(endpoint), query, sessionKey)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: session rejected", ErrAuthentication)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w (status %d): %s", ErrBackendResponse, status, splunkMessage(body))
	}

	var resp splunkCollection
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}

	return resp.Entry, nil
}
