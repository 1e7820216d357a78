// Package history keeps a capped Redis list of the queries querycat has dispatched
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethpandaops/querycat/pkg/observability"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Record describes one dispatched query. Result rows are never stored.
type Record struct {
	ID         string                 `json:"id"`
	Source     string                 `json:"source"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	Query      string                 `json:"query"`
	Driver     string                 `json:"driver"`
	Rows       int                    `json:"rows"`
	Error      string                 `json:"error,omitempty"`
	ExecutedAt time.Time              `json:"executed_at"`
}

// Store appends and reads history records
type Store struct {
	client     *redis.Client
	key        string
	maxEntries int64
	log        logrus.FieldLogger
}

// NewStore creates a history store on an existing client
func NewStore(client *redis.Client, cfg *Config, log logrus.FieldLogger) *Store {
	return &Store{
		client:     client,
		key:        cfg.PrefixKey("history"),
		maxEntries: cfg.MaxEntries,
		log:        log.WithField("component", "history"),
	}
}

// Open parses cfg.URL, pings Redis and returns a store that owns the client
func Open(ctx context.Context, cfg *Config, log logrus.FieldLogger) (*Store, error) {
	if !cfg.Enabled {
		return nil, ErrNotEnabled
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewStore(client, cfg, log), nil
}

// Add prepends a record, assigning an ID and timestamp when unset, and trims
// the list to the configured size
func (s *Store) Add(ctx context.Context, rec *Record) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.ExecutedAt.IsZero() {
		rec.ExecutedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		observability.HistoryRecords.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to encode history record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, s.key, data)
	if s.maxEntries > 0 {
		pipe.LTrim(ctx, s.key, 0, s.maxEntries-1)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		observability.HistoryRecords.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to store history record: %w", err)
	}

	observability.HistoryRecords.WithLabelValues("success").Inc()
	s.log.WithFields(logrus.Fields{
		"id":     rec.ID,
		"source": rec.Source,
	}).Debug("Recorded query history")

	return nil
}

// List returns up to limit records, newest first. A limit of zero or less returns all.
func (s *Store) List(ctx context.Context, limit int64) ([]Record, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = limit - 1
	}

	raw, err := s.client.LRange(ctx, s.key, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	records := make([]Record, 0, len(raw))
	for _, item := range raw {
		var rec Record
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			s.log.WithError(err).Warn("Skipping unreadable history record")
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// Clear removes all history records
func (s *Store) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Close closes the underlying client
func (s *Store) Close() error {
	return s.client.Close()
}
