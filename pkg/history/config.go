package history

import (
	"errors"
	"fmt"
)

// Define static errors
var (
	ErrURLRequired       = errors.New("redis url is required when history is enabled")
	ErrInvalidMaxEntries = errors.New("maxEntries must be greater than zero")
	ErrNotEnabled        = errors.New("query history is not enabled")
)

// Config holds query history settings
type Config struct {
	Enabled    bool   `yaml:"enabled" default:"false"`
	URL        string `yaml:"url" default:"redis://localhost:6379/0"`
	Prefix     string `yaml:"prefix" default:"querycat"`
	MaxEntries int64  `yaml:"maxEntries" default:"500"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	if c.URL == "" {
		return ErrURLRequired
	}

	if c.MaxEntries <= 0 {
		return ErrInvalidMaxEntries
	}

	if c.Prefix == "" {
		c.Prefix = "querycat"
	}

	return nil
}

// PrefixKey adds the configured prefix to a Redis key
func (c *Config) PrefixKey(key string) string {
	if c.Prefix == "" {
		return key
	}

	return fmt.Sprintf("%s:%s", c.Prefix, key)
}
