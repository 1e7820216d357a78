package driver

import (
	"errors"
	"fmt"
	"time"
)

// Static errors for configuration validation
var (
	ErrUnknownDriver        = errors.New("unknown driver type")
	ErrWorkspaceIDRequired  = errors.New("log analytics workspace ID is required")
	ErrPartialClientSecrets = errors.New("tenantId, clientId and clientSecret must be set together")
)

// Driver types
const (
	TypeSplunk       = "splunk"
	TypeLogAnalytics = "loganalytics"
)

// Config selects and configures the backend a resolved query is sent to
type Config struct {
	Type         string             `yaml:"type" default:"loganalytics"`
	Splunk       SplunkConfig       `yaml:"splunk"`
	LogAnalytics LogAnalyticsConfig `yaml:"loganalytics"`
}

// SplunkConfig contains Splunk REST API connection settings
type SplunkConfig struct {
	// ConnectionString is a "key=value;key=value" alternative to the fields below
	ConnectionString string        `yaml:"connectionString"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"8089"`
	Scheme           string        `yaml:"scheme" default:"https"`
	Verify           bool          `yaml:"verify" default:"false"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	Token            string        `yaml:"token"`
	Owner            string        `yaml:"owner"`
	App              string        `yaml:"app"`
	QueryTimeout     time.Duration `yaml:"queryTimeout" default:"60s"`
}

// LogAnalyticsConfig contains Azure Log Analytics query API settings
type LogAnalyticsConfig struct {
	Endpoint     string        `yaml:"endpoint" default:"https://api.loganalytics.io"`
	WorkspaceID  string        `yaml:"workspaceId"`
	TenantID     string        `yaml:"tenantId"`
	ClientID     string        `yaml:"clientId"`
	ClientSecret string        `yaml:"clientSecret"`
	QueryTimeout time.Duration `yaml:"queryTimeout" default:"60s"`
}

// Validate checks the selected driver's configuration
func (c *Config) Validate() error {
	switch c.Type {
	case TypeSplunk:
		return nil // Connection arguments are checked at connect time
	case TypeLogAnalytics:
		return c.LogAnalytics.Validate()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.Type)
	}
}

// Validate checks if the configuration is valid
func (c *LogAnalyticsConfig) Validate() error {
	if c.WorkspaceID == "" {
		return ErrWorkspaceIDRequired
	}

	set := 0
	for _, v := range []string{c.TenantID, c.ClientID, c.ClientSecret} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return ErrPartialClientSecrets
	}

	return nil
}

// SetDefaults fills unset timeouts
func (c *LogAnalyticsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "https://api.loganalytics.io"
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 60 * time.Second
	}
}

// SetDefaults fills unset connection settings
func (c *SplunkConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8089
	}
	if c.Scheme == "" {
		c.Scheme = "https"
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = 60 * time.Second
	}
}
