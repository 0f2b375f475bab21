// Package config handles configuration loading and validation for tsync.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override credentials from the config file.
const (
	EnvTrelloAPIKey  = "TSYNC_TRELLO_API_KEY"
	EnvTrelloToken   = "TSYNC_TRELLO_TOKEN"
	EnvGraphClientID = "TSYNC_GRAPH_CLIENT_ID"
	EnvGraphTenantID = "TSYNC_GRAPH_TENANT_ID"
)

// Config holds the application configuration.
type Config struct {
	Trello          TrelloConfig  `yaml:"trello"`
	Graph           GraphConfig   `yaml:"graph"`
	DownloadPath    string        `yaml:"download_path"`
	UploadWorkers   int           `yaml:"upload_workers"`
	TaskAttempts    int           `yaml:"task_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	ReplyRetryDelay time.Duration `yaml:"reply_retry_delay"`
	Theme           string        `yaml:"theme"`
	DataDir         string        `yaml:"-"` // set by caller, not from config file
}

// TrelloConfig holds the Source API settings.
type TrelloConfig struct {
	APIKey    string    `yaml:"api_key"`
	Token     string    `yaml:"token"`
	BaseURL   string    `yaml:"base_url"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// GraphConfig holds the Target API and sign-in settings.
type GraphConfig struct {
	ClientID  string    `yaml:"client_id"`
	TenantID  string    `yaml:"tenant_id"`
	Scopes    []string  `yaml:"scopes"` // empty uses the scopes a migration needs
	BaseURL   string    `yaml:"base_url"`
	Authority string    `yaml:"authority"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

// RateLimit allows Requests requests in any window of length Per.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Per      time.Duration `yaml:"per"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Trello: TrelloConfig{
			BaseURL:   "https://api.trello.com/1/",
			RateLimit: RateLimit{Requests: 9, Per: time.Second},
		},
		Graph: GraphConfig{
			TenantID:  "organizations",
			BaseURL:   "https://graph.microsoft.com/v1.0/",
			RateLimit: RateLimit{Requests: 9, Per: time.Second},
		},
		UploadWorkers:   4,
		TaskAttempts:    10,
		RetryDelay:      time.Second,
		ReplyRetryDelay: 2 * time.Second,
		Theme:           "tokyo-night",
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided
// dataDir. Credentials in the environment take precedence over the file.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.DataDir = dataDir

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}

			// Re-set dataDir since Unmarshal may have cleared it
			cfg.DataDir = dataDir
		}
	}

	cfg.applyEnv(os.LookupEnv)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, key string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	set(&c.Trello.APIKey, EnvTrelloAPIKey)
	set(&c.Trello.Token, EnvTrelloToken)
	set(&c.Graph.ClientID, EnvGraphClientID)
	set(&c.Graph.TenantID, EnvGraphTenantID)
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Trello.BaseURL == "" {
		c.Trello.BaseURL = defaults.Trello.BaseURL
	}
	if c.Trello.RateLimit.Requests == 0 {
		c.Trello.RateLimit.Requests = defaults.Trello.RateLimit.Requests
	}
	if c.Trello.RateLimit.Per == 0 {
		c.Trello.RateLimit.Per = defaults.Trello.RateLimit.Per
	}

	if c.Graph.TenantID == "" {
		c.Graph.TenantID = defaults.Graph.TenantID
	}
	if c.Graph.BaseURL == "" {
		c.Graph.BaseURL = defaults.Graph.BaseURL
	}
	if c.Graph.RateLimit.Requests == 0 {
		c.Graph.RateLimit.Requests = defaults.Graph.RateLimit.Requests
	}
	if c.Graph.RateLimit.Per == 0 {
		c.Graph.RateLimit.Per = defaults.Graph.RateLimit.Per
	}

	if c.UploadWorkers == 0 {
		c.UploadWorkers = defaults.UploadWorkers
	}
	if c.TaskAttempts == 0 {
		c.TaskAttempts = defaults.TaskAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = defaults.RetryDelay
	}
	if c.ReplyRetryDelay == 0 {
		c.ReplyRetryDelay = defaults.ReplyRetryDelay
	}
	if c.Theme == "" {
		c.Theme = defaults.Theme
	}
}

// Validate checks that the configuration is structurally valid. Missing
// credentials are reported by ValidateDeep since most menu steps can run
// without them.
func (c *Config) Validate() error {
	var errs []error

	if c.DataDir == "" {
		errs = append(errs, errors.New("data directory cannot be empty"))
	}
	if c.UploadWorkers < 1 {
		errs = append(errs, errors.New("upload_workers must be at least 1"))
	}
	if c.TaskAttempts < 1 {
		errs = append(errs, errors.New("task_attempts must be at least 1"))
	}
	if c.RetryDelay < 0 || c.ReplyRetryDelay < 0 {
		errs = append(errs, errors.New("retry delays cannot be negative"))
	}
	if err := c.Trello.RateLimit.validate("trello.rate_limit"); err != nil {
		errs = append(errs, err)
	}
	if err := c.Graph.RateLimit.validate("graph.rate_limit"); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (r RateLimit) validate(field string) error {
	if r.Requests < 1 {
		return fmt.Errorf("%s.requests must be at least 1", field)
	}
	if r.Per <= 0 {
		return fmt.Errorf("%s.per must be positive", field)
	}
	return nil
}

// DownloadDir is where attachment copies are cached.
func (c *Config) DownloadDir() string {
	if c.DownloadPath != "" {
		return c.DownloadPath
	}
	return filepath.Join(c.DataDir, "downloads")
}

// TokenCachePath is where the Graph OAuth token is stored.
func (c *Config) TokenCachePath() string {
	return filepath.Join(c.DataDir, "graph-token.json")
}
