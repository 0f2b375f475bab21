package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/tsync/internal/core/styles"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including credentials, URLs and file accessibility. The configPath argument
// specifies the config file location to validate (empty string skips config
// file check). This calls Validate() first for basic structural validation.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateCredentials(),
		c.validateURLs(),
		criterio.Run("theme", c.Theme, knownTheme),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Graph.TenantID == "common" {
		warnings = append(warnings, ValidationWarning{
			Category: "Graph",
			Item:     "graph.tenant_id",
			Message:  "the common tenant also admits personal accounts, which have no planner access",
		})
	}
	if c.UploadWorkers > c.Graph.RateLimit.Requests {
		warnings = append(warnings, ValidationWarning{
			Category: "Uploads",
			Item:     "upload_workers",
			Message:  fmt.Sprintf("%d workers share a limit of %d requests, extra workers only wait", c.UploadWorkers, c.Graph.RateLimit.Requests),
		})
	}

	return warnings
}

// validateFileAccess checks the config file, data directory and download path.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
		criterio.Run("download_path", c.DownloadDir(), isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

func (c *Config) validateCredentials() error {
	var errs criterio.FieldErrorsBuilder

	if c.Trello.APIKey == "" {
		errs = errs.Append("trello.api_key", fmt.Errorf("required (or set %s)", EnvTrelloAPIKey))
	}
	if c.Trello.Token == "" {
		errs = errs.Append("trello.token", fmt.Errorf("required (or set %s)", EnvTrelloToken))
	}
	if c.Graph.ClientID == "" {
		errs = errs.Append("graph.client_id", fmt.Errorf("required (or set %s)", EnvGraphClientID))
	}

	return errs.ToError()
}

func (c *Config) validateURLs() error {
	urls := []struct {
		field string
		value string
	}{
		{"trello.base_url", c.Trello.BaseURL},
		{"graph.base_url", c.Graph.BaseURL},
		{"graph.authority", c.Graph.Authority},
	}

	var errs criterio.FieldErrorsBuilder
	for _, u := range urls {
		if u.value == "" {
			continue
		}
		if err := absoluteURL(u.value); err != nil {
			errs = errs.Append(u.field, err)
		}
	}
	return errs.ToError()
}

func absoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("url %q must use http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist yet.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}

func knownTheme(name string) error {
	if _, ok := styles.GetPalette(name); !ok {
		return fmt.Errorf("unknown theme %q (available: %v)", name, styles.ThemeNames())
	}
	return nil
}
