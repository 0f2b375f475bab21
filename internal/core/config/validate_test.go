package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hay-kot/criterio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Trello.APIKey = "key"
	cfg.Trello.Token = "token"
	cfg.Graph.ClientID = "client"
	return &cfg
}

func fieldNames(errs criterio.FieldErrors) []string {
	names := make([]string, len(errs))
	for i, e := range errs {
		names[i] = e.Field
	}
	return names
}

func TestValidateDeep_ValidConfig(t *testing.T) {
	cfg := validConfig(t)
	assert.NoError(t, cfg.ValidateDeep(""))
}

func TestValidateDeep_MissingCredentials(t *testing.T) {
	cfg := validConfig(t)
	cfg.Trello.APIKey = ""
	cfg.Trello.Token = ""
	cfg.Graph.ClientID = ""

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.ElementsMatch(t, []string{"trello.api_key", "trello.token", "graph.client_id"}, fieldNames(fieldErrs))
	assert.Contains(t, fieldErrs[0].Err.Error(), "required")
}

func TestValidateDeep_BadURLs(t *testing.T) {
	cfg := validConfig(t)
	cfg.Trello.BaseURL = "api.trello.com/1"
	cfg.Graph.Authority = "ftp://login.example.com"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	assert.ElementsMatch(t, []string{"trello.base_url", "graph.authority"}, fieldNames(fieldErrs))
}

func TestValidateDeep_DownloadPathIsFile(t *testing.T) {
	cfg := validConfig(t)
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	cfg.DownloadPath = file

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "download_path", fieldErrs[0].Field)
	assert.Contains(t, fieldErrs[0].Err.Error(), "not a directory")
}

func TestValidateDeep_ConfigPathIsDirectory(t *testing.T) {
	cfg := validConfig(t)

	err := cfg.ValidateDeep(t.TempDir())

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "config_file", fieldErrs[0].Field)
}

func TestValidateDeep_UnknownTheme(t *testing.T) {
	cfg := validConfig(t)
	cfg.Theme = "solarized"

	err := cfg.ValidateDeep("")

	var fieldErrs criterio.FieldErrors
	require.ErrorAs(t, err, &fieldErrs)
	require.Len(t, fieldErrs, 1)
	assert.Equal(t, "theme", fieldErrs[0].Field)
}

func TestValidateDeep_StructuralErrorFirst(t *testing.T) {
	cfg := validConfig(t)
	cfg.UploadWorkers = 0

	err := cfg.ValidateDeep("")
	require.Error(t, err)

	var fieldErrs criterio.FieldErrors
	assert.NotErrorAs(t, err, &fieldErrs)
	assert.Contains(t, err.Error(), "upload_workers")
}

func TestWarnings(t *testing.T) {
	cfg := validConfig(t)
	assert.Empty(t, cfg.Warnings())

	cfg.Graph.TenantID = "common"
	cfg.UploadWorkers = 20

	warnings := cfg.Warnings()
	require.Len(t, warnings, 2)
	assert.Equal(t, "graph.tenant_id", warnings[0].Item)
	assert.Equal(t, "upload_workers", warnings[1].Item)
}
