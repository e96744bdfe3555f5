package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldfront-rental-sync/internal/backup"
)

func TestWriteTemplateAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rental-sync.yaml")
	require.NoError(t, WriteTemplate(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# coldfront-rental-sync configuration")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "coldfront", cfg.Portal.Name)
	assert.Equal(t, "0045_latest", cfg.SchemaVersions["coldfront"])
	assert.Equal(t, backup.CompressionTypeGzip, cfg.CompressionType())
	assert.Equal(t, backup.ArchiveStoreLocal, cfg.Archive.Storage.Provider)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, true, cfg.Settings.Plugin["billing_enabled"])
}

func TestWriteTemplateRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rental-sync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("existing: true\n"), 0644))

	err := WriteTemplate(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadValidation(t *testing.T) {
	writeConfig := func(t *testing.T, body string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "rental-sync.yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		return path
	}

	_, err := Load(writeConfig(t, "portal:\n  name: test\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_versions")

	_, err = Load(writeConfig(t, `
portal:
  name: test
schema_versions:
  rental: 0012_latest
archive:
  compression: brotli
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive.compression")

	cfg, err := Load(writeConfig(t, `
portal:
  name: test
  url: https://hpc.example.edu
schema_versions:
  rental: 0012_latest
`))
	require.NoError(t, err)
	assert.Equal(t, "gzip", cfg.Archive.Compression, "defaults fill unset fields")
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestInstanceInfo(t *testing.T) {
	cfg := defaultTemplate()
	info := cfg.InstanceInfo()
	assert.Equal(t, "coldfront", info.Portal.Name)
	assert.Equal(t, cfg.Versions.Plugin, info.Versions.Plugin)
	assert.NotEmpty(t, info.Versions.Runtime)
	assert.Equal(t, cfg.SchemaVersions, info.SchemaVersions)
}

func TestSettingsSource(t *testing.T) {
	cfg := defaultTemplate()
	src := cfg.SettingsSource()
	assert.Equal(t, cfg.Settings.Plugin, src.Plugin)
	assert.Equal(t, cfg.Settings.Framework, src.Framework)
}
