// Package config loads the tool configuration: portal identity, version
// stamps, the comparable settings categories and the database and archive
// storage settings. Files are YAML, resolved through viper with environment
// overrides.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"coldfront-rental-sync/internal/backup"
	"coldfront-rental-sync/internal/logging"
	"coldfront-rental-sync/internal/portal"
)

// PortalConfig identifies the portal instance.
type PortalConfig struct {
	URL  string `mapstructure:"url" yaml:"url"`
	Name string `mapstructure:"name" yaml:"name"`
}

// VersionsConfig carries the software versions stamped into manifests.
type VersionsConfig struct {
	Portal    string `mapstructure:"portal" yaml:"portal"`
	Plugin    string `mapstructure:"plugin" yaml:"plugin"`
	Framework string `mapstructure:"framework" yaml:"framework"`
}

// SettingsConfig holds the comparable configuration categories captured in
// snapshots and checked for drift on import.
type SettingsConfig struct {
	Plugin    map[string]interface{} `mapstructure:"plugin" yaml:"plugin"`
	Portal    map[string]interface{} `mapstructure:"portal" yaml:"portal"`
	Framework map[string]interface{} `mapstructure:"framework" yaml:"framework"`
}

// ArchiveConfig controls archive packing and remote storage.
type ArchiveConfig struct {
	Compression string                    `mapstructure:"compression" yaml:"compression"`
	Storage     backup.ArchiveStoreConfig `mapstructure:"storage" yaml:"storage"`
}

// Config is the full tool configuration.
type Config struct {
	Portal         PortalConfig          `mapstructure:"portal" yaml:"portal"`
	Versions       VersionsConfig        `mapstructure:"versions" yaml:"versions"`
	SchemaVersions map[string]string     `mapstructure:"schema_versions" yaml:"schema_versions"`
	Settings       SettingsConfig        `mapstructure:"settings" yaml:"settings"`
	Database       portal.DatabaseConfig `mapstructure:"database" yaml:"database"`
	Archive        ArchiveConfig         `mapstructure:"archive" yaml:"archive"`
	Logging        logging.Config        `mapstructure:"logging" yaml:"logging"`
}

// Load reads the configuration from the given file, or from the default
// search paths when path is empty. Environment variables prefixed with
// RENTAL_SYNC_ override file values (dots become underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("rental-sync")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.config/rental-sync")
		}
		v.AddConfigPath("/etc/rental-sync")
	}
	v.SetEnvPrefix("RENTAL_SYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || path != "" {
			return nil, fmt.Errorf("failed to read configuration: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("portal.name", "coldfront")
	v.SetDefault("versions.plugin", "0.0.0")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("archive.compression", "gzip")
	v.SetDefault("archive.storage.provider", "local")
	v.SetDefault("archive.storage.local.base_path", "./archives")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks fields other packages rely on unconditionally.
func (c *Config) Validate() error {
	if c.Portal.Name == "" {
		return fmt.Errorf("portal.name must be set")
	}
	if len(c.SchemaVersions) == 0 {
		return fmt.Errorf("schema_versions must carry at least one app entry")
	}
	ct := backup.CompressionType(c.Archive.Compression)
	switch ct {
	case backup.CompressionTypeNone, backup.CompressionTypeGzip, backup.CompressionTypeLZ4, backup.CompressionTypeZstd:
	default:
		return fmt.Errorf("unsupported archive.compression %q", c.Archive.Compression)
	}
	return nil
}

// InstanceInfo converts the configuration into the instance identity
// stamped into manifests and used for compatibility checks.
func (c *Config) InstanceInfo() backup.InstanceInfo {
	return backup.InstanceInfo{
		Portal: backup.SourcePortal{URL: c.Portal.URL, Name: c.Portal.Name},
		Versions: backup.SoftwareVersions{
			Portal:    c.Versions.Portal,
			Plugin:    c.Versions.Plugin,
			Framework: c.Versions.Framework,
			Runtime:   runtime.Version(),
		},
		SchemaVersions: c.SchemaVersions,
	}
}

// SettingsSource converts the configured settings categories into the
// collector's input.
func (c *Config) SettingsSource() backup.SettingsSource {
	return backup.SettingsSource{
		Plugin:    c.Settings.Plugin,
		Portal:    c.Settings.Portal,
		Framework: c.Settings.Framework,
	}
}

// CompressionType returns the configured archive compression algorithm.
func (c *Config) CompressionType() backup.CompressionType {
	return backup.CompressionType(c.Archive.Compression)
}

// defaultTemplate is the starting configuration written by the init
// command.
func defaultTemplate() *Config {
	return &Config{
		Portal: PortalConfig{
			URL:  "https://portal.example.edu",
			Name: "coldfront",
		},
		Versions: VersionsConfig{
			Portal:    "1.1.6",
			Plugin:    "0.3.0",
			Framework: "4.2.11",
		},
		SchemaVersions: map[string]string{
			"coldfront": "0045_latest",
			"rental":    "0012_latest",
		},
		Settings: SettingsConfig{
			Plugin: map[string]interface{}{
				"billing_enabled":          true,
				"rental_approval_required": true,
				"reservation_max_days":     90,
				"default_currency":         "USD",
				"rate_decimal_places":      4,
			},
			Portal: map[string]interface{}{
				"time_zone":           "UTC",
				"email_notifications": true,
			},
			Framework: map[string]interface{}{
				"allowed_hosts": []string{"portal.example.edu"},
			},
		},
		Database: portal.DatabaseConfig{
			Host:     "localhost",
			Port:     3306,
			Username: "coldfront",
			Database: "coldfront",
		},
		Archive: ArchiveConfig{
			Compression: "gzip",
			Storage: backup.ArchiveStoreConfig{
				Provider: backup.ArchiveStoreLocal,
				Local:    &backup.LocalArchiveConfig{BasePath: "./archives"},
			},
		},
		Logging: logging.Config{Level: "info", Format: "text"},
	}
}

// WriteTemplate writes a starting configuration file. It refuses to
// overwrite an existing file.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists; refusing to overwrite", path)
	}
	data, err := yaml.Marshal(defaultTemplate())
	if err != nil {
		return fmt.Errorf("failed to render configuration template: %w", err)
	}
	header := []byte("# coldfront-rental-sync configuration\n# Values can be overridden with RENTAL_SYNC_* environment variables.\n")
	if err := os.WriteFile(path, append(header, data...), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
