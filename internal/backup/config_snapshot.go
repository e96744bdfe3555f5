package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// Configuration snapshot categories. Plugin, portal and framework settings
// participate in drift comparison; environment metadata is informational
// only and excluded from it.
const (
	ConfigCategoryPlugin      = "plugin"
	ConfigCategoryPortal      = "portal"
	ConfigCategoryFramework   = "framework"
	ConfigCategoryEnvironment = "environment"
)

// configFileNames maps a snapshot category to its file name inside the
// config component directory.
var configFileNames = map[string]string{
	ConfigCategoryPlugin:      "plugin_config.json",
	ConfigCategoryPortal:      "portal_config.json",
	ConfigCategoryFramework:   "framework_config.json",
	ConfigCategoryEnvironment: "environment.json",
}

// ConfigValue is one captured setting: its value, declared type name,
// origin and an optional human description.
type ConfigValue struct {
	Value       interface{} `json:"value"`
	Type        string      `json:"type"`
	Source      string      `json:"source"`
	Description string      `json:"description,omitempty"`
}

// ConfigSnapshot is a categorized mapping from setting name to its captured
// value.
type ConfigSnapshot map[string]map[string]ConfigValue

// configCategoryFile is the envelope written per category inside the config
// component directory.
type configCategoryFile struct {
	Category string                 `json:"category"`
	Count    int                    `json:"count"`
	Settings map[string]ConfigValue `json:"settings"`
}

// sensitiveMarkers are substrings that exclude a setting from snapshots
// entirely; exported snapshots never contain raw secret material.
var sensitiveMarkers = []string{"password", "secret", "token", "private_key", "credential"}

func isSensitiveSetting(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range sensitiveMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// SettingsSource provides the raw setting maps the collector snapshots.
// Exporting and comparing use the same collector over the same source, so
// drift comparisons are always apples-to-apples.
type SettingsSource struct {
	Plugin    map[string]interface{}
	Portal    map[string]interface{}
	Framework map[string]interface{}
}

// ConfigCollector builds configuration snapshots. The single Collect path
// is shared by the config exporter and the diff engine by contract: any
// divergence between the two would be a latent correctness bug.
type ConfigCollector struct {
	source SettingsSource
	info   InstanceInfo
}

// NewConfigCollector creates a collector over the given settings source.
func NewConfigCollector(source SettingsSource, info InstanceInfo) *ConfigCollector {
	return &ConfigCollector{source: source, info: info}
}

// Collect builds the categorized snapshot of the current instance
// configuration, filtering out sensitive settings.
func (c *ConfigCollector) Collect() ConfigSnapshot {
	snapshot := ConfigSnapshot{
		ConfigCategoryPlugin:      c.collectCategory(c.source.Plugin, "plugin settings"),
		ConfigCategoryPortal:      c.collectCategory(c.source.Portal, "portal settings"),
		ConfigCategoryFramework:   c.collectCategory(c.source.Framework, "framework settings"),
		ConfigCategoryEnvironment: c.collectEnvironment(),
	}
	return snapshot
}

func (c *ConfigCollector) collectCategory(settings map[string]interface{}, source string) map[string]ConfigValue {
	out := make(map[string]ConfigValue, len(settings))
	for name, value := range settings {
		if isSensitiveSetting(name) {
			continue
		}
		out[name] = ConfigValue{
			Value:  value,
			Type:   typeName(value),
			Source: source,
		}
	}
	return out
}

// collectEnvironment captures informational runtime metadata. It is never
// compared for drift.
func (c *ConfigCollector) collectEnvironment() map[string]ConfigValue {
	hostname, _ := os.Hostname()
	env := map[string]interface{}{
		"runtime_version": runtime.Version(),
		"os":              runtime.GOOS,
		"arch":            runtime.GOARCH,
		"hostname":        hostname,
		"portal_url":      c.info.Portal.URL,
		"portal_name":     c.info.Portal.Name,
	}
	return c.collectCategory(env, "environment")
}

// typeName reports the portable type name of a captured value.
func typeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case string:
		return "string"
	case int, int32, int64, float64:
		return "number"
	case []interface{}, []string:
		return "list"
	case map[string]interface{}:
		return "mapping"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// WriteConfigSnapshot writes a snapshot into the config component
// directory, one file per category, and returns the per-file record counts
// for the component manifest.
func WriteConfigSnapshot(snapshot ConfigSnapshot, dir string) (map[string]int, error) {
	counts := make(map[string]int, len(snapshot))
	categories := make([]string, 0, len(snapshot))
	for category := range snapshot {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		fileName, ok := configFileNames[category]
		if !ok {
			return nil, NewValidationError(fmt.Sprintf("unknown configuration category %q", category), nil)
		}
		file := configCategoryFile{
			Category: category,
			Count:    len(snapshot[category]),
			Settings: snapshot[category],
		}
		data, err := json.MarshalIndent(file, "", "  ")
		if err != nil {
			return nil, NewSerializationError(fmt.Sprintf("failed to marshal %s configuration", category), err)
		}
		if err := os.WriteFile(filepath.Join(dir, fileName), data, 0644); err != nil {
			return nil, NewStorageError(fmt.Sprintf("failed to write %s", fileName), err)
		}
		counts[strings.TrimSuffix(fileName, ".json")] = file.Count
	}
	return counts, nil
}

// LoadConfigSnapshot reads a snapshot back from a config component
// directory. Missing category files are tolerated (older exports may not
// carry every category).
func LoadConfigSnapshot(dir string) (ConfigSnapshot, error) {
	snapshot := make(ConfigSnapshot)
	for category, fileName := range configFileNames {
		data, err := os.ReadFile(filepath.Join(dir, fileName))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, NewStorageError(fmt.Sprintf("failed to read %s", fileName), err)
		}
		var file configCategoryFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, NewSerializationError(fmt.Sprintf("failed to parse %s", fileName), err)
		}
		snapshot[category] = file.Settings
	}
	if len(snapshot) == 0 {
		return nil, NewNotFoundError(fmt.Sprintf("no configuration snapshot found in %s", dir), nil)
	}
	return snapshot, nil
}
