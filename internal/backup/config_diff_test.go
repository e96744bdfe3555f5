package backup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettingsSource() SettingsSource {
	return SettingsSource{
		Plugin: map[string]interface{}{
			"billing_enabled":      true,
			"default_currency":     "USD",
			"reservation_max_days": 90,
			"api_token":            "s3cret-value",
		},
		Portal: map[string]interface{}{
			"time_zone":     "America/New_York",
			"allowed_hosts": []string{"hpc.example.edu", "portal.example.edu"},
		},
		Framework: map[string]interface{}{
			"debug": false,
		},
	}
}

func collectSnapshot(t *testing.T) ConfigSnapshot {
	t.Helper()
	collector := NewConfigCollector(testSettingsSource(), testInstanceInfo())
	return collector.Collect()
}

func TestCollectFiltersSensitiveSettings(t *testing.T) {
	snapshot := collectSnapshot(t)

	plugin := snapshot[ConfigCategoryPlugin]
	assert.NotContains(t, plugin, "api_token")
	assert.Contains(t, plugin, "billing_enabled")

	for _, name := range []string{"db_password", "SECRET_KEY", "oauth_client_secret", "ssh_private_key", "aws_credentials"} {
		assert.True(t, isSensitiveSetting(name), name)
	}
	assert.False(t, isSensitiveSetting("billing_enabled"))
}

func TestCollectCapturesEnvironment(t *testing.T) {
	snapshot := collectSnapshot(t)
	env := snapshot[ConfigCategoryEnvironment]
	assert.Contains(t, env, "runtime_version")
	assert.Equal(t, "example-hpc", env["portal_name"].Value)
}

func TestConfigSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	snapshot := collectSnapshot(t)

	counts, err := WriteConfigSnapshot(snapshot, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, counts["plugin_config"], "api_token is filtered before counting")
	assert.Equal(t, 2, counts["portal_config"])

	loaded, err := LoadConfigSnapshot(dir)
	require.NoError(t, err)
	assert.Equal(t, true, loaded[ConfigCategoryPlugin]["billing_enabled"].Value)
	assert.Equal(t, "America/New_York", loaded[ConfigCategoryPortal]["time_zone"].Value)
}

func TestLoadConfigSnapshotMissing(t *testing.T) {
	_, err := LoadConfigSnapshot(t.TempDir())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestCompareIdenticalSnapshots(t *testing.T) {
	snapshot := collectSnapshot(t)
	report := CompareConfigSnapshots(snapshot, snapshot)
	assert.Equal(t, DiffStatusIdentical, report.Status)
	assert.Empty(t, report.Differences)
}

func TestCompareIgnoresEnvironmentDrift(t *testing.T) {
	exported := collectSnapshot(t)
	current := collectSnapshot(t)
	current[ConfigCategoryEnvironment] = map[string]ConfigValue{
		"hostname": {Value: "another-host", Type: "string", Source: "environment"},
	}
	report := CompareConfigSnapshots(exported, current)
	assert.Equal(t, DiffStatusIdentical, report.Status)
}

func TestCompareCriticalDifference(t *testing.T) {
	exported := collectSnapshot(t)
	current := collectSnapshot(t)
	current[ConfigCategoryPlugin]["billing_enabled"] = ConfigValue{Value: false, Type: "bool", Source: "plugin settings"}

	report := CompareConfigSnapshots(exported, current)
	assert.Equal(t, DiffStatusCritical, report.Status)
	require.Len(t, report.Differences, 1)
	d := report.Differences[0]
	assert.Equal(t, "billing_enabled", d.Setting)
	assert.Equal(t, DiffTypeChanged, d.Type)
	assert.Equal(t, DiffSeverityCritical, d.Severity)
	assert.NotEmpty(t, d.Impact)
}

func TestCompareNonCriticalDifference(t *testing.T) {
	exported := collectSnapshot(t)
	current := collectSnapshot(t)
	current[ConfigCategoryFramework]["debug"] = ConfigValue{Value: true, Type: "bool", Source: "framework settings"}

	report := CompareConfigSnapshots(exported, current)
	assert.Equal(t, DiffStatusDifferences, report.Status)
	require.Len(t, report.Differences, 1)
	assert.Equal(t, DiffSeverityInfo, report.Differences[0].Severity, "unlisted settings default to info")
}

func TestCompareMissingSettings(t *testing.T) {
	exported := collectSnapshot(t)
	current := collectSnapshot(t)
	delete(current[ConfigCategoryPlugin], "reservation_max_days")
	exported2 := collectSnapshot(t)
	delete(exported2[ConfigCategoryPlugin], "default_currency")

	report := CompareConfigSnapshots(exported, current)
	require.Len(t, report.Differences, 1)
	assert.Equal(t, DiffTypeMissingInCurrent, report.Differences[0].Type)

	report = CompareConfigSnapshots(exported2, collectSnapshot(t))
	require.Len(t, report.Differences, 1)
	assert.Equal(t, DiffTypeMissingInExport, report.Differences[0].Type)
}

func TestCompareListValuesOrderIndependent(t *testing.T) {
	exported := collectSnapshot(t)
	current := collectSnapshot(t)
	current[ConfigCategoryPortal]["allowed_hosts"] = ConfigValue{
		Value:  []interface{}{"portal.example.edu", "hpc.example.edu"},
		Type:   "list",
		Source: "portal settings",
	}

	report := CompareConfigSnapshots(exported, current)
	assert.Equal(t, DiffStatusIdentical, report.Status, "reordered lists are not drift")

	current[ConfigCategoryPortal]["allowed_hosts"] = ConfigValue{
		Value:  []interface{}{"portal.example.edu"},
		Type:   "list",
		Source: "portal settings",
	}
	report = CompareConfigSnapshots(exported, current)
	assert.Equal(t, DiffStatusDifferences, report.Status)
}

func TestCompareCategoryOnlyOnOneSide(t *testing.T) {
	exported := collectSnapshot(t)
	current := collectSnapshot(t)
	delete(current, ConfigCategoryFramework)

	report := CompareConfigSnapshots(exported, current)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "only in the exported configuration")
	assert.Empty(t, report.Differences, "settings of a one-sided category are not compared")
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual(nil, "x"))
	assert.True(t, valuesEqual([]string{"a", "b"}, []interface{}{"b", "a"}))
	assert.False(t, valuesEqual([]string{"a", "a"}, []string{"a", "b"}))
	assert.True(t, valuesEqual(map[string]interface{}{"k": 1}, map[string]interface{}{"k": 1}))

	// JSON decodes every number as float64; native settings keep int types.
	assert.True(t, valuesEqual(float64(90), int(90)))
	assert.True(t, valuesEqual(int64(4), float64(4)))
	assert.False(t, valuesEqual(float64(90.5), int(90)))
	assert.False(t, valuesEqual(float64(90), "90"))
}

func TestCompareAfterSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	collector := NewConfigCollector(testSettingsSource(), testInstanceInfo())

	_, err := WriteConfigSnapshot(collector.Collect(), dir)
	require.NoError(t, err)
	exported, err := LoadConfigSnapshot(dir)
	require.NoError(t, err)

	// reservation_max_days comes back as float64 and allowed_hosts as
	// []interface{}; neither is drift against the unchanged source.
	report := CompareConfigSnapshots(exported, collector.Collect())
	assert.Equal(t, DiffStatusIdentical, report.Status)
	assert.Empty(t, report.Differences)
}
