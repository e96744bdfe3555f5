package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevelFallback(t *testing.T) {
	l := New(Config{Level: "chatty"})
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())

	l = New(Config{Level: "DEBUG"})
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.LogExport("rental", "node_rates", 12, true)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "rental", entry["component"])
	assert.Equal(t, "node_rates", entry["model"])
	assert.Equal(t, float64(12), entry["count"])
	assert.Equal(t, "info", entry["level"])
}

func TestLogImportLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.LogImport("core", "users", 3, 1, 0, 0, false)
	clean := buf.String()
	buf.Reset()
	l.LogImport("core", "users", 0, 0, 0, 2, false)
	errored := buf.String()

	assert.Contains(t, clean, `"level":"info"`)
	assert.Contains(t, errored, `"level":"warning"`)
}

func TestLogCompatibilityLevels(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.LogCompatibility("rental", "compatible", 0, 0)
	l.LogCompatibility("rental", "compatible_with_warnings", 2, 0)
	l.LogCompatibility("rental", "incompatible", 0, 1)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"level":"info"`)
	assert.Contains(t, lines[1], `"level":"warning"`)
	assert.Contains(t, lines[2], `"level":"error"`)
}

func TestLogOperationStartFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", Format: "json", Output: &buf})

	l.LogOperationStart("export", map[string]interface{}{"export_id": "export-x", "output": "/tmp/out"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "export", entry["operation"])
	assert.Equal(t, "export-x", entry["export_id"])
}
