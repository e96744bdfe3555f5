package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testInstanceInfo() InstanceInfo {
	return InstanceInfo{
		Portal: SourcePortal{URL: "https://hpc.example.edu", Name: "example-hpc"},
		Versions: SoftwareVersions{
			Portal:    "1.4.2",
			Plugin:    "0.9.0",
			Framework: "4.2.11",
			Runtime:   "go1.22",
		},
		SchemaVersions: map[string]string{
			"coldfront": "0045_allocation_cleanup",
			"rental":    "0012_invoice_status",
		},
	}
}

func writeDataFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestComputeDirChecksumDeterministic(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "users.json", `{"model":"users"}`)
	writeDataFile(t, dir, "projects.json", `{"model":"projects"}`)

	first, err := ComputeDirChecksum(dir)
	require.NoError(t, err)
	second, err := ComputeDirChecksum(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestComputeDirChecksumExcludesManifest(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "users.json", `{"model":"users"}`)

	before, err := ComputeDirChecksum(dir)
	require.NoError(t, err)

	writeDataFile(t, dir, ManifestFileName, `{"export_format":"x"}`)
	writeDataFile(t, dir, "notes.txt", "not data")

	after, err := ComputeDirChecksum(dir)
	require.NoError(t, err)
	assert.Equal(t, before, after, "manifest and non-json files do not affect the digest")
}

func TestComputeDirChecksumSensitiveToRename(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "users.json", `{"model":"users"}`)
	before, err := ComputeDirChecksum(dir)
	require.NoError(t, err)

	require.NoError(t, os.Rename(filepath.Join(dir, "users.json"), filepath.Join(dir, "accounts.json")))
	after, err := ComputeDirChecksum(dir)
	require.NoError(t, err)
	assert.NotEqual(t, before, after, "the relative path is part of the digest")
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "users.json", `{"model":"users","count":2}`)

	m, err := GenerateManifest(ComponentCore, "export-20260823-abcd1234", dir, map[string]int{"users": 2}, testInstanceInfo())
	require.NoError(t, err)
	require.NoError(t, WriteManifest(m, dir))

	loaded, err := LoadManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, ExportFormat, loaded.ExportFormat)
	assert.Equal(t, FormatVersion, loaded.ExportVersion)
	assert.Equal(t, ComponentCore, loaded.Component)
	assert.Equal(t, "export-20260823-abcd1234", loaded.ExportID)
	assert.Equal(t, map[string]int{"users": 2}, loaded.DataCounts)
	require.NotNil(t, loaded.Checksum)
	assert.Equal(t, ChecksumAlgorithm, loaded.Checksum.Algorithm)
	assert.Empty(t, loaded.Validate())

	ok, err := VerifyChecksum(loaded.Checksum, dir)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	writeDataFile(t, dir, "users.json", `{"model":"users"}`)

	m, err := GenerateManifest(ComponentCore, "export-x", dir, nil, testInstanceInfo())
	require.NoError(t, err)

	writeDataFile(t, dir, "users.json", `{"model":"users","tampered":true}`)
	ok, err := VerifyChecksum(m.Checksum, dir)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyChecksumAbsentIsTrivial(t *testing.T) {
	dir := t.TempDir()
	ok, err := VerifyChecksum(nil, dir)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyChecksum(&Checksum{Algorithm: ChecksumAlgorithm}, dir)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(m *Manifest)
		wantField string
		wantPart  string
	}{
		{"wrong format", func(m *Manifest) { m.ExportFormat = "something-else" }, "export_format", "unexpected value"},
		{"missing format", func(m *Manifest) { m.ExportFormat = "" }, "export_format", "value is missing"},
		{"missing version", func(m *Manifest) { m.ExportVersion = "" }, "export_version", "value is missing"},
		{"missing created_at", func(m *Manifest) { m.CreatedAt = time.Time{} }, "created_at", "value is missing"},
		{"no schema versions", func(m *Manifest) { m.SchemaVersions = nil }, "schema_versions", "no schema versions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Manifest{
				ExportFormat:   ExportFormat,
				ExportVersion:  FormatVersion,
				CreatedAt:      time.Now().UTC(),
				SchemaVersions: map[string]string{"rental": "0012_invoice_status"},
			}
			require.False(t, m.Validate().HasErrors())
			tt.mutate(m)
			errs := m.Validate()
			require.True(t, errs.HasErrors())
			assert.Equal(t, tt.wantField, errs[0].Field)
			assert.Contains(t, errs[0].Error(), tt.wantPart)
		})
	}
}

func TestLoadManifestMissing(t *testing.T) {
	_, err := LoadManifest(t.TempDir())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestRootManifestAggregation(t *testing.T) {
	dir := t.TempDir()
	coreDir := filepath.Join(dir, ComponentCore)
	rentalDir := filepath.Join(dir, ComponentRental)
	require.NoError(t, os.MkdirAll(coreDir, 0755))
	require.NoError(t, os.MkdirAll(rentalDir, 0755))
	writeDataFile(t, coreDir, "users.json", `{"model":"users"}`)
	writeDataFile(t, rentalDir, "nodes.json", `{"model":"nodes"}`)

	info := testInstanceInfo()
	coreManifest, err := GenerateManifest(ComponentCore, "export-x", coreDir, map[string]int{"users": 3}, info)
	require.NoError(t, err)
	rentalManifest, err := GenerateManifest(ComponentRental, "export-x", rentalDir, map[string]int{"nodes": 2, "node_types": 1}, info)
	require.NoError(t, err)

	root, err := GenerateRootManifest("export-x", dir, map[string]*Manifest{
		ComponentCore:   coreManifest,
		ComponentRental: rentalManifest,
	}, info)
	require.NoError(t, err)
	require.NoError(t, WriteRootManifest(root, dir))

	loaded, err := LoadRootManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, 6, loaded.TotalRecords)
	require.Contains(t, loaded.Components, ComponentRental)
	ref := loaded.Components[ComponentRental]
	assert.Equal(t, ComponentRental, ref.Path)
	assert.Equal(t, filepath.Join(ComponentRental, ManifestFileName), ref.Manifest)
	assert.Equal(t, 3, ref.RecordCount)

	ok, err := VerifyChecksum(loaded.Checksum, dir)
	require.NoError(t, err)
	assert.True(t, ok)
}
