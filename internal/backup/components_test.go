package backup

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coldfront-rental-sync/internal/logging"
	"coldfront-rental-sync/internal/portal"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Output: io.Discard})
}

func newExportService(store portal.Store) *ExportService {
	info := testInstanceInfo()
	return NewExportService(store, NewConfigCollector(testSettingsSource(), info), info, testLogger())
}

func newImportService(store portal.Store, info InstanceInfo) *ImportService {
	return NewImportService(store, NewConfigCollector(testSettingsSource(), info), info, testLogger())
}

func exportSeeded(t *testing.T) (string, *ExportSummary) {
	t.Helper()
	source := seedSourceStore(t)
	dir := t.TempDir()
	summary, err := newExportService(source).ExportAll(context.Background(), ExportOptions{OutputDir: dir})
	require.NoError(t, err)
	require.True(t, summary.Success(), "export errors: %v", summary.Errors)
	return dir, summary
}

func TestExportAllLayout(t *testing.T) {
	dir, summary := exportSeeded(t)

	for _, component := range []string{ComponentCore, ComponentRental, ComponentConfig} {
		assert.FileExists(t, filepath.Join(dir, component, ManifestFileName))
	}
	assert.FileExists(t, filepath.Join(dir, ManifestFileName))
	assert.Equal(t, 12, summary.TotalRecords)
	assert.NotEmpty(t, summary.ExportID)
	assert.Equal(t, 3, summary.ConfigCounts["plugin_config"])

	layout, err := DetectLayout(dir)
	require.NoError(t, err)
	assert.Equal(t, LayoutMultiComponent, layout)

	root, err := LoadRootManifest(dir)
	require.NoError(t, err)
	assert.Equal(t, summary.ExportID, root.ExportID)
	assert.Len(t, root.Components, 3)
}

func TestExportComponentFilter(t *testing.T) {
	source := seedSourceStore(t)
	dir := t.TempDir()

	summary, err := newExportService(source).ExportAll(context.Background(), ExportOptions{
		OutputDir:  dir,
		Components: []string{ComponentRental},
	})
	require.NoError(t, err)
	require.True(t, summary.Success())

	assert.FileExists(t, filepath.Join(dir, ComponentRental, ManifestFileName))
	assert.NoFileExists(t, filepath.Join(dir, ComponentCore, ManifestFileName))
	assert.NotContains(t, summary.Results, ComponentCore)
}

func TestExportUnknownComponent(t *testing.T) {
	source := seedSourceStore(t)
	_, err := newExportService(source).ExportAll(context.Background(), ExportOptions{
		OutputDir:  t.TempDir(),
		Components: []string{"billing"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown component "billing"`)
}

func TestImportAllEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir, _ := exportSeeded(t)
	target := portal.NewMemoryStore()

	summary, err := newImportService(target, testInstanceInfo()).ImportAll(ctx, dir, ImportRunOptions{
		Mode: ImportModeCreateOrUpdate,
	})
	require.NoError(t, err)
	require.True(t, summary.Success(), "import errors: %v", summary.Errors)
	assert.Equal(t, 12, summary.Created)
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Skipped)

	require.Contains(t, summary.Compat, ComponentCore)
	assert.Equal(t, CompatCompatible, summary.Compat[ComponentCore].Status)
	require.NotNil(t, summary.ConfigDiff)
	assert.Equal(t, DiffStatusIdentical, summary.ConfigDiff.Status)

	users, err := target.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	invoices, err := target.ListInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestImportAllSecondRunUpdates(t *testing.T) {
	ctx := context.Background()
	dir, _ := exportSeeded(t)
	target := portal.NewMemoryStore()
	svc := newImportService(target, testInstanceInfo())

	_, err := svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate})
	require.NoError(t, err)

	summary, err := svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate})
	require.NoError(t, err)
	require.True(t, summary.Success())
	assert.Zero(t, summary.Created)
	assert.Equal(t, 12, summary.Updated)
}

func TestImportAllDryRunCountersMatchRealRun(t *testing.T) {
	ctx := context.Background()
	dir, _ := exportSeeded(t)
	target := portal.NewMemoryStore()
	svc := newImportService(target, testInstanceInfo())

	dry, err := svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate, DryRun: true})
	require.NoError(t, err)
	require.True(t, dry.Success())
	assert.True(t, dry.DryRun)

	users, err := target.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "dry run must not write")

	applied, err := svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate})
	require.NoError(t, err)
	assert.Equal(t, applied.Created, dry.Created)
	assert.Equal(t, applied.Updated, dry.Updated)
	assert.Equal(t, applied.Skipped, dry.Skipped)
}

func TestImportIncompatibleAbortsUnlessForced(t *testing.T) {
	ctx := context.Background()
	dir, _ := exportSeeded(t)
	target := portal.NewMemoryStore()

	// Target behind the export: its rental schema predates the exported one.
	behind := testInstanceInfo()
	behind.SchemaVersions = map[string]string{
		"coldfront": "0045_allocation_cleanup",
		"rental":    "0008_reservation_status",
	}
	svc := newImportService(target, behind)

	_, err := svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "use force to override")
	var se *SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ComponentRental, se.Context["component"])

	users, err := target.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "nothing is written before the compatibility gate")

	summary, err := svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate, Force: true})
	require.NoError(t, err)
	require.True(t, summary.Success())
	assert.Equal(t, 12, summary.Created)
}

func TestImportChecksumMismatchAbortsUnlessForced(t *testing.T) {
	ctx := context.Background()
	dir, _ := exportSeeded(t)
	target := portal.NewMemoryStore()
	svc := newImportService(target, testInstanceInfo())

	usersPath := filepath.Join(dir, ComponentCore, "users.json")
	data, err := os.ReadFile(usersPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(usersPath, append(data, '\n'), 0644))

	_, err = svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate})
	require.Error(t, err)
	assert.True(t, IsErrorType(err, SyncErrorTypeCorruption))

	summary, err := svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate, Force: true})
	require.NoError(t, err)
	require.True(t, summary.Success())
	found := false
	for _, w := range summary.Warnings {
		if strings.Contains(w, "checksum mismatch") {
			found = true
		}
	}
	assert.True(t, found, "expected a forced-checksum warning, got %v", summary.Warnings)
}

func TestImportModelFilter(t *testing.T) {
	ctx := context.Background()
	dir, _ := exportSeeded(t)
	target := portal.NewMemoryStore()
	svc := newImportService(target, testInstanceInfo())

	summary, err := svc.ImportAll(ctx, dir, ImportRunOptions{
		Mode:          ImportModeCreateOrUpdate,
		Components:    []string{ComponentCore},
		IncludeModels: []string{ModelUsers},
	})
	require.NoError(t, err)
	require.True(t, summary.Success())
	assert.Equal(t, 2, summary.Created)

	projects, err := target.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestAtomicImportRollsBackOnRecordErrors(t *testing.T) {
	ctx := context.Background()
	dir, _ := exportSeeded(t)
	target := portal.NewMemoryStore()
	svc := newImportService(target, testInstanceInfo())

	// Removing the reservations file leaves cost allocations unresolvable,
	// producing record errors. Force skips the resulting checksum mismatch so
	// the run reaches the entity stage.
	require.NoError(t, os.Remove(filepath.Join(dir, ComponentRental, "reservations.json")))

	summary, err := svc.ImportAll(ctx, dir, ImportRunOptions{
		Mode:   ImportModeCreateOrUpdate,
		Atomic: true,
		Force:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.Success())

	users, err := target.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users, "atomic import must leave the store untouched on rollback")
}

func TestAtomicImportCommitsWhenClean(t *testing.T) {
	ctx := context.Background()
	dir, _ := exportSeeded(t)
	target := portal.NewMemoryStore()
	svc := newImportService(target, testInstanceInfo())

	summary, err := svc.ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate, Atomic: true})
	require.NoError(t, err)
	require.True(t, summary.Success())

	users, err := target.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestFlatLayoutImport(t *testing.T) {
	ctx := context.Background()
	source := seedSourceStore(t)
	dir := t.TempDir()

	// A legacy flat export: rental entity files and a manifest in the root.
	files := exportComponent(t, NewRentalRegistry(source), dir)
	require.NotEmpty(t, files)
	manifest, err := GenerateManifest(ComponentRental, "export-legacy", dir, nil, testInstanceInfo())
	require.NoError(t, err)
	require.NoError(t, WriteManifest(manifest, dir))

	layout, err := DetectLayout(dir)
	require.NoError(t, err)
	assert.Equal(t, LayoutFlat, layout)

	target := portal.NewMemoryStore()
	summary, err := newImportService(target, testInstanceInfo()).ImportAll(ctx, dir, ImportRunOptions{Mode: ImportModeCreateOrUpdate})
	require.NoError(t, err)
	require.True(t, summary.Success(), "errors: %v", summary.Errors)
	assert.Equal(t, 6, summary.Created)
	assert.Contains(t, summary.Results, ComponentRental)
	assert.NotContains(t, summary.Results, ComponentCore)

	nodes, err := target.ListNodes(ctx)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestDetectLayoutNotAnExport(t *testing.T) {
	_, err := DetectLayout(t.TempDir())
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestVerifyExportValid(t *testing.T) {
	dir, _ := exportSeeded(t)

	report, err := VerifyExport(dir, testInstanceInfo())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, LayoutMultiComponent, report.Layout)
	assert.Len(t, report.Components, 3)
	for _, cv := range report.Components {
		assert.True(t, cv.ChecksumPresent, cv.Component)
		assert.True(t, cv.ChecksumVerified, cv.Component)
		assert.Empty(t, cv.ManifestErrors, cv.Component)
	}
}

func TestVerifyExportDetectsTampering(t *testing.T) {
	dir, _ := exportSeeded(t)
	usersPath := filepath.Join(dir, ComponentCore, "users.json")
	require.NoError(t, os.WriteFile(usersPath, []byte(`{"model":"users","count":0,"records":[]}`), 0644))

	report, err := VerifyExport(dir, testInstanceInfo())
	require.NoError(t, err)
	assert.False(t, report.Valid)
}
