package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"coldfront-rental-sync/internal/logging"
	"coldfront-rental-sync/internal/portal"
)

// NewCoreRegistry builds the registry of the core component: accounts,
// projects, memberships and resources.
func NewCoreRegistry(store portal.Store) *Registry {
	r := NewRegistry(ComponentCore)
	r.Register(NewUserSyncer(store))
	r.Register(NewProjectSyncer(store))
	r.Register(NewProjectUserSyncer(store))
	r.Register(NewResourceSyncer(store))
	return r
}

// NewRentalRegistry builds the registry of the rental component: hardware,
// rates, reservations, cost allocations and invoices.
func NewRentalRegistry(store portal.Store) *Registry {
	r := NewRegistry(ComponentRental)
	r.Register(NewNodeTypeSyncer(store))
	r.Register(NewNodeSyncer(store))
	r.Register(NewNodeRateSyncer(store))
	r.Register(NewReservationSyncer(store))
	r.Register(NewCostAllocationSyncer(store))
	r.Register(NewInvoiceSyncer(store))
	return r
}

func buildRegistries(store portal.Store) map[string]*Registry {
	return map[string]*Registry{
		ComponentCore:   NewCoreRegistry(store),
		ComponentRental: NewRentalRegistry(store),
	}
}

// dataComponents is the processing order of entity-bearing components.
// Core precedes rental because rental entities reference core ones.
var dataComponents = []string{ComponentCore, ComponentRental}

// Layout identifies the on-disk shape of an export directory.
type Layout string

const (
	// LayoutMultiComponent is the current layout: one subdirectory per
	// component, each with its own manifest, plus a root manifest.
	LayoutMultiComponent Layout = "multi-component"
	// LayoutFlat is the legacy single-component layout: entity files and
	// manifest directly in the export root.
	LayoutFlat Layout = "flat"
)

// DetectLayout probes an export directory and reports its layout. A
// directory with at least one component subdirectory carrying a manifest is
// multi-component; a directory whose own manifest is the only one is flat.
func DetectLayout(dir string) (Layout, error) {
	for _, component := range []string{ComponentCore, ComponentRental, ComponentConfig} {
		if _, err := os.Stat(filepath.Join(dir, component, ManifestFileName)); err == nil {
			return LayoutMultiComponent, nil
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestFileName)); err == nil {
		return LayoutFlat, nil
	}
	return "", NewNotFoundError(fmt.Sprintf("no manifest found in %s; not an export directory", dir), nil)
}

// componentDir resolves a component's data directory for a layout. Flat
// exports keep everything in the root.
func componentDir(dir, component string, layout Layout) string {
	if layout == LayoutFlat {
		return dir
	}
	return filepath.Join(dir, component)
}

// ExportOptions selects what one export run covers.
type ExportOptions struct {
	OutputDir string
	// Components restricts the run to the named components; empty means all.
	Components []string
	// IncludeModels / ExcludeModels filter entity types inside the data
	// components. Filters do not apply to the config component.
	IncludeModels []string
	ExcludeModels []string
}

// ExportSummary is the aggregated outcome of one export run.
type ExportSummary struct {
	ExportID     string                     `json:"export_id"`
	Path         string                     `json:"path"`
	Results      map[string][]*ExportResult `json:"results"`
	ConfigCounts map[string]int             `json:"config_counts,omitempty"`
	TotalRecords int                        `json:"total_records"`
	Errors       []string                   `json:"errors,omitempty"`
}

// Success reports whether every entity exported cleanly.
func (s *ExportSummary) Success() bool {
	if len(s.Errors) > 0 {
		return false
	}
	for _, results := range s.Results {
		for _, r := range results {
			if !r.Success {
				return false
			}
		}
	}
	return true
}

// ExportService drives full export runs: entity data per component, the
// configuration snapshot, per-component manifests and the root manifest.
type ExportService struct {
	store     portal.Store
	collector *ConfigCollector
	info      InstanceInfo
	log       *logging.Logger
}

// NewExportService creates an export service over the given store and
// instance identity.
func NewExportService(store portal.Store, collector *ConfigCollector, info InstanceInfo, log *logging.Logger) *ExportService {
	return &ExportService{store: store, collector: collector, info: info, log: log}
}

// ExportAll performs one export run into opts.OutputDir. Entity-level
// failures are collected into the summary and do not abort the run;
// structural failures (unwritable directory, manifest write) do.
func (s *ExportService) ExportAll(ctx context.Context, opts ExportOptions) (*ExportSummary, error) {
	exportID := GenerateExportID()
	summary := &ExportSummary{
		ExportID: exportID,
		Path:     opts.OutputDir,
		Results:  make(map[string][]*ExportResult),
	}
	s.log.LogOperationStart("export", map[string]interface{}{
		"export_id": exportID,
		"output":    opts.OutputDir,
	})

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to create export directory %s", opts.OutputDir), err)
	}

	selected, err := selectComponents(opts.Components)
	if err != nil {
		return nil, err
	}

	registries := buildRegistries(s.store)
	manifests := make(map[string]*Manifest)

	for _, component := range selected {
		dir := filepath.Join(opts.OutputDir, component)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, NewStorageError(fmt.Sprintf("failed to create component directory %s", dir), err)
		}

		counts := make(map[string]int)
		if component == ComponentConfig {
			configCounts, err := WriteConfigSnapshot(s.collector.Collect(), dir)
			if err != nil {
				return nil, err
			}
			counts = configCounts
			summary.ConfigCounts = configCounts
		} else {
			syncers, err := registries[component].GetOrdered(opts.IncludeModels, opts.ExcludeModels)
			if err != nil {
				return nil, err
			}
			for _, syncer := range syncers {
				result := syncer.Export(ctx, dir)
				summary.Results[component] = append(summary.Results[component], result)
				summary.TotalRecords += result.Count
				counts[result.Model] = result.Count
				s.log.LogExport(component, result.Model, result.Count, result.Success)
				summary.Errors = append(summary.Errors, result.Errors...)
			}
		}

		manifest, err := GenerateManifest(component, exportID, dir, counts, s.info)
		if err != nil {
			return nil, err
		}
		if err := WriteManifest(manifest, dir); err != nil {
			return nil, err
		}
		manifests[component] = manifest
	}

	root, err := GenerateRootManifest(exportID, opts.OutputDir, manifests, s.info)
	if err != nil {
		return nil, err
	}
	if err := WriteRootManifest(root, opts.OutputDir); err != nil {
		return nil, err
	}
	return summary, nil
}

// selectComponents validates and orders the requested component set. Data
// components always process core before rental; config goes last.
func selectComponents(requested []string) ([]string, error) {
	all := append(append([]string{}, dataComponents...), ComponentConfig)
	if len(requested) == 0 {
		return all, nil
	}
	want := make(map[string]bool, len(requested))
	for _, name := range requested {
		known := false
		for _, c := range all {
			if c == name {
				known = true
				break
			}
		}
		if !known {
			return nil, NewValidationError(fmt.Sprintf("unknown component %q", name), nil)
		}
		want[name] = true
	}
	var out []string
	for _, c := range all {
		if want[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// ImportRunOptions controls one import run.
type ImportRunOptions struct {
	Mode   ImportMode
	DryRun bool
	// Force proceeds past an incompatible verdict or a checksum mismatch.
	Force bool
	// Atomic wraps the whole run in a store transaction and rolls back if
	// any record errored. Requires a store supporting transactions.
	Atomic        bool
	Components    []string
	IncludeModels []string
	ExcludeModels []string
}

// ImportSummary is the aggregated outcome of one import run.
type ImportSummary struct {
	Results    map[string][]*ImportResult `json:"results"`
	Compat     map[string]*CompatReport   `json:"compatibility"`
	ConfigDiff *ConfigDiffReport          `json:"config_diff,omitempty"`
	Created    int                        `json:"created"`
	Updated    int                        `json:"updated"`
	Skipped    int                        `json:"skipped"`
	DryRun     bool                       `json:"dry_run,omitempty"`
	Errors     []string                   `json:"errors,omitempty"`
	Warnings   []string                   `json:"warnings,omitempty"`
}

// Success reports whether the run completed without record errors.
func (s *ImportSummary) Success() bool {
	return len(s.Errors) == 0
}

func (s *ImportSummary) add(component string, r *ImportResult) {
	s.Results[component] = append(s.Results[component], r)
	s.Created += r.Created
	s.Updated += r.Updated
	s.Skipped += r.Skipped
	s.Errors = append(s.Errors, r.Errors...)
	s.Warnings = append(s.Warnings, r.Warnings...)
}

// ImportService drives full import runs: layout detection, per-component
// compatibility gating, checksum verification, dependency-ordered entity
// import and configuration drift reporting.
type ImportService struct {
	store     portal.Store
	collector *ConfigCollector
	info      InstanceInfo
	log       *logging.Logger
}

// NewImportService creates an import service targeting the given store.
func NewImportService(store portal.Store, collector *ConfigCollector, info InstanceInfo, log *logging.Logger) *ImportService {
	return &ImportService{store: store, collector: collector, info: info, log: log}
}

// ImportAll imports an export directory into the target store. Record-level
// failures are collected and do not abort the run; an incompatible
// component or checksum mismatch aborts before any write unless Force is
// set. With Atomic set the run executes inside a transaction and rolls back
// when any record erred.
func (s *ImportService) ImportAll(ctx context.Context, dir string, opts ImportRunOptions) (*ImportSummary, error) {
	if !opts.Atomic {
		return s.run(ctx, s.store, dir, opts)
	}
	ts, ok := s.store.(portal.TransactionalStore)
	if !ok {
		return nil, NewConfigurationError("atomic import requested but the store does not support transactions", nil)
	}
	var summary *ImportSummary
	err := ts.InTransaction(ctx, func(tx portal.Store) error {
		var runErr error
		summary, runErr = s.run(ctx, tx, dir, opts)
		if runErr != nil {
			return runErr
		}
		if !summary.Success() {
			return NewDatabaseError(fmt.Sprintf("atomic import rolled back: %d record errors", len(summary.Errors)), nil)
		}
		return nil
	})
	if err != nil && summary != nil && !summary.Success() {
		// Rollback path: the summary still describes what failed.
		return summary, nil
	}
	return summary, err
}

func (s *ImportService) run(ctx context.Context, store portal.Store, dir string, opts ImportRunOptions) (*ImportSummary, error) {
	layout, err := DetectLayout(dir)
	if err != nil {
		return nil, err
	}
	selected, err := selectComponents(opts.Components)
	if err != nil {
		return nil, err
	}
	s.log.LogOperationStart("import", map[string]interface{}{
		"source":  dir,
		"layout":  string(layout),
		"mode":    string(opts.Mode),
		"dry_run": opts.DryRun,
	})

	summary := &ImportSummary{
		Results: make(map[string][]*ImportResult),
		Compat:  make(map[string]*CompatReport),
		DryRun:  opts.DryRun,
	}
	checker := NewCompatibilityChecker(s.info)
	registries := buildRegistries(store)
	ictx := NewImportContext()
	entityOpts := ImportOptions{Mode: opts.Mode, DryRun: opts.DryRun}

	jobs, err := componentJobs(dir, layout, selected)
	if err != nil {
		return nil, err
	}

	for _, job := range jobs {
		component, cdir := job.name, job.dir
		manifest, err := LoadManifest(cdir)
		if err != nil {
			if IsNotFound(err) {
				// Exports taken with a component filter simply lack the
				// directory.
				continue
			}
			return nil, err
		}

		report := checker.Check(manifest, component)
		summary.Compat[component] = report
		summary.Warnings = append(summary.Warnings, report.Warnings...)
		s.log.LogCompatibility(component, string(report.Status), len(report.Warnings), len(report.Errors))
		if report.Status == CompatIncompatible && !opts.Force {
			return nil, NewValidationError(fmt.Sprintf(
				"component %q is incompatible with this instance: %v (use force to override)",
				component, report.Errors), nil).
				WithContext("component", component).
				WithContext("source", dir)
		}

		ok, err := VerifyChecksum(manifest.Checksum, cdir)
		if err != nil {
			return nil, err
		}
		if !ok && !opts.Force {
			return nil, NewCorruptionError(fmt.Sprintf(
				"checksum mismatch for component %q; the export has been modified (use force to override)",
				component), nil).
				WithContext("component", component).
				WithContext("source", dir)
		}
		if !ok {
			summary.Warnings = append(summary.Warnings,
				fmt.Sprintf("checksum mismatch for component %q ignored by force", component))
		}

		if component == ComponentConfig {
			exported, err := LoadConfigSnapshot(cdir)
			if err != nil {
				return nil, err
			}
			summary.ConfigDiff = CompareConfigSnapshots(exported, s.collector.Collect())
			continue
		}

		syncers, err := registries[component].GetOrdered(opts.IncludeModels, opts.ExcludeModels)
		if err != nil {
			return nil, err
		}
		for _, syncer := range syncers {
			file, err := ReadEntityFile(cdir, syncer.ModelName())
			if err != nil {
				if IsNotFound(err) {
					summary.Warnings = append(summary.Warnings,
						fmt.Sprintf("no data file for model %q in component %q; skipping", syncer.ModelName(), component))
					continue
				}
				return nil, err
			}
			result := syncer.Import(ctx, ictx, file.Records, entityOpts)
			summary.add(component, result)
			s.log.LogImport(component, result.Model, result.Created, result.Updated, result.Skipped, len(result.Errors), opts.DryRun)
		}
	}

	return summary, nil
}

// componentJob pairs a component name with the directory holding its files.
type componentJob struct {
	name string
	dir  string
}

// componentJobs resolves which component directories an import run visits.
// Multi-component exports map each selected component to its subdirectory.
// A flat export holds exactly one component in the root; its name comes
// from the manifest (legacy exports without one are rental data).
func componentJobs(dir string, layout Layout, selected []string) ([]componentJob, error) {
	if layout == LayoutMultiComponent {
		jobs := make([]componentJob, 0, len(selected))
		for _, component := range selected {
			jobs = append(jobs, componentJob{name: component, dir: filepath.Join(dir, component)})
		}
		return jobs, nil
	}

	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	component := manifest.Component
	if component == "" {
		component = ComponentRental
	}
	for _, name := range selected {
		if name == component {
			return []componentJob{{name: component, dir: dir}}, nil
		}
	}
	return nil, nil
}

// ComponentVerification is the verify outcome for one component.
type ComponentVerification struct {
	Component        string           `json:"component"`
	ManifestErrors   ValidationErrors `json:"manifest_errors,omitempty"`
	ChecksumPresent  bool             `json:"checksum_present"`
	ChecksumVerified bool             `json:"checksum_verified"`
	Compat           *CompatReport    `json:"compatibility"`
	RecordCount      int              `json:"record_count"`
}

// VerifyReport aggregates per-component verification of an export
// directory.
type VerifyReport struct {
	Layout     Layout                  `json:"layout"`
	Components []ComponentVerification `json:"components"`
	Valid      bool                    `json:"valid"`
}

// VerifyExport checks an export directory without touching the store:
// manifest structure, checksum integrity and compatibility against the
// given instance. Absent checksums verify trivially but are flagged so
// operators can see integrity is unattested.
func VerifyExport(dir string, info InstanceInfo) (*VerifyReport, error) {
	layout, err := DetectLayout(dir)
	if err != nil {
		return nil, err
	}
	report := &VerifyReport{Layout: layout, Valid: true}
	checker := NewCompatibilityChecker(info)

	components := append(append([]string{}, dataComponents...), ComponentConfig)
	if layout == LayoutFlat {
		components = components[:1]
	}
	for _, component := range components {
		cdir := componentDir(dir, component, layout)
		manifest, err := LoadManifest(cdir)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if layout == LayoutFlat {
			if manifest.Component != "" {
				component = manifest.Component
			} else {
				component = ComponentRental
			}
		}

		cv := ComponentVerification{
			Component:       component,
			ManifestErrors:  manifest.Validate(),
			ChecksumPresent: manifest.Checksum != nil && manifest.Checksum.Value != "",
			Compat:          checker.Check(manifest, component),
		}
		for _, n := range manifest.DataCounts {
			cv.RecordCount += n
		}
		cv.ChecksumVerified, err = VerifyChecksum(manifest.Checksum, cdir)
		if err != nil {
			return nil, err
		}
		if len(cv.ManifestErrors) > 0 || !cv.ChecksumVerified || cv.Compat.Status == CompatIncompatible {
			report.Valid = false
		}
		report.Components = append(report.Components, cv)

		if layout == LayoutFlat {
			break
		}
	}
	if len(report.Components) == 0 {
		return nil, NewNotFoundError(fmt.Sprintf("no component manifests found in %s", dir), nil)
	}
	return report, nil
}
