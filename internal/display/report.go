package display

import (
	"fmt"
	"io"
	"sort"

	"coldfront-rental-sync/internal/backup"
)

// Reporter renders operation outcomes to a writer.
type Reporter struct {
	out    io.Writer
	colors *ColorSystem
}

// NewReporter creates a reporter over the given writer.
func NewReporter(out io.Writer, colors *ColorSystem) *Reporter {
	return &Reporter{out: out, colors: colors}
}

func (r *Reporter) printf(format string, args ...interface{}) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *Reporter) heading(text string) {
	r.printf("%s\n", r.colors.Sprint(ToneHeading, text))
}

// ExportSummary renders the outcome of an export run.
func (r *Reporter) ExportSummary(s *backup.ExportSummary) {
	r.heading(fmt.Sprintf("Export %s", s.ExportID))
	r.printf("  Output: %s\n", s.Path)

	for _, component := range sortedKeys(s.Results) {
		r.printf("  %s:\n", component)
		for _, result := range s.Results[component] {
			status := r.colors.Sprint(ToneSuccess, "ok")
			if !result.Success {
				status = r.colors.Sprint(ToneError, "failed")
			}
			r.printf("    %-20s %6d records  %s\n", result.Model, result.Count, status)
		}
	}
	if len(s.ConfigCounts) > 0 {
		r.printf("  config:\n")
		for _, name := range sortedKeys(s.ConfigCounts) {
			r.printf("    %-20s %6d settings\n", name, s.ConfigCounts[name])
		}
	}
	r.printf("  Total records: %d\n", s.TotalRecords)
	r.errorList(s.Errors)
	if s.Success() {
		r.printf("%s\n", r.colors.Sprint(ToneSuccess, "Export completed successfully"))
	} else {
		r.printf("%s\n", r.colors.Sprint(ToneError, "Export completed with errors"))
	}
}

// ImportSummary renders the outcome of an import run.
func (r *Reporter) ImportSummary(s *backup.ImportSummary) {
	title := "Import"
	if s.DryRun {
		title = "Import (dry run)"
	}
	r.heading(title)

	for _, component := range sortedKeys(s.Results) {
		r.printf("  %s:\n", component)
		for _, result := range s.Results[component] {
			r.printf("    %-20s created=%d updated=%d skipped=%d",
				result.Model, result.Created, result.Updated, result.Skipped)
			if len(result.Errors) > 0 {
				r.printf("  %s", r.colors.Sprintf(ToneError, "errors=%d", len(result.Errors)))
			}
			r.printf("\n")
		}
	}
	r.printf("  Totals: created=%d updated=%d skipped=%d\n", s.Created, s.Updated, s.Skipped)

	for _, component := range sortedKeys(s.Compat) {
		r.compatLine(component, s.Compat[component])
	}
	if s.ConfigDiff != nil {
		r.ConfigDiff(s.ConfigDiff)
	}
	r.warningList(s.Warnings)
	r.errorList(s.Errors)
	if s.Success() {
		r.printf("%s\n", r.colors.Sprint(ToneSuccess, "Import completed successfully"))
	} else {
		r.printf("%s\n", r.colors.Sprint(ToneError, "Import completed with errors"))
	}
}

func (r *Reporter) compatLine(component string, report *backup.CompatReport) {
	tone := ToneSuccess
	switch report.Status {
	case backup.CompatWithWarnings:
		tone = ToneWarning
	case backup.CompatIncompatible:
		tone = ToneError
	}
	r.printf("  compatibility %-8s %s\n", component, r.colors.Sprint(tone, string(report.Status)))
	for _, w := range report.Warnings {
		r.printf("    %s\n", r.colors.Sprint(ToneWarning, w))
	}
	for _, e := range report.Errors {
		r.printf("    %s\n", r.colors.Sprint(ToneError, e))
	}
}

// ConfigDiff renders a configuration drift report.
func (r *Reporter) ConfigDiff(report *backup.ConfigDiffReport) {
	tone := ToneSuccess
	switch report.Status {
	case backup.DiffStatusDifferences:
		tone = ToneWarning
	case backup.DiffStatusCritical:
		tone = ToneError
	}
	r.heading("Configuration drift")
	r.printf("  Status: %s\n", r.colors.Sprint(tone, report.Status))

	for _, d := range report.Differences {
		severityTone := ToneMuted
		switch d.Severity {
		case backup.DiffSeverityWarning:
			severityTone = ToneWarning
		case backup.DiffSeverityCritical:
			severityTone = ToneError
		}
		r.printf("  [%s] %s/%s (%s)\n",
			r.colors.Sprint(severityTone, string(d.Severity)), d.Category, d.Setting, d.Type)
		r.printf("      exported: %v\n", d.ExportedValue)
		r.printf("      current:  %v\n", d.CurrentValue)
		if d.Impact != "" {
			r.printf("      impact:   %s\n", d.Impact)
		}
	}
	r.warningList(report.Warnings)
}

// VerifyReport renders the outcome of verifying an export directory.
func (r *Reporter) VerifyReport(report *backup.VerifyReport) {
	r.heading("Export verification")
	r.printf("  Layout: %s\n", report.Layout)
	for _, cv := range report.Components {
		r.printf("  %s: %d records\n", cv.Component, cv.RecordCount)
		if !cv.ChecksumPresent {
			r.printf("    %s\n", r.colors.Sprint(ToneWarning, "no checksum recorded; integrity is unattested"))
		} else if cv.ChecksumVerified {
			r.printf("    checksum %s\n", r.colors.Sprint(ToneSuccess, "verified"))
		} else {
			r.printf("    checksum %s\n", r.colors.Sprint(ToneError, "MISMATCH"))
		}
		for _, e := range cv.ManifestErrors {
			r.printf("    %s\n", r.colors.Sprint(ToneError, e.Error()))
		}
		r.compatLine(cv.Component, cv.Compat)
	}
	if report.Valid {
		r.printf("%s\n", r.colors.Sprint(ToneSuccess, "Export directory is valid"))
	} else {
		r.printf("%s\n", r.colors.Sprint(ToneError, "Export directory failed verification"))
	}
}

// ArchiveList renders stored archive entries.
func (r *Reporter) ArchiveList(entries []backup.ArchiveEntry) {
	r.heading("Archives")
	if len(entries) == 0 {
		r.printf("  %s\n", r.colors.Sprint(ToneMuted, "(none)"))
		return
	}
	for _, e := range entries {
		r.printf("  %s", e.Key)
		if e.Metadata != nil {
			r.printf("  %s  %d bytes  %s",
				e.Metadata.CreatedAt.Format("2006-01-02 15:04"), e.Metadata.Size, e.Metadata.Compression)
			if e.Metadata.Encrypted {
				r.printf("  %s", r.colors.Sprint(ToneMuted, "encrypted"))
			}
		}
		r.printf("\n")
	}
}

func (r *Reporter) warningList(warnings []string) {
	for _, w := range warnings {
		r.printf("  %s %s\n", r.colors.Sprint(ToneWarning, "warning:"), w)
	}
}

func (r *Reporter) errorList(errors []string) {
	for _, e := range errors {
		r.printf("  %s %s\n", r.colors.Sprint(ToneError, "error:"), e)
	}
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
