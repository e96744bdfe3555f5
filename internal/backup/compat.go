package backup

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// CompatStatus is a three-level compatibility verdict.
type CompatStatus string

const (
	CompatCompatible   CompatStatus = "compatible"
	CompatWithWarnings CompatStatus = "compatible_with_warnings"
	CompatIncompatible CompatStatus = "incompatible"
)

// worse reports whether a is a worse verdict than b.
func (a CompatStatus) worse(b CompatStatus) bool {
	rank := map[CompatStatus]int{
		CompatCompatible:   0,
		CompatWithWarnings: 1,
		CompatIncompatible: 2,
	}
	return rank[a] > rank[b]
}

// CompatReport is the structured outcome of a compatibility check. It is
// always returned, never raised: the caller decides whether to abort, warn
// and continue, or force. Callers should treat incompatible as "refuse to
// import without explicit override".
type CompatReport struct {
	Status   CompatStatus `json:"status"`
	Warnings []string     `json:"warnings"`
	Errors   []string     `json:"errors"`
}

func (r *CompatReport) merge(status CompatStatus, warnings []string, errors []string) {
	if status.worse(r.Status) {
		r.Status = status
	}
	r.Warnings = append(r.Warnings, warnings...)
	r.Errors = append(r.Errors, errors...)
}

// coreSchemaApps are the owning-app names probed, in order, when resolving
// the core component's schema version from a manifest.
var coreSchemaApps = []string{"coldfront", "core", "portal"}

// CompatibilityChecker compares an export's manifest against the running
// instance's versions and schema state.
type CompatibilityChecker struct {
	info InstanceInfo
}

// NewCompatibilityChecker creates a checker for the given instance.
func NewCompatibilityChecker(info InstanceInfo) *CompatibilityChecker {
	return &CompatibilityChecker{info: info}
}

// Check runs the two-dimensional compatibility check (format version and
// schema version) for one component manifest, combining the verdicts by
// worst-wins. Structural validation errors force the overall verdict to
// incompatible regardless of the version checks.
func (c *CompatibilityChecker) Check(m *Manifest, component string) *CompatReport {
	report := &CompatReport{Status: CompatCompatible}

	if errs := m.Validate(); errs.HasErrors() {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		report.merge(CompatIncompatible, nil, msgs)
	}

	status, warnings, errors := c.checkFormatVersion(m.ExportVersion)
	report.merge(status, warnings, errors)

	// The config component carries no migration counter; only the format
	// dimension applies to it.
	if component != ComponentConfig {
		status, warnings, errors = c.checkSchemaVersion(m, component)
		report.merge(status, warnings, errors)
	}

	return report
}

// checkFormatVersion compares the export-format versions as semantic
// (major, minor, patch) triples. A major mismatch is incompatible; a minor
// mismatch in either direction is compatible with warnings; patch is
// ignored for compatibility purposes.
func (c *CompatibilityChecker) checkFormatVersion(exportVersion string) (CompatStatus, []string, []string) {
	expMajor, expMinor, _ := parseSemanticVersion(exportVersion)
	tgtMajor, tgtMinor, _ := parseSemanticVersion(FormatVersion)

	switch {
	case expMajor != tgtMajor:
		return CompatIncompatible, nil, []string{fmt.Sprintf(
			"export format version %s is incompatible with supported version %s (major version mismatch)",
			exportVersion, FormatVersion)}
	case expMinor > tgtMinor:
		return CompatWithWarnings, []string{fmt.Sprintf(
			"export format version %s is newer than supported version %s; some data may not be supported",
			exportVersion, FormatVersion)}, nil
	case expMinor < tgtMinor:
		return CompatWithWarnings, []string{fmt.Sprintf(
			"export format version %s is older than supported version %s; new fields will use defaults",
			exportVersion, FormatVersion)}, nil
	default:
		return CompatCompatible, nil, nil
	}
}

// checkSchemaVersion compares migration counters for the component's owning
// app. An export ahead of the target is incompatible (the target must
// migrate first); a target far ahead (more than 5 migrations) warns about
// possible transformations; a slightly older export warns about defaults.
func (c *CompatibilityChecker) checkSchemaVersion(m *Manifest, component string) (CompatStatus, []string, []string) {
	var warnings []string

	exportSchema, fallbackApp := schemaVersionFor(m.SchemaVersions, component)
	if fallbackApp != "" {
		// Documented fallback: no named app matched, so an arbitrary app's
		// migration counter is being compared. Surface it.
		warnings = append(warnings, fmt.Sprintf(
			"no schema version recorded for component %q; falling back to app %q", component, fallbackApp))
	}
	currentSchema, _ := schemaVersionFor(c.info.SchemaVersions, component)

	expCounter := parseMigrationCounter(exportSchema)
	tgtCounter := parseMigrationCounter(currentSchema)

	switch {
	case expCounter > tgtCounter:
		return CompatIncompatible, warnings, []string{fmt.Sprintf(
			"export schema version %s is ahead of target %s for component %q; the target must migrate first",
			exportSchema, currentSchema, component)}
	case tgtCounter-expCounter > 5:
		warnings = append(warnings, fmt.Sprintf(
			"export schema version %s is significantly older than target %s for component %q; data transformations may be needed",
			exportSchema, currentSchema, component))
		return CompatWithWarnings, warnings, nil
	case expCounter < tgtCounter:
		warnings = append(warnings, fmt.Sprintf(
			"export schema version %s is older than target %s for component %q; new fields will use defaults",
			exportSchema, currentSchema, component))
		return CompatWithWarnings, warnings, nil
	default:
		return CompatCompatible, warnings, nil
	}
}

// schemaVersionFor resolves the schema version string for a component from
// a schema-versions mapping. The core component probes a fixed set of
// core-app names; other components probe their own name. When no named app
// is present the first available value is used (the returned app name marks
// the fallback); an empty mapping resolves to the literal "unknown".
func schemaVersionFor(versions map[string]string, component string) (value string, fallbackApp string) {
	if len(versions) == 0 {
		return "unknown", ""
	}
	candidates := []string{component}
	if component == ComponentCore {
		candidates = coreSchemaApps
	}
	for _, app := range candidates {
		if v, ok := versions[app]; ok {
			return v, ""
		}
	}
	apps := make([]string, 0, len(versions))
	for app := range versions {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return versions[apps[0]], apps[0]
}

// parseSemanticVersion parses MAJOR.MINOR.PATCH with missing parts
// defaulting to 0; an unparseable string parses as (0, 0, 0).
func parseSemanticVersion(s string) (major, minor, patch int) {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 3)
	nums := make([]int, 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return 0, 0, 0
		}
		nums[i] = n
	}
	return nums[0], nums[1], nums[2]
}

// parseMigrationCounter extracts the leading integer from a migration
// version string ("0045_add_rate_table" -> 45); unparseable strings count
// as 0.
func parseMigrationCounter(s string) int {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "_"); i >= 0 {
		s = s[:i]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
