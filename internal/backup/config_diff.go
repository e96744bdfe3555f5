package backup

import (
	"fmt"
	"reflect"
	"sort"
)

// DiffType classifies a single configuration difference.
type DiffType string

const (
	DiffTypeChanged          DiffType = "changed"
	DiffTypeMissingInCurrent DiffType = "missing_in_current"
	DiffTypeMissingInExport  DiffType = "missing_in_export"
)

// DiffSeverity ranks how much a difference matters to an operator.
type DiffSeverity string

const (
	DiffSeverityCritical DiffSeverity = "critical"
	DiffSeverityWarning  DiffSeverity = "warning"
	DiffSeverityInfo     DiffSeverity = "info"
)

// Config diff report statuses.
const (
	DiffStatusIdentical   = "identical"
	DiffStatusCritical    = "critical_differences"
	DiffStatusDifferences = "differences_found"
)

// ConfigDifference is one detected divergence between an exported snapshot
// and the current instance configuration.
type ConfigDifference struct {
	Setting       string       `json:"setting"`
	Category      string       `json:"category"`
	ExportedValue interface{}  `json:"exported_value"`
	CurrentValue  interface{}  `json:"current_value"`
	Type          DiffType     `json:"difference_type"`
	Severity      DiffSeverity `json:"severity"`
	Description   string       `json:"description"`
	Impact        string       `json:"impact,omitempty"`
}

// ConfigDiffReport is the outcome of comparing two configuration snapshots.
type ConfigDiffReport struct {
	Status      string             `json:"status"`
	Differences []ConfigDifference `json:"differences"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// settingSeverities assigns severities to known settings; anything not
// listed defaults to info.
var settingSeverities = map[string]DiffSeverity{
	"billing_enabled":          DiffSeverityCritical,
	"invoice_account_required": DiffSeverityCritical,
	"default_currency":         DiffSeverityCritical,
	"time_zone":                DiffSeverityCritical,
	"rental_approval_required": DiffSeverityWarning,
	"reservation_max_days":     DiffSeverityWarning,
	"rate_decimal_places":      DiffSeverityWarning,
	"allowed_hosts":            DiffSeverityWarning,
	"email_notifications":      DiffSeverityInfo,
}

// settingImpacts carries the operator-facing impact statement for settings
// whose drift has known consequences.
var settingImpacts = map[string]string{
	"billing_enabled":          "invoices will not be generated while disabled",
	"invoice_account_required": "imported cost allocations without accounts may be rejected",
	"default_currency":         "imported rates and invoices are interpreted in the current currency",
	"time_zone":                "reservation boundaries may shift across the time zone change",
	"rental_approval_required": "reservations may activate without an approval step",
	"reservation_max_days":     "longer imported reservations may be rejected by the portal",
}

// CompareConfigSnapshots compares an exported snapshot against the current
// one. Categories present on only one side are reported as warnings and
// skipped for setting-level comparison; the environment category is
// informational and never compared. List values compare order-independent.
func CompareConfigSnapshots(exported, current ConfigSnapshot) *ConfigDiffReport {
	report := &ConfigDiffReport{Status: DiffStatusIdentical}

	for _, category := range unionKeys(categoryNames(exported), categoryNames(current)) {
		if category == ConfigCategoryEnvironment {
			continue
		}
		exportedSettings, inExported := exported[category]
		currentSettings, inCurrent := current[category]
		if !inExported {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("category %q is present only in the current configuration", category))
			continue
		}
		if !inCurrent {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("category %q is present only in the exported configuration", category))
			continue
		}
		compareCategory(report, category, exportedSettings, currentSettings)
	}

	for _, d := range report.Differences {
		if d.Severity == DiffSeverityCritical {
			report.Status = DiffStatusCritical
			break
		}
	}
	if report.Status == DiffStatusIdentical && len(report.Differences) > 0 {
		report.Status = DiffStatusDifferences
	}
	return report
}

func compareCategory(report *ConfigDiffReport, category string, exported, current map[string]ConfigValue) {
	for _, name := range unionKeys(settingNames(exported), settingNames(current)) {
		exportedValue, inExported := exported[name]
		currentValue, inCurrent := current[name]

		switch {
		case !inCurrent:
			report.Differences = append(report.Differences, newDifference(
				name, category, exportedValue.Value, nil, DiffTypeMissingInCurrent,
				fmt.Sprintf("setting %q is present in the export but not in the current configuration", name)))
		case !inExported:
			report.Differences = append(report.Differences, newDifference(
				name, category, nil, currentValue.Value, DiffTypeMissingInExport,
				fmt.Sprintf("setting %q is present in the current configuration but not in the export", name)))
		case !valuesEqual(exportedValue.Value, currentValue.Value):
			report.Differences = append(report.Differences, newDifference(
				name, category, exportedValue.Value, currentValue.Value, DiffTypeChanged,
				fmt.Sprintf("setting %q changed since the export was taken", name)))
		}
	}
}

func newDifference(name, category string, exportedValue, currentValue interface{}, diffType DiffType, description string) ConfigDifference {
	severity, ok := settingSeverities[name]
	if !ok {
		severity = DiffSeverityInfo
	}
	return ConfigDifference{
		Setting:       name,
		Category:      category,
		ExportedValue: exportedValue,
		CurrentValue:  currentValue,
		Type:          diffType,
		Severity:      severity,
		Description:   description,
		Impact:        settingImpacts[name],
	}
}

// valuesEqual is the type-aware equality used for setting values: numbers
// compare by value regardless of Go type (the exported side decodes from
// JSON as float64 while the current side keeps the source's native int
// types), lists compare as sets (order-independent), nil equals only nil,
// everything else by deep equality.
func valuesEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if numA, okA := asNumber(a); okA {
		numB, okB := asNumber(b)
		return okB && numA == numB
	}
	listA, okA := asList(a)
	listB, okB := asList(b)
	if okA && okB {
		if len(listA) != len(listB) {
			return false
		}
		counts := make(map[string]int, len(listA))
		for _, v := range listA {
			counts[fmt.Sprintf("%v", v)]++
		}
		for _, v := range listB {
			counts[fmt.Sprintf("%v", v)]--
		}
		for _, n := range counts {
			if n != 0 {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func asList(v interface{}) ([]interface{}, bool) {
	switch list := v.(type) {
	case []interface{}:
		return list, true
	case []string:
		out := make([]interface{}, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// Helper functions

func categoryNames(s ConfigSnapshot) []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	return names
}

func settingNames(m map[string]ConfigValue) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

func unionKeys(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, name := range append(append([]string{}, a...), b...) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}
