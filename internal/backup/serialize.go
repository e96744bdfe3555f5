package backup

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Canonical string forms for values that JSON cannot carry natively. Dates
// travel as ISO-8601 (date-only or RFC 3339 UTC timestamps), decimals as
// plain decimal strings with no exponent. Both directions are pure functions
// so exporters and importers cannot drift apart.

const dateLayout = "2006-01-02"

// FormatDate renders a date-valued time as an ISO-8601 date string.
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// ParseDate parses an ISO-8601 date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, NewSerializationError(fmt.Sprintf("invalid date %q", s), err)
	}
	return t, nil
}

// FormatDateTime renders a timestamp as RFC 3339 in UTC.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ParseDateTime parses an RFC 3339 timestamp.
func ParseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, NewSerializationError(fmt.Sprintf("invalid timestamp %q", s), err)
	}
	return t.UTC(), nil
}

// decimalScale is the number of fractional digits carried for money and
// rate values across the export boundary.
const decimalScale = 4

// FormatDecimal renders an exact decimal value in its canonical string form.
// A nil value renders as "0".
func FormatDecimal(r *big.Rat) string {
	if r == nil {
		return "0"
	}
	s := r.FloatString(decimalScale)
	// Trim trailing zeros but keep at least one fractional digit shape stable
	// ("12.5000" -> "12.5", "3.0000" -> "3").
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// ParseDecimal parses a canonical decimal string into an exact value.
func ParseDecimal(s string) (*big.Rat, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, NewSerializationError("empty decimal value", nil)
	}
	if strings.ContainsAny(s, "eE") {
		return nil, NewSerializationError(fmt.Sprintf("invalid decimal %q: exponent notation is not canonical", s), nil)
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, NewSerializationError(fmt.Sprintf("invalid decimal %q", s), nil)
	}
	return r, nil
}

// stringField extracts a required string field from a record's field map.
func stringField(fields map[string]interface{}, name string) (string, error) {
	v, ok := fields[name]
	if !ok {
		return "", NewSerializationError(fmt.Sprintf("missing field %q", name), nil)
	}
	s, ok := v.(string)
	if !ok {
		return "", NewSerializationError(fmt.Sprintf("field %q is not a string", name), nil)
	}
	return s, nil
}

// optionalStringField extracts a string field, returning "" when absent or null.
func optionalStringField(fields map[string]interface{}, name string) string {
	if v, ok := fields[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// boolField extracts a bool field, defaulting to false when absent.
func boolField(fields map[string]interface{}, name string) bool {
	if v, ok := fields[name]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

// intField extracts an integer field. JSON numbers decode as float64.
func intField(fields map[string]interface{}, name string) (int64, error) {
	v, ok := fields[name]
	if !ok {
		return 0, NewSerializationError(fmt.Sprintf("missing field %q", name), nil)
	}
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	default:
		return 0, NewSerializationError(fmt.Sprintf("field %q is not an integer", name), nil)
	}
}

// dateField extracts and parses an ISO-8601 date field.
func dateField(fields map[string]interface{}, name string) (time.Time, error) {
	s, err := stringField(fields, name)
	if err != nil {
		return time.Time{}, err
	}
	return ParseDate(s)
}

// decimalField extracts and parses a canonical decimal field.
func decimalField(fields map[string]interface{}, name string) (*big.Rat, error) {
	s, err := stringField(fields, name)
	if err != nil {
		return nil, err
	}
	return ParseDecimal(s)
}
