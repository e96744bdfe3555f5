package backup

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateRoundTrip(t *testing.T) {
	d := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	s := FormatDate(d)
	assert.Equal(t, "2026-03-15", s)

	parsed, err := ParseDate(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(d))
}

func TestParseDateInvalid(t *testing.T) {
	_, err := ParseDate("15/03/2026")
	assert.Error(t, err)
}

func TestDateTimeRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 15, 10, 30, 0, 0, time.FixedZone("CET", 3600))
	s := FormatDateTime(ts)
	assert.Equal(t, "2026-03-15T09:30:00Z", s)

	parsed, err := ParseDateTime(s)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestFormatDecimal(t *testing.T) {
	tests := []struct {
		name string
		in   *big.Rat
		want string
	}{
		{"nil", nil, "0"},
		{"integer", big.NewRat(3, 1), "3"},
		{"trailing zeros trimmed", big.NewRat(25, 2), "12.5"},
		{"four places kept", big.NewRat(12345, 10000), "1.2345"},
		{"negative", big.NewRat(-99, 4), "-24.75"},
		{"zero", big.NewRat(0, 1), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDecimal(tt.in))
		})
	}
}

func TestParseDecimal(t *testing.T) {
	r, err := ParseDecimal("12.5")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Cmp(big.NewRat(25, 2)))

	_, err = ParseDecimal("")
	assert.Error(t, err)

	_, err = ParseDecimal("1.2e5")
	assert.Error(t, err, "exponent notation is not canonical")

	_, err = ParseDecimal("not-a-number")
	assert.Error(t, err)
}

func TestDecimalRoundTripExact(t *testing.T) {
	// 0.1 is inexact in binary floats; the string round trip must be exact.
	original := big.NewRat(1, 10)
	parsed, err := ParseDecimal(FormatDecimal(original))
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.Cmp(original))
}

func TestFieldHelpers(t *testing.T) {
	fields := map[string]interface{}{
		"name":    "gpu-a100",
		"count":   float64(8), // JSON numbers decode as float64
		"active":  true,
		"when":    "2026-01-01",
		"rate":    "2.5",
		"ignored": nil,
	}

	name, err := stringField(fields, "name")
	require.NoError(t, err)
	assert.Equal(t, "gpu-a100", name)

	_, err = stringField(fields, "missing")
	assert.Error(t, err)

	n, err := intField(fields, "count")
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	assert.True(t, boolField(fields, "active"))
	assert.False(t, boolField(fields, "missing"))
	assert.Equal(t, "", optionalStringField(fields, "missing"))

	d, err := dateField(fields, "when")
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year())

	r, err := decimalField(fields, "rate")
	require.NoError(t, err)
	assert.Equal(t, 0, r.Cmp(big.NewRat(5, 2)))
}

func TestNaturalKeyString(t *testing.T) {
	// Keys built in-process use int64; keys read back from JSON carry
	// float64. Both must render identically.
	exported := NaturalKey{int64(42), "acct-a"}
	decoded := NaturalKey{float64(42), "acct-a"}
	assert.Equal(t, exported.String(), decoded.String())
}
