package backup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncErrorWithContext(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("failed to write export", cause).
		WithContext("component", "rental").
		WithContext("path", "/srv/exports/aug")

	assert.Equal(t, "rental", err.Context["component"])
	assert.Equal(t, "/srv/exports/aug", err.Context["path"])
	assert.True(t, IsErrorType(err, SyncErrorTypeStorage))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk full")
}

func TestValidationErrorsAggregate(t *testing.T) {
	var errs ValidationErrors
	assert.False(t, errs.HasErrors())

	errs.Add("export_format", "value is missing", nil)
	require.True(t, errs.HasErrors())
	assert.Contains(t, errs.Error(), "export_format")

	errs.Add("schema_versions", "no schema versions recorded", nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs.Error(), "2 validation errors")
	assert.Contains(t, errs.Error(), "and 1 more")
}
