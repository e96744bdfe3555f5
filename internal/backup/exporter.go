package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeEntityFile writes the standard per-entity envelope to
// <dir>/<model>.json and returns the file path.
func writeEntityFile(dir, model string, records []Record) (string, error) {
	file := EntityFile{
		Model:   model,
		Count:   len(records),
		Records: records,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return "", NewSerializationError(fmt.Sprintf("failed to marshal %s records", model), err)
	}
	path := filepath.Join(dir, model+".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return path, nil
}

// ReadEntityFile loads and validates the per-entity envelope for a model
// from an export directory.
func ReadEntityFile(dir, model string) (*EntityFile, error) {
	path := filepath.Join(dir, model+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundError(fmt.Sprintf("no data file for model %q in %s", model, dir), err)
		}
		return nil, NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}
	var file EntityFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, NewSerializationError(fmt.Sprintf("failed to parse %s", path), err)
	}
	if file.Model != model {
		return nil, NewValidationError(fmt.Sprintf("data file %s declares model %q", path, file.Model), nil)
	}
	return &file, nil
}

// collectFunc enumerates an entity's source rows and serializes them.
// Per-record serialization failures are returned as error strings alongside
// the successfully serialized records; only a top-level failure (source
// unreachable) is returned as an error.
type collectFunc func(ctx context.Context) ([]Record, []string, error)

// runExport orchestrates one entity export: enumeration, serialization and
// the write of the entity file. Top-level failures are converted into a
// failed ExportResult with zero count rather than raised, so a broken
// entity does not abort a multi-entity run.
func runExport(ctx context.Context, model, dir string, collect collectFunc) *ExportResult {
	result := &ExportResult{Model: model}

	records, recordErrors, err := collect(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("export failed: %v", err))
		return result
	}
	result.Errors = append(result.Errors, recordErrors...)

	path, err := writeEntityFile(dir, model, records)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	result.Success = len(result.Errors) == 0
	result.Count = len(records)
	result.Path = path
	return result
}
