package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Checksum carries the content digest of an export's data files.
type Checksum struct {
	Algorithm string `json:"algorithm"`
	Value     string `json:"value"`
}

// Manifest describes one component's slice of an export: format identity,
// versions, per-entity record counts and a content checksum over the
// component's data files. It is created once at the end of a successful
// export and is read-only afterwards.
type Manifest struct {
	ExportFormat     string            `json:"export_format"`
	ExportVersion    string            `json:"export_version"`
	ExportID         string            `json:"export_id,omitempty"`
	Component        string            `json:"component,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	SourcePortal     SourcePortal      `json:"source_portal"`
	SoftwareVersions SoftwareVersions  `json:"software_versions"`
	SchemaVersions   map[string]string `json:"schema_versions,omitempty"`
	DataCounts       map[string]int    `json:"data_counts,omitempty"`
	Checksum         *Checksum         `json:"checksum,omitempty"`
}

// ComponentRef is a root manifest's view of one component.
type ComponentRef struct {
	Path        string         `json:"path"`
	Manifest    string         `json:"manifest"`
	DataCounts  map[string]int `json:"data_counts"`
	RecordCount int            `json:"record_count"`
}

// RootManifest aggregates the per-component manifests of one export
// operation.
type RootManifest struct {
	ExportFormat     string                  `json:"export_format"`
	ExportVersion    string                  `json:"export_version"`
	ExportID         string                  `json:"export_id,omitempty"`
	CreatedAt        time.Time               `json:"created_at"`
	SourcePortal     SourcePortal            `json:"source_portal"`
	SoftwareVersions SoftwareVersions        `json:"software_versions"`
	Components       map[string]ComponentRef `json:"components"`
	TotalRecords     int                     `json:"total_records"`
	Checksum         *Checksum               `json:"checksum,omitempty"`
}

// GenerateManifest stamps a component manifest over an export directory:
// current software/schema versions from the running instance, the given
// per-entity counts, and a content checksum over every JSON data file in
// the directory (manifest files excluded).
func GenerateManifest(component, exportID, dir string, counts map[string]int, info InstanceInfo) (*Manifest, error) {
	digest, err := ComputeDirChecksum(dir)
	if err != nil {
		return nil, err
	}
	return &Manifest{
		ExportFormat:     ExportFormat,
		ExportVersion:    FormatVersion,
		ExportID:         exportID,
		Component:        component,
		CreatedAt:        time.Now().UTC(),
		SourcePortal:     info.Portal,
		SoftwareVersions: info.Versions,
		SchemaVersions:   info.SchemaVersions,
		DataCounts:       counts,
		Checksum:         &Checksum{Algorithm: ChecksumAlgorithm, Value: digest},
	}, nil
}

// Validate performs the structural check on a manifest: required fields
// present, the export format matches the expected constant exactly, and at
// least one schema-version entry is present. Checksum verification is a
// separate explicit step.
func (m *Manifest) Validate() ValidationErrors {
	var errs ValidationErrors
	if m.ExportFormat == "" {
		errs.Add("export_format", "value is missing", nil)
	} else if m.ExportFormat != ExportFormat {
		errs.Add("export_format", fmt.Sprintf("unexpected value (want %q)", ExportFormat), m.ExportFormat)
	}
	if m.ExportVersion == "" {
		errs.Add("export_version", "value is missing", nil)
	}
	if m.CreatedAt.IsZero() {
		errs.Add("created_at", "value is missing", nil)
	}
	if len(m.SchemaVersions) == 0 {
		errs.Add("schema_versions", "no schema versions recorded", nil)
	}
	return errs
}

// WriteManifest writes a component manifest as <dir>/manifest.json.
func WriteManifest(m *Manifest, dir string) error {
	return writeManifestFile(filepath.Join(dir, ManifestFileName), m)
}

// LoadManifest reads a component manifest from an export directory.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := readManifestFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, NewSerializationError("failed to parse manifest", err)
	}
	return &m, nil
}

// GenerateRootManifest aggregates component manifests into a root manifest
// for the export directory. Component paths are recorded relative to the
// export root; the root checksum covers all data files in the tree.
func GenerateRootManifest(exportID, dir string, components map[string]*Manifest, info InstanceInfo) (*RootManifest, error) {
	refs := make(map[string]ComponentRef, len(components))
	total := 0
	for name, cm := range components {
		count := 0
		for _, n := range cm.DataCounts {
			count += n
		}
		refs[name] = ComponentRef{
			Path:        name,
			Manifest:    filepath.Join(name, ManifestFileName),
			DataCounts:  cm.DataCounts,
			RecordCount: count,
		}
		total += count
	}
	digest, err := ComputeDirChecksum(dir)
	if err != nil {
		return nil, err
	}
	return &RootManifest{
		ExportFormat:     ExportFormat,
		ExportVersion:    FormatVersion,
		ExportID:         exportID,
		CreatedAt:        time.Now().UTC(),
		SourcePortal:     info.Portal,
		SoftwareVersions: info.Versions,
		Components:       refs,
		TotalRecords:     total,
		Checksum:         &Checksum{Algorithm: ChecksumAlgorithm, Value: digest},
	}, nil
}

// WriteRootManifest writes the root manifest as <dir>/manifest.json.
func WriteRootManifest(m *RootManifest, dir string) error {
	return writeManifestFile(filepath.Join(dir, ManifestFileName), m)
}

// LoadRootManifest reads the root manifest from an export directory.
func LoadRootManifest(dir string) (*RootManifest, error) {
	data, err := readManifestFile(filepath.Join(dir, ManifestFileName))
	if err != nil {
		return nil, err
	}
	var m RootManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, NewSerializationError("failed to parse root manifest", err)
	}
	return &m, nil
}

// ComputeDirChecksum computes the content checksum over every .json file
// under dir (recursively), excluding manifest files, sorted by relative path
// for determinism.
func ComputeDirChecksum(dir string) (string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if !strings.HasSuffix(name, ".json") || name == ManifestFileName {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return "", NewStorageError(fmt.Sprintf("failed to walk export directory %s", dir), err)
	}
	sort.Strings(files)

	h := sha256.New()
	for _, rel := range files {
		// The relative path is hashed alongside the bytes so that renaming
		// a data file changes the digest.
		io.WriteString(h, filepath.ToSlash(rel))
		h.Write([]byte{0})
		data, err := os.ReadFile(filepath.Join(dir, rel))
		if err != nil {
			return "", NewStorageError(fmt.Sprintf("failed to read %s for checksum", rel), err)
		}
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// VerifyChecksum recomputes the directory checksum and compares it against
// the manifest's recorded value. A manifest without a checksum verifies
// trivially: absence means there is nothing to verify, not a failure.
// Callers relying on integrity must additionally assert checksum presence.
func VerifyChecksum(cs *Checksum, dir string) (bool, error) {
	if cs == nil || cs.Value == "" {
		return true, nil
	}
	digest, err := ComputeDirChecksum(dir)
	if err != nil {
		return false, err
	}
	return digest == cs.Value, nil
}

// Helper functions

func writeManifestFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return NewSerializationError("failed to marshal manifest", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func readManifestFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewNotFoundError(fmt.Sprintf("no manifest at %s", path), err)
		}
		return nil, NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}
	return data, nil
}
