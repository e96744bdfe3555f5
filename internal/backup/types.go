package backup

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Export format constants. ExportFormat identifies the on-disk format and is
// checked exactly during manifest validation; FormatVersion is the semantic
// version of the format itself, independent of software versions.
const (
	ExportFormat      = "coldfront-rental-export"
	FormatVersion     = "2.0.0"
	ChecksumAlgorithm = "sha256"
	ManifestFileName  = "manifest.json"
)

// Component names. Each component is an independently versioned partition of
// the exportable data set with its own registry and manifest.
const (
	ComponentCore   = "core"
	ComponentRental = "rental"
	ComponentConfig = "config"
)

// NaturalKey is the portable form of a record's identity: an ordered tuple
// of primitive values (strings, ints) that is stable across databases.
type NaturalKey []interface{}

// String renders the key in a canonical form usable as a map key. JSON
// decoding turns integers into float64, so integral floats are normalized
// back before formatting.
func (k NaturalKey) String() string {
	parts := make([]string, len(k))
	for i, v := range k {
		switch n := v.(type) {
		case float64:
			if n == math.Trunc(n) {
				parts[i] = fmt.Sprintf("%d", int64(n))
			} else {
				parts[i] = fmt.Sprintf("%v", n)
			}
		default:
			parts[i] = fmt.Sprintf("%v", v)
		}
	}
	return strings.Join(parts, "\x1f")
}

// Record is one exported entity instance: its natural key plus a mapping of
// field names to JSON-scalar (or nested) values. Fields never contain raw
// secret material; cross-entity references are stored as natural keys of the
// referenced entity, except where no natural key exists, in which case the
// original surrogate id is carried and remapped through the ImportContext.
type Record struct {
	NaturalKey NaturalKey             `json:"natural_key"`
	Fields     map[string]interface{} `json:"fields"`
}

// EntityFile is the envelope written to <output_dir>/<model_name>.json.
type EntityFile struct {
	Model   string   `json:"model"`
	Count   int      `json:"count"`
	Records []Record `json:"records"`
}

// ImportMode selects the create/update policy applied per record.
type ImportMode string

const (
	ImportModeCreateOnly     ImportMode = "create-only"
	ImportModeUpdateOnly     ImportMode = "update-only"
	ImportModeCreateOrUpdate ImportMode = "create-or-update"
)

// ParseImportMode validates a mode string received from the CLI.
func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(s) {
	case ImportModeCreateOnly, ImportModeUpdateOnly, ImportModeCreateOrUpdate:
		return ImportMode(s), nil
	case "":
		return ImportModeCreateOrUpdate, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unknown import mode: %s", s), nil)
	}
}

// ImportOptions controls one import run. Under DryRun the decision logic
// runs unchanged but the persisting sink is replaced with a counting one.
type ImportOptions struct {
	Mode   ImportMode
	DryRun bool
}

// ExportResult is the immutable outcome of exporting one entity type.
type ExportResult struct {
	Model    string   `json:"model"`
	Success  bool     `json:"success"`
	Count    int      `json:"count"`
	Path     string   `json:"path,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ImportResult is the immutable outcome of importing one entity type's
// records. Success is true iff Errors is empty, independent of the
// skip/create/update counters.
type ImportResult struct {
	Model    string   `json:"model"`
	Created  int      `json:"created"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	DryRun   bool     `json:"dry_run,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Success reports whether the batch completed without record errors.
func (r *ImportResult) Success() bool {
	return len(r.Errors) == 0
}

// SourcePortal identifies the portal instance an export was taken from.
type SourcePortal struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// SoftwareVersions is the version bundle stamped into every manifest.
type SoftwareVersions struct {
	Portal    string `json:"portal"`
	Plugin    string `json:"plugin"`
	Framework string `json:"framework"`
	Runtime   string `json:"runtime"`
}

// InstanceInfo describes the running instance: identity, software versions
// and the schema (migration) version per owning app. It is stamped into
// manifests on export and is the comparison target during import.
type InstanceInfo struct {
	Portal         SourcePortal
	Versions       SoftwareVersions
	SchemaVersions map[string]string
}

// CompressionType selects the archive compression algorithm.
type CompressionType string

const (
	CompressionTypeNone CompressionType = "none"
	CompressionTypeGzip CompressionType = "gzip"
	CompressionTypeLZ4  CompressionType = "lz4"
	CompressionTypeZstd CompressionType = "zstd"
)

func isValidCompressionType(ct CompressionType) bool {
	switch ct {
	case CompressionTypeNone, CompressionTypeGzip, CompressionTypeLZ4, CompressionTypeZstd:
		return true
	default:
		return false
	}
}

// GenerateExportID generates a unique, sortable export run id.
func GenerateExportID() string {
	timestamp := time.Now().UTC().Format("20060102-150405")
	shortUUID := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	return fmt.Sprintf("export-%s-%s", timestamp, shortUUID)
}
