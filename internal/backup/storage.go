package backup

import (
	"context"
	"encoding/json"
	"fmt"
)

// ArchiveStoreType identifies an archive storage backend.
type ArchiveStoreType string

const (
	ArchiveStoreLocal ArchiveStoreType = "local"
	ArchiveStoreS3    ArchiveStoreType = "s3"
	ArchiveStoreAzure ArchiveStoreType = "azure"
	ArchiveStoreGCS   ArchiveStoreType = "gcs"
)

// ArchiveEntry is one stored archive as seen in a listing.
type ArchiveEntry struct {
	Key      string           `json:"key"`
	Metadata *ArchiveMetadata `json:"metadata,omitempty"`
}

// ArchiveStore stores packed export archives as opaque blobs with a
// metadata sidecar. Implementations exist for the local filesystem, S3,
// Azure Blob Storage and Google Cloud Storage.
type ArchiveStore interface {
	Put(ctx context.Context, key string, blob []byte, meta *ArchiveMetadata) error
	Get(ctx context.Context, key string) ([]byte, *ArchiveMetadata, error)
	List(ctx context.Context) ([]ArchiveEntry, error)
	Delete(ctx context.Context, key string) error
}

// Per-backend archive store settings.
type LocalArchiveConfig struct {
	BasePath string `mapstructure:"base_path" yaml:"base_path"`
}

type S3ArchiveConfig struct {
	Region    string `mapstructure:"region" yaml:"region"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
}

type AzureArchiveConfig struct {
	AccountName string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey  string `mapstructure:"account_key" yaml:"account_key"`
	Container   string `mapstructure:"container" yaml:"container"`
	Prefix      string `mapstructure:"prefix" yaml:"prefix"`
}

type GCSArchiveConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
}

// ArchiveStoreConfig selects and configures one archive storage backend.
type ArchiveStoreConfig struct {
	Provider ArchiveStoreType    `mapstructure:"provider" yaml:"provider"`
	Local    *LocalArchiveConfig `mapstructure:"local" yaml:"local,omitempty"`
	S3       *S3ArchiveConfig    `mapstructure:"s3" yaml:"s3,omitempty"`
	Azure    *AzureArchiveConfig `mapstructure:"azure" yaml:"azure,omitempty"`
	GCS      *GCSArchiveConfig   `mapstructure:"gcs" yaml:"gcs,omitempty"`
}

// Validate checks that the selected backend has the settings it needs.
func (c ArchiveStoreConfig) Validate() error {
	switch c.Provider {
	case ArchiveStoreLocal:
		if c.Local == nil || c.Local.BasePath == "" {
			return NewValidationError("local archive storage requires base_path", nil)
		}
	case ArchiveStoreS3:
		if c.S3 == nil || c.S3.Bucket == "" || c.S3.Region == "" {
			return NewValidationError("s3 archive storage requires bucket and region", nil)
		}
	case ArchiveStoreAzure:
		if c.Azure == nil || c.Azure.AccountName == "" || c.Azure.Container == "" {
			return NewValidationError("azure archive storage requires account_name and container", nil)
		}
	case ArchiveStoreGCS:
		if c.GCS == nil || c.GCS.Bucket == "" {
			return NewValidationError("gcs archive storage requires bucket", nil)
		}
	case "":
		return NewValidationError("archive storage provider is not set", nil)
	default:
		return NewValidationError(fmt.Sprintf("unsupported archive storage provider: %s", c.Provider), nil)
	}
	return nil
}

// NewArchiveStore creates the archive store selected by the configuration.
func NewArchiveStore(ctx context.Context, config ArchiveStoreConfig) (ArchiveStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	switch config.Provider {
	case ArchiveStoreLocal:
		return NewLocalArchiveStore(config.Local)
	case ArchiveStoreS3:
		return NewS3ArchiveStore(config.S3)
	case ArchiveStoreAzure:
		return NewAzureArchiveStore(config.Azure)
	case ArchiveStoreGCS:
		return NewGCSArchiveStore(ctx, config.GCS)
	default:
		return nil, NewValidationError(fmt.Sprintf("unsupported archive storage provider: %s", config.Provider), nil)
	}
}

// metadataKey is the sidecar object name for an archive blob.
func metadataKey(key string) string {
	return key + ".meta.json"
}

func marshalArchiveMetadata(meta *ArchiveMetadata) ([]byte, error) {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, NewSerializationError("failed to marshal archive metadata", err)
	}
	return data, nil
}

func unmarshalArchiveMetadata(data []byte) (*ArchiveMetadata, error) {
	var meta ArchiveMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, NewSerializationError("failed to parse archive metadata", err)
	}
	return &meta, nil
}
