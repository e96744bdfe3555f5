package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LocalArchiveStore keeps archives in a directory on the local filesystem.
// The blob and its metadata sidecar live side by side under the base path.
type LocalArchiveStore struct {
	basePath string
}

// NewLocalArchiveStore creates a local archive store, creating the base
// directory if needed.
func NewLocalArchiveStore(config *LocalArchiveConfig) (*LocalArchiveStore, error) {
	if config == nil || config.BasePath == "" {
		return nil, NewValidationError("local archive storage requires base_path", nil)
	}
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to create archive directory %s", config.BasePath), err)
	}
	return &LocalArchiveStore{basePath: config.BasePath}, nil
}

func (s *LocalArchiveStore) path(key string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(key))
}

func (s *LocalArchiveStore) Put(ctx context.Context, key string, blob []byte, meta *ArchiveMetadata) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return NewStorageError(fmt.Sprintf("failed to create directory for %s", path), err)
	}
	if err := os.WriteFile(path, blob, 0644); err != nil {
		return NewStorageError(fmt.Sprintf("failed to write archive %s", path), err)
	}
	metaData, err := marshalArchiveMetadata(meta)
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path(metadataKey(key)), metaData, 0644); err != nil {
		return NewStorageError(fmt.Sprintf("failed to write archive metadata for %s", key), err)
	}
	return nil
}

func (s *LocalArchiveStore) Get(ctx context.Context, key string) ([]byte, *ArchiveMetadata, error) {
	blob, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, NewNotFoundError(fmt.Sprintf("archive %q not found", key), err)
		}
		return nil, nil, NewStorageError(fmt.Sprintf("failed to read archive %s", key), err)
	}
	meta, err := s.readMetadata(key)
	if err != nil {
		return nil, nil, err
	}
	return blob, meta, nil
}

// readMetadata tolerates a missing sidecar: archives stored by other tools
// are still retrievable, just unattested.
func (s *LocalArchiveStore) readMetadata(key string) (*ArchiveMetadata, error) {
	data, err := os.ReadFile(s.path(metadataKey(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, NewStorageError(fmt.Sprintf("failed to read archive metadata for %s", key), err)
	}
	return unmarshalArchiveMetadata(data)
}

func (s *LocalArchiveStore) List(ctx context.Context) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	err := filepath.WalkDir(s.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(d.Name(), ".meta.json") {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		meta, err := s.readMetadata(key)
		if err != nil {
			return err
		}
		entries = append(entries, ArchiveEntry{Key: key, Metadata: meta})
		return nil
	})
	if err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to list archives in %s", s.basePath), err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

func (s *LocalArchiveStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil {
		if os.IsNotExist(err) {
			return NewNotFoundError(fmt.Sprintf("archive %q not found", key), err)
		}
		return NewStorageError(fmt.Sprintf("failed to delete archive %s", key), err)
	}
	if err := os.Remove(s.path(metadataKey(key))); err != nil && !os.IsNotExist(err) {
		return NewStorageError(fmt.Sprintf("failed to delete archive metadata for %s", key), err)
	}
	return nil
}
