package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSArchiveStore keeps archives in a Google Cloud Storage bucket.
type GCSArchiveStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSArchiveStore creates a GCS-backed archive store. Without an
// explicit credentials file the default application credentials apply.
func NewGCSArchiveStore(ctx context.Context, config *GCSArchiveConfig) (*GCSArchiveStore, error) {
	if config == nil {
		return nil, NewValidationError("gcs archive storage configuration is required", nil)
	}
	var client *storage.Client
	var err error
	if config.CredentialsPath != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(config.CredentialsPath))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, NewStorageError("failed to create GCS client", err)
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = "rental-exports/"
	} else if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &GCSArchiveStore{client: client, bucket: config.Bucket, prefix: prefix}, nil
}

// Close releases the underlying client.
func (s *GCSArchiveStore) Close() error {
	return s.client.Close()
}

func (s *GCSArchiveStore) Put(ctx context.Context, key string, blob []byte, meta *ArchiveMetadata) error {
	if err := s.writeObject(ctx, s.prefix+key, blob, "application/octet-stream"); err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload archive %q to GCS", key), err)
	}
	metaData, err := marshalArchiveMetadata(meta)
	if err != nil {
		return err
	}
	if err := s.writeObject(ctx, s.prefix+metadataKey(key), metaData, "application/json"); err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload archive metadata for %q to GCS", key), err)
	}
	return nil
}

func (s *GCSArchiveStore) writeObject(ctx context.Context, name string, data []byte, contentType string) error {
	w := s.client.Bucket(s.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (s *GCSArchiveStore) Get(ctx context.Context, key string) ([]byte, *ArchiveMetadata, error) {
	blob, err := s.readObject(ctx, s.prefix+key)
	if err != nil {
		return nil, nil, err
	}
	metaData, err := s.readObject(ctx, s.prefix+metadataKey(key))
	if err != nil {
		if IsNotFound(err) {
			return blob, nil, nil
		}
		return nil, nil, err
	}
	meta, err := unmarshalArchiveMetadata(metaData)
	if err != nil {
		return nil, nil, err
	}
	return blob, meta, nil
}

func (s *GCSArchiveStore) readObject(ctx context.Context, name string) ([]byte, error) {
	r, err := s.client.Bucket(s.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, NewNotFoundError(fmt.Sprintf("object %q not found in GCS", name), err)
		}
		return nil, NewStorageError(fmt.Sprintf("failed to open %q in GCS", name), err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to read %q from GCS", name), err)
	}
	return data, nil
}

func (s *GCSArchiveStore) List(ctx context.Context) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, NewStorageError("failed to list archives in GCS", err)
		}
		key := strings.TrimPrefix(attrs.Name, s.prefix)
		if key == "" || strings.HasSuffix(key, ".meta.json") {
			continue
		}
		entries = append(entries, ArchiveEntry{Key: key})
	}
	for i := range entries {
		metaData, err := s.readObject(ctx, s.prefix+metadataKey(entries[i].Key))
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		meta, err := unmarshalArchiveMetadata(metaData)
		if err != nil {
			return nil, err
		}
		entries[i].Metadata = meta
	}
	return entries, nil
}

func (s *GCSArchiveStore) Delete(ctx context.Context, key string) error {
	for _, name := range []string{s.prefix + key, s.prefix + metadataKey(key)} {
		err := s.client.Bucket(s.bucket).Object(name).Delete(ctx)
		if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return NewStorageError(fmt.Sprintf("failed to delete %q from GCS", name), err)
		}
	}
	return nil
}
