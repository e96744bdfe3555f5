package backup

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureArchiveStore keeps archives in an Azure Blob Storage container.
type AzureArchiveStore struct {
	container azblob.ContainerURL
	prefix    string
}

// NewAzureArchiveStore creates an Azure-backed archive store using shared
// key credentials.
func NewAzureArchiveStore(config *AzureArchiveConfig) (*AzureArchiveStore, error) {
	if config == nil {
		return nil, NewValidationError("azure archive storage configuration is required", nil)
	}
	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, NewStorageError("failed to create Azure credentials", err)
	}
	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})
	endpoint, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, NewStorageError("failed to build Azure service URL", err)
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = "rental-exports/"
	} else if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	serviceURL := azblob.NewServiceURL(*endpoint, pipeline)
	return &AzureArchiveStore{
		container: serviceURL.NewContainerURL(config.Container),
		prefix:    prefix,
	}, nil
}

func (s *AzureArchiveStore) Put(ctx context.Context, key string, blob []byte, meta *ArchiveMetadata) error {
	blobURL := s.container.NewBlockBlobURL(s.prefix + key)
	_, err := azblob.UploadBufferToBlockBlob(ctx, blob, blobURL, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "application/octet-stream"},
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload archive %q to Azure", key), err)
	}

	metaData, err := marshalArchiveMetadata(meta)
	if err != nil {
		return err
	}
	metaURL := s.container.NewBlockBlobURL(s.prefix + metadataKey(key))
	_, err = azblob.UploadBufferToBlockBlob(ctx, metaData, metaURL, azblob.UploadToBlockBlobOptions{
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "application/json"},
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload archive metadata for %q to Azure", key), err)
	}
	return nil
}

func (s *AzureArchiveStore) Get(ctx context.Context, key string) ([]byte, *ArchiveMetadata, error) {
	blob, err := s.download(ctx, s.prefix+key)
	if err != nil {
		return nil, nil, err
	}
	metaData, err := s.download(ctx, s.prefix+metadataKey(key))
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

func (s *AzureArchiveStore) download(ctx context.Context, blobName string) ([]byte, error) {
	blobURL := s.container.NewBlockBlobURL(blobName)
	resp, err := blobURL.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if stgErr, ok := err.(azblob.StorageError); ok && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return nil, NewNotFoundError(fmt.Sprintf("blob %q not found in Azure", blobName), err)
		}
		return nil, NewStorageError(fmt.Sprintf("failed to download %q from Azure", blobName), err)
	}
	var buf bytes.Buffer
	reader := resp.Body(azblob.RetryReaderOptions{})
	defer reader.Close()
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to read %q from Azure", blobName), err)
	}
	return buf.Bytes(), nil
}

func (s *AzureArchiveStore) List(ctx context.Context) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := s.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: s.prefix,
		})
		if err != nil {
			return nil, NewStorageError("failed to list archives in Azure", err)
		}
		marker = resp.NextMarker
		for _, item := range resp.Segment.BlobItems {
			key := strings.TrimPrefix(item.Name, s.prefix)
			if key == "" || strings.HasSuffix(key, ".meta.json") {
				continue
			}
			entries = append(entries, ArchiveEntry{Key: key})
		}
	}
	for i := range entries {
		metaData, err := s.download(ctx, s.prefix+metadataKey(entries[i].Key))
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

func (s *AzureArchiveStore) Delete(ctx context.Context, key string) error {
	for _, blobName := range []string{s.prefix + key, s.prefix + metadataKey(key)} {
		blobURL := s.container.NewBlockBlobURL(blobName)
		_, err := blobURL.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{})
		if err != nil {
			if stgErr, ok := err.(azblob.StorageError); ok && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
				continue
			}
			return NewStorageError(fmt.Sprintf("failed to delete %q from Azure", blobName), err)
		}
	}
	return nil
}
