package backup

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3ArchiveStore keeps archives in an Amazon S3 bucket.
type S3ArchiveStore struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3ArchiveStore creates an S3-backed archive store. With empty static
// credentials the default AWS credential chain applies.
func NewS3ArchiveStore(config *S3ArchiveConfig) (*S3ArchiveStore, error) {
	if config == nil {
		return nil, NewValidationError("s3 archive storage configuration is required", nil)
	}
	awsConfig := &aws.Config{Region: aws.String(config.Region)}
	if config.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, "")
	}
	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, NewStorageError("failed to create AWS session", err)
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = "rental-exports/"
	} else if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3ArchiveStore{client: s3.New(sess), bucket: config.Bucket, prefix: prefix}, nil
}

func (s *S3ArchiveStore) Put(ctx context.Context, key string, blob []byte, meta *ArchiveMetadata) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + key),
		Body:        bytes.NewReader(blob),
		ContentType: aws.String("application/octet-stream"),
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload archive %q to S3", key), err)
	}

	metaData, err := marshalArchiveMetadata(meta)
	if err != nil {
		return err
	}
	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.prefix + metadataKey(key)),
		Body:        bytes.NewReader(metaData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return NewStorageError(fmt.Sprintf("failed to upload archive metadata for %q to S3", key), err)
	}
	return nil
}

func (s *S3ArchiveStore) Get(ctx context.Context, key string) ([]byte, *ArchiveMetadata, error) {
	blob, err := s.getObject(ctx, s.prefix+key)
	if err != nil {
		return nil, nil, err
	}
	metaData, err := s.getObject(ctx, s.prefix+metadataKey(key))
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

func (s *S3ArchiveStore) getObject(ctx context.Context, objectKey string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == s3.ErrCodeNoSuchKey {
			return nil, NewNotFoundError(fmt.Sprintf("object %q not found in S3", objectKey), err)
		}
		return nil, NewStorageError(fmt.Sprintf("failed to download %q from S3", objectKey), err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, NewStorageError(fmt.Sprintf("failed to read %q from S3", objectKey), err)
	}
	return data, nil
}

func (s *S3ArchiveStore) List(ctx context.Context) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	err := s.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := strings.TrimPrefix(aws.StringValue(obj.Key), s.prefix)
			if key == "" || strings.HasSuffix(key, ".meta.json") {
				continue
			}
			entries = append(entries, ArchiveEntry{Key: key})
		}
		return true
	})
	if err != nil {
		return nil, NewStorageError("failed to list archives in S3", err)
	}
	for i := range entries {
		metaData, err := s.getObject(ctx, s.prefix+metadataKey(entries[i].Key))
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

func (s *S3ArchiveStore) Delete(ctx context.Context, key string) error {
	for _, objectKey := range []string{s.prefix + key, s.prefix + metadataKey(key)} {
		_, err := s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(objectKey),
		})
		if err != nil {
			return NewStorageError(fmt.Sprintf("failed to delete %q from S3", objectKey), err)
		}
	}
	return nil
}
