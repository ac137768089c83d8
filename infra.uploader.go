package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// CoversPrefix is the objects key prefix of uploaded books covers.
const CoversPrefix = "covers"

// Uploader stores a file and returns the url where it can be retrieved.
type Uploader interface {
	UploadFile(ctx context.Context, file *FileUpload) (string, error)
}

var _ Uploader = (*s3Uploader)(nil)

type s3Uploader struct {
	logger *zap.Logger
	client *minio.Client
	config *StorageConfig
	ids    UIDHandler
}

// GetStorageClient provides a ready to use S3 compatible client and
// ensures the covers bucket exists.
func GetStorageClient(config *Config) (*minio.Client, error) {
	client, err := minio.New(config.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.Storage.AccessKey, config.Storage.SecretKey, ""),
		Secure: config.Storage.UseSSL,
		Region: config.Storage.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %v", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, config.Storage.Bucket)
	if err != nil {
		return client, fmt.Errorf("test connection failed: %v", err)
	}
	if !exists {
		err = client.MakeBucket(ctx, config.Storage.Bucket, minio.MakeBucketOptions{Region: config.Storage.Region})
		if err != nil {
			return client, fmt.Errorf("failed to create %s bucket: %v", config.Storage.Bucket, err)
		}
	}
	return client, nil
}

// NewS3Uploader provides an uploader backed by an S3 compatible storage.
func NewS3Uploader(logger *zap.Logger, config *StorageConfig, client *minio.Client, ids UIDHandler) Uploader {
	return &s3Uploader{
		logger: logger,
		client: client,
		config: config,
		ids:    ids,
	}
}

// UploadFile streams the file into the covers bucket under a random key.
func (su *s3Uploader) UploadFile(ctx context.Context, file *FileUpload) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("uploader: failed to open file: %w", err)
	}
	defer src.Close()

	key := ObjectKey(su.ids.Generate(CoversPrefix), file.Ext())
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := su.client.PutObject(ctx, su.config.Bucket, key, src, file.Size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"original-name": file.Name,
		},
	})
	if err != nil {
		return "", fmt.Errorf("uploader: failed to put object: %w", err)
	}
	su.logger.Debug("uploader: file stored", zap.String("key", info.Key), zap.Int64("size", info.Size))
	return ObjectURL(su.config.PublicURL, su.config.Bucket, info.Key), nil
}

// ObjectKey turns a generated `prefix:uuid` id into an object key.
func ObjectKey(id, ext string) string {
	return strings.Replace(id, ":", "/", 1) + ext
}

// ObjectURL builds the public url of an object.
func ObjectURL(publicURL, bucket, key string) string {
	return strings.TrimRight(publicURL, "/") + "/" + bucket + "/" + key
}
