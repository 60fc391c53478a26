package minio

import (
	"context"
	"fmt"
	"io"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/toonreel/toonreel-render-service/internal/domain/entity"
)

// Storage keeps all artifacts in one bucket, addressed by hierarchical keys
// (uploads/..., temp/..., outputs/...).
type Storage struct {
	client *miniogo.Client
	bucket string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Storage{client: client, bucket: cfg.Bucket}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *Storage) Download(ctx context.Context, objectKey string, destPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, objectKey, destPath, miniogo.GetObjectOptions{}); err != nil {
		return &entity.StorageError{Op: "get", Key: objectKey, Err: err}
	}
	return nil
}

func (s *Storage) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectKey, reader, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return &entity.StorageError{Op: "put", Key: objectKey, Err: err}
	}
	return nil
}

func (s *Storage) Delete(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, miniogo.RemoveObjectOptions{}); err != nil {
		return &entity.StorageError{Op: "delete", Key: objectKey, Err: err}
	}
	return nil
}
