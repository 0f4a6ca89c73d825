package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig points at an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	// LinkTTL bounds the lifetime of presigned links.
	LinkTTL time.Duration
}

// MinioUploader puts artifacts in a bucket and hands out presigned links.
type MinioUploader struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
}

func NewMinioUploader(cfg MinioConfig) (*MinioUploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("export: minio endpoint and bucket are required")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("export: minio client: %w", err)
	}
	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MinioUploader{client: client, bucket: cfg.Bucket, ttl: ttl}, nil
}

func (u *MinioUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := u.client.PutObject(ctx, u.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("export: upload %s: %w", key, err)
	}
	link, err := u.client.PresignedGetObject(ctx, u.bucket, key, u.ttl, nil)
	if err != nil {
		return "", fmt.Errorf("export: presign %s: %w", key, err)
	}
	return link.String(), nil
}
