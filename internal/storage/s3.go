package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config addresses a bucket on S3 or a compatible server such as MinIO.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type S3Uploader struct {
	cfg    S3Config
	client *minio.Client
	logger *slog.Logger
}

func NewS3Uploader(cfg S3Config, logger *slog.Logger) (*S3Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("s3 endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("s3 credentials are required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	// Accept either a bare host or a URL.
	endpoint := cfg.Endpoint
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			cfg.UseSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &S3Uploader{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "storage", "backend", "s3", "bucket", cfg.Bucket),
	}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (u *S3Uploader) EnsureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.cfg.Bucket, minio.MakeBucketOptions{Region: u.cfg.Region}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	u.logger.Info("bucket created")
	return nil
}

func (u *S3Uploader) Upload(ctx context.Context, localPath, blobName string) (string, error) {
	if err := u.EnsureBucket(ctx); err != nil {
		return "", err
	}
	info, err := u.client.FPutObject(ctx, u.cfg.Bucket, blobName, localPath, minio.PutObjectOptions{
		ContentType: ContentTypeXLSX,
	})
	if err != nil {
		u.logger.Error("upload failed", "object", blobName, "error", err)
		return "", fmt.Errorf("upload object %s: %w", blobName, err)
	}

	objURL := u.client.EndpointURL().JoinPath(u.cfg.Bucket, blobName).String()
	u.logger.Info("report uploaded", "url", objURL, "size", info.Size)
	return objURL, nil
}
