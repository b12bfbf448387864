package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinIOConfig addresses the bucket captured images are archived to.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	Region          string

	ConnectTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
}

// ImageStore uploads captured images to MinIO.
type ImageStore struct {
	client *minio.Client
	bucket string
	config MinIOConfig
	logger *zap.Logger
}

// NewImageStore connects and creates the bucket when it is missing.
func NewImageStore(config MinIOConfig) (*ImageStore, error) {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = 30 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	store := &ImageStore{
		client: client,
		bucket: config.Bucket,
		config: config,
		logger: zap.L().Named("image-store"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		store.logger.Info("Created MinIO bucket", zap.String("bucket", config.Bucket))
	}

	return store, nil
}

// ImageKey is the object key of a camera's capture within a run.
func ImageKey(runID string, camera int, filePath string) string {
	return path.Join("captures", runID, fmt.Sprintf("camera-%02d%s", camera, strings.ToLower(filepath.Ext(filePath))))
}

// PutImage uploads the file at filePath and returns its object key.
func (s *ImageStore) PutImage(ctx context.Context, runID string, camera int, filePath string) (string, error) {
	key := ImageKey(runID, camera, filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return "", &ArchiveError{Op: "put_image", Key: key, Err: err}
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return "", &ArchiveError{Op: "put_image", Key: key, Err: err}
	}

	opts := minio.PutObjectOptions{
		ContentType: detectContentType(filePath),
		UserMetadata: map[string]string{
			"run-id": runID,
			"camera": fmt.Sprint(camera),
		},
	}

	ebo := backoff.NewExponentialBackOff()
	if s.config.RetryBackoff > 0 {
		ebo.InitialInterval = s.config.RetryBackoff
	}
	ebo.Reset()
	var b backoff.BackOff = ebo
	if s.config.MaxRetries > 0 {
		b = backoff.WithMaxRetries(ebo, uint64(s.config.MaxRetries))
	}

	attempt := 0
	op := func() error {
		attempt++
		if attempt > 1 {
			if _, err := file.Seek(0, io.SeekStart); err != nil {
				return backoff.Permanent(fmt.Errorf("seek reset failed: %w", err))
			}
		}

		info, err := s.client.PutObject(ctx, s.bucket, key, file, stat.Size(), opts)
		if err != nil {
			if permanentStatus(objectStatus(err)) {
				return backoff.Permanent(err)
			}
			return err
		}

		s.logger.Debug("Image uploaded",
			zap.String("key", key),
			zap.Int64("size", info.Size),
			zap.Int("attempt", attempt))
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		return "", &ArchiveError{Op: "put_image", Key: key, Err: err, StatusCode: objectStatus(err)}
	}
	return key, nil
}

// HealthCheck verifies the bucket is reachable.
func (s *ImageStore) HealthCheck(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucket); err != nil {
		return &ArchiveError{Op: "health_check", Err: err, StatusCode: objectStatus(err)}
	}
	return nil
}

func detectContentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".bmp":
		return "image/bmp"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
