package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// MinioStore implements Store using a MinIO (or any S3-compatible) backend.
// Objects are private: no bucket policy is applied, clients reach them only
// through signed URLs.
type MinioStore struct {
	client *minio.Client
}

// MinioOptions configures the connection to the backend.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewMinioStore creates a MinIO client and ensures container exists.
func NewMinioStore(ctx context.Context, opts MinioOptions, container string, log *zap.SugaredLogger) (*MinioStore, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.UseSSL,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, container)
	if err != nil {
		return nil, fmt.Errorf("check container existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, container, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create container %q: %w", container, err)
		}
		log.Infow("storage: created container", "container", container)
	}

	return &MinioStore{client: client}, nil
}

// Exists stats the object. A NoSuchKey answer means it does not exist; any
// other failure is returned.
func (s *MinioStore) Exists(ctx context.Context, ref ObjectReference) (bool, error) {
	_, err := s.client.StatObject(ctx, ref.Container, ref.Key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat object %q: %w", ref, err)
}

// Put streams reader to the backend under ref. size must be the exact byte
// count (pass -1 only if the size is genuinely unknown; MinIO will buffer it).
func (s *MinioStore) Put(ctx context.Context, ref ObjectReference, reader io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, ref.Container, ref.Key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %q: %w", ref, err)
	}
	return nil
}
