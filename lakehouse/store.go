package lakehouse

import (
	"context"
	"io"
	"net/url"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"semasync/config"
	"semasync/errs"
)

const storageService = "lakehouse storage"

// ObjectStore is the slice of object-store behavior the commit-log reader
// needs. MinioStore is the real implementation; tests use an in-memory one.
type ObjectStore interface {
	ListPrefix(ctx context.Context, prefix string, recursive bool) ([]string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// MinioStore reads from an S3-compatible endpoint, one bucket per store.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the configured lake endpoint.
func NewMinioStore(cfg *config.Config) (*MinioStore, error) {
	endpoint := cfg.LakeEndpoint
	useSSL := cfg.LakeUseSSL
	if u, err := url.Parse(cfg.LakeEndpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.LakeAccessKey, cfg.LakeSecretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, &errs.ConnectionError{Service: storageService, Err: err}
	}
	return &MinioStore{client: client, bucket: cfg.LakeBucket}, nil
}

// Ping verifies the bucket is reachable. Used by the validate command.
func (s *MinioStore) Ping(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return &errs.ConnectionError{Service: storageService, Err: err}
	}
	if !exists {
		return &errs.ResourceNotFoundError{ResourceType: "bucket", ResourceID: s.bucket}
	}
	return nil
}

func (s *MinioStore) ListPrefix(ctx context.Context, prefix string, recursive bool) ([]string, error) {
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: recursive,
	}) {
		if obj.Err != nil {
			return nil, &errs.ConnectionError{Service: storageService, Err: obj.Err}
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *MinioStore) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &errs.ConnectionError{Service: storageService, Err: err}
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if resp, ok := err.(minio.ErrorResponse); ok && resp.Code == "NoSuchKey" {
			return nil, &errs.ResourceNotFoundError{ResourceType: "object", ResourceID: key}
		}
		return nil, &errs.ConnectionError{Service: storageService, Err: err}
	}
	return data, nil
}
