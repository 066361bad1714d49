package staging

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioConfig holds the S3-compatible endpoint used for staging.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		secure = (u.Scheme == "https")
		return u.Host, secure, nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// NewMinioClient connects to the endpoint and verifies the bucket exists.
func NewMinioClient(ctx context.Context, cfg MinioConfig) (*minio.Client, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("minio bucket does not exist: %s", cfg.Bucket)
	}
	return client, nil
}

// MinioStore stages artifacts as objects under "uploads/" and "formatted/".
type MinioStore struct {
	client *minio.Client
	bucket string
}

func NewMinioStore(client *minio.Client, bucket string) *MinioStore {
	return &MinioStore{client: client, bucket: bucket}
}

func objectKey(area Area, name string) (string, error) {
	if area != AreaUploads && area != AreaFormatted {
		return "", fmt.Errorf("staging: unknown area %q", area)
	}
	if err := validName(name); err != nil {
		return "", err
	}
	return string(area) + "/" + name, nil
}

func (s *MinioStore) Put(ctx context.Context, area Area, name string, data []byte) error {
	key, err := objectKey(area, name)
	if err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "text/plain; charset=utf-8"})
	return err
}

func (s *MinioStore) Delete(ctx context.Context, area Area, name string) error {
	key, err := objectKey(area, name)
	if err != nil {
		return err
	}
	// RemoveObject succeeds for keys that do not exist.
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *MinioStore) Sweep(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0
	for _, area := range Areas {
		objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
			Prefix:    string(area) + "/",
			Recursive: true,
		})
		for obj := range objects {
			if obj.Err != nil {
				return removed, obj.Err
			}
			if !obj.LastModified.Before(olderThan) {
				continue
			}
			if err := s.client.RemoveObject(ctx, s.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}

func (s *MinioStore) Check(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket does not exist: %s", s.bucket)
	}
	return nil
}

func (s *MinioStore) Describe() map[string]string {
	return map[string]string{
		"backend":      "minio",
		"endpoint":     s.client.EndpointURL().Host,
		"bucket":       s.bucket,
		"uploadDir":    s.bucket + "/" + string(AreaUploads),
		"formattedDir": s.bucket + "/" + string(AreaFormatted),
	}
}
