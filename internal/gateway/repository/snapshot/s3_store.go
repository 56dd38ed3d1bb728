package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Store keeps snapshots under the taxonomy/ prefix of one bucket. The
// bucket is created on first use.
type S3Store struct {
	client *minio.Client
	bucket string
	region string

	bucketOnce sync.Once
	bucketErr  error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"endpoint", cfg.Endpoint},
		{"bucket", cfg.Bucket},
		{"access key", cfg.AccessKey},
		{"secret key", cfg.SecretKey},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("snapshot s3 config is missing %s", strings.Join(missing, ", "))
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Store{client: client, bucket: strings.TrimSpace(cfg.Bucket), region: region}, nil
}

func (s *S3Store) ready(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.bucketOnce.Do(func() {
		ok, err := s.client.BucketExists(ctx, s.bucket)
		switch {
		case err != nil:
			s.bucketErr = err
		case !ok:
			s.bucketErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		}
	})
	if s.bucketErr != nil {
		return fmt.Errorf("snapshot bucket %s: %w", s.bucket, s.bucketErr)
	}
	return nil
}

func notFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey"
}

func (s *S3Store) Put(ctx context.Context, name string, content []byte) error {
	name, err := validName(name)
	if err != nil {
		return err
	}
	if err := s.ready(ctx); err != nil {
		return err
	}
	_, err = s.client.PutObject(ctx, s.bucket, keyPrefix+name, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put snapshot %s: %w", name, err)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, name string) ([]byte, error) {
	name, err := validName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	// GetObject is lazy; Stat surfaces a missing key before reading.
	obj, err := s.client.GetObject(ctx, s.bucket, keyPrefix+name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", name, err)
	}
	defer obj.Close()
	if _, err := obj.Stat(); err != nil {
		if notFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat snapshot %s: %w", name, err)
	}
	raw, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	return raw, nil
}

func (s *S3Store) List(ctx context.Context) ([]Info, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	var infos []Info
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: keyPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list snapshots: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, keyPrefix)
		if name == "" {
			continue
		}
		at, ok := SavedAt(name)
		if !ok {
			at = obj.LastModified
		}
		infos = append(infos, Info{Name: name, Size: obj.Size, SavedAt: at})
	}
	newestFirst(infos)
	return infos, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) error {
	name, err := validName(name)
	if err != nil {
		return err
	}
	if err := s.ready(ctx); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, keyPrefix+name, minio.RemoveObjectOptions{}); err != nil {
		if notFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete snapshot %s: %w", name, err)
	}
	return nil
}

var _ Store = (*S3Store)(nil)
var _ Store = (*MemoryStore)(nil)
