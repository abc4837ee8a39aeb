package store

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Store uploads photos to an S3-compatible bucket under flat
// "{uid}-{index}.jpg" object names.
type S3Store struct {
	client *minio.Client
	bucket string
}

// S3Options configures the object-store client.
type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// OpenS3 connects to the object store and verifies the bucket exists.
func OpenS3(ctx context.Context, opts S3Options) (*S3Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}

	ok, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", opts.Bucket, err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %q does not exist", opts.Bucket)
	}

	return &S3Store{client: client, bucket: opts.Bucket}, nil
}

// Exists probes the bucket for the given key.
func (s *S3Store) Exists(ctx context.Context, key ImageKey) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key.Object(), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NotFound" {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key.Object(), err)
	}
	return true, nil
}

// Put uploads a staged file under the key's object name.
func (s *S3Store) Put(ctx context.Context, key ImageKey, path string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, key.Object(), path, minio.PutObjectOptions{
		ContentType: "image/jpeg",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key.Object(), err)
	}
	return nil
}
