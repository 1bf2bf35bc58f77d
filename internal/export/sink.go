package export

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Sink persists a generated report and returns where it can be found.
type Sink interface {
	Name() string
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// Result is the outcome of storing a report in one sink.
type Result struct {
	Sink     string
	Location string
	Err      error
}

// PutAll stores data in every sink. A failing sink does not stop the others.
func PutAll(ctx context.Context, sinks []Sink, name string, data []byte) []Result {
	results := make([]Result, 0, len(sinks))
	for _, s := range sinks {
		location, err := s.Put(ctx, name, data)
		if err != nil {
			log.Printf("Warning: failed to store %s in %s: %v", name, s.Name(), err)
		}
		results = append(results, Result{Sink: s.Name(), Location: location, Err: err})
	}
	return results
}

// DirSink writes reports into a local directory.
type DirSink struct {
	Dir string
}

func (d DirSink) Name() string { return "dir" }

// Put writes data to Dir/name, creating Dir if needed.
func (d DirSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}
	p := filepath.Join(d.Dir, filepath.Base(name))
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return p, nil
}

// MinIOSink uploads reports to an S3-compatible bucket and returns a
// presigned download URL.
type MinIOSink struct {
	client *minio.Client
	bucket string
	prefix string
	urlTTL time.Duration
}

// MinIOOptions configures a MinIOSink.
type MinIOOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	Prefix    string
	UseSSL    bool
	URLTTL    time.Duration
}

// NewMinIOSink creates a MinIO client for opts.
func NewMinIOSink(opts MinIOOptions) (*MinIOSink, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ttl := opts.URLTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MinIOSink{client: client, bucket: opts.Bucket, prefix: opts.Prefix, urlTTL: ttl}, nil
}

func (s *MinIOSink) Name() string { return "minio" }

// EnsureBucket creates the bucket if it does not exist.
func (s *MinIOSink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads data as prefix/name and returns a presigned GET URL for it.
func (s *MinIOSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	objectPath := path.Join(s.prefix, name)
	_, err := s.client.PutObject(ctx, s.bucket, objectPath, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: ContentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	reqParams := make(url.Values)
	reqParams.Set("response-content-disposition", fmt.Sprintf("attachment; filename=\"%s\"", path.Base(objectPath)))
	presignedURL, err := s.client.PresignedGetObject(ctx, s.bucket, objectPath, s.urlTTL, reqParams)
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned url: %w", err)
	}
	return presignedURL.String(), nil
}
