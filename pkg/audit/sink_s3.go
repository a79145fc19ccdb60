package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds S3-compatible storage configuration for the archive sink.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Sink archives audit events to an S3-compatible object store, one object
// per event under audit/<id>.json.
type S3Sink struct {
	mc     *minio.Client
	bucket string
}

// NewS3Sink connects to the object store and ensures the bucket exists.
func NewS3Sink(ctx context.Context, cfg S3Config) (*S3Sink, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("audit: s3 connect: %w", err)
	}

	exists, err := mc.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("audit: s3 check bucket: %w", err)
	}
	if !exists {
		if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("audit: s3 create bucket: %w", err)
		}
	}

	return &S3Sink{mc: mc, bucket: cfg.Bucket}, nil
}

func (s *S3Sink) Name() string { return "s3" }

func (s *S3Sink) Deliver(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("audit: marshal event: %w", err)
	}

	key := "audit/" + ev.ID + ".json"
	_, err = s.mc.PutObject(ctx, s.bucket, key,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("audit: s3 put %s: %w", key, err)
	}
	return nil
}

func (s *S3Sink) Close(context.Context) error { return nil }
