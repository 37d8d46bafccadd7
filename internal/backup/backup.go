// Package backup implements the store snapshot upload of
// SPEC_FULL.md §4.13, run from Environment.Close so a crash-consistent
// copy of the database file survives process restarts on ephemeral
// storage. Enriched from the pack's aws-sdk-go-v2 S3 dependency; the
// default uploader is a no-op.
package backup

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploader ships a local file to durable storage on shutdown.
type Uploader interface {
	Upload(ctx context.Context, localPath string) error
}

// NoopUploader skips the upload entirely.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, string) error { return nil }

// S3Uploader uploads the store file to a fixed bucket/key.
type S3Uploader struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Uploader returns an Uploader targeting bucket/key.
func NewS3Uploader(client *s3.Client, bucket, key string) *S3Uploader {
	return &S3Uploader{client: client, bucket: bucket, key: key}
}

func (u *S3Uploader) Upload(ctx context.Context, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("backup: open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(u.key),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("backup: put %s/%s: %w", u.bucket, u.key, err)
	}
	return nil
}
