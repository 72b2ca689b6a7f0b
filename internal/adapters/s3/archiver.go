// Package s3 archives exported reports in an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// Archiver implements ports.ExportArchiver.
type Archiver struct {
	bucket   string
	uploader uploader
}

// Options configures the bucket connection. Endpoint is optional and switches
// to path-style addressing for MinIO and similar stores.
type Options struct {
	Bucket   string
	Region   string
	Endpoint string
}

// New loads AWS credentials from the default chain and prepares a multipart uploader.
func New(ctx context.Context, opts Options) (*Archiver, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 archiver: bucket is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return newArchiver(opts.Bucket, manager.NewUploader(client)), nil
}

func newArchiver(bucket string, u uploader) *Archiver {
	return &Archiver{bucket: bucket, uploader: u}
}

// Put uploads body under key and returns the object location.
func (a *Archiver) Put(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	out, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", a.bucket, key, err)
	}
	if out.Location != "" {
		return out.Location, nil
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
