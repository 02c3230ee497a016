// Package artifacts publishes run outputs: failure-evidence bundles to S3
// and coverage reports to a collection service.
package artifacts

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/izavyalov-dev/snapshard/bundle"
)

// S3Config configures the S3 artifact publisher.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// S3Publisher uploads artifact bundles to AWS S3.
type S3Publisher struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Publisher loads AWS config and prepares a publisher.
func NewS3Publisher(ctx context.Context, cfg S3Config) (*S3Publisher, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	loadOpts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	return &S3Publisher{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Upload writes every blob of the bundle under name/ and returns the s3://
// URL of the artifact root. Retention is recorded via object tagging so a
// bucket lifecycle rule can expire old evidence.
func (p *S3Publisher) Upload(ctx context.Context, name string, b *bundle.SnapshotBundle, retentionDays int) (string, error) {
	tagging := fmt.Sprintf("retention-days=%d", retentionDays)
	for _, blobPath := range b.Paths() {
		data, _ := b.Get(blobPath)
		key := p.objectKey(name, blobPath)
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:  &p.bucket,
			Key:     &key,
			Body:    bytes.NewReader(data),
			Tagging: &tagging,
		})
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", key, err)
		}
	}

	return fmt.Sprintf("s3://%s/%s", p.bucket, p.objectKey(name)), nil
}

func (p *S3Publisher) objectKey(parts ...string) string {
	if p.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{p.prefix}, parts...)...)
}
