package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/izavyalov-dev/snapshard/bundle"
)

// S3Config configures the S3-backed blob cache.
type S3Config struct {
	Bucket string
	Prefix string
	Region string
}

// S3BlobCache stores each bundle blob as an object under
// {prefix}/{cacheKey}/{blobPath}.
type S3BlobCache struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3BlobCache loads AWS config and prepares the cache client.
func NewS3BlobCache(ctx context.Context, cfg S3Config) (*S3BlobCache, error) {
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

	return &S3BlobCache{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Restore lists every object under the key prefix and downloads it into a
// bundle. An empty listing is a cache miss.
func (c *S3BlobCache) Restore(ctx context.Context, key bundle.CacheKey) (*bundle.SnapshotBundle, error) {
	keyPrefix := c.objectKey(key.String()) + "/"

	restored := bundle.New()
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: &c.bucket,
		Prefix: &keyPrefix,
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list cache entry %s: %w", key, err)
		}
		for _, object := range page.Contents {
			if object.Key == nil {
				continue
			}
			data, err := c.download(ctx, *object.Key)
			if err != nil {
				return nil, fmt.Errorf("download %s: %w", *object.Key, err)
			}
			restored.Add(strings.TrimPrefix(*object.Key, keyPrefix), data)
		}
	}

	if restored.Empty() {
		return nil, ErrCacheMiss
	}
	return restored, nil
}

// Save uploads every blob of the bundle under the key prefix.
func (c *S3BlobCache) Save(ctx context.Context, key bundle.CacheKey, b *bundle.SnapshotBundle) error {
	for _, blobPath := range b.Paths() {
		data, _ := b.Get(blobPath)
		objectKey := c.objectKey(key.String(), blobPath)
		_, err := c.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: &c.bucket,
			Key:    &objectKey,
			Body:   bytes.NewReader(data),
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", objectKey, err)
		}
	}
	return nil
}

func (c *S3BlobCache) download(ctx context.Context, objectKey string) ([]byte, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &objectKey,
	})
	if err != nil {
		return nil, err
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (c *S3BlobCache) objectKey(parts ...string) string {
	if c.prefix == "" {
		return path.Join(parts...)
	}
	return path.Join(append([]string{c.prefix}, parts...)...)
}
