package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/LavishGent/holdfast/internal/config"
	"github.com/LavishGent/holdfast/internal/types"
)

// expiresAtMetadata holds the absolute expiry in unix nanoseconds.
const expiresAtMetadata = "holdfast-expires-at"

// S3API is the subset of the S3 client the durable level uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// NewS3Client builds a client from the default AWS credential chain. A
// custom endpoint points it at an S3-compatible store such as MinIO.
func NewS3Client(ctx context.Context, cfg config.DurableConfig) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, awsconfig.WithRetryMaxAttempts(cfg.MaxRetries))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}
	}), nil
}

// S3Cache is the slowest, most durable level. Each key is one object under
// prefix; expiry travels in object metadata and is enforced on read.
type S3Cache struct {
	client S3API
	now    func() time.Time
	logger *slog.Logger
	bucket string
	prefix string
}

func NewS3Cache(client S3API, cfg config.DurableConfig, logger *slog.Logger, opts ...LevelOption) (*S3Cache, error) {
	if client == nil {
		return nil, errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	o := applyLevelOptions(opts)

	return &S3Cache{
		client: client,
		now:    o.now,
		logger: logger.With("component", "s3-cache"),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (c *S3Cache) Name() string {
	return "durable"
}

func (c *S3Cache) objectKey(key string) string {
	return c.prefix + key
}

func (c *S3Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, _, err := c.GetWithTTL(ctx, key)
	return data, err
}

// GetWithTTL is Get that also reports the remaining TTL from the object's
// expiry metadata.
func (c *S3Cache) GetWithTTL(ctx context.Context, key string) ([]byte, time.Duration, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, types.ErrCacheMiss
		}
		return nil, 0, types.NewCacheBackendError("get", key, c.Name(), err)
	}
	defer out.Body.Close()

	remaining, expired := c.remaining(out.Metadata)
	if expired {
		c.logger.Debug("Dropping expired object", "key", key)
		if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(c.bucket),
			Key:    aws.String(c.objectKey(key)),
		}); err != nil {
			c.logger.Debug("Failed to delete expired object", "key", key, "error", err)
		}
		return nil, 0, types.ErrCacheMiss
	}

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, 0, types.NewCacheBackendError("get", key, c.Name(), err)
	}
	return data, remaining, nil
}

func (c *S3Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(c.objectKey(key)),
		Body:          bytes.NewReader(value),
		ContentLength: aws.Int64(int64(len(value))),
		ContentType:   aws.String("application/octet-stream"),
	}
	if ttl > 0 {
		input.Metadata = map[string]string{
			expiresAtMetadata: strconv.FormatInt(c.now().Add(ttl).UnixNano(), 10),
		}
	}

	if _, err := c.client.PutObject(ctx, input); err != nil {
		return types.NewCacheBackendError("set", key, c.Name(), err)
	}
	return nil
}

// Delete reports whether the object existed. S3 deletes are idempotent, so
// existence is checked with HEAD first.
func (c *S3Cache) Delete(ctx context.Context, key string) (bool, error) {
	objectKey := c.objectKey(key)

	head, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, types.NewCacheBackendError("delete", key, c.Name(), err)
	}

	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return false, types.NewCacheBackendError("delete", key, c.Name(), err)
	}

	return !c.expired(head.Metadata), nil
}

// DeleteByPattern lists objects under the pattern's literal prefix and
// deletes those whose key matches.
func (c *S3Cache) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(c.prefix + literalPrefix(pattern)),
	})

	removed := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return removed, types.NewCacheBackendError("delete_pattern", pattern, c.Name(), err)
		}

		for _, obj := range page.Contents {
			objectKey := aws.ToString(obj.Key)
			key := strings.TrimPrefix(objectKey, c.prefix)
			if !MatchPattern(pattern, key) {
				continue
			}
			if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
				Bucket: aws.String(c.bucket),
				Key:    aws.String(objectKey),
			}); err != nil {
				return removed, types.NewCacheBackendError("delete_pattern", pattern, c.Name(), err)
			}
			removed++
		}
	}

	c.logger.Debug("Deleted objects by pattern", "pattern", pattern, "deleted", removed)
	return removed, nil
}

func (c *S3Cache) expired(metadata map[string]string) bool {
	_, expired := c.remaining(metadata)
	return expired
}

// remaining reads the expiry metadata. Objects without it, or with a value
// that does not parse, never expire.
func (c *S3Cache) remaining(metadata map[string]string) (time.Duration, bool) {
	raw, ok := metadata[expiresAtMetadata]
	if !ok {
		return 0, false
	}
	expiresAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	left := time.Duration(expiresAt - c.now().UnixNano())
	if left <= 0 {
		return 0, true
	}
	return left, false
}

func isNotFound(err error) bool {
	var noSuchKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

var (
	_ types.CacheBackend   = (*S3Cache)(nil)
	_ types.PatternDeleter = (*S3Cache)(nil)
	_ types.TTLGetter      = (*S3Cache)(nil)
)
