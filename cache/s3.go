package cache

import (
	"bytes"
	"context"
	"errors"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/justapithecus/bale/log"
	"github.com/justapithecus/bale/types"
)

// S3Config holds configuration for the shared S3 cache backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// S3Cache is a shared, remote cache backend. Entries use the same msgpack
// record as the filesystem backend; stamps are still checked against the
// local file, so a stale remote entry is simply a miss.
type S3Cache struct {
	client      *s3.Client
	bucket      string
	prefix      string
	fingerprint string
	logger      *log.Logger
}

// NewS3 creates an S3-backed cache using the AWS default credential chain.
func NewS3(ctx context.Context, cfg S3Config, opts *types.Options, logger *log.Logger) (*S3Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3Cache{
		client:      s3.NewFromConfig(awsCfg, s3Opts...),
		bucket:      cfg.Bucket,
		prefix:      cfg.Prefix,
		fingerprint: opts.Fingerprint(),
		logger:      logger,
	}, nil
}

func (c *S3Cache) objectKey(path string) string {
	k := key(path)
	if c.prefix != "" {
		return c.prefix + "/" + k
	}
	return k
}

// Read implements Cache.
func (c *S3Cache) Read(path string) *types.ProcessedResult {
	objKey := c.objectKey(path)
	out, err := c.client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: &c.bucket,
		Key:    &objKey,
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if !errors.As(err, &noSuchKey) {
			c.logger.Warn("remote cache read failed", map[string]any{"path": path, "error": err.Error()})
		}
		return nil
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		c.logger.Warn("remote cache read failed", map[string]any{"path": path, "error": err.Error()})
		return nil
	}

	var e entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		c.logger.Warn("discarding undecodable remote cache entry", map[string]any{"path": path})
		c.Invalidate(path)
		return nil
	}

	mtime, size, err := stamp(path)
	if err != nil {
		return nil
	}
	if e.Version != types.Version || e.Mtime != mtime || e.Size != size || e.Fingerprint != c.fingerprint {
		return nil
	}
	return e.Result
}

// Write implements Cache.
func (c *S3Cache) Write(path string, result *types.ProcessedResult) {
	mtime, size, err := stamp(path)
	if err != nil {
		return
	}
	data, err := msgpack.Marshal(entry{
		Version:     types.Version,
		Mtime:       mtime,
		Size:        size,
		Fingerprint: c.fingerprint,
		Result:      result,
	})
	if err != nil {
		c.logger.Warn("remote cache encode failed", map[string]any{"path": path, "error": err.Error()})
		return
	}

	objKey := c.objectKey(path)
	_, err = c.client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: &c.bucket,
		Key:    &objKey,
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		c.logger.Warn("remote cache write failed", map[string]any{"path": path, "error": err.Error()})
	}
}

// Invalidate implements Cache.
func (c *S3Cache) Invalidate(path string) {
	objKey := c.objectKey(path)
	_, err := c.client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: &c.bucket,
		Key:    &objKey,
	})
	if err != nil {
		c.logger.Warn("remote cache invalidate failed", map[string]any{"path": path, "error": err.Error()})
	}
}

var _ Cache = (*S3Cache)(nil)
