package history

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// Storage backends.
const (
	BackendFS = "fs"
	BackendS3 = "s3"
)

// Config selects where history is kept.
type Config struct {
	// Backend is BackendFS or BackendS3. Empty disables history.
	Backend string
	// Dataset overrides DefaultDataset.
	Dataset string
	// Path is the root directory (fs) or "bucket/prefix" (s3).
	Path string
	S3   S3Config
}

// Enabled reports whether a backend is configured.
func (c Config) Enabled() bool {
	return c.Backend != ""
}

// Validate checks the backend and its required settings.
func (c Config) Validate() error {
	switch c.Backend {
	case "":
		return nil
	case BackendFS:
		if c.Path == "" {
			return errors.New("history path is required for the fs backend")
		}
		return nil
	case BackendS3:
		bucket, _ := ParseS3Path(c.Path)
		if bucket == "" {
			return errors.New("S3 bucket is required")
		}
		return nil
	default:
		return fmt.Errorf("invalid history backend %q (valid: %s, %s)", c.Backend, BackendFS, BackendS3)
	}
}

// S3Config holds S3 client settings.
type S3Config struct {
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(path string) (bucket, prefix string) {
	parts := strings.SplitN(strings.TrimPrefix(path, "s3://"), "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// Open returns the dataset cfg describes.
func Open(ctx context.Context, cfg Config) (lode.Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case BackendFS:
		return NewDataset(cfg.Dataset, lode.NewFSFactory(cfg.Path))
	case BackendS3:
		factory, err := newS3Factory(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return NewDataset(cfg.Dataset, factory)
	default:
		return nil, errors.New("history is not configured")
	}
}

// newS3Factory builds an S3 store factory.
// Uses AWS SDK default credential chain (env vars, shared config, IAM role).
func newS3Factory(ctx context.Context, cfg Config) (lode.StoreFactory, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.S3.Region != "" {
		opts = append(opts, config.WithRegion(cfg.S3.Region))
	}
	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, WrapInitError(fmt.Errorf("failed to load AWS config: %w", err), cfg.Path)
	}

	var s3Opts []func(*s3.Options)
	if cfg.S3.Endpoint != "" {
		endpoint := cfg.S3.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.S3.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	client := s3.NewFromConfig(awsConfig, s3Opts...)

	bucket, prefix := ParseS3Path(cfg.Path)
	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{
			Bucket: bucket,
			Prefix: prefix,
		})
	}, nil
}
