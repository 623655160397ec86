package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// BackendType represents the type of storage backend.
type BackendType string

const (
	BackendLocal BackendType = "local"
	BackendS3    BackendType = "s3"
	BackendGit   BackendType = "git"
)

// Config selects and configures one backend.
type Config struct {
	Backend BackendType

	LocalConfig *LocalConfig
	S3Config    *S3Config
	GitConfig   *GitProviderOptions
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BaseDir string
}

// S3Config holds configuration for S3 storage. When Client is nil one is built
// from the default AWS credential chain with Region and Endpoint applied.
type S3Config struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	Client   *s3.Client
}

// StorageManager hands out namespaced providers over a single backend.
type StorageManager struct {
	backend  BackendType
	provider FileProvider
}

// New builds the backend described by config.
func New(ctx context.Context, config Config) (*StorageManager, error) {
	var provider FileProvider

	switch config.Backend {
	case BackendLocal:
		if config.LocalConfig == nil || config.LocalConfig.BaseDir == "" {
			return nil, fmt.Errorf("base directory is required for local backend")
		}
		provider = NewLocalFileProvider(config.LocalConfig.BaseDir)

	case BackendS3:
		if config.S3Config == nil || config.S3Config.Bucket == "" {
			return nil, fmt.Errorf("bucket is required for s3 backend")
		}
		client := config.S3Config.Client
		if client == nil {
			var err error
			if client, err = newS3Client(ctx, config.S3Config); err != nil {
				return nil, err
			}
		}
		provider = NewS3FileProvider(config.S3Config.Bucket, config.S3Config.Prefix, NewAWSS3Client(client))

	case BackendGit:
		if config.GitConfig == nil {
			return nil, fmt.Errorf("git config is required for git backend")
		}
		gp, err := NewGitFileProvider(*config.GitConfig)
		if err != nil {
			return nil, err
		}
		provider = gp

	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Backend)
	}

	return &StorageManager{backend: config.Backend, provider: provider}, nil
}

func newS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewWithProvider wraps an existing provider, mainly for tests.
func NewWithProvider(provider FileProvider) *StorageManager {
	return &StorageManager{backend: "custom", provider: provider}
}

// GetProvider returns a provider scoped to namespace, e.g. "knowledge" or "history".
func (m *StorageManager) GetProvider(namespace string) FileProvider {
	if namespace == "" {
		return m.provider
	}
	return NewPrefixedFileProvider(m.provider, namespace)
}

// Backend returns the configured backend type.
func (m *StorageManager) Backend() BackendType {
	return m.backend
}

// Revision reports the git HEAD for git backends and "" otherwise.
func (m *StorageManager) Revision() string {
	if gp, ok := m.provider.(*GitFileProvider); ok {
		return gp.Revision()
	}
	return ""
}

// Ping verifies the backend answers a metadata request.
func (m *StorageManager) Ping(ctx context.Context) error {
	if _, err := m.provider.Exists(ctx, ".ping"); err != nil {
		return fmt.Errorf("storage backend %s unreachable: %w", m.backend, err)
	}
	return nil
}
