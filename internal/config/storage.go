package config

import (
	"fmt"

	"github.com/lewisedginton/triage_assistant/internal/storage_manager"
)

// StorageConfig holds storage/persistence configuration
type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" yaml:"backend" default:"local"`      // "local", "s3", or "git"
	LocalDir string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"./data"` // Base directory for local storage

	S3Bucket   string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix   string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`
	S3Region   string `env:"STORAGE_S3_REGION" yaml:"s3_region"`
	S3Endpoint string `env:"STORAGE_S3_ENDPOINT" yaml:"s3_endpoint"` // MinIO and friends

	GitPath        string `env:"STORAGE_GIT_PATH" yaml:"git_path"`
	GitAuthorName  string `env:"STORAGE_GIT_AUTHOR_NAME" yaml:"git_author_name"`
	GitAuthorEmail string `env:"STORAGE_GIT_AUTHOR_EMAIL" yaml:"git_author_email"`
	GitInit        bool   `env:"STORAGE_GIT_INIT" yaml:"git_init" default:"true"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "local":
		if s.LocalDir == "" {
			return fmt.Errorf("storage local_dir is required for the local backend")
		}
	case "s3":
		if s.S3Bucket == "" {
			return fmt.Errorf("storage s3_bucket is required for the s3 backend")
		}
	case "git":
		if s.GitPath == "" {
			return fmt.Errorf("storage git_path is required for the git backend")
		}
	default:
		return oneOf("storage backend", s.Backend, "local", "s3", "git")
	}
	return nil
}

// ManagerConfig converts the section into a storage_manager.Config.
func (s StorageConfig) ManagerConfig() storage_manager.Config {
	cfg := storage_manager.Config{Backend: storage_manager.BackendType(s.Backend)}
	switch cfg.Backend {
	case storage_manager.BackendLocal:
		cfg.LocalConfig = &storage_manager.LocalConfig{BaseDir: s.LocalDir}
	case storage_manager.BackendS3:
		cfg.S3Config = &storage_manager.S3Config{
			Bucket:   s.S3Bucket,
			Prefix:   s.S3Prefix,
			Region:   s.S3Region,
			Endpoint: s.S3Endpoint,
		}
	case storage_manager.BackendGit:
		cfg.GitConfig = &storage_manager.GitProviderOptions{
			Path:          s.GitPath,
			AuthorName:    s.GitAuthorName,
			AuthorEmail:   s.GitAuthorEmail,
			InitIfMissing: s.GitInit,
		}
	}
	return cfg
}
