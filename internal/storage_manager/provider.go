// Package storage_manager gives components (knowledge files, conversation history,
// session directories) namespaced file storage over a local directory, S3 or a
// git working tree.
package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Read when the object does not exist.
var ErrNotFound = errors.New("object not found")

// FileProvider is the storage contract shared by every backend.
type FileProvider interface {
	Read(ctx context.Context, path string) ([]byte, error)
	// Write creates or replaces the file.
	Write(ctx context.Context, path string, data []byte) error
	Exists(ctx context.Context, path string) (bool, error)
	// Delete is a no-op for missing files.
	Delete(ctx context.Context, path string) error
	// List returns relative paths of files under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// LocalFileProvider implements FileProvider for local filesystem.
type LocalFileProvider struct {
	baseDir string
}

// NewLocalFileProvider creates a new local file provider.
func NewLocalFileProvider(baseDir string) *LocalFileProvider {
	return &LocalFileProvider{baseDir: baseDir}
}

func (p *LocalFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return readLocal(filepath.Join(p.baseDir, path))
}

func (p *LocalFileProvider) Write(ctx context.Context, path string, data []byte) error {
	return writeLocal(filepath.Join(p.baseDir, path), data)
}

func (p *LocalFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	return existsLocal(filepath.Join(p.baseDir, path))
}

func (p *LocalFileProvider) Delete(ctx context.Context, path string) error {
	err := os.Remove(filepath.Join(p.baseDir, path))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (p *LocalFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	return walkLocal(p.baseDir, prefix)
}

func readLocal(fullPath string) ([]byte, error) {
	data, err := os.ReadFile(fullPath) //nolint:gosec // G304: path is rooted at a configured base directory
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", fullPath, ErrNotFound)
	}
	return data, err
}

func writeLocal(fullPath string, data []byte) error {
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return os.WriteFile(fullPath, data, 0o600)
}

func existsLocal(fullPath string) (bool, error) {
	_, err := os.Stat(fullPath)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// walkLocal lists files under root/prefix relative to root, skipping .git.
func walkLocal(root, prefix string) ([]string, error) {
	result := []string{}
	err := filepath.WalkDir(filepath.Join(root, prefix), func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if rel, err := filepath.Rel(root, path); err == nil {
			result = append(result, filepath.ToSlash(rel))
		}
		return nil
	})
	return result, err
}

// PrefixedFileProvider scopes another provider to a namespace directory.
type PrefixedFileProvider struct {
	provider FileProvider
	prefix   string
}

// NewPrefixedFileProvider creates a new prefixed file provider.
func NewPrefixedFileProvider(provider FileProvider, prefix string) *PrefixedFileProvider {
	return &PrefixedFileProvider{provider: provider, prefix: strings.Trim(prefix, "/")}
}

func (p *PrefixedFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return p.provider.Read(ctx, p.prefixPath(path))
}

func (p *PrefixedFileProvider) Write(ctx context.Context, path string, data []byte) error {
	return p.provider.Write(ctx, p.prefixPath(path), data)
}

func (p *PrefixedFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	return p.provider.Exists(ctx, p.prefixPath(path))
}

func (p *PrefixedFileProvider) Delete(ctx context.Context, path string) error {
	return p.provider.Delete(ctx, p.prefixPath(path))
}

func (p *PrefixedFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	files, err := p.provider.List(ctx, p.prefixPath(prefix))
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(files))
	for _, file := range files {
		if rel, ok := strings.CutPrefix(file, p.prefix+"/"); ok {
			result = append(result, rel)
		}
	}
	return result, nil
}

func (p *PrefixedFileProvider) prefixPath(path string) string {
	if p.prefix == "" {
		return path
	}
	return p.prefix + "/" + path
}
