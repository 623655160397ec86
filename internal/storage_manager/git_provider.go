package storage_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// GitFileProvider stores files in a git working tree and commits every change,
// giving the knowledge base and history an audit trail.
type GitFileProvider struct {
	repoPath string
	repo     *git.Repository
	author   object.Signature
	mu       sync.Mutex
}

// GitProviderOptions holds options for creating a GitFileProvider.
type GitProviderOptions struct {
	Path          string
	AuthorName    string
	AuthorEmail   string
	InitIfMissing bool
}

// NewGitFileProvider opens (or, with InitIfMissing, creates) the repository at opts.Path.
func NewGitFileProvider(opts GitProviderOptions) (*GitFileProvider, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("repository path is required")
	}
	if opts.AuthorName == "" {
		opts.AuthorName = "triage-assistant"
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = "triage-assistant@localhost"
	}

	repo, err := git.PlainOpen(opts.Path)
	if err != nil {
		if !errors.Is(err, git.ErrRepositoryNotExists) || !opts.InitIfMissing {
			return nil, fmt.Errorf("failed to open git repository: %w", err)
		}
		if err := os.MkdirAll(opts.Path, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create repository directory: %w", err)
		}
		if repo, err = git.PlainInit(opts.Path, false); err != nil {
			return nil, fmt.Errorf("failed to initialize git repository: %w", err)
		}
	}

	return &GitFileProvider{
		repoPath: opts.Path,
		repo:     repo,
		author:   object.Signature{Name: opts.AuthorName, Email: opts.AuthorEmail},
	}, nil
}

func (p *GitFileProvider) Read(ctx context.Context, path string) ([]byte, error) {
	return readLocal(filepath.Join(p.repoPath, path))
}

// Write replaces the file and commits it. Rewriting identical content is not an error.
func (p *GitFileProvider) Write(ctx context.Context, path string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := writeLocal(filepath.Join(p.repoPath, path), data); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Add(filepath.ToSlash(path)); err != nil {
		return fmt.Errorf("failed to stage file: %w", err)
	}
	return p.commit(worktree, "update "+path)
}

func (p *GitFileProvider) Exists(ctx context.Context, path string) (bool, error) {
	return existsLocal(filepath.Join(p.repoPath, path))
}

// Delete removes a tracked file and commits the removal.
func (p *GitFileProvider) Delete(ctx context.Context, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	exists, err := existsLocal(filepath.Join(p.repoPath, path))
	if err != nil || !exists {
		return err
	}
	worktree, err := p.repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree: %w", err)
	}
	if _, err := worktree.Remove(filepath.ToSlash(path)); err != nil {
		if rmErr := os.Remove(filepath.Join(p.repoPath, path)); rmErr != nil {
			return fmt.Errorf("failed to stage deletion: %w", err)
		}
		return nil
	}
	return p.commit(worktree, "delete "+path)
}

func (p *GitFileProvider) List(ctx context.Context, prefix string) ([]string, error) {
	return walkLocal(p.repoPath, prefix)
}

// Revision returns the HEAD commit hash, or "" for a repository without commits.
func (p *GitFileProvider) Revision() string {
	ref, err := p.repo.Head()
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

func (p *GitFileProvider) commit(worktree *git.Worktree, msg string) error {
	author := p.author
	author.When = time.Now()
	_, err := worktree.Commit("triage: "+msg, &git.CommitOptions{Author: &author})
	if errors.Is(err, git.ErrEmptyCommit) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
