package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// isRepositoryURL reports whether target names a remote repository rather
// than a local directory.
func isRepositoryURL(target string) bool {
	return strings.HasPrefix(target, "https://") || strings.HasPrefix(target, "http://")
}

// cloneRepository clones a repository and returns the directory it was cloned
// to using go-git under the hood, which is a pure Go implementation of Git.
// A previous clone in the same place is reused.
func cloneRepository(ctx context.Context, repoURL string) (string, string, error) {
	dir, err := cloneDir(repoURL)
	if err != nil {
		return "", "", err
	}

	if _, err := os.Stat(dir); err == nil {
		repo, err := git.PlainOpen(dir)
		if err != nil {
			return dir, "", fmt.Errorf("failed to open %s: %w", dir, err)
		}
		head, err := repo.Head()
		if err != nil {
			return dir, "", fmt.Errorf("failed to read HEAD: %w", err)
		}
		return dir, head.Hash().String(), nil
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:          repoURL,
		Depth:        1,
		Tags:         git.NoTags,
		SingleBranch: true,
	})
	if err != nil {
		return dir, "", fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}

	head, err := repo.Head()
	if err != nil {
		return dir, "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	return dir, head.Hash().String(), nil
}

// cloneDir maps https://host/owner/repo to <tmp>/taintflow/host/owner/repo.
func cloneDir(repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err != nil {
		return "", err
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] == "" || segments[1] == "" {
		return "", fmt.Errorf("invalid repository URL: %s", repoURL)
	}
	repo := strings.TrimSuffix(segments[1], ".git")
	return filepath.Join(os.TempDir(), "taintflow", u.Host, segments[0], repo), nil
}
