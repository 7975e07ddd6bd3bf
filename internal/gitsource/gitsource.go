// Package gitsource keeps local checkouts of git-hosted decks up to date.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
)

// Sync clones url into localPath if nothing is there yet, otherwise pulls the
// latest changes into the existing checkout.
func Sync(ctx context.Context, url, localPath string) error {
	_, err := os.Stat(localPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return clone(ctx, url, localPath)
	case err != nil:
		return fmt.Errorf("failed to check %s: %w", localPath, err)
	}
	return pull(ctx, localPath)
}

func clone(ctx context.Context, url, localPath string) error {
	slog.Info("Cloning deck repository", "url", url, "path", localPath)
	_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
		URL:          url,
		SingleBranch: true,
	})
	if err != nil {
		os.RemoveAll(localPath)
		return fmt.Errorf("failed to clone %s: %w", url, err)
	}
	return nil
}

func pull(ctx context.Context, localPath string) error {
	repo, err := git.PlainOpen(localPath)
	if err != nil {
		return fmt.Errorf("failed to open repo at %s: %w", localPath, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to get worktree at %s: %w", localPath, err)
	}

	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin", SingleBranch: true})
	switch {
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		slog.Debug("Deck repository already up to date", "path", localPath)
		return nil
	case err != nil:
		return fmt.Errorf("failed to pull %s: %w", localPath, err)
	}
	slog.Info("Pulled deck repository", "path", localPath)
	return nil
}

// LocalPath maps a repository URL to its checkout directory under baseDir:
// https://host/owner/repo.git and git@host:owner/repo.git both become
// baseDir/host/owner/repo, and file:///srv/repo becomes baseDir/file/srv/repo.
func LocalPath(baseDir, repoURL string) (string, error) {
	u, err := url.Parse(repoURL)
	if err == nil {
		switch u.Scheme {
		case "http", "https", "ssh", "git":
			if u.Host == "" {
				break
			}
			return join(baseDir, u.Hostname(), u.Path)
		case "file":
			return join(baseDir, "file", u.Path)
		}
	}

	// scp-like syntax: user@host:owner/repo.git
	if at := strings.Index(repoURL, "@"); at >= 0 {
		host, path, ok := strings.Cut(repoURL[at+1:], ":")
		if ok && host != "" && path != "" {
			return join(baseDir, host, path)
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}

func join(baseDir, host, path string) (string, error) {
	path = strings.TrimSuffix(strings.Trim(path, "/"), ".git")
	if path == "" {
		return "", fmt.Errorf("git URL has no repository path")
	}
	clean := filepath.Join(baseDir, host, filepath.FromSlash(path))
	rel, err := filepath.Rel(baseDir, clean)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("git URL escapes %s", baseDir)
	}
	return clean, nil
}
