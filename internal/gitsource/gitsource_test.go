package gitsource

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPathUnderRoot(t *testing.T) {
	root := string(filepath.Separator)
	got, err := LocalPath(root, "https://github.com/user/decks.git")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "github.com", "user", "decks"), got)
}

func TestLocalPath(t *testing.T) {
	base := filepath.Join("data", "repos")
	testCases := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "https://github.com/user/decks.git", want: filepath.Join(base, "github.com", "user", "decks")},
		{url: "http://example.com:8080/a/b", want: filepath.Join(base, "example.com", "a", "b")},
		{url: "git@github.com:user/decks.git", want: filepath.Join(base, "github.com", "user", "decks")},
		{url: "ssh://git@host.org/team/spanish.git", want: filepath.Join(base, "host.org", "team", "spanish")},
		{url: "file:///srv/git/decks.git", want: filepath.Join(base, "file", "srv", "git", "decks")},
		{url: "https://github.com/", wantErr: true},
		{url: "https://github.com/../../etc", wantErr: true},
		{url: "not a url", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			got, err := LocalPath(base, tc.url)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

// newUpstream creates a repository with one committed deck file.
func newUpstream(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	commitFile(t, wt, dir, "deck.md", "Q: uno\nA: one\n")
	return dir, wt
}

func commitFile(t *testing.T, wt *git.Worktree, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	_, err := wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}

func TestSyncClonesThenPulls(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary required for the file transport")
	}
	ctx := context.Background()
	upstream, wt := newUpstream(t)
	local := filepath.Join(t.TempDir(), "checkout")

	require.NoError(t, Sync(ctx, upstream, local))
	data, err := os.ReadFile(filepath.Join(local, "deck.md"))
	require.NoError(t, err)
	assert.Equal(t, "Q: uno\nA: one\n", string(data))

	require.NoError(t, Sync(ctx, upstream, local), "pull with no changes")

	commitFile(t, wt, upstream, "more.md", "Q: dos\nA: two\n")
	require.NoError(t, Sync(ctx, upstream, local))
	_, err = os.Stat(filepath.Join(local, "more.md"))
	assert.NoError(t, err)
}

func TestSyncCloneFailureLeavesNothing(t *testing.T) {
	local := filepath.Join(t.TempDir(), "checkout")
	err := Sync(context.Background(), filepath.Join(t.TempDir(), "missing"), local)
	require.Error(t, err)
	_, statErr := os.Stat(local)
	assert.True(t, os.IsNotExist(statErr))
}
