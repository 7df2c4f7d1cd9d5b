// Package gittest provides test utilities for the git package.
package gittest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-billy/v6"
	"github.com/go-git/go-billy/v6/osfs"
	"github.com/go-git/go-billy/v6/util"
	gogit "github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/cache"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/storage/filesystem"
	"github.com/stretchr/testify/require"
)

// Upstream is an on-disk repository that checkouts can fetch from by path.
type Upstream struct {
	Dir  string
	repo *gogit.Repository
	fs   billy.Filesystem
}

// NewUpstream creates an empty repository in a temp directory.
func NewUpstream(t *testing.T) *Upstream {
	t.Helper()
	dir := t.TempDir()

	worktreeFS := osfs.New(dir)
	storer := filesystem.NewStorage(osfs.New(filepath.Join(dir, ".git")), cache.NewObjectLRUDefault())
	repo, err := gogit.Init(storer, gogit.WithWorkTree(worktreeFS))
	require.NoError(t, err, "failed to init upstream repo")

	return &Upstream{Dir: dir, repo: repo, fs: worktreeFS}
}

// Commit writes files (path -> content) and commits them on the current
// branch. It returns the commit SHA.
func (u *Upstream) Commit(t *testing.T, msg string, files map[string]string) string {
	t.Helper()
	wt, err := u.repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		require.NoError(t, util.WriteFile(u.fs, name, []byte(content), 0o644), "writing %s", name)
		_, err := wt.Add(name)
		require.NoError(t, err, "staging %s", name)
	}

	h, err := wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{
			Name:  "Test User",
			Email: "test@example.com",
			When:  time.Now(),
		},
	})
	require.NoError(t, err, "failed to commit")
	return h.String()
}

// Branch points branch at sha.
func (u *Upstream) Branch(t *testing.T, branch, sha string) {
	t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), plumbing.NewHash(sha))
	require.NoError(t, u.repo.Storer.SetReference(ref))
}

// Tag creates a lightweight tag at sha.
func (u *Upstream) Tag(t *testing.T, name, sha string) {
	t.Helper()
	_, err := u.repo.CreateTag(name, plumbing.NewHash(sha), nil)
	require.NoError(t, err)
}
