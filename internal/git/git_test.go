package git_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/setup-servers/internal/git"
	"github.com/schmitthub/setup-servers/internal/git/gittest"
)

func TestOpen_NotRepository(t *testing.T) {
	_, err := git.Open(t.TempDir())
	assert.ErrorIs(t, err, git.ErrNotRepository)
}

func TestSync_BranchTagAndHash(t *testing.T) {
	up := gittest.NewUpstream(t)
	first := up.Commit(t, "first", map[string]string{"pom.xml": "<project>1</project>"})
	up.Tag(t, "v1.0.0", first)
	second := up.Commit(t, "second", map[string]string{"pom.xml": "<project>2</project>"})
	up.Branch(t, "release", second)

	dir := filepath.Join(t.TempDir(), "checkout")
	ctx := context.Background()

	sha, err := git.Sync(ctx, dir, up.Dir, "release")
	require.NoError(t, err)
	assert.Equal(t, second, sha)
	data, err := os.ReadFile(filepath.Join(dir, "pom.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<project>2</project>", string(data))

	sha, err = git.Sync(ctx, dir, up.Dir, "v1.0.0")
	require.NoError(t, err)
	assert.Equal(t, first, sha)
	data, err = os.ReadFile(filepath.Join(dir, "pom.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<project>1</project>", string(data))

	sha, err = git.Sync(ctx, dir, up.Dir, second)
	require.NoError(t, err)
	assert.Equal(t, second, sha)

	co, err := git.Open(dir)
	require.NoError(t, err)
	head, err := co.Head()
	require.NoError(t, err)
	assert.Equal(t, second, head)
}

func TestSync_PicksUpNewCommits(t *testing.T) {
	up := gittest.NewUpstream(t)
	first := up.Commit(t, "first", map[string]string{"README.md": "one"})
	up.Branch(t, "release", first)

	dir := filepath.Join(t.TempDir(), "checkout")
	ctx := context.Background()
	sha, err := git.Sync(ctx, dir, up.Dir, "release")
	require.NoError(t, err)
	assert.Equal(t, first, sha)

	second := up.Commit(t, "second", map[string]string{"README.md": "two"})
	up.Branch(t, "release", second)

	sha, err = git.Sync(ctx, dir, up.Dir, "release")
	require.NoError(t, err)
	assert.Equal(t, second, sha)
}

func TestSync_UnknownRef(t *testing.T) {
	up := gittest.NewUpstream(t)
	up.Commit(t, "first", map[string]string{"README.md": "one"})

	_, err := git.Sync(context.Background(), filepath.Join(t.TempDir(), "checkout"), up.Dir, "no-such-branch")
	assert.ErrorIs(t, err, git.ErrRefNotFound)
}

func TestCheckoutRef_DiscardsLocalChanges(t *testing.T) {
	up := gittest.NewUpstream(t)
	sha := up.Commit(t, "first", map[string]string{"README.md": "one"})
	up.Branch(t, "release", sha)

	dir := filepath.Join(t.TempDir(), "checkout")
	_, err := git.Sync(context.Background(), dir, up.Dir, "release")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("edited"), 0o644))

	co, err := git.Open(dir)
	require.NoError(t, err)
	_, err = co.CheckoutRef("release")
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}
