package provider

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/setup-servers/internal/naming"
)

func mkdirs(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n), 0o755))
	}
}

func TestScan_CanonicalNames(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "pg--postgres--14", "mysql-provider", "setup-db", ".git")
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), nil, 0o644))

	reg, err := Scan(root, "setup-db")
	require.NoError(t, err)

	assert.Equal(t, []string{"mysql_provider", "postgres"}, reg.Names())

	rec, ok := reg.Lookup("postgres")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "pg--postgres--14"), rec.Dir)

	rec, ok = reg.Lookup("mysql_provider")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "mysql-provider"), rec.Dir)
}

func TestScan_Duplicate(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a--postgres", "b--postgres--16")

	_, err := Scan(root, "")
	require.ErrorIs(t, err, ErrDuplicateName)

	var dup *DuplicateNameError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "postgres", dup.Name)
	assert.Equal(t, filepath.Join(root, "a--postgres"), dup.First)
	assert.Equal(t, filepath.Join(root, "b--postgres--16"), dup.Second)
}

func TestScan_Malformed(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "a--b--c--d")

	_, err := Scan(root, "")
	require.ErrorIs(t, err, naming.ErrMalformed)
}

func TestScan_MissingRoot(t *testing.T) {
	_, err := Scan(filepath.Join(t.TempDir(), "nope"), "")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegistry_Resolve(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "pg--postgres--14", "mysql")
	reg, err := Scan(root, "")
	require.NoError(t, err)

	rec, err := reg.Resolve("Postgres")
	require.NoError(t, err)
	assert.Equal(t, "postgres", rec.Canonical())

	_, err = reg.Resolve("oracle")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "mysql, postgres")

	_, err = reg.Resolve("")
	require.ErrorIs(t, err, ErrAmbiguous)
	var amb *AmbiguousError
	require.True(t, errors.As(err, &amb))
	assert.Equal(t, []string{"mysql", "postgres"}, amb.Candidates)
}

func TestRegistry_Resolve_SingleAndEmpty(t *testing.T) {
	root := t.TempDir()
	mkdirs(t, root, "only--mysql")
	reg, err := Scan(root, "")
	require.NoError(t, err)

	rec, err := reg.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "mysql", rec.Canonical())

	empty, err := Scan(t.TempDir(), "")
	require.NoError(t, err)
	_, err = empty.Resolve("")
	require.ErrorIs(t, err, ErrNotFound)
}
