package unitcache

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type unit struct{ name string }

func TestCache_LoadsOnce(t *testing.T) {
	c := New[*unit]()
	loads := 0
	load := func() (*unit, error) {
		loads++
		return &unit{name: "postgres"}, nil
	}

	first, hit, err := c.Load("setup-db/pg--postgres--14", load)
	require.NoError(t, err)
	require.False(t, hit)

	second, hit, err := c.Load("setup-db/pg--postgres--14", load)
	require.NoError(t, err)
	require.True(t, hit)

	require.Same(t, first, second)
	require.Equal(t, 1, loads)
	require.Equal(t, 1, c.Len())
}

func TestCache_DistinctIdentities(t *testing.T) {
	c := New[*unit]()
	a, _, err := c.Load("setup-db/mysql", func() (*unit, error) { return &unit{name: "a"}, nil })
	require.NoError(t, err)
	b, _, err := c.Load("setup-other/mysql", func() (*unit, error) { return &unit{name: "b"}, nil })
	require.NoError(t, err)

	require.NotSame(t, a, b)
	require.Equal(t, 2, c.Len())
}

func TestCache_FailedLoadIsNotCached(t *testing.T) {
	c := New[*unit]()
	boom := errors.New("boom")

	_, _, err := c.Load("x", func() (*unit, error) { return nil, boom })
	require.ErrorIs(t, err, boom)

	_, ok := c.Get("x")
	require.False(t, ok)

	got, hit, err := c.Load("x", func() (*unit, error) { return &unit{name: "ok"}, nil })
	require.NoError(t, err)
	require.False(t, hit)
	require.Equal(t, "ok", got.name)
}
