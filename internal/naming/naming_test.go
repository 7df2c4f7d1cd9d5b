package naming

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		raw       string
		prefix    string
		stem      string
		suffix    string
		canonical string
		entry     string
	}{
		{raw: "mysql", stem: "mysql", canonical: "mysql", entry: "mysql"},
		{raw: "mysql-provider", stem: "mysql-provider", canonical: "mysql_provider", entry: "mysql-provider"},
		{raw: "pg--postgres", prefix: "pg", stem: "postgres", canonical: "postgres", entry: "pg"},
		{raw: "pg--postgres--14", prefix: "pg", stem: "postgres", suffix: "14", canonical: "postgres", entry: "postgres"},
		{raw: "01---Hapi.JPA  Starter----v6", prefix: "01", stem: "Hapi.JPA  Starter", suffix: "v6", canonical: "hapi_jpa_starter", entry: "Hapi.JPA  Starter"},
		{raw: "UPPER", stem: "UPPER", canonical: "upper", entry: "UPPER"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			n, err := Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.raw, n.Raw)
			assert.Equal(t, tt.prefix, n.Prefix)
			assert.Equal(t, tt.stem, n.Stem)
			assert.Equal(t, tt.suffix, n.Suffix)
			assert.Equal(t, tt.canonical, n.Canonical)
			assert.Equal(t, tt.entry, n.EntryStem())
		})
	}
}

func TestParse_TooManyParts(t *testing.T) {
	for _, raw := range []string{"a--b--c--d", "a---b----c---d", "--a--b--"} {
		t.Run(raw, func(t *testing.T) {
			_, err := Parse(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformed))

			var malformed *MalformedError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, raw, malformed.Name)
			assert.Greater(t, malformed.Parts, MaxParts)
		})
	}
}

func TestParse_AtMostTwoSeparatorsNeverFails(t *testing.T) {
	for _, raw := range []string{"", "-", "--", "a--", "--b", "x--y--", "!!--??--##", "a - b", "ü--ö"} {
		_, err := Parse(raw)
		assert.NoError(t, err, "Parse(%q)", raw)
	}
}

func TestCanonical_Idempotent(t *testing.T) {
	inputs := []string{
		"pg--postgres--14",
		"mysql-provider",
		"Weird  Name!!",
		"__leading",
		"a---b",
		"ÜmlautDir",
		"already_canonical",
	}
	for _, raw := range inputs {
		first, err := Normalize(raw)
		require.NoError(t, err)
		second, err := Normalize(first)
		require.NoError(t, err)
		assert.Equal(t, first, second, "normalize is not idempotent for %q", raw)
	}
}

func TestName_Valid(t *testing.T) {
	n, err := Parse("pg--!!")
	require.NoError(t, err)
	assert.ErrorIs(t, n.Valid(), ErrMalformed)

	n, err = Parse("pg--postgres")
	require.NoError(t, err)
	assert.NoError(t, n.Valid())
}

func TestIdentity(t *testing.T) {
	n, err := Parse("pg--postgres--14")
	require.NoError(t, err)

	assert.Equal(t, "setup-db/pg--postgres--14", Identity("setup-db", n))
	assert.NotEqual(t, Identity("setup-db", n), Identity("setup-other", n))

	collapsed, err := Parse("pg---postgres--14")
	require.NoError(t, err)
	assert.Equal(t, Identity("setup-db", n), Identity("setup-db", collapsed))
}
