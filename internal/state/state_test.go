package state

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSchema() Schema {
	return Schema{
		Kind: "db",
		Fields: []FieldSpec{
			{Key: "dbs_name", Immutable: true, Default: "dbs"},
			{Key: "dbs_version", Immutable: true},
			{Key: "port"},
		},
	}
}

func TestSetupState_Defaults(t *testing.T) {
	st := newSetupState("/tmp/x.state", testSchema())

	assert.Equal(t, StatusNew, st.Status)
	assert.True(t, st.IsNew())
	assert.Equal(t, "db", st.Kind)

	v, err := st.Get("dbs_name")
	require.NoError(t, err)
	assert.Equal(t, "dbs", v)

	v, err = st.Get("dbs_version")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestSetupState_UnknownField(t *testing.T) {
	st := newSetupState("", testSchema())

	_, err := st.Get("colour")
	require.ErrorIs(t, err, ErrUnknownField)

	err = st.Set("colour", "blue")
	require.ErrorIs(t, err, ErrUnknownField)
	assert.NotContains(t, st.Fields, "colour")
}

func TestSetupState_ImmutableAfterNew(t *testing.T) {
	st := newSetupState("", testSchema())
	require.NoError(t, st.Set("dbs_version", "14"))

	st.Status = StatusCurrent

	require.NoError(t, st.Set("dbs_version", "14"), "same value is accepted")
	err := st.Set("dbs_version", "16")
	require.ErrorIs(t, err, ErrImmutableField)
	assert.Equal(t, "14", st.Fields["dbs_version"])

	require.NoError(t, st.Set("port", "5555"), "mutable fields still change")
	require.ErrorIs(t, st.Unset("dbs_version"), ErrImmutableField)
	require.NoError(t, st.Unset("port"))
}

func TestSetupState_ClosedBlocksMutation(t *testing.T) {
	st := newSetupState("/w/db/setup-db.state", testSchema())
	st.SetupName = "setup-db"
	st.Status = StatusClosed

	err := st.Set("port", "1")
	require.ErrorIs(t, err, ErrClosed)

	var closed *ClosedError
	require.True(t, errors.As(err, &closed))
	assert.Equal(t, "setup-db", closed.SetupName)
	assert.Equal(t, "/w/db/setup-db.state", closed.Path)

	require.ErrorIs(t, st.Unset("port"), ErrClosed)
	require.ErrorIs(t, st.CheckOpen(), ErrClosed)
}

func TestSetupState_Validate(t *testing.T) {
	st := newSetupState("", testSchema())
	st.Status = "Broken"
	require.Error(t, st.validate())

	st = newSetupState("", testSchema())
	st.Kind = "fhir"
	require.Error(t, st.validate())

	st = newSetupState("", testSchema())
	st.Fields["zzz"] = "1"
	st.Fields["aaa"] = "1"
	err := st.validate()
	require.ErrorIs(t, err, ErrUnknownField)
	assert.Contains(t, err.Error(), "[aaa zzz]")
}

func TestSchema_Merge(t *testing.T) {
	base := Schema{Kind: "fhir", Fields: []FieldSpec{{Key: "port"}, {Key: "git_ref", Immutable: true}}}
	extra := Schema{Kind: "ignored", Fields: []FieldSpec{{Key: "port", Default: "9"}, {Key: "pid"}}}

	merged := Merge(base, extra)

	assert.Equal(t, "fhir", merged.Kind)
	require.Len(t, merged.Fields, 3)
	port, ok := merged.Field("port")
	require.True(t, ok)
	assert.Empty(t, port.Default, "first declaration wins")
	assert.Equal(t, []string{"git_ref"}, merged.Immutable())
}
