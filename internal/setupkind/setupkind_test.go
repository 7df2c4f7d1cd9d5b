package setupkind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemas(t *testing.T) {
	assert.Equal(t, DB.Kind, Schemas[DBSetupName].Kind)
	assert.Equal(t, FHIR.Kind, Schemas[FHIRSetupName].Kind)
	assert.Len(t, Schemas, 2)
}

func TestDBSchema(t *testing.T) {
	assert.ElementsMatch(t, []string{FieldDBName, FieldDBVersion}, DB.Immutable())

	f, ok := DB.Field(FieldDBName)
	require.True(t, ok)
	assert.Equal(t, "postgres", f.Default)

	require.NoError(t, DB.Validate(map[string]string{FieldDBVersion: "16", FieldDBPort: "5432"}))
	assert.Error(t, DB.Validate(map[string]string{FieldGitRef: "main"}))
}

func TestFHIRSchema(t *testing.T) {
	assert.Empty(t, FHIR.Immutable())

	f, ok := FHIR.Field(FieldGitRef)
	require.True(t, ok)
	assert.Equal(t, DefaultGitRef, f.Default)

	assert.Error(t, FHIR.Validate(map[string]string{FieldDBVersion: "16"}))
}
