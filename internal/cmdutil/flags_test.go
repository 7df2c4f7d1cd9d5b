package cmdutil

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasFlags(t *testing.T) {
	fs := pflag.NewFlagSet("setup-db", pflag.ContinueOnError)
	provider := fs.String("provider", "", "")
	actions := fs.StringArray("action", nil, "")
	AliasFlags(fs, map[string]string{"dbs-provider-name": "provider", "dbs-action": "action"})

	require.NoError(t, fs.Parse([]string{"--dbs-provider-name", "postgres", "--dbs-action", "create", "--action", "start"}))
	assert.Equal(t, "postgres", *provider)
	assert.Equal(t, []string{"create", "start"}, *actions)
	assert.True(t, fs.Changed("provider"))
	assert.True(t, fs.Changed("dbs-provider-name"))
}
