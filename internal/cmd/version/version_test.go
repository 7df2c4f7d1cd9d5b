package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/setup-servers/internal/cmdutil"
	"github.com/schmitthub/setup-servers/internal/iostreams/iostreamstest"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		version string
		commit  string
		want    string
	}{
		{
			name:    "version only",
			version: "1.2.3",
			want:    "setup-servers version 1.2.3\n",
		},
		{
			name:    "version with commit",
			version: "v1.2.3",
			commit:  "abc123",
			want:    "setup-servers version 1.2.3 (abc123)\n",
		},
		{
			name:    "dev build",
			version: "dev",
			commit:  "none",
			want:    "setup-servers version dev\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Format(tt.version, tt.commit)
			if got != tt.want {
				t.Errorf("Format(%q, %q) = %q, want %q", tt.version, tt.commit, got, tt.want)
			}
		})
	}
}

func TestNewCmdVersion(t *testing.T) {
	tio := iostreamstest.New()
	f := &cmdutil.Factory{IOStreams: tio.IOStreams, Version: "1.0.0", Commit: "abc123"}

	cmd := NewCmdVersion(f)
	cmd.SetArgs([]string{})
	cmd.SetOut(tio.OutBuf)
	cmd.SetErr(tio.ErrBuf)

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "setup-servers version 1.0.0 (abc123)\n", tio.OutBuf.String())
}
