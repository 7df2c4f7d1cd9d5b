package cmdutil

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func newRoot(sub *cobra.Command) *cobra.Command {
	root := &cobra.Command{Use: "setup-servers"}
	root.AddCommand(sub)
	return root
}

func TestNoArgs(t *testing.T) {
	cmd := &cobra.Command{Use: "list"}
	newRoot(cmd)

	assert.NoError(t, NoArgs(cmd, nil))
	err := NoArgs(cmd, []string{"extra"})
	assert.ErrorContains(t, err, "'setup-servers list' accepts no arguments")
}

func TestRequiresMinArgs(t *testing.T) {
	cmd := &cobra.Command{Use: "run CMD [flags]..."}
	newRoot(cmd)

	assert.NoError(t, RequiresMinArgs(1)(cmd, []string{"setup-db"}))
	err := RequiresMinArgs(1)(cmd, nil)
	assert.ErrorContains(t, err, "requires at least 1 argument")
}

func TestExactArgs(t *testing.T) {
	cmd := &cobra.Command{Use: "show"}
	newRoot(cmd)

	assert.NoError(t, ExactArgs(0)(cmd, nil))
	err := ExactArgs(1)(cmd, []string{"a", "b"})
	assert.ErrorContains(t, err, "requires 1 argument")
}
