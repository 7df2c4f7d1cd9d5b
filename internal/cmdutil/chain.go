package cmdutil

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/schmitthub/setup-servers/internal/dispatch"
	"github.com/schmitthub/setup-servers/internal/home"
)

// ChainCommand adapts a cobra command constructor to a chainable
// dispatch.Command. Each run builds a fresh command for the dispatcher's
// context so flag values never leak between two uses of the same
// sub-command in one chain.
func ChainCommand(build func(hctx *home.Context) *cobra.Command) dispatch.Command {
	return chainCommand{build: build}
}

type chainCommand struct {
	build func(*home.Context) *cobra.Command
}

func (c chainCommand) Run(ctx context.Context, hctx *home.Context, args []string) error {
	if args == nil {
		// cobra falls back to os.Args for nil args.
		args = []string{}
	}
	cmd := c.build(hctx)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return FlagErrorWrap(err)
	})
	return cmd.ExecuteContext(ctx)
}
