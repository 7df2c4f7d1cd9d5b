// Package signals turns process signals into context cancellation. This is a
// leaf package: stdlib only, no internal imports, no logging.
package signals

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// InterruptedError is the cancellation cause of a context stopped by a signal.
type InterruptedError struct {
	Signal os.Signal
}

func (e *InterruptedError) Error() string {
	return fmt.Sprintf("interrupted by %s", e.Signal)
}

// SetupSignalContext creates a context that's canceled on SIGINT/SIGTERM.
// Only the first signal is caught; a second one gets the default handling
// and terminates the process, so a hung provider can still be killed.
func SetupSignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			cancel(&InterruptedError{Signal: sig})
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, func() { cancel(context.Canceled) }
}

// Interrupted reports whether ctx was canceled by a signal.
func Interrupted(ctx context.Context) bool {
	var ie *InterruptedError
	return errors.As(context.Cause(ctx), &ie)
}
