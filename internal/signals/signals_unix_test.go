//go:build unix

package signals

import (
	"context"
	"syscall"
	"testing"
	"time"
)

func TestSetupSignalContext_Signal(t *testing.T) {
	ctx, cancel := SetupSignalContext(context.Background())
	defer cancel()

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("sending SIGTERM: %v", err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context should be done after SIGTERM")
	}
	if !Interrupted(ctx) {
		t.Errorf("expected an interrupt cause, got %v", context.Cause(ctx))
	}
}
