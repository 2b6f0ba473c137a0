package shutdown

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyContextCancelsOnSignal(t *testing.T) {
	got := make(chan os.Signal, 1)
	ctx, stop := NotifyContext(context.Background(), func(sig os.Signal) { got <- sig })
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not canceled after SIGTERM")
	}
	assert.Equal(t, syscall.SIGTERM, <-got)
}

func TestNotifyContextStopCancels(t *testing.T) {
	ctx, stop := NotifyContext(context.Background(), nil)
	stop()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stop did not cancel")
	}
}
