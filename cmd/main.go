package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/mindtrace-backend/internal/app"
	"github.com/yungbote/mindtrace-backend/internal/platform/shutdown"
)

func main() {
	ctx, stop := shutdown.NotifyContext(context.Background(), func(sig os.Signal) {
		fmt.Fprintf(os.Stderr, "received %s, draining (repeat to force exit)\n", sig)
	})
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	if err := a.Run(ctx); err != nil {
		a.Log.Error("server exited", "error", err)
		a.Log.Sync()
		os.Exit(1)
	}
}
