package main

import (
	"context"
	"fmt"
	"os"

	"github.com/yungbote/talkco-backend/internal/app"
	"github.com/yungbote/talkco-backend/internal/platform/shutdown"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("failed to initialize app: %v\n", err)
		os.Exit(1)
	}

	if err := a.Start(); err != nil {
		a.Log.Error("Startup failed", "error", err)
		a.Close()
		os.Exit(1)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	err = a.Run(ctx)
	stop()
	if err != nil {
		a.Log.Error("Server exited", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.Close()
}
