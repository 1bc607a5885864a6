// main is the entry point for the apigrade CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/huangsam/apigrade/cmd"
	"github.com/huangsam/apigrade/internal/contract"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()
	cmd.Shutdown()
	if err != nil {
		contract.LogFatal("apigrade failed", err)
	}
}
