package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/marfl/fbas-analyzer/cli/fbas-analyzer/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.New().Execute(ctx)
	stop()
	if err != nil {
		cmd.PrintError(err)
		os.Exit(1)
	}
}
