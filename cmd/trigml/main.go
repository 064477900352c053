// Command trigml prepares L1 trigger events for a trained model, scores them
// and derives trigger decisions.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:]); err != nil {
		os.Stderr.WriteString("trigml: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}
