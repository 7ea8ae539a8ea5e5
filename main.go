// wirebridge drives step definitions hosted by a remote wire server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wirebridge/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "wirebridge: %v\n", err)
		os.Exit(1)
	}
}
