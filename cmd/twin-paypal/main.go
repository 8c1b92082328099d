// twin-paypal is a WonderTwin twin that simulates the PayPal REST API for
// catalog products, billing plans and billing subscriptions.
//
// Integration method: point the PayPal SDK base URL at the twin, or install
// paypal.Mock as the http.Client transport in-process.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Build-time variables set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
