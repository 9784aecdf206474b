package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
)

// Version will be set at build time via -ldflags
var Version = "v0.0.1-dev"

// embeddedManifest is the descriptor of last resort. Release builds
// replace manifest.xml before compiling.
//
//go:embed manifest.xml
var embeddedManifest []byte

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
