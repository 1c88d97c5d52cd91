// Copyright 2023 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Command fenix renders SQL from fenix template documents.
//
// Usage:
//
//	fenix [flags] <command>
//
// Configuration is read from fenix.yaml, found by walking up from the
// working directory, and from FENIX_ environment variables.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/blinkfox/fenix/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}
