package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"mergeguard.dev/mergeguard/internal/cli"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, version, commit, date, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
