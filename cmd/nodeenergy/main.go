package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"

	"github.com/nodeenergy/nodeenergy/pkg/log"
	"github.com/nodeenergy/nodeenergy/pkg/server"
	"github.com/nodeenergy/nodeenergy/pkg/source"
)

func main() {
	// init packages
	src := source.Configured()

	// init server
	srv := server.Configured(src)

	// parse flags
	lflag.Configure()

	// lflag automatically sets llog's level, but we need to set the slog level
	if err := log.Configure(); err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Run will block until context is canceled or error happens
	err := srv.Run(ctx)
	cancel()
	if cerr := src.Close(); cerr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to close source", "error", cerr)
	}
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
