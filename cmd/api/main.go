package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"planora/internal/app"
	"planora/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(cfg)
	if err := a.Init(ctx); err != nil {
		_ = a.Shutdown(context.Background())
		return err
	}
	return a.Run(ctx)
}
