package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shipmatch/internal/config"
	"shipmatch/internal/listener"
	"shipmatch/internal/logging"
	"shipmatch/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	log, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: cfg.LogOutput})
	must(err)
	defer func() { _ = log.Sync() }()

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(listener.NewService(db, cfg, log).Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
