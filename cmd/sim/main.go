package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"marketsim/internal/app"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the simulation config")
	snapshotPath := flag.String("snapshot", "", "write a JSON state snapshot here after the run")
	flag.Parse()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := bootstrap.Run(ctx); err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}

	if *snapshotPath != "" {
		if err := bootstrap.Exchange.DumpState(*snapshotPath); err != nil {
			slog.Error("snapshot failed", slog.Any("error", err))
			os.Exit(1)
		}
	}
}
