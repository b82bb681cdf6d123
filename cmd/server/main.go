package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/zeusync/carview/internal/config"
	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/injector"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}

	srv, cleanup, err := injector.InitializeServer(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error building server:", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Provide()
	logger.Info("Starting carview",
		log.String("listen", cfg.Server.ListenAddr),
		log.String("transport", cfg.Server.Transport),
		log.Int("tick_rate", cfg.Server.TickRate),
	)

	if err = srv.Run(ctx); err != nil {
		logger.Error("Server stopped with error", log.Error(err))
		cleanup()
		os.Exit(1)
	}
}
