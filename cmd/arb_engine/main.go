package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/hetulpatel/crossarb/internal/api"
	"github.com/hetulpatel/crossarb/internal/app"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("ARB_CONFIG"), "optional TOML config file")
	noSQLite := flag.Bool("no-sqlite", false, "do not persist snapshots to sqlite")
	flag.Parse()

	logging.InitFromEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[arb-engine] load config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[arb-engine] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, cleanup, err := app.Wire(ctx, cfg, app.Options{SQLite: !*noSQLite, Kafka: true})
	if err != nil {
		logging.Fatalf("[arb-engine] %v", err)
	}
	defer cleanup()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.Scheduler.Run(gctx)
	})
	if cfg.API.Addr != "" {
		server := api.NewServer(api.Config{Addr: cfg.API.Addr, CORSOrigins: cfg.API.CORSOrigins}, pipeline.Scheduler)
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Errorf("[arb-engine] exited: %v", err)
		return
	}
	logging.Infof("[arb-engine] shut down")
}
