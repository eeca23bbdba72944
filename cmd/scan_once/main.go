package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hetulpatel/crossarb/internal/app"
	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

func main() {
	configPath := flag.String("config", os.Getenv("ARB_CONFIG"), "optional TOML config file")
	keywords := flag.String("keywords", "", "comma-separated title keywords to scan")
	showPairs := flag.Bool("pairs", true, "print matched pairs")
	persist := flag.Bool("persist", false, "write the snapshot to sqlite")
	flag.Parse()

	logging.InitFromEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[scan] load config: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)
	if *keywords != "" {
		cfg.Matcher.Keywords = strings.Split(*keywords, ",")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatalf("[scan] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	pipeline, cleanup, err := app.Wire(ctx, cfg, app.Options{SQLite: *persist})
	if err != nil {
		logging.Fatalf("[scan] %v", err)
	}
	defer cleanup()

	snap, err := pipeline.Scheduler.RunOnce(ctx)
	if err != nil {
		logging.Fatalf("[scan] %v", err)
	}

	for venue, msg := range snap.SourceErrors {
		fmt.Printf("[source-error] %s: %s\n", venue, msg)
	}
	fmt.Printf("snapshot %s: %d %s records, %d %s records, %d pairs, %d opportunities (%s)\n",
		snap.ID, snap.RecordsA, models.VenuePolymarket, snap.RecordsB, models.VenueProbable,
		len(snap.Pairs), len(snap.Opportunities), snap.Duration().Round(time.Millisecond))

	if *showPairs {
		for _, p := range snap.Pairs {
			fmt.Printf("[pair] %-11s %5.1f  %q <-> %q\n", p.Method, p.Score, p.A.RawTitle, p.B.RawTitle)
		}
	}
	for i, op := range snap.Opportunities {
		fmt.Printf("[arb-opportunity] #%d %s %q cost=%.4f profit=%.2f%% capacity=$%.2f (A %s@%.3f, B %s@%.3f)\n",
			i+1, op.Strategy, op.Pair.A.RawTitle, op.UnitCost, op.ProfitFraction*100, op.CapacityUSD,
			op.OutcomeA, op.PriceA, op.OutcomeB, op.PriceB)
	}
}
