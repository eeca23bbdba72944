package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/logging"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", os.Getenv("ARB_CONFIG"), "optional TOML config file")
	asJSON := flag.Bool("json", false, "dump the whole snapshot as JSON")
	flag.Parse()

	logging.InitFromEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[inspect] load config: %v", err)
	}

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("[inspect] %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := store.LoadSnapshot(ctx)
	if errors.Is(err, sqlstore.ErrNoSnapshot) {
		fmt.Printf("no snapshot in %s\n", store.Path())
		return
	}
	if err != nil {
		logging.Fatalf("[inspect] %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			logging.Fatalf("[inspect] encode: %v", err)
		}
		return
	}

	fmt.Printf("snapshot %s completed %s (age %s)\n", snap.ID, snap.CompletedAt.Format(time.RFC3339), time.Since(snap.CompletedAt).Round(time.Second))
	fmt.Printf("records A=%d B=%d pairs=%d opportunities=%d\n", snap.RecordsA, snap.RecordsB, len(snap.Pairs), len(snap.Opportunities))
	for venue, msg := range snap.SourceErrors {
		fmt.Printf("  source error %s: %s\n", venue, msg)
	}
	for _, op := range snap.Opportunities {
		fmt.Printf("  %s %s profit=%.4f capacity=%.2f\n", op.PairID, op.Strategy, op.ProfitFraction, op.CapacityUSD)
	}
}
