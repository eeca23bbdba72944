package main

import (
	"context"
	"flag"
	"os"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/logging"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

// usage: sqlite_admin [-config file] create|clear|drop
func main() {
	configPath := flag.String("config", os.Getenv("ARB_CONFIG"), "optional TOML config file")
	flag.Parse()
	action := flag.Arg(0)

	logging.InitFromEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("load config: %v", err)
	}

	store, err := sqlstore.Open(cfg.SQLite.Path)
	if err != nil {
		logging.Fatalf("open sqlite: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	switch action {
	case "create":
		err = store.CreateTables(ctx)
	case "clear":
		err = store.ClearTables(ctx)
	case "drop":
		err = store.DropTables(ctx)
	default:
		logging.Fatalf("unknown action %q (want create, clear, or drop)", action)
	}
	if err != nil {
		logging.Fatalf("%s tables: %v", action, err)
	}
	logging.Infof("SQLite tables %s done at %s", action, store.Path())
}
