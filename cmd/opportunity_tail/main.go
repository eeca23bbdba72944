package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/hetulpatel/crossarb/internal/config"
	"github.com/hetulpatel/crossarb/internal/kafka"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/queue"
)

func main() {
	configPath := flag.String("config", os.Getenv("ARB_CONFIG"), "optional TOML config file")
	group := flag.String("group", "opportunity-tail", "kafka consumer group")
	workers := flag.Int("workers", 1, "concurrent readers in the group")
	flag.Parse()

	logging.InitFromEnv()
	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Fatalf("[tail] load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	brokers := kafka.ParseBrokers(cfg.Kafka.Brokers)
	logging.Infof("[tail] consuming %s with group %s (%d workers)", cfg.Kafka.Topic, *group, *workers)

	queue.Consume(ctx, *workers, func() queue.MessageReader {
		return kafka.NewReader(brokers, cfg.Kafka.Topic, *group)
	}, func(_ context.Context, event queue.OpportunityEvent) error {
		op := event.Opportunity
		fmt.Printf("[arb-opportunity] snapshot=%s pair=%s %s profit=%.4f capacity=%.2f %q <-> %q\n",
			event.SnapshotID, op.PairID, op.Strategy, op.ProfitFraction, op.CapacityUSD,
			op.Pair.A.RawTitle, op.Pair.B.RawTitle)
		return nil
	})
}
