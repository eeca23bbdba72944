package queue

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/crossarb/internal/logging"
)

// MessageReader is the part of *kafka.Reader a consumer needs.
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Handler processes one announced opportunity.
type Handler func(context.Context, OpportunityEvent) error

// Consume runs workerCount readers built by newReader until ctx is done.
// Readers in the same consumer group split the topic's partitions.
func Consume(ctx context.Context, workerCount int, newReader func() MessageReader, handler Handler) {
	if workerCount <= 0 {
		workerCount = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reader := newReader()
			defer reader.Close()
			consume(ctx, reader, handler)
		}()
	}
	wg.Wait()
}

func consume(ctx context.Context, reader MessageReader, handler Handler) {
	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logging.Errorf("[consumer] read error: %v", err)
			continue
		}

		var event OpportunityEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logging.Errorf("[consumer] unmarshal error at offset %d: %v", msg.Offset, err)
			continue
		}

		if handler != nil {
			if err := handler(ctx, event); err != nil {
				logging.Errorf("[consumer] handler error for %s: %v", event.Opportunity.PairID, err)
			}
		}
	}
}
