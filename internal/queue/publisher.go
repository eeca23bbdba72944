package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/hetulpatel/crossarb/internal/cache"
	"github.com/hetulpatel/crossarb/internal/logging"
	"github.com/hetulpatel/crossarb/internal/models"
)

// MessageWriter is the part of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// OpportunityEvent is the payload published for each announced opportunity.
type OpportunityEvent struct {
	SnapshotID  string                      `json:"snapshot_id"`
	ObservedAt  time.Time                   `json:"observed_at"`
	Opportunity models.ArbitrageOpportunity `json:"opportunity"`
}

// Publisher announces opportunities to kafka. With a cache it only announces
// an opportunity the first time it is seen or when its profit improves by
// more than MinImprovement; otherwise every opportunity of every cycle goes
// out.
type Publisher struct {
	writer         MessageWriter
	seen           cache.OpportunityCache
	minImprovement float64
}

func NewPublisher(writer MessageWriter, seen cache.OpportunityCache, minImprovement float64) *Publisher {
	return &Publisher{writer: writer, seen: seen, minImprovement: minImprovement}
}

func (p *Publisher) Name() string {
	return "kafka"
}

// Publish sends the snapshot's new or improved opportunities.
func (p *Publisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	if p == nil || p.writer == nil || snap == nil || len(snap.Opportunities) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(snap.Opportunities))
	var fresh []cache.OpportunityRecord
	var keys []string
	for _, op := range snap.Opportunities {
		key := fmt.Sprintf("%s:%s", op.PairID, op.Strategy)
		if !p.isNews(ctx, key, op) {
			continue
		}
		payload, err := json.Marshal(OpportunityEvent{
			SnapshotID:  snap.ID,
			ObservedAt:  snap.CompletedAt,
			Opportunity: op,
		})
		if err != nil {
			return fmt.Errorf("marshal opportunity %s: %w", key, err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(op.PairID), Value: payload})
		keys = append(keys, key)
		fresh = append(fresh, cache.OpportunityRecord{
			ProfitFraction: op.ProfitFraction,
			CapacityUSD:    op.CapacityUSD,
			Strategy:       string(op.Strategy),
			SnapshotID:     snap.ID,
			UpdatedAt:      snap.CompletedAt,
		})
	}

	if len(msgs) == 0 {
		logging.Debugf("[queue] snapshot %s: nothing new to announce", snap.ID)
		return nil
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("write %d opportunities: %w", len(msgs), err)
	}

	// only remember what actually went out
	if p.seen != nil {
		for i, key := range keys {
			if err := p.seen.Set(ctx, key, fresh[i]); err != nil {
				logging.Warnf("[queue] remember %s: %v", key, err)
			}
		}
	}
	logging.Infof("[queue] snapshot %s: announced %d of %d opportunities", snap.ID, len(msgs), len(snap.Opportunities))
	return nil
}

func (p *Publisher) isNews(ctx context.Context, key string, op models.ArbitrageOpportunity) bool {
	if p.seen == nil {
		return true
	}
	prev, ok, err := p.seen.Get(ctx, key)
	if err != nil {
		logging.Warnf("[queue] lookup %s: %v", key, err)
		return true
	}
	if !ok {
		return true
	}
	return op.ProfitFraction > prev.ProfitFraction+p.minImprovement
}
