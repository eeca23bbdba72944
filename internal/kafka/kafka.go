package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	DefaultBroker           = "localhost:9092"
	DefaultOpportunityTopic = "crossarb.opportunities"
)

// ParseBrokers splits a comma-separated broker list.
func ParseBrokers(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		raw = DefaultBroker
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var (
	ErrNoBrokers         = errors.New("kafka: no brokers configured")
	ErrBrokerUnavailable = errors.New("kafka: broker unavailable")
)

// TopicSpec describes the opportunity topic. Publishers key every event by
// pair id, so the partition count only bounds consumer parallelism; per-pair
// ordering holds for any value.
type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// WaitForBroker polls the brokers in turn, once a second, until one accepts
// a connection. It returns that broker's address, or ErrBrokerUnavailable
// once ctx is done.
func WaitForBroker(ctx context.Context, brokers []string) (string, error) {
	if len(brokers) == 0 {
		return "", ErrNoBrokers
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastErr error
	for attempt := 0; ; attempt++ {
		addr := brokers[attempt%len(brokers)]
		conn, err := kafka.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			return addr, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w after %d attempts on %s: %v",
				ErrBrokerUnavailable, attempt+1, strings.Join(brokers, ","), lastErr)
		case <-ticker.C:
		}
	}
}

// EnsureTopic creates the topic through the cluster controller. An existing
// topic is left alone; it reports the partition count actually in place.
func EnsureTopic(ctx context.Context, broker string, spec TopicSpec) (int, error) {
	if broker == "" {
		return 0, ErrNoBrokers
	}
	if spec.Name == "" || spec.Partitions <= 0 || spec.ReplicationFactor <= 0 {
		return 0, fmt.Errorf("kafka: invalid topic spec %+v", spec)
	}

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return 0, fmt.Errorf("%w: dial %s: %v", ErrBrokerUnavailable, broker, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return 0, fmt.Errorf("kafka: find controller: %w", err)
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return 0, fmt.Errorf("%w: dial controller: %v", ErrBrokerUnavailable, err)
	}
	defer ctrlConn.Close()

	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             spec.Name,
		NumPartitions:     spec.Partitions,
		ReplicationFactor: spec.ReplicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return 0, fmt.Errorf("kafka: create topic %s: %w", spec.Name, err)
	}

	partitions, err := conn.ReadPartitions(spec.Name)
	if err != nil {
		return 0, fmt.Errorf("kafka: read partitions of %s: %w", spec.Name, err)
	}
	return len(partitions), nil
}

// NewWriter hashes on the message key so every update for a pair lands on
// the same partition, in order.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:           brokers,
		Topic:             topic,
		GroupID:           group,
		MinBytes:          1,
		MaxBytes:          10e6,
		HeartbeatInterval: 3 * time.Second,
		SessionTimeout:    30 * time.Second,
		CommitInterval:    time.Second,
		StartOffset:       kafka.LastOffset,
	})
}
