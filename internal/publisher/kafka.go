// Package publisher writes poll snapshots to downstream consumers.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/mr1hm/go-weather-alerts/internal/models"
)

// KafkaPublisher produces one message per successful poll, keyed by feed ID
// so a feed's snapshots stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	logger *slog.Logger
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return &KafkaPublisher{writer: w, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, snap *models.Snapshot) error {
	msg, err := serializeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write snapshot for %s: %w", snap.FeedID, err)
	}
	p.logger.Debug("published snapshot", "feed_id", snap.FeedID, "count", snap.Count)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeSnapshot(snap *models.Snapshot) (kafkago.Message, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize snapshot: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(snap.FeedID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "feed_id", Value: []byte(snap.FeedID)},
			{Key: "updated_at", Value: []byte(snap.UpdatedAt.Format(time.RFC3339))},
		},
	}, nil
}
