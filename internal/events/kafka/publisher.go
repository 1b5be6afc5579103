package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models/events"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes ledger events to a kafka topic, keyed so that one
// account's events land on one partition in order.
type Publisher struct {
	writer messageWriter
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:        kafka.TCP(brokers...),
			Topic:       topic,
			Balancer:    &kafka.Hash{},
			Compression: kafka.Lz4,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, event events.LedgerEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("write %s event: %w", event.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
