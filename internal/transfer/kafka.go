package transfer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	interfaces "github.com/sheikh-saqib/commitment-savings-ledger/internal/interfaces"
	"github.com/sheikh-saqib/commitment-savings-ledger/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransferer hands transfer instructions to the asset protocol through
// a kafka topic. The write is synchronous and waits for all in-sync replicas,
// so a nil error means the instruction is durable.
type KafkaTransferer struct {
	writer messageWriter
}

func NewKafkaTransferer(brokers []string, topic string) *KafkaTransferer {
	return &KafkaTransferer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Compression:  kafka.Lz4,
		},
	}
}

func (k *KafkaTransferer) TransferAsset(ctx context.Context, transfer models.Transfer) error {
	data, err := json.Marshal(transfer)
	if err != nil {
		return err
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(transfer.AssetID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "transfer_id", Value: []byte(transfer.ID)},
			{Key: "reason", Value: []byte(transfer.Reason)},
		},
	})
	if err != nil {
		return fmt.Errorf("write transfer %s: %w", transfer.ID, err)
	}
	return nil
}

func (k *KafkaTransferer) Close() error {
	return k.writer.Close()
}

var _ interfaces.AssetTransferer = (*KafkaTransferer)(nil)
