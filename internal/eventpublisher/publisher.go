// Package eventpublisher announces committed ledger entries to other services.
package eventpublisher

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/go-petr/minutes-ledger/internal/domain"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

// Publisher announces ledger events and releases its resources on Close.
type Publisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
	Close() error
}

// New returns a kafka publisher, or Nop when no brokers are given.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}

	return NewKafka(brokers, topic)
}

// Kafka publishes ledger events to a kafka topic keyed by account id,
// so that events of one account land on one partition in commit order.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns Kafka publisher writing to topic on the given brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// NewMessage encodes the event as a kafka message.
func NewMessage(event domain.LedgerEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, errors.Wrap(err, "encode ledger event")
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.AccountID, 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Kind)},
		},
		Time: event.CreatedAt,
	}

	return msg, nil
}

// Publish writes the event to kafka.
func (k *Kafka) Publish(ctx context.Context, event domain.LedgerEvent) error {
	msg, err := NewMessage(event)
	if err != nil {
		return err
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "publish entry %d", event.EntryID)
	}

	return nil
}

// Close flushes pending messages and closes the writer.
func (k *Kafka) Close() error {
	return k.writer.Close()
}

// Nop drops every event. It is used when no brokers are configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, domain.LedgerEvent) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
