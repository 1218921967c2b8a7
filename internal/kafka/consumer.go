package kafka

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

type Consumer struct {
	reader *kafka.Reader
}

func NewConsumer(brokers []string, groupID, topic string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func decodeChangeEvent(value []byte) (ChangeEvent, error) {
	var event ChangeEvent
	err := json.Unmarshal(value, &event)
	return event, err
}

// Consume reads change events until the context is canceled. Messages
// that do not decode as a ChangeEvent are logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handler func(context.Context, ChangeEvent) error) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return err
		}

		event, err := decodeChangeEvent(msg.Value)
		if err != nil {
			log.Printf("WARNING: skipping malformed change event at offset %d: %v", msg.Offset, err)
			continue
		}

		if err := handler(ctx, event); err != nil {
			return err
		}
	}
}
