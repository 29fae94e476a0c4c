package notify

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"anarchy.ttfm/storefront/orders"
	"github.com/segmentio/kafka-go"
)

const DefaultTopic = "storefront.orders.completed"

type KafkaConfig struct {
	Brokers []string
	// Defaults to DefaultTopic
	Topic string
	// Wait for the write to be acknowledged
	Sync bool
}

// Kafka publishes completion events keyed by order id
type Kafka struct {
	writer *kafka.Writer
}

var _ Notifier = (*Kafka)(nil)

func NewKafka(config KafkaConfig) (k *Kafka) {
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}

	logger := log.New(os.Stdout, "kafka-writer: ", 0)
	k = &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Topic:        config.Topic,
			Balancer:     &kafka.Hash{},
			ErrorLogger:  kafka.LoggerFunc(logger.Printf),
			BatchTimeout: 10 * time.Millisecond,
			Async:        !config.Sync,
			RequiredAcks: kafka.RequireOne,
		},
	}
	return k
}

func (k *Kafka) OrderCompleted(ctx context.Context, order orders.Order) (err error) {
	event := NewEvent(order)
	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.OrderId),
		Value: event.Bytes(),
	})
	if err != nil {
		return fmt.Errorf("failed to publish completion: %w", err)
	}
	return nil
}

func (k *Kafka) Close() (err error) {
	return k.writer.Close()
}
