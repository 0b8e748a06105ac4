package kafka_infra

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer writes messages synchronously so the outbox only marks a row
// SENT after the broker acknowledged it.
type Producer struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewProducer(brokerURLs []string, logger *zap.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerURLs...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		Logger:       kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Debug(fmt.Sprintf(msg, args...)) }),
		ErrorLogger:  kafka.LoggerFunc(func(msg string, args ...interface{}) { logger.Error(fmt.Sprintf(msg, args...)) }),
	}
	return &Producer{writer: writer, logger: logger}
}

// MessageIDHeader carries the outbox message id so consumers can drop
// redeliveries.
const MessageIDHeader = "message_id"

func newMessage(messageID, topic, key string, payload []byte) kafka.Message {
	return kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   payload,
		Headers: []kafka.Header{{Key: MessageIDHeader, Value: []byte(messageID)}},
	}
}

// Publish writes payload to topic. Messages sharing a key land on the same
// partition.
func (p *Producer) Publish(ctx context.Context, messageID, topic, key string, payload []byte) error {
	msg := newMessage(messageID, topic, key, payload)

	produceCtx, cancel := context.WithTimeout(ctx, p.writer.WriteTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(produceCtx, msg); err != nil {
		return fmt.Errorf("produce message to kafka topic %s: %w", topic, err)
	}
	p.logger.Debug("Message produced to Kafka", zap.String("topic", topic), zap.String("key", key), zap.String("message_id", messageID))
	return nil
}

func (p *Producer) Close() error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}
