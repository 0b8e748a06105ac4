package kafka_infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageHandler processes one message. A nil return commits the offset.
// An error makes the consumer retry the same message with backoff; later
// offsets of the partition are not committed until it succeeds.
type MessageHandler func(ctx context.Context, message kafka.Message) error

// messageReader is the part of *kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader         messageReader
	topic          string
	groupID        string
	handler        MessageHandler
	handlerTimeout time.Duration
	minBackoff     time.Duration
	maxBackoff     time.Duration
	logger         *zap.Logger
}

func NewConsumer(brokers []string, topic, groupID string, handler MessageHandler, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     time.Second,
		StartOffset: kafka.FirstOffset,
		Logger:      kafka.LoggerFunc(logger.Sugar().Debugf),
		ErrorLogger: kafka.LoggerFunc(logger.Sugar().Errorf),
	})
	return newConsumer(reader, topic, groupID, handler, logger)
}

func newConsumer(reader messageReader, topic, groupID string, handler MessageHandler, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader:         reader,
		topic:          topic,
		groupID:        groupID,
		handler:        handler,
		handlerTimeout: 25 * time.Second,
		minBackoff:     time.Second,
		maxBackoff:     30 * time.Second,
		logger:         logger,
	}
}

// Consume blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Consume(ctx context.Context) error {
	c.logger.Info("Kafka consumer started",
		zap.String("topic", c.topic),
		zap.String("group_id", c.groupID))

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, kafka.ErrGroupClosed) {
				c.logger.Info("Kafka consumer stopped", zap.String("topic", c.topic))
				return nil
			}
			c.logger.Error("Error fetching message from Kafka", zap.String("topic", c.topic), zap.Error(err))
			if !sleep(ctx, time.Second) {
				return nil
			}
			continue
		}

		if !c.handleWithRetry(ctx, m) {
			c.logger.Info("Kafka consumer stopped with message unhandled",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset))
			return nil
		}

		commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := c.reader.CommitMessages(commitCtx, m); err != nil {
			c.logger.Error("Failed to commit Kafka offset",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
		}
		cancel()
	}
}

// handleWithRetry runs the handler until it succeeds. It reports false when
// ctx was cancelled first, in which case the offset must not be committed.
func (c *Consumer) handleWithRetry(ctx context.Context, m kafka.Message) bool {
	backoff := c.minBackoff
	for attempt := 1; ; attempt++ {
		handleCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.handlerTimeout)
		err := c.handler(handleCtx, m)
		cancel()
		if err == nil {
			return true
		}

		c.logger.Error("Error handling Kafka message, retrying",
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		if !sleep(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) Close() error {
	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close kafka consumer reader: %w", err)
	}
	c.logger.Info("Kafka consumer reader closed", zap.String("topic", c.topic))
	return nil
}
