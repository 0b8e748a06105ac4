package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"booking-payments/internal/app/payments"
	"booking-payments/internal/domain"
	"booking-payments/internal/domain/event"
	kafka_infra "booking-payments/internal/infrastructure/kafka"
)

type InboxStore interface {
	CreateOrGetMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) (*domain.InboxMessage, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.InboxMessageStatus) error
}

// PaymentConfirmationHandler confirms payment orders from provider
// confirmation messages. Each Kafka record is recorded in the inbox first;
// a record already PROCESSED is acknowledged without touching the order.
func PaymentConfirmationHandler(
	service payments.PaymentService,
	inbox InboxStore,
	db domain.Querier,
	consumerGroup string,
	logger *zap.Logger,
) kafka_infra.MessageHandler {
	return func(ctx context.Context, m kafka.Message) error {
		log := logger.With(
			zap.String("topic", m.Topic),
			zap.Int("partition", m.Partition),
			zap.Int64("offset", m.Offset))

		stored, err := inbox.CreateOrGetMessageTx(ctx, db, &domain.InboxMessage{
			ID:             uuid.NewString(),
			KafkaTopic:     m.Topic,
			KafkaPartition: m.Partition,
			KafkaOffset:    m.Offset,
			ConsumerGroup:  consumerGroup,
			Payload:        m.Value,
			Status:         domain.InboxStatusProcessing,
			ReceivedAt:     time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("record inbox message: %w", err)
		}
		if stored.Status == domain.InboxStatusProcessed || stored.Status == domain.InboxStatusFailed {
			log.Info("Confirmation message already handled", zap.String("inbox_id", stored.ID), zap.String("status", string(stored.Status)))
			return nil
		}

		var msg event.PaymentConfirmationMessage
		if err := json.Unmarshal(m.Value, &msg); err != nil {
			log.Error("Malformed confirmation message, dropping", zap.Error(err))
			return inbox.UpdateStatusTx(ctx, db, stored.ID, domain.InboxStatusFailed)
		}

		applied, err := service.ConfirmByLink(ctx, msg.PaymentID, msg.PaymentLinkID)
		if err != nil {
			if errors.Is(err, domain.ErrPaymentOrderNotFound) || errors.Is(err, domain.ErrValidation) {
				log.Warn("Confirmation message cannot be applied, dropping",
					zap.String("payment_id", msg.PaymentID),
					zap.String("payment_link_id", msg.PaymentLinkID),
					zap.Error(err))
				return inbox.UpdateStatusTx(ctx, db, stored.ID, domain.InboxStatusFailed)
			}
			return fmt.Errorf("confirm payment link %s: %w", msg.PaymentLinkID, err)
		}

		if err := inbox.UpdateStatusTx(ctx, db, stored.ID, domain.InboxStatusProcessed); err != nil {
			return err
		}
		log.Info("Confirmation message processed",
			zap.String("payment_link_id", msg.PaymentLinkID),
			zap.Bool("applied", applied))
		return nil
	}
}
