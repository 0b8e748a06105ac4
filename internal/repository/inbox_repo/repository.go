package inbox_repo

import (
	"context"

	"booking-payments/internal/domain"
)

type InboxRepository interface {
	// CreateOrGetMessageTx stores msg unless a message with the same Kafka
	// coordinates exists, in which case the stored one is returned.
	CreateOrGetMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) (*domain.InboxMessage, error)
	UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.InboxMessageStatus) error
	GetMessageByKafkaMetadataTx(ctx context.Context, querier domain.Querier, topic string, partition int, offset int64, consumerGroup string) (*domain.InboxMessage, error)
}
