package inbox_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"booking-payments/internal/domain"
)

type inboxRepository struct{}

func NewInboxRepository() InboxRepository {
	return &inboxRepository{}
}

func (r *inboxRepository) CreateOrGetMessageTx(ctx context.Context, querier domain.Querier, msg *domain.InboxMessage) (*domain.InboxMessage, error) {
	query := `
		INSERT INTO inbox_messages (id, kafka_topic, kafka_partition, kafka_offset, consumer_group, payload, status, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (kafka_topic, kafka_partition, kafka_offset, consumer_group) DO NOTHING
		RETURNING id
	`
	var id string
	err := querier.QueryRowContext(ctx, query,
		msg.ID,
		msg.KafkaTopic,
		msg.KafkaPartition,
		msg.KafkaOffset,
		msg.ConsumerGroup,
		msg.Payload,
		string(msg.Status),
		msg.ReceivedAt,
	).Scan(&id)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("create inbox message %s/%d/%d: %w", msg.KafkaTopic, msg.KafkaPartition, msg.KafkaOffset, err)
	}

	existing, err := r.GetMessageByKafkaMetadataTx(ctx, querier, msg.KafkaTopic, msg.KafkaPartition, msg.KafkaOffset, msg.ConsumerGroup)
	if err != nil {
		return nil, fmt.Errorf("load existing inbox message: %w", err)
	}
	return existing, nil
}

func (r *inboxRepository) UpdateStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.InboxMessageStatus) error {
	query := `
		UPDATE inbox_messages
		SET status = $1, processed_at = CASE WHEN $1::VARCHAR IN ('PROCESSED', 'FAILED') THEN $2 ELSE processed_at END
		WHERE id = $3
	`
	res, err := querier.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update inbox message %s status: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for inbox message %s: %w", id, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("inbox message %s: %w", id, domain.ErrInboxMessageNotFound)
	}
	return nil
}

func (r *inboxRepository) GetMessageByKafkaMetadataTx(ctx context.Context, querier domain.Querier, topic string, partition int, offset int64, consumerGroup string) (*domain.InboxMessage, error) {
	query := `
		SELECT id, kafka_topic, kafka_partition, kafka_offset, consumer_group, payload, status, received_at, processed_at
		FROM inbox_messages
		WHERE kafka_topic = $1 AND kafka_partition = $2 AND kafka_offset = $3 AND consumer_group = $4
	`
	var (
		msg         domain.InboxMessage
		status      string
		processedAt sql.NullTime
	)
	err := querier.QueryRowContext(ctx, query, topic, partition, offset, consumerGroup).Scan(
		&msg.ID,
		&msg.KafkaTopic,
		&msg.KafkaPartition,
		&msg.KafkaOffset,
		&msg.ConsumerGroup,
		&msg.Payload,
		&status,
		&msg.ReceivedAt,
		&processedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inbox message %s/%d/%d: %w", topic, partition, offset, domain.ErrInboxMessageNotFound)
		}
		return nil, fmt.Errorf("get inbox message %s/%d/%d: %w", topic, partition, offset, err)
	}
	msg.Status = domain.InboxMessageStatus(status)
	if processedAt.Valid {
		msg.ProcessedAt = &processedAt.Time
	}
	return &msg, nil
}
