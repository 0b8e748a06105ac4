package outbox

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"booking-payments/internal/domain"
)

type OutboxRepository interface {
	GetPendingMessagesTx(ctx context.Context, querier domain.Querier, limit int) ([]domain.OutboxMessage, error)
	UpdateMessageStatusTx(ctx context.Context, querier domain.Querier, id string, status domain.OutboxMessageStatus) error
}

// Publisher delivers one outbox message to the broker. messageID is the
// outbox row id, stable across redeliveries; key only drives partitioning
// or routing.
type Publisher interface {
	Publish(ctx context.Context, messageID, topic, key string, payload []byte) error
}

type Config struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	BatchSize    int
}

// Processor relays pending outbox rows to the broker. Rows are locked with
// SKIP LOCKED so several instances can poll the same table.
type Processor struct {
	db         *sql.DB
	outboxRepo OutboxRepository
	publisher  Publisher
	cfg        Config
	logger     *zap.Logger
}

func NewProcessor(db *sql.DB, outboxRepo OutboxRepository, publisher Publisher, cfg Config, logger *zap.Logger) *Processor {
	return &Processor{
		db:         db,
		outboxRepo: outboxRepo,
		publisher:  publisher,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run polls until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.logger.Info("Outbox processor started",
		zap.Duration("poll_interval", p.cfg.PollInterval),
		zap.Int("batch_size", p.cfg.BatchSize))

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch publishes one batch and returns how many messages were sent.
// A publish failure stops the batch so later rows keep their order; the
// failed row stays PENDING for the next tick.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		p.logger.Error("Failed to begin outbox transaction", zap.Error(err))
		return 0
	}
	defer tx.Rollback()

	queryCtx, cancel := context.WithTimeout(ctx, p.cfg.PollTimeout)
	messages, err := p.outboxRepo.GetPendingMessagesTx(queryCtx, tx, p.cfg.BatchSize)
	cancel()
	if err != nil {
		p.logger.Error("Failed to get pending outbox messages", zap.Error(err))
		return 0
	}
	if len(messages) == 0 {
		return 0
	}

	p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

	sent := 0
	for _, msg := range messages {
		if err := p.publisher.Publish(ctx, msg.ID, msg.Topic, msg.Key, msg.Payload); err != nil {
			p.logger.Error("Failed to publish outbox message",
				zap.String("message_id", msg.ID),
				zap.String("message_type", msg.MessageType),
				zap.String("topic", msg.Topic),
				zap.Error(err))
			break
		}
		if err := p.outboxRepo.UpdateMessageStatusTx(ctx, tx, msg.ID, domain.OutboxStatusSent); err != nil {
			p.logger.Error("Failed to mark outbox message as SENT", zap.String("message_id", msg.ID), zap.Error(err))
			break
		}
		sent++
	}

	if sent == 0 {
		return 0
	}
	if err := tx.Commit(); err != nil {
		p.logger.Error("Failed to commit outbox transaction", zap.Int("sent", sent), zap.Error(err))
		return 0
	}
	p.logger.Info("Outbox messages published", zap.Int("count", sent))
	return sent
}
