package inbox_repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	qt "github.com/frankban/quicktest"

	"booking-payments/internal/domain"
)

func newInboxMessage() *domain.InboxMessage {
	return &domain.InboxMessage{
		ID:             "c7f1f0a4-3a1c-4d0b-8c55-2f4e9a1d1b01",
		KafkaTopic:     "payment_confirmations",
		KafkaPartition: 0,
		KafkaOffset:    17,
		ConsumerGroup:  "booking-payments-group",
		Payload:        []byte(`{"payment_id":"pay_1","payment_link_id":"plink_1"}`),
		Status:         domain.InboxStatusProcessing,
		ReceivedAt:     time.Now(),
	}
}

func TestCreateOrGetMessageTxInserts(t *testing.T) {
	c := qt.New(t)

	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	defer db.Close()

	msg := newInboxMessage()
	mock.ExpectQuery(regexp.QuoteMeta("ON CONFLICT (kafka_topic, kafka_partition, kafka_offset, consumer_group) DO NOTHING")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(msg.ID))

	stored, err := NewInboxRepository().CreateOrGetMessageTx(context.Background(), db, msg)
	c.Assert(err, qt.IsNil)
	c.Assert(stored, qt.Equals, msg)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestCreateOrGetMessageTxReturnsExisting(t *testing.T) {
	c := qt.New(t)

	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	defer db.Close()

	msg := newInboxMessage()
	processedAt := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO inbox_messages")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta("FROM inbox_messages")).
		WithArgs("payment_confirmations", 0, int64(17), "booking-payments-group").
		WillReturnRows(sqlmock.NewRows([]string{"id", "kafka_topic", "kafka_partition", "kafka_offset", "consumer_group", "payload", "status", "received_at", "processed_at"}).
			AddRow("first-id", "payment_confirmations", 0, int64(17), "booking-payments-group", msg.Payload, "PROCESSED", processedAt, processedAt))

	stored, err := NewInboxRepository().CreateOrGetMessageTx(context.Background(), db, msg)
	c.Assert(err, qt.IsNil)
	c.Assert(stored.ID, qt.Equals, "first-id")
	c.Assert(stored.IsProcessed(), qt.IsTrue)
	c.Assert(stored.ProcessedAt, qt.Not(qt.IsNil))
}

func TestUpdateStatusTxNotFound(t *testing.T) {
	c := qt.New(t)

	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE inbox_messages")).
		WithArgs("PROCESSED", sqlmock.AnyArg(), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = NewInboxRepository().UpdateStatusTx(context.Background(), db, "missing", domain.InboxStatusProcessed)
	c.Assert(errors.Is(err, domain.ErrInboxMessageNotFound), qt.IsTrue)
}
