package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	qt "github.com/frankban/quicktest"
	"go.uber.org/zap"

	"booking-payments/internal/domain"
)

type fakeOutbox struct {
	pending []domain.OutboxMessage
	sent    []string
}

func (f *fakeOutbox) GetPendingMessagesTx(_ context.Context, _ domain.Querier, limit int) ([]domain.OutboxMessage, error) {
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

func (f *fakeOutbox) UpdateMessageStatusTx(_ context.Context, _ domain.Querier, id string, status domain.OutboxMessageStatus) error {
	if status == domain.OutboxStatusSent {
		f.sent = append(f.sent, id)
	}
	return nil
}

type fakePublisher struct {
	published []string
	ids       []string
	failOn    string
}

func (f *fakePublisher) Publish(_ context.Context, messageID, topic, key string, _ []byte) error {
	if key == f.failOn {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, topic+"/"+key)
	f.ids = append(f.ids, messageID)
	return nil
}

var testConfig = Config{PollInterval: 10 * time.Millisecond, PollTimeout: time.Second, BatchSize: 10}

func messages() []domain.OutboxMessage {
	return []domain.OutboxMessage{
		{ID: "m1", Topic: "payment_notifications", Key: "12", Status: domain.OutboxStatusPending},
		{ID: "m2", Topic: "booking_payment_updates", Key: "13", Status: domain.OutboxStatusPending},
	}
}

func TestProcessBatchKeepsEventIdentityForSharedKey(t *testing.T) {
	c := qt.New(t)

	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	// Both events of one booking share the partition key.
	repo := &fakeOutbox{pending: []domain.OutboxMessage{
		{ID: "notify-1", Topic: "payment_notifications", Key: "12", Status: domain.OutboxStatusPending},
		{ID: "booking-1", Topic: "booking_payment_updates", Key: "12", Status: domain.OutboxStatusPending},
	}}
	pub := &fakePublisher{}
	p := NewProcessor(db, repo, pub, testConfig, zap.NewNop())

	c.Assert(p.ProcessBatch(context.Background()), qt.Equals, 2)
	c.Assert(pub.ids, qt.DeepEquals, []string{"notify-1", "booking-1"})
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestProcessBatchPublishesAndCommits(t *testing.T) {
	c := qt.New(t)

	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeOutbox{pending: messages()}
	pub := &fakePublisher{}
	p := NewProcessor(db, repo, pub, testConfig, zap.NewNop())

	c.Assert(p.ProcessBatch(context.Background()), qt.Equals, 2)
	c.Assert(pub.published, qt.DeepEquals, []string{"payment_notifications/12", "booking_payment_updates/13"})
	c.Assert(pub.ids, qt.DeepEquals, []string{"m1", "m2"})
	c.Assert(repo.sent, qt.DeepEquals, []string{"m1", "m2"})
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestProcessBatchStopsAtPublishFailure(t *testing.T) {
	c := qt.New(t)

	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectCommit()

	repo := &fakeOutbox{pending: messages()}
	pub := &fakePublisher{failOn: "13"}
	p := NewProcessor(db, repo, pub, testConfig, zap.NewNop())

	c.Assert(p.ProcessBatch(context.Background()), qt.Equals, 1)
	c.Assert(repo.sent, qt.DeepEquals, []string{"m1"})
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestProcessBatchNothingPendingRollsBack(t *testing.T) {
	c := qt.New(t)

	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	defer db.Close()
	mock.ExpectBegin()
	mock.ExpectRollback()

	p := NewProcessor(db, &fakeOutbox{}, &fakePublisher{}, testConfig, zap.NewNop())
	c.Assert(p.ProcessBatch(context.Background()), qt.Equals, 0)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestRunStopsOnCancel(t *testing.T) {
	c := qt.New(t)

	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	defer db.Close()
	mock.MatchExpectationsInOrder(false)
	for i := 0; i < 100; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	p := NewProcessor(db, &fakeOutbox{}, &fakePublisher{}, testConfig, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(25 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		c.Fatal("processor did not stop after cancel")
	}
}
