package payment_order_repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	qt "github.com/frankban/quicktest"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"booking-payments/internal/domain"
)

var orderColumns = []string{"id", "amount", "payment_method", "payment_link_id", "user_id", "booking_id", "salon_id", "status", "created_at", "updated_at"}

func newMock(c *qt.C) (sqlmock.Sqlmock, func() domain.Querier) {
	db, mock, err := sqlmock.New()
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { db.Close() })
	return mock, func() domain.Querier { return db }
}

func TestCreateTxAssignsID(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payment_orders")).
		WithArgs(sqlmock.AnyArg(), "MOCK", nil, int64(7), int64(12), int64(3), "PENDING", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(41)))

	order := &domain.PaymentOrder{
		Amount:        decimal.RequireFromString("19990.00"),
		PaymentMethod: domain.PaymentMethodMock,
		UserID:        7,
		BookingID:     12,
		SalonID:       3,
		Status:        domain.PaymentOrderStatusPending,
	}
	err := NewPaymentOrderRepository().CreateTx(context.Background(), q(), order)
	c.Assert(err, qt.IsNil)
	c.Assert(order.ID, qt.Equals, int64(41))
	c.Assert(order.CreatedAt.IsZero(), qt.IsFalse)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestGetByIDTx(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_orders WHERE id = $1")).
		WithArgs(int64(65)).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(65), "150.50", "STRIPE", "cs_test_1", int64(7), int64(12), int64(3), "SUCCESS", now, now))

	order, err := NewPaymentOrderRepository().GetByIDTx(context.Background(), q(), 65)
	c.Assert(err, qt.IsNil)
	c.Assert(order.ID, qt.Equals, int64(65))
	c.Assert(order.Amount.StringFixed(2), qt.Equals, "150.50")
	c.Assert(order.PaymentMethod, qt.Equals, domain.PaymentMethodStripe)
	c.Assert(order.PaymentLinkID, qt.Equals, "cs_test_1")
	c.Assert(order.Status, qt.Equals, domain.PaymentOrderStatusSuccess)
}

func TestGetByIDTxNotFound(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_orders WHERE id = $1")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(orderColumns))

	_, err := NewPaymentOrderRepository().GetByIDTx(context.Background(), q(), 99)
	c.Assert(errors.Is(err, domain.ErrPaymentOrderNotFound), qt.IsTrue)
}

func TestGetByLinkIDTxNullLink(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE payment_link_id = $1")).
		WithArgs("plink_1").
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(1), "10.00", "RAZORPAY", nil, int64(7), int64(12), int64(3), "PENDING", now, now))

	order, err := NewPaymentOrderRepository().GetByLinkIDTx(context.Background(), q(), "plink_1")
	c.Assert(err, qt.IsNil)
	c.Assert(order.PaymentLinkID, qt.Equals, "")
	c.Assert(order.HasLink(), qt.IsFalse)
}

func TestFindByLinkIDFragmentTxEscapesWildcards(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE payment_link_id LIKE")).
		WithArgs(`65\_x\%`).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(3), "10.00", "MOCK", "MOCK_PAY_65_x%", int64(7), int64(12), int64(3), "PENDING", now, now))

	order, err := NewPaymentOrderRepository().FindByLinkIDFragmentTx(context.Background(), q(), "65_x%")
	c.Assert(err, qt.IsNil)
	c.Assert(order.ID, qt.Equals, int64(3))
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestFindByLinkIDFragmentTxEmpty(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)

	_, err := NewPaymentOrderRepository().FindByLinkIDFragmentTx(context.Background(), q(), "")
	c.Assert(errors.Is(err, domain.ErrPaymentOrderNotFound), qt.IsTrue)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestAttachLinkIDTx(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)

	mock.ExpectExec(regexp.QuoteMeta("SET payment_link_id = $1")).
		WithArgs("MOCK_PAY_5_1700000000000", sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewPaymentOrderRepository().AttachLinkIDTx(context.Background(), q(), 5, "MOCK_PAY_5_1700000000000")
	c.Assert(err, qt.IsNil)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}

func TestAttachLinkIDTxRefusesOverwrite(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET payment_link_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM payment_orders WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows(orderColumns).
			AddRow(int64(5), "10.00", "MOCK", "existing", int64(7), int64(12), int64(3), "PENDING", now, now))

	err := NewPaymentOrderRepository().AttachLinkIDTx(context.Background(), q(), 5, "other")
	c.Assert(errors.Is(err, domain.ErrLinkAlreadyAttached), qt.IsTrue)
}

func TestAttachLinkIDTxDuplicate(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)

	mock.ExpectExec(regexp.QuoteMeta("SET payment_link_id = $1")).
		WillReturnError(&pq.Error{Code: "23505"})

	err := NewPaymentOrderRepository().AttachLinkIDTx(context.Background(), q(), 5, "dup")
	c.Assert(errors.Is(err, domain.ErrDuplicateLinkID), qt.IsTrue)
}

func TestTransitionStatusTx(t *testing.T) {
	c := qt.New(t)
	mock, q := newMock(c)

	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $3 AND status = $4")).
		WithArgs("SUCCESS", sqlmock.AnyArg(), int64(5), "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $3 AND status = $4")).
		WithArgs("SUCCESS", sqlmock.AnyArg(), int64(5), "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewPaymentOrderRepository()
	applied, err := repo.TransitionStatusTx(context.Background(), q(), 5, domain.PaymentOrderStatusPending, domain.PaymentOrderStatusSuccess)
	c.Assert(err, qt.IsNil)
	c.Assert(applied, qt.IsTrue)

	applied, err = repo.TransitionStatusTx(context.Background(), q(), 5, domain.PaymentOrderStatusPending, domain.PaymentOrderStatusSuccess)
	c.Assert(err, qt.IsNil)
	c.Assert(applied, qt.IsFalse)
	c.Assert(mock.ExpectationsWereMet(), qt.IsNil)
}
