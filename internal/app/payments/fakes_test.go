package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"booking-payments/internal/domain"
	"booking-payments/internal/gateway"
)

// memoryOrders is an in-memory PaymentOrderRepository.
type memoryOrders struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]domain.PaymentOrder

	transitionErr error
	lookups       int
}

func newMemoryOrders() *memoryOrders {
	return &memoryOrders{nextID: 1, orders: map[int64]domain.PaymentOrder{}}
}

func (m *memoryOrders) put(o domain.PaymentOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	if o.ID >= m.nextID {
		m.nextID = o.ID + 1
	}
}

func (m *memoryOrders) get(id int64) domain.PaymentOrder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id]
}

func (m *memoryOrders) CreateTx(_ context.Context, _ domain.Querier, order *domain.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.nextID
	m.nextID++
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = *order
	return nil
}

func (m *memoryOrders) GetByIDTx(_ context.Context, _ domain.Querier, id int64) (*domain.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("payment order %d: %w", id, domain.ErrPaymentOrderNotFound)
	}
	return &o, nil
}

func (m *memoryOrders) GetByLinkIDTx(_ context.Context, _ domain.Querier, linkID string) (*domain.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.PaymentLinkID == linkID {
			return &o, nil
		}
	}
	return nil, domain.ErrPaymentOrderNotFound
}

func (m *memoryOrders) FindByLinkIDFragmentTx(_ context.Context, _ domain.Querier, fragment string) (*domain.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	ids := make([]int64, 0, len(m.orders))
	for id := range m.orders {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		o := m.orders[id]
		if o.PaymentLinkID != "" && strings.Contains(o.PaymentLinkID, fragment) {
			return &o, nil
		}
	}
	return nil, domain.ErrPaymentOrderNotFound
}

func (m *memoryOrders) AttachLinkIDTx(_ context.Context, _ domain.Querier, id int64, linkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrPaymentOrderNotFound
	}
	if o.PaymentLinkID != "" {
		return domain.ErrLinkAlreadyAttached
	}
	o.PaymentLinkID = linkID
	m.orders[id] = o
	return nil
}

func (m *memoryOrders) TransitionStatusTx(_ context.Context, _ domain.Querier, id int64, from, to domain.PaymentOrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transitionErr != nil {
		return false, m.transitionErr
	}
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	m.orders[id] = o
	return true, nil
}

// txBuffer stands in for *sql.Tx and collects the events written through it.
type txBuffer struct {
	notifications []int64
	bookings      []domain.PaymentOrder
}

func (*txBuffer) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("txBuffer: exec not supported")
}

func (*txBuffer) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("txBuffer: query not supported")
}

func (*txBuffer) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// eventLog is both producers and the TxRunner. Events reach the log only
// when the transaction they were written in commits.
type eventLog struct {
	mu            sync.Mutex
	notifications []int64
	bookings      []domain.PaymentOrder
	notifyErr     error
}

func (e *eventLog) SendNotificationEvent(_ context.Context, q domain.Querier, bookingID, _, _ int64) error {
	if e.notifyErr != nil {
		return e.notifyErr
	}
	tx := q.(*txBuffer)
	tx.notifications = append(tx.notifications, bookingID)
	return nil
}

func (e *eventLog) SendBookingUpdateEvent(_ context.Context, q domain.Querier, order *domain.PaymentOrder) error {
	tx := q.(*txBuffer)
	tx.bookings = append(tx.bookings, *order)
	return nil
}

func (e *eventLog) WithinTx(ctx context.Context, fn func(ctx context.Context, q domain.Querier) error) error {
	tx := &txBuffer{}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifications = append(e.notifications, tx.notifications...)
	e.bookings = append(e.bookings, tx.bookings...)
	return nil
}

func (e *eventLog) counts() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.notifications), len(e.bookings)
}

// fakeGateway records calls and returns canned results.
type fakeGateway struct {
	linkErr   error
	status    *gateway.PaymentStatus
	statusErr error
	linkCalls int
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateLink(_ context.Context, _ domain.User, _ decimal.Decimal, orderID int64, _ domain.PaymentMethod) (*gateway.Link, error) {
	g.linkCalls++
	if g.linkErr != nil {
		return nil, g.linkErr
	}
	return &gateway.Link{
		ID:  fmt.Sprintf("FAKE_%d", orderID),
		URL: fmt.Sprintf("https://pay.test/%d", orderID),
	}, nil
}

func (g *fakeGateway) FetchPaymentStatus(_ context.Context, paymentID string) (*gateway.PaymentStatus, error) {
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if g.status != nil {
		return g.status, nil
	}
	return &gateway.PaymentStatus{PaymentID: paymentID, Status: "captured", Settled: true}, nil
}

type singleRegistry struct {
	gw gateway.Gateway
}

func (r singleRegistry) For(domain.PaymentMethod) (gateway.Gateway, error) {
	if r.gw == nil {
		return nil, errors.New("no gateway")
	}
	return r.gw, nil
}
