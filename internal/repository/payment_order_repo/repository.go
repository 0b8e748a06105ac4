package payment_order_repo

import (
	"context"

	"booking-payments/internal/domain"
)

type PaymentOrderRepository interface {
	CreateTx(ctx context.Context, querier domain.Querier, order *domain.PaymentOrder) error
	GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.PaymentOrder, error)
	GetByLinkIDTx(ctx context.Context, querier domain.Querier, linkID string) (*domain.PaymentOrder, error)
	FindByLinkIDFragmentTx(ctx context.Context, querier domain.Querier, fragment string) (*domain.PaymentOrder, error)
	AttachLinkIDTx(ctx context.Context, querier domain.Querier, id int64, linkID string) error
	TransitionStatusTx(ctx context.Context, querier domain.Querier, id int64, from, to domain.PaymentOrderStatus) (bool, error)
}
