package payments

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"booking-payments/internal/domain"
	"booking-payments/internal/repository/payment_order_repo"
)

// DefaultAliasPrefixes are stripped from aliases before a primary key lookup.
var DefaultAliasPrefixes = []string{"chile_"}

// OrderResolver finds the payment order behind an external link id or
// alias. Strategies, first hit wins:
//
//  1. exact payment_link_id match
//  2. known alias prefix stripped, remainder used as the order id
//  3. the stripped alias as a substring of payment_link_id, lowest id
//
// Substring hits are cached alias -> order id. The order itself is always
// re-read so a cached entry never serves a stale status.
type OrderResolver struct {
	db       domain.Querier
	repo     payment_order_repo.PaymentOrderRepository
	prefixes []string
	cache    *lru.Cache[string, int64]
	logger   *zap.Logger
}

func NewOrderResolver(db domain.Querier, repo payment_order_repo.PaymentOrderRepository, prefixes []string, cacheSize int, logger *zap.Logger) (*OrderResolver, error) {
	if len(prefixes) == 0 {
		prefixes = DefaultAliasPrefixes
	}
	cache, err := lru.New[string, int64](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create resolver cache: %w", err)
	}
	return &OrderResolver{
		db:       db,
		repo:     repo,
		prefixes: prefixes,
		cache:    cache,
		logger:   logger,
	}, nil
}

func (r *OrderResolver) Resolve(ctx context.Context, linkID string) (*domain.PaymentOrder, error) {
	linkID = strings.TrimSpace(linkID)
	if linkID == "" {
		return nil, fmt.Errorf("empty payment link id: %w", domain.ErrPaymentOrderNotFound)
	}

	order, err := r.repo.GetByLinkIDTx(ctx, r.db, linkID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, domain.ErrPaymentOrderNotFound) {
		return nil, err
	}

	alias := r.stripPrefix(linkID)
	if alias != linkID {
		if id, perr := strconv.ParseInt(alias, 10, 64); perr == nil && id > 0 {
			order, err := r.repo.GetByIDTx(ctx, r.db, id)
			if err == nil {
				r.logger.Debug("Payment order resolved by alias prefix", zap.String("alias", linkID), zap.Int64("payment_order_id", id))
				return order, nil
			}
			if !errors.Is(err, domain.ErrPaymentOrderNotFound) {
				return nil, err
			}
		}
	}

	if alias == "" {
		return nil, fmt.Errorf("payment order for link %q: %w", linkID, domain.ErrPaymentOrderNotFound)
	}

	if id, ok := r.cache.Get(alias); ok {
		order, err := r.repo.GetByIDTx(ctx, r.db, id)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrPaymentOrderNotFound) {
			return nil, err
		}
		r.cache.Remove(alias)
	}

	order, err = r.repo.FindByLinkIDFragmentTx(ctx, r.db, alias)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentOrderNotFound) {
			return nil, fmt.Errorf("payment order for link %q: %w", linkID, domain.ErrPaymentOrderNotFound)
		}
		return nil, err
	}
	r.cache.Add(alias, order.ID)
	r.logger.Info("Payment order resolved by link fragment",
		zap.String("alias", linkID),
		zap.Int64("payment_order_id", order.ID),
		zap.String("payment_link_id", order.PaymentLinkID))
	return order, nil
}

func (r *OrderResolver) stripPrefix(linkID string) string {
	for _, p := range r.prefixes {
		if p != "" && strings.HasPrefix(linkID, p) {
			return strings.TrimPrefix(linkID, p)
		}
	}
	return linkID
}
