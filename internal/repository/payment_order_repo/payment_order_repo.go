package payment_order_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"booking-payments/internal/domain"
)

const uniqueViolation = "23505"

const selectColumns = `id, amount, payment_method, payment_link_id, user_id, booking_id, salon_id, status, created_at, updated_at`

type paymentOrderRepository struct{}

func NewPaymentOrderRepository() PaymentOrderRepository {
	return &paymentOrderRepository{}
}

func (r *paymentOrderRepository) CreateTx(ctx context.Context, querier domain.Querier, order *domain.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (amount, payment_method, payment_link_id, user_id, booking_id, salon_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING id
	`
	now := time.Now().UTC()
	err := querier.QueryRowContext(ctx, query,
		order.Amount,
		string(order.PaymentMethod),
		nullString(order.PaymentLinkID),
		order.UserID,
		order.BookingID,
		order.SalonID,
		string(order.Status),
		now,
	).Scan(&order.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create payment order: %w", domain.ErrDuplicateLinkID)
		}
		return fmt.Errorf("create payment order for booking %d: %w", order.BookingID, err)
	}
	order.CreatedAt = now
	order.UpdatedAt = now
	return nil
}

func (r *paymentOrderRepository) GetByIDTx(ctx context.Context, querier domain.Querier, id int64) (*domain.PaymentOrder, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_orders WHERE id = $1`
	order, err := scanOrder(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment order %d: %w", id, domain.ErrPaymentOrderNotFound)
		}
		return nil, fmt.Errorf("get payment order %d: %w", id, err)
	}
	return order, nil
}

func (r *paymentOrderRepository) GetByLinkIDTx(ctx context.Context, querier domain.Querier, linkID string) (*domain.PaymentOrder, error) {
	query := `SELECT ` + selectColumns + ` FROM payment_orders WHERE payment_link_id = $1`
	order, err := scanOrder(querier.QueryRowContext(ctx, query, linkID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment order with link %q: %w", linkID, domain.ErrPaymentOrderNotFound)
		}
		return nil, fmt.Errorf("get payment order by link %q: %w", linkID, err)
	}
	return order, nil
}

// FindByLinkIDFragmentTx returns the lowest-id order whose link id contains
// fragment. LIKE wildcards in fragment are matched literally.
func (r *paymentOrderRepository) FindByLinkIDFragmentTx(ctx context.Context, querier domain.Querier, fragment string) (*domain.PaymentOrder, error) {
	if fragment == "" {
		return nil, fmt.Errorf("empty link fragment: %w", domain.ErrPaymentOrderNotFound)
	}
	query := `SELECT ` + selectColumns + `
		FROM payment_orders
		WHERE payment_link_id LIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY id ASC
		LIMIT 1`
	order, err := scanOrder(querier.QueryRowContext(ctx, query, escapeLike(fragment)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("payment order with link containing %q: %w", fragment, domain.ErrPaymentOrderNotFound)
		}
		return nil, fmt.Errorf("search payment order by link fragment %q: %w", fragment, err)
	}
	return order, nil
}

// AttachLinkIDTx sets the link id only while it is still NULL.
func (r *paymentOrderRepository) AttachLinkIDTx(ctx context.Context, querier domain.Querier, id int64, linkID string) error {
	query := `
		UPDATE payment_orders
		SET payment_link_id = $1, updated_at = $2
		WHERE id = $3 AND payment_link_id IS NULL
	`
	res, err := querier.ExecContext(ctx, query, linkID, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("attach link %q to payment order %d: %w", linkID, id, domain.ErrDuplicateLinkID)
		}
		return fmt.Errorf("attach link to payment order %d: %w", id, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for link attach on payment order %d: %w", id, err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetByIDTx(ctx, querier, id); err != nil {
			return err
		}
		return fmt.Errorf("payment order %d: %w", id, domain.ErrLinkAlreadyAttached)
	}
	return nil
}

// TransitionStatusTx moves the order from one status to another and reports
// whether this call performed the change.
func (r *paymentOrderRepository) TransitionStatusTx(ctx context.Context, querier domain.Querier, id int64, from, to domain.PaymentOrderStatus) (bool, error) {
	query := `
		UPDATE payment_orders
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`
	res, err := querier.ExecContext(ctx, query, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("update payment order %d status %s -> %s: %w", id, from, to, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for payment order %d status update: %w", id, err)
	}
	return rowsAffected == 1, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.PaymentOrder, error) {
	var (
		order  domain.PaymentOrder
		linkID sql.NullString
		method string
		status string
	)
	err := row.Scan(
		&order.ID,
		&order.Amount,
		&method,
		&linkID,
		&order.UserID,
		&order.BookingID,
		&order.SalonID,
		&status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.PaymentMethod = domain.PaymentMethod(method)
	order.Status = domain.PaymentOrderStatus(status)
	if linkID.Valid {
		order.PaymentLinkID = linkID.String
	}
	return &order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
