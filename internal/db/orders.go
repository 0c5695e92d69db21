package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/exstoreapp/exstore/internal/models"
)

var ErrInvalidStatusTransition = errors.New("invalid order status transition")

// OrderNumberConstraint guards order-number uniqueness at the persistence
// layer; concurrent day-scoped sequence generation retries on violation.
const OrderNumberConstraint = "orders_order_number_key"

type OrderStore struct {
	pool *pgxpool.Pool
}

func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `
	id, order_number, user_id, items, shipping_address, shipping_method,
	subtotal::text, shipping_cost::text, tax::text, discount::text, total::text,
	payment_method, payment_status, payment_id, status, tracking_number,
	estimated_delivery, order_date, shipped_at, delivered_at,
	customer_notes, admin_notes, created_at, updated_at`

func (s *OrderStore) Create(ctx context.Context, order *models.Order) error {
	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to encode order items: %w", err)
	}
	addressJSON, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("failed to encode shipping address: %w", err)
	}

	query := `
		INSERT INTO orders (
			id, order_number, user_id, items, shipping_address, shipping_method,
			subtotal, shipping_cost, tax, discount, total,
			payment_method, payment_status, status, customer_notes
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING order_date, created_at, updated_at
	`
	row := s.pool.QueryRow(ctx, query,
		order.ID,
		order.OrderNumber,
		order.UserID,
		itemsJSON,
		addressJSON,
		string(order.ShippingMethod),
		order.Subtotal.StringFixed(2),
		order.ShippingCost.StringFixed(2),
		order.Tax.StringFixed(2),
		order.Discount.StringFixed(2),
		order.Total.StringFixed(2),
		string(order.PaymentMethod),
		string(order.PaymentStatus),
		string(order.Status),
		textOrNil(order.CustomerNotes),
	)
	if err := row.Scan(&order.OrderDate, &order.CreatedAt, &order.UpdatedAt); err != nil {
		return err
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return s.scanOrder(s.pool.QueryRow(ctx, query, orderID))
}

func (s *OrderStore) GetByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`
	return s.scanOrder(s.pool.QueryRow(ctx, query, orderID, userID))
}

func (s *OrderStore) GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1`
	return s.scanOrder(s.pool.QueryRow(ctx, query, orderNumber))
}

func (s *OrderStore) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Order, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders, err := s.scanOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// ListAll lists orders across all users, optionally filtered by status.
// An empty status means no filter.
func (s *OrderStore) ListAll(ctx context.Context, status models.OrderStatus, limit, offset int) ([]*models.Order, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`, string(status),
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + orderColumns + `
		FROM orders WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := s.pool.Query(ctx, query, string(status), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	orders, err := s.scanOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// LastOrderNumberOfDay returns the order number of the newest order created
// in [start, end), or "" when the day has no orders yet.
func (s *OrderStore) LastOrderNumberOfDay(ctx context.Context, start, end time.Time) (string, error) {
	var orderNumber string
	err := s.pool.QueryRow(ctx, `
		SELECT order_number FROM orders
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC LIMIT 1
	`, start, end).Scan(&orderNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return orderNumber, nil
}

// MarkPaid records a successful payment: payment settles, a pending order
// moves to confirmed, and the delivery estimate is pinned. An order that was
// already advanced past pending keeps its fulfillment status. Guarded so a
// second concurrent payment cannot settle twice and a cancelled order cannot
// be paid.
func (s *OrderStore) MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string, estimatedDelivery time.Time) error {
	query := `
		UPDATE orders
		SET payment_status = $1,
		    status = CASE WHEN status = 'pending' THEN $2 ELSE status END,
		    payment_id = $3, estimated_delivery = $4, updated_at = NOW()
		WHERE id = $5 AND payment_status <> 'paid' AND status <> 'cancelled'
	`
	cmdTag, err := s.pool.Exec(ctx, query, models.PaymentPaid, models.StatusConfirmed, paymentID, estimatedDelivery, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected unpaid and not cancelled", ErrInvalidStatusTransition)
	}
	return nil
}

// MarkPaymentFailed records a declined payment attempt. The fulfillment
// status is left untouched.
func (s *OrderStore) MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET payment_status = $1, updated_at = NOW()
		WHERE id = $2 AND payment_status <> 'paid'
	`
	cmdTag, err := s.pool.Exec(ctx, query, models.PaymentFailed, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected unpaid", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkCancelled(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('pending', 'confirmed', 'processing')
	`
	cmdTag, err := s.pool.Exec(ctx, query, models.StatusCancelled, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected pending/confirmed/processing", ErrInvalidStatusTransition)
	}
	return nil
}

// MarkShipped moves a processing order to shipped. An existing tracking
// number is never overwritten.
func (s *OrderStore) MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) error {
	query := `
		UPDATE orders
		SET status = $1, tracking_number = COALESCE(tracking_number, $2),
		    shipped_at = NOW(), updated_at = NOW()
		WHERE id = $3 AND status = 'processing'
	`
	cmdTag, err := s.pool.Exec(ctx, query, models.StatusShipped, trackingNumber, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected processing", ErrInvalidStatusTransition)
	}
	return nil
}

func (s *OrderStore) MarkDelivered(ctx context.Context, orderID uuid.UUID) error {
	query := `
		UPDATE orders
		SET status = $1, delivered_at = NOW(), updated_at = NOW()
		WHERE id = $2 AND status = 'shipped'
	`
	cmdTag, err := s.pool.Exec(ctx, query, models.StatusDelivered, orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected shipped", ErrInvalidStatusTransition)
	}
	return nil
}

// UpdateStatus applies a generic transition guarded on the expected current
// status, so a concurrent update that already moved the order makes this a
// no-op failure instead of a lost update.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus) error {
	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`
	cmdTag, err := s.pool.Exec(ctx, query, to, orderID, from)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: expected %s", ErrInvalidStatusTransition, from)
	}
	return nil
}

// UpdateAdminNotes replaces the back-office notes on an order.
func (s *OrderStore) UpdateAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) error {
	cmdTag, err := s.pool.Exec(ctx, `
		UPDATE orders SET admin_notes = $1, updated_at = NOW() WHERE id = $2
	`, textOrNil(notes), orderID)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type orderRow interface {
	Scan(dest ...any) error
}

func (s *OrderStore) scanOrder(row orderRow) (*models.Order, error) {
	var (
		order          models.Order
		itemsJSON      []byte
		addressJSON    []byte
		shippingMethod string
		subtotal       string
		shippingCost   string
		tax            string
		discount       string
		total          string
		paymentMethod  string
		paymentStatus  string
		paymentID      pgtype.Text
		status         string
		trackingNumber pgtype.Text
		estimated      pgtype.Timestamptz
		shippedAt      pgtype.Timestamptz
		deliveredAt    pgtype.Timestamptz
		customerNotes  pgtype.Text
		adminNotes     pgtype.Text
	)

	err := row.Scan(
		&order.ID,
		&order.OrderNumber,
		&order.UserID,
		&itemsJSON,
		&addressJSON,
		&shippingMethod,
		&subtotal,
		&shippingCost,
		&tax,
		&discount,
		&total,
		&paymentMethod,
		&paymentStatus,
		&paymentID,
		&status,
		&trackingNumber,
		&estimated,
		&order.OrderDate,
		&shippedAt,
		&deliveredAt,
		&customerNotes,
		&adminNotes,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}

	order.ShippingMethod = models.ShippingMethod(shippingMethod)
	order.PaymentMethod = models.PaymentMethod(paymentMethod)
	order.PaymentStatus = models.PaymentStatus(paymentStatus)
	order.Status = models.OrderStatus(status)

	if order.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("bad subtotal: %w", err)
	}
	if order.ShippingCost, err = decimal.NewFromString(shippingCost); err != nil {
		return nil, fmt.Errorf("bad shipping cost: %w", err)
	}
	if order.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("bad tax: %w", err)
	}
	if order.Discount, err = decimal.NewFromString(discount); err != nil {
		return nil, fmt.Errorf("bad discount: %w", err)
	}
	if order.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("bad total: %w", err)
	}

	if paymentID.Valid {
		order.PaymentID = paymentID.String
	}
	if trackingNumber.Valid {
		order.TrackingNumber = trackingNumber.String
	}
	if estimated.Valid {
		order.EstimatedDelivery = estimated.Time
	}
	if shippedAt.Valid {
		order.ShippedAt = shippedAt.Time
	}
	if deliveredAt.Valid {
		order.DeliveredAt = deliveredAt.Time
	}
	if customerNotes.Valid {
		order.CustomerNotes = customerNotes.String
	}
	if adminNotes.Valid {
		order.AdminNotes = adminNotes.String
	}

	return &order, nil
}

func (s *OrderStore) scanOrders(rows pgx.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order, err := s.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func textOrNil(value string) any {
	if value == "" {
		return nil
	}
	return value
}
