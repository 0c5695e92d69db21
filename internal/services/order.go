// Package services implements the order lifecycle: creation with
// day-scoped order numbers, the status state machine, payment, and
// the public tracking projection.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/exstoreapp/exstore/internal/cache"
	"github.com/exstoreapp/exstore/internal/db"
	"github.com/exstoreapp/exstore/internal/logging"
	"github.com/exstoreapp/exstore/internal/models"
	"github.com/exstoreapp/exstore/internal/observability"
	"github.com/exstoreapp/exstore/internal/payment"
	"github.com/exstoreapp/exstore/internal/shipping"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100

	// orderNumberAttempts bounds the sequential insert-retry loop before
	// the random-suffix fallback kicks in.
	orderNumberAttempts = 3

	trackingCacheTTL = time.Minute
)

// OrderStore is the persistence surface the service depends on.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetByIDForUser(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Order, int, error)
	ListAll(ctx context.Context, status models.OrderStatus, limit, offset int) ([]*models.Order, int, error)
	LastOrderNumberOfDay(ctx context.Context, start, end time.Time) (string, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID, paymentID string, estimatedDelivery time.Time) error
	MarkPaymentFailed(ctx context.Context, orderID uuid.UUID) error
	MarkCancelled(ctx context.Context, orderID uuid.UUID) error
	MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) error
	MarkDelivered(ctx context.Context, orderID uuid.UUID) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to models.OrderStatus) error
	UpdateAdminNotes(ctx context.Context, orderID uuid.UUID, notes string) error
}

// UserStore resolves order owners for notifications.
type UserStore interface {
	GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Notifier receives order lifecycle events. Implementations must be
// non-blocking; the service never waits on delivery.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order, user *models.User)
	OrderPaid(ctx context.Context, order *models.Order)
	OrderStatusChanged(ctx context.Context, order *models.Order, user *models.User, prev models.OrderStatus)
}

type noopNotifier struct{}

func (noopNotifier) OrderCreated(context.Context, *models.Order, *models.User)                    {}
func (noopNotifier) OrderPaid(context.Context, *models.Order)                                     {}
func (noopNotifier) OrderStatusChanged(context.Context, *models.Order, *models.User, models.OrderStatus) {
}

// Pagination describes one page of a list result.
type Pagination struct {
	Current int `json:"current"`
	Pages   int `json:"pages"`
	Total   int `json:"total"`
}

type OrderService struct {
	orders   OrderStore
	users    UserStore
	gateway  payment.Gateway
	shipping *shipping.Methods
	notifier Notifier
	cache    cache.Provider
	numbers  *orderNumberGenerator
	logger   *slog.Logger
	now      func() time.Time
}

func NewOrderService(
	orders OrderStore,
	users UserStore,
	gateway payment.Gateway,
	methods *shipping.Methods,
	notifier Notifier,
	cacheProvider cache.Provider,
	logger *slog.Logger,
) (*OrderService, error) {
	if orders == nil {
		return nil, fmt.Errorf("order store is required")
	}
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if gateway == nil {
		gateway = payment.NewSimulatedGateway()
	}
	if methods == nil {
		methods = shipping.Defaults()
	}
	if notifier == nil {
		notifier = noopNotifier{}
	}

	return &OrderService{
		orders:   orders,
		users:    users,
		gateway:  gateway,
		shipping: methods,
		notifier: notifier,
		cache:    cacheProvider,
		numbers:  newOrderNumberGenerator(orders, time.Now),
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *OrderService) loggerFromContext(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}

// OrderItemInput is one requested line item. Title and price are
// snapshotted into the order as supplied.
type OrderItemInput struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Color     string          `json:"color"`
	Image     string          `json:"image"`
}

type CreateOrderInput struct {
	Items           []OrderItemInput       `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	ShippingMethod  string                 `json:"shipping_method"`
	PaymentMethod   string                 `json:"payment_method"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	ShippingCost    decimal.Decimal        `json:"shipping_cost"`
	Tax             decimal.Decimal        `json:"tax"`
	Discount        decimal.Decimal        `json:"discount"`
	Total           decimal.Decimal        `json:"total"`
	CustomerNotes   string                 `json:"customer_notes"`
}

// CreateOrder validates the input, assigns a day-scoped order number and
// persists the order as pending/pending. The confirmation notification is
// dispatched in the background after the write succeeds.
func (s *OrderService) CreateOrder(ctx context.Context, userID uuid.UUID, input CreateOrderInput) (*models.Order, error) {
	if err := validateCreateOrder(&input); err != nil {
		return nil, err
	}

	items := make([]models.OrderItem, len(input.Items))
	for i, in := range input.Items {
		color := strings.TrimSpace(in.Color)
		if color == "" {
			color = models.DefaultItemColor
		}
		items[i] = models.OrderItem{
			ProductID: in.ProductID,
			Title:     strings.TrimSpace(in.Title),
			UnitPrice: in.UnitPrice,
			Quantity:  in.Quantity,
			Color:     color,
			Image:     in.Image,
		}
	}

	address := input.ShippingAddress
	if strings.TrimSpace(address.Country) == "" {
		address.Country = models.DefaultCountry
	}

	method := models.ShippingMethod(input.ShippingMethod)
	if input.ShippingMethod == "" {
		method = models.ShippingStandard
	}

	order := &models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		Items:           items,
		ShippingAddress: address,
		ShippingMethod:  method,
		Subtotal:        input.Subtotal,
		ShippingCost:    input.ShippingCost,
		Tax:             input.Tax,
		Discount:        input.Discount,
		Total:           input.Total,
		PaymentMethod:   models.PaymentMethod(input.PaymentMethod),
		PaymentStatus:   models.PaymentPending,
		Status:          models.StatusPending,
		CustomerNotes:   strings.TrimSpace(input.CustomerNotes),
	}

	if err := s.createWithOrderNumber(ctx, order); err != nil {
		return nil, err
	}

	meter := observability.MeterFromContext(ctx)
	meter.Count("orders.created", 1, sentry.WithAttributes(
		attribute.String("shipping_method", string(order.ShippingMethod)),
	))

	s.notifier.OrderCreated(ctx, order, s.resolveUser(ctx, userID))
	return order, nil
}

// createWithOrderNumber inserts the order, retrying with a fresh sequential
// number when a concurrent creation claimed the same one. After the retries
// are exhausted one last attempt uses a random suffix.
func (s *OrderService) createWithOrderNumber(ctx context.Context, order *models.Order) error {
	logger := s.loggerFromContext(ctx)

	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := s.numbers.Next(ctx)
		if err != nil {
			return err
		}
		order.OrderNumber = number

		err = s.orders.Create(ctx, order)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, db.OrderNumberConstraint) {
			return fmt.Errorf("failed to create order: %w", err)
		}
		logger.Warn("order number collision, retrying", "order_number", number, "attempt", attempt+1)
	}

	order.OrderNumber = s.numbers.Fallback()
	if err := s.orders.Create(ctx, order); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func validateCreateOrder(input *CreateOrderInput) error {
	if len(input.Items) == 0 {
		return newValidationError("order must contain at least one item", "items")
	}
	for i, item := range input.Items {
		if strings.TrimSpace(item.Title) == "" {
			return newValidationError(fmt.Sprintf("item %d is missing a title", i), "items")
		}
		if item.Quantity < 1 {
			return newValidationError(fmt.Sprintf("item %d quantity must be at least 1", i), "items")
		}
		if item.UnitPrice.IsNegative() {
			return newValidationError(fmt.Sprintf("item %d price must not be negative", i), "items")
		}
	}

	var missing []string
	address := input.ShippingAddress
	for _, field := range []struct {
		name  string
		value string
	}{
		{"shipping_address.name", address.Name},
		{"shipping_address.email", address.Email},
		{"shipping_address.phone", address.Phone},
		{"shipping_address.address", address.Address},
		{"shipping_address.city", address.City},
		{"shipping_address.state", address.State},
		{"shipping_address.zip", address.Zip},
	} {
		if strings.TrimSpace(field.value) == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return newValidationError("shipping address is incomplete", missing...)
	}

	if !models.PaymentMethod(input.PaymentMethod).Valid() {
		return newValidationError("payment method must be card or paypal", "payment_method")
	}
	if input.ShippingMethod != "" && !models.ShippingMethod(input.ShippingMethod).Valid() {
		return newValidationError("shipping method must be standard or express", "shipping_method")
	}

	for _, amount := range []struct {
		name  string
		value decimal.Decimal
	}{
		{"subtotal", input.Subtotal},
		{"shipping_cost", input.ShippingCost},
		{"tax", input.Tax},
		{"discount", input.Discount},
		{"total", input.Total},
	} {
		if amount.value.IsNegative() {
			return newValidationError(amount.name+" must not be negative", amount.name)
		}
	}

	expected := input.Subtotal.Add(input.ShippingCost).Add(input.Tax).Sub(input.Discount)
	if !input.Total.Equal(expected) {
		return newValidationError(
			fmt.Sprintf("total %s does not match subtotal + shipping + tax - discount = %s",
				input.Total.StringFixed(2), expected.StringFixed(2)),
			"total",
		)
	}

	return nil
}

// ListOrders returns one page of the owner's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, page, limit int) ([]*models.Order, Pagination, error) {
	page, limit = clampPage(page, limit)

	orders, total, err := s.orders.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, paginate(page, limit, total), nil
}

// ListAllOrders is the administrative listing across all owners, with an
// optional status filter.
func (s *OrderService) ListAllOrders(ctx context.Context, status string, page, limit int) ([]*models.Order, Pagination, error) {
	if status != "" && !models.OrderStatus(status).Valid() {
		return nil, Pagination{}, newValidationError("unknown order status "+status, "status")
	}
	page, limit = clampPage(page, limit)

	orders, total, err := s.orders.ListAll(ctx, models.OrderStatus(status), limit, (page-1)*limit)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, paginate(page, limit, total), nil
}

func clampPage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func paginate(page, limit, total int) Pagination {
	pages := (total + limit - 1) / limit
	return Pagination{Current: page, Pages: pages, Total: total}
}

// GetOrder fetches one order scoped to its owner. A missing order and an
// order belonging to someone else are indistinguishable to the caller.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByIDForUser(ctx, orderID, userID)
	if db.IsNotFound(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// GetOrderAdmin fetches one order without the ownership check.
func (s *OrderService) GetOrderAdmin(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if db.IsNotFound(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// TrackOrder returns the public projection for anonymous tracking. Results
// are cached briefly; cache failures fall through to the database.
func (s *OrderService) TrackOrder(ctx context.Context, orderNumber string) (*models.TrackedOrder, error) {
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" {
		return nil, newValidationError("order number is required", "order_number")
	}

	logger := s.loggerFromContext(ctx)
	key := cache.TrackingKey(orderNumber)

	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var tracked models.TrackedOrder
			if err := json.Unmarshal([]byte(cached), &tracked); err == nil {
				return &tracked, nil
			}
			logger.Warn("discarding bad tracking cache entry", "order_number", orderNumber)
		} else if !errors.Is(err, cache.ErrNotFound) {
			logger.Warn("tracking cache read failed", "error", err)
		}
	}

	order, err := s.orders.GetByNumber(ctx, orderNumber)
	if db.IsNotFound(err) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by number: %w", err)
	}

	tracked := order.Tracked()
	if s.cache != nil {
		if encoded, err := json.Marshal(tracked); err == nil {
			if err := s.cache.Set(ctx, key, string(encoded), trackingCacheTTL); err != nil {
				logger.Warn("tracking cache write failed", "error", err)
			}
		}
	}
	return tracked, nil
}

// CancelOrder applies the owner-initiated cancel transition.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case models.StatusCancelled:
		return nil, newConflictError("order is already cancelled")
	case models.StatusShipped, models.StatusDelivered:
		return nil, newConflictError("cannot cancel shipped or delivered orders")
	}

	prev := order.Status
	if err := s.orders.MarkCancelled(ctx, order.ID); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			return nil, newConflictError("order can no longer be cancelled")
		}
		return nil, fmt.Errorf("failed to cancel order: %w", err)
	}
	order.Status = models.StatusCancelled

	observability.MeterFromContext(ctx).Count("orders.cancelled", 1)
	s.notifier.OrderStatusChanged(ctx, order, s.resolveUser(ctx, userID), prev)
	return order, nil
}

// PaymentInput carries the client's payment instrument selection.
type PaymentInput struct {
	Method      string `json:"method"`
	MethodToken string `json:"method_token"`
}

// PayOrder charges the order through the configured gateway. Any unpaid,
// non-cancelled order is payable, even one an administrator has already
// advanced past confirmed. A decline is returned as ErrPaymentDeclined and
// records a failed payment status; the fulfillment status is left untouched
// so the order stays payable.
func (s *OrderService) PayOrder(ctx context.Context, orderID, userID uuid.UUID, input PaymentInput) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus == models.PaymentPaid {
		return nil, newConflictError("order is already paid")
	}
	if order.Status == models.StatusCancelled {
		return nil, newConflictError("cannot pay a cancelled order")
	}

	logger := s.loggerFromContext(ctx)
	meter := observability.MeterFromContext(ctx)

	method := input.Method
	if method == "" {
		method = string(order.PaymentMethod)
	}

	result, err := s.gateway.Charge(ctx, payment.ChargeRequest{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Amount:      order.Total,
		Currency:    "usd",
		Method:      method,
		MethodToken: input.MethodToken,
	})
	if err != nil {
		return nil, fmt.Errorf("payment gateway error: %w", err)
	}

	if !result.Approved {
		meter.Count("orders.payment.declined", 1)
		if ferr := s.orders.MarkPaymentFailed(ctx, order.ID); ferr != nil {
			logger.Error("failed to record declined payment", "error", ferr, "order_id", order.ID)
		}
		order.PaymentStatus = models.PaymentFailed
		if result.Reason != "" {
			return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, result.Reason)
		}
		return nil, ErrPaymentDeclined
	}

	estimated := s.shipping.EstimatedDelivery(order.ShippingMethod, s.now().UTC())
	if err := s.orders.MarkPaid(ctx, order.ID, result.PaymentID, estimated); err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			return nil, newConflictError("order changed while payment was processing, payment not recorded")
		}
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	prev := order.Status
	order.PaymentStatus = models.PaymentPaid
	order.PaymentID = result.PaymentID
	if order.Status == models.StatusPending {
		order.Status = models.StatusConfirmed
	}
	order.EstimatedDelivery = estimated

	meter.Count("orders.payment.approved", 1)
	s.notifier.OrderPaid(ctx, order)
	if order.Status != prev {
		s.notifier.OrderStatusChanged(ctx, order, s.resolveUser(ctx, userID), prev)
	}
	return order, nil
}

// UpdateOrderStatusInput is the administrative status change request.
type UpdateOrderStatusInput struct {
	Status     string `json:"status"`
	AdminNotes string `json:"admin_notes"`
}

// UpdateOrderStatus applies an administrative transition. The transition
// table is enforced for admins too; a same-status update succeeds without
// touching the order.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, input UpdateOrderStatusInput) (*models.Order, error) {
	next := models.OrderStatus(input.Status)
	if !next.Valid() {
		return nil, newValidationError("unknown order status "+input.Status, "status")
	}

	order, err := s.GetOrderAdmin(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if input.AdminNotes != "" {
		if err := s.orders.UpdateAdminNotes(ctx, order.ID, input.AdminNotes); err != nil {
			return nil, fmt.Errorf("failed to update admin notes: %w", err)
		}
		order.AdminNotes = input.AdminNotes
	}

	if order.Status == next {
		return order, nil
	}
	if !models.CanTransition(order.Status, next) {
		return nil, newConflictError(fmt.Sprintf("cannot transition order from %s to %s", order.Status, next))
	}

	prev := order.Status
	switch next {
	case models.StatusShipped:
		tracking := order.TrackingNumber
		if tracking == "" {
			tracking = s.newTrackingNumber()
		}
		err = s.orders.MarkShipped(ctx, order.ID, tracking)
	case models.StatusDelivered:
		err = s.orders.MarkDelivered(ctx, order.ID)
	case models.StatusCancelled:
		err = s.orders.MarkCancelled(ctx, order.ID)
	default:
		err = s.orders.UpdateStatus(ctx, order.ID, order.Status, next)
	}
	if err != nil {
		if errors.Is(err, db.ErrInvalidStatusTransition) {
			return nil, newConflictError("order status changed concurrently, retry")
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	// Reload to pick up the timestamps the database set on transition.
	updated, err := s.GetOrderAdmin(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	observability.MeterFromContext(ctx).Count("orders.status_changed", 1, sentry.WithAttributes(
		attribute.String("from", string(prev)),
		attribute.String("to", string(next)),
	))
	s.notifier.OrderStatusChanged(ctx, updated, s.resolveUser(ctx, updated.UserID), prev)
	return updated, nil
}

// newTrackingNumber builds an opaque tracking identifier from a time
// component and a random component.
func (s *OrderService) newTrackingNumber() string {
	return fmt.Sprintf("TRK%s%06d", s.now().UTC().Format("060102150405"), rand.IntN(1_000_000))
}

// resolveUser looks up an order owner for notification purposes. Lookup
// failures degrade to an address-only notification rather than failing the
// operation.
func (s *OrderService) resolveUser(ctx context.Context, userID uuid.UUID) *models.User {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.loggerFromContext(ctx).Warn("failed to resolve order owner", "error", err, "user_id", userID)
		return nil
	}
	return user
}
