// Package notify fans out order lifecycle notifications (email and
// Kafka events) without blocking or failing the triggering operation.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/shopspring/decimal"

	"github.com/exstoreapp/exstore/internal/email"
	"github.com/exstoreapp/exstore/internal/events"
	"github.com/exstoreapp/exstore/internal/logging"
	"github.com/exstoreapp/exstore/internal/models"
	"github.com/exstoreapp/exstore/internal/observability"
)

const dispatchTimeout = 15 * time.Second

// Dispatcher delivers notifications for order lifecycle changes.
// Email delivery and event publishing run in the background; failures
// are logged and counted but never propagate to the caller.
type Dispatcher struct {
	provider  email.Provider   // nil disables email
	publisher events.Publisher // nil disables events
	storeName string
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Either provider or publisher may
// be nil to disable that channel.
func NewDispatcher(provider email.Provider, publisher events.Publisher, storeName string) *Dispatcher {
	if storeName == "" {
		storeName = "EXStore"
	}
	return &Dispatcher{
		provider:  provider,
		publisher: publisher,
		storeName: storeName,
	}
}

// Close waits for in-flight notifications to finish.
func (d *Dispatcher) Close() {
	d.wg.Wait()
}

// OrderCreated sends the order confirmation email and publishes an
// order.created event.
func (d *Dispatcher) OrderCreated(ctx context.Context, order *models.Order, user *models.User) {
	info := d.buildOrderInfo(order, user)

	d.dispatch(ctx, "order_created", order, func(ctx context.Context) error {
		return email.SendOrderConfirmation(ctx, d.provider, info)
	})
	d.publish(ctx, events.OrderEvent{
		Type:        events.TypeOrderCreated,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.String(),
		Status:      string(order.Status),
		Total:       order.Total.StringFixed(2),
	})
}

// OrderPaid publishes an order.paid event. No email is sent; the
// confirmation email already went out when the order was created.
func (d *Dispatcher) OrderPaid(ctx context.Context, order *models.Order) {
	d.publish(ctx, events.OrderEvent{
		Type:        events.TypeOrderPaid,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.String(),
		Status:      string(order.Status),
		Total:       order.Total.StringFixed(2),
	})
}

// OrderStatusChanged sends the status-appropriate email and publishes
// an event for the transition.
func (d *Dispatcher) OrderStatusChanged(ctx context.Context, order *models.Order, user *models.User, prev models.OrderStatus) {
	info := d.buildOrderInfo(order, user)

	d.dispatch(ctx, "status_"+string(order.Status), order, func(ctx context.Context) error {
		switch order.Status {
		case models.StatusShipped:
			return email.SendOrderShipped(ctx, d.provider, info)
		case models.StatusDelivered:
			return email.SendOrderDelivered(ctx, d.provider, info)
		case models.StatusCancelled:
			info.StatusMessage = "Your order has been cancelled. If you were charged, the amount will be refunded."
			return email.SendOrderStatusUpdate(ctx, d.provider, info)
		default:
			return email.SendOrderStatusUpdate(ctx, d.provider, info)
		}
	})

	eventType := events.TypeOrderStatusChanged
	if order.Status == models.StatusCancelled {
		eventType = events.TypeOrderCancelled
	}
	d.publish(ctx, events.OrderEvent{
		Type:        eventType,
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.String(),
		Status:      string(order.Status),
		PrevStatus:  string(prev),
	})
}

// dispatch runs fn in the background, detached from the request
// context so an early client disconnect does not abort delivery.
func (d *Dispatcher) dispatch(ctx context.Context, kind string, order *models.Order, fn func(context.Context) error) {
	if d.provider == nil {
		return
	}

	logger := logging.FromContext(ctx, nil)
	meter := observability.MeterFromContext(ctx)
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(detached, dispatchTimeout)
		defer cancel()

		if err := fn(sendCtx); err != nil {
			meter.Count("notify.email.failed", 1, sentry.WithAttributes(
				attribute.String("kind", kind),
			))
			logger.Error("failed to send order email", "error", err, "kind", kind, "order_number", order.OrderNumber)
			return
		}
		meter.Count("notify.email.sent", 1, sentry.WithAttributes(
			attribute.String("kind", kind),
		))
	}()
}

func (d *Dispatcher) publish(ctx context.Context, event events.OrderEvent) {
	if d.publisher == nil {
		return
	}

	logger := logging.FromContext(ctx, nil)
	meter := observability.MeterFromContext(ctx)
	detached := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		pubCtx, cancel := context.WithTimeout(detached, dispatchTimeout)
		defer cancel()

		if err := d.publisher.Publish(pubCtx, event); err != nil {
			meter.Count("notify.event.failed", 1, sentry.WithAttributes(
				attribute.String("type", event.Type),
			))
			logger.Error("failed to publish order event", "error", err, "type", event.Type, "order_number", event.OrderNumber)
			return
		}
		meter.Count("notify.event.published", 1, sentry.WithAttributes(
			attribute.String("type", event.Type),
		))
	}()
}

func (d *Dispatcher) buildOrderInfo(order *models.Order, user *models.User) *email.OrderInfo {
	customerName := ""
	customerEmail := ""
	if user != nil {
		customerName = user.Name
		customerEmail = user.Email
	}
	if customerName == "" {
		customerName = order.ShippingAddress.Name
	}
	if customerEmail == "" {
		customerEmail = order.ShippingAddress.Email
	}

	items := make([]email.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		color := item.Color
		if color == models.DefaultItemColor {
			color = ""
		}
		items = append(items, email.OrderItem{
			Title:     item.Title,
			Quantity:  item.Quantity,
			Color:     color,
			UnitPrice: formatMoney(item.UnitPrice),
			LineTotal: formatMoney(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))),
		})
	}

	estimated := ""
	if !order.EstimatedDelivery.IsZero() {
		estimated = order.EstimatedDelivery.Format("January 2, 2006")
	}

	discount := ""
	if order.Discount.IsPositive() {
		discount = formatMoney(order.Discount)
	}

	return &email.OrderInfo{
		OrderNumber:       order.OrderNumber,
		CustomerName:      customerName,
		CustomerEmail:     customerEmail,
		StoreName:         d.storeName,
		Status:            string(order.Status),
		TrackingNumber:    order.TrackingNumber,
		EstimatedDelivery: estimated,
		OrderDate:         order.OrderDate.Format("January 2, 2006"),
		Items:             items,
		Subtotal:          formatMoney(order.Subtotal),
		Shipping:          formatMoney(order.ShippingCost),
		Tax:               formatMoney(order.Tax),
		Discount:          discount,
		Total:             formatMoney(order.Total),
	}
}

func formatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
