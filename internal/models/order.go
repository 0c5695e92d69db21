package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment lifecycle stage of an order, orthogonal to
// its payment status.
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusConfirmed  OrderStatus = "confirmed"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions is the authoritative transition table. Terminal states
// have no entries.
var orderTransitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are permitted from s.
func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransition reports whether moving from one status to another is legal.
// A same-status "transition" is not legal here; callers treat it as an
// idempotent no-op before consulting the table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the permitted successor statuses of s.
func NextStatuses(s OrderStatus) []OrderStatus {
	return orderTransitions[s]
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodPayPal PaymentMethod = "paypal"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCard || m == PaymentMethodPayPal
}

type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
)

func (m ShippingMethod) Valid() bool {
	return m == ShippingStandard || m == ShippingExpress
}

// DefaultItemColor is used when an order line carries no variant selection.
const DefaultItemColor = "Default"

// DefaultCountry is used when a shipping address omits the country.
const DefaultCountry = "United States"

// OrderItem is a line item snapshotted at order creation. Later product
// changes never alter stored items.
type OrderItem struct {
	ProductID uuid.UUID       `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Color     string          `json:"color"`
	Image     string          `json:"image,omitempty"`
}

type ShippingAddress struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Order represents one purchase transaction and its fulfillment lifecycle.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	OrderNumber       string          `json:"order_number"`
	UserID            uuid.UUID       `json:"user_id"`
	Items             []OrderItem     `json:"items"`
	ShippingAddress   ShippingAddress `json:"shipping_address"`
	ShippingMethod    ShippingMethod  `json:"shipping_method"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	ShippingCost      decimal.Decimal `json:"shipping_cost"`
	Tax               decimal.Decimal `json:"tax"`
	Discount          decimal.Decimal `json:"discount"`
	Total             decimal.Decimal `json:"total"`
	PaymentMethod     PaymentMethod   `json:"payment_method"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	PaymentID         string          `json:"payment_id,omitempty"`
	Status            OrderStatus     `json:"status"`
	TrackingNumber    string          `json:"tracking_number,omitempty"`
	EstimatedDelivery time.Time       `json:"estimated_delivery,omitzero"`
	OrderDate         time.Time       `json:"order_date"`
	ShippedAt         time.Time       `json:"shipped_at,omitzero"`
	DeliveredAt       time.Time       `json:"delivered_at,omitzero"`
	CustomerNotes     string          `json:"customer_notes,omitempty"`
	AdminNotes        string          `json:"admin_notes,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// TrackedItem is the reduced line-item view exposed on the public tracking
// endpoint.
type TrackedItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Color    string `json:"color"`
}

// TrackedOrder is the public projection returned for anonymous order
// tracking. It deliberately omits the shipping address and all payment
// details.
type TrackedOrder struct {
	OrderNumber       string         `json:"order_number"`
	Status            OrderStatus    `json:"status"`
	ShippingMethod    ShippingMethod `json:"shipping_method"`
	TrackingNumber    string         `json:"tracking_number,omitempty"`
	EstimatedDelivery time.Time      `json:"estimated_delivery,omitzero"`
	OrderDate         time.Time      `json:"order_date"`
	ShippedAt         time.Time      `json:"shipped_at,omitzero"`
	DeliveredAt       time.Time      `json:"delivered_at,omitzero"`
	Items             []TrackedItem  `json:"items"`
}

// Tracked builds the public projection of an order.
func (o *Order) Tracked() *TrackedOrder {
	items := make([]TrackedItem, len(o.Items))
	for i, item := range o.Items {
		items[i] = TrackedItem{
			Title:    item.Title,
			Quantity: item.Quantity,
			Color:    item.Color,
		}
	}
	return &TrackedOrder{
		OrderNumber:       o.OrderNumber,
		Status:            o.Status,
		ShippingMethod:    o.ShippingMethod,
		TrackingNumber:    o.TrackingNumber,
		EstimatedDelivery: o.EstimatedDelivery,
		OrderDate:         o.OrderDate,
		ShippedAt:         o.ShippedAt,
		DeliveredAt:       o.DeliveredAt,
		Items:             items,
	}
}
