package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/exstoreapp/exstore/internal/email"
	"github.com/exstoreapp/exstore/internal/events"
	"github.com/exstoreapp/exstore/internal/models"
)

type recordingProvider struct {
	mu   sync.Mutex
	sent []*email.Email
	err  error
}

func (p *recordingProvider) SendEmail(_ context.Context, msg *email.Email) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msg)
	return nil
}

func (p *recordingProvider) emails() []*email.Email {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*email.Email(nil), p.sent...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) published() []events.OrderEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.OrderEvent(nil), p.events...)
}

func testOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		OrderNumber: "EX260829001",
		UserID:      uuid.New(),
		Items: []models.OrderItem{
			{Title: "Canvas Tote", UnitPrice: decimal.NewFromFloat(24.99), Quantity: 2, Color: models.DefaultItemColor},
		},
		ShippingAddress: models.ShippingAddress{Name: "Ada Lovelace", Email: "ada@example.com"},
		ShippingMethod:  models.ShippingStandard,
		Subtotal:        decimal.NewFromFloat(49.98),
		ShippingCost:    decimal.NewFromFloat(5.99),
		Tax:             decimal.NewFromFloat(4.37),
		Total:           decimal.NewFromFloat(60.34),
		Status:          status,
		OrderDate:       time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
	}
}

func TestOrderCreatedSendsConfirmationAndEvent(t *testing.T) {
	provider := &recordingProvider{}
	publisher := &recordingPublisher{}
	d := NewDispatcher(provider, publisher, "EXStore")

	order := testOrder(models.StatusPending)
	user := &models.User{ID: order.UserID, Name: "Countess Ada", Email: "countess@example.com"}

	d.OrderCreated(context.Background(), order, user)
	d.Close()

	sent := provider.emails()
	if len(sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sent))
	}
	if sent[0].To != "countess@example.com" {
		t.Errorf("to = %q, want the account email over the address email", sent[0].To)
	}
	if !strings.Contains(sent[0].Subject, "Order Confirmed") {
		t.Errorf("subject = %q", sent[0].Subject)
	}

	published := publisher.published()
	if len(published) != 1 {
		t.Fatalf("published %d events, want 1", len(published))
	}
	event := published[0]
	if event.Type != events.TypeOrderCreated || event.OrderNumber != "EX260829001" {
		t.Errorf("unexpected event: %+v", event)
	}
	if event.Total != "60.34" {
		t.Errorf("event total = %q", event.Total)
	}
}

func TestOrderCreatedFallsBackToAddressContact(t *testing.T) {
	provider := &recordingProvider{}
	d := NewDispatcher(provider, nil, "")

	d.OrderCreated(context.Background(), testOrder(models.StatusPending), nil)
	d.Close()

	sent := provider.emails()
	if len(sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sent))
	}
	if sent[0].To != "ada@example.com" {
		t.Errorf("to = %q, want the shipping address email", sent[0].To)
	}
	if !strings.Contains(sent[0].Subject, "EXStore") {
		t.Errorf("subject = %q, want the default store name", sent[0].Subject)
	}
}

func TestOrderPaidPublishesEventOnly(t *testing.T) {
	provider := &recordingProvider{}
	publisher := &recordingPublisher{}
	d := NewDispatcher(provider, publisher, "EXStore")

	d.OrderPaid(context.Background(), testOrder(models.StatusConfirmed))
	d.Close()

	if len(provider.emails()) != 0 {
		t.Error("payment must not send an email, the confirmation already went out")
	}
	published := publisher.published()
	if len(published) != 1 || published[0].Type != events.TypeOrderPaid {
		t.Fatalf("unexpected events: %+v", published)
	}
}

func TestOrderStatusChangedPicksTemplateAndEventType(t *testing.T) {
	tests := []struct {
		name        string
		status      models.OrderStatus
		wantSubject string
		wantType    string
	}{
		{"shipped", models.StatusShipped, "Shipped", events.TypeOrderStatusChanged},
		{"delivered", models.StatusDelivered, "Delivered", events.TypeOrderStatusChanged},
		{"cancelled", models.StatusCancelled, "Order Update", events.TypeOrderCancelled},
		{"processing", models.StatusProcessing, "Order Update", events.TypeOrderStatusChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &recordingProvider{}
			publisher := &recordingPublisher{}
			d := NewDispatcher(provider, publisher, "EXStore")

			order := testOrder(tt.status)
			d.OrderStatusChanged(context.Background(), order, nil, models.StatusProcessing)
			d.Close()

			sent := provider.emails()
			if len(sent) != 1 {
				t.Fatalf("sent %d emails, want 1", len(sent))
			}
			if !strings.Contains(sent[0].Subject, tt.wantSubject) {
				t.Errorf("subject = %q, want it to contain %q", sent[0].Subject, tt.wantSubject)
			}

			published := publisher.published()
			if len(published) != 1 {
				t.Fatalf("published %d events, want 1", len(published))
			}
			if published[0].Type != tt.wantType {
				t.Errorf("event type = %q, want %q", published[0].Type, tt.wantType)
			}
			if published[0].PrevStatus != string(models.StatusProcessing) {
				t.Errorf("prev status = %q", published[0].PrevStatus)
			}
		})
	}
}

func TestDeliveryFailureDoesNotPropagate(t *testing.T) {
	provider := &recordingProvider{err: errors.New("smtp is down")}
	d := NewDispatcher(provider, nil, "EXStore")

	// must return immediately and swallow the failure
	d.OrderCreated(context.Background(), testOrder(models.StatusPending), nil)
	d.Close()

	if len(provider.emails()) != 0 {
		t.Error("expected no recorded sends")
	}
}

func TestNilChannelsAreSkipped(t *testing.T) {
	d := NewDispatcher(nil, nil, "EXStore")

	d.OrderCreated(context.Background(), testOrder(models.StatusPending), nil)
	d.OrderPaid(context.Background(), testOrder(models.StatusConfirmed))
	d.OrderStatusChanged(context.Background(), testOrder(models.StatusShipped), nil, models.StatusProcessing)
	d.Close()
}
