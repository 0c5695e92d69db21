package email

import (
	"context"
	"strings"
	"testing"
)

type capturingProvider struct {
	sent []*Email
}

func (p *capturingProvider) SendEmail(_ context.Context, email *Email) error {
	p.sent = append(p.sent, email)
	return nil
}

func sampleOrderInfo() *OrderInfo {
	return &OrderInfo{
		OrderNumber:       "EX260829001",
		CustomerName:      "Ada Lovelace",
		CustomerEmail:     "ada@example.com",
		StoreName:         "EXStore",
		Status:            "shipped",
		TrackingNumber:    "TRK260829120000000001",
		EstimatedDelivery: "September 5, 2026",
		OrderDate:         "August 29, 2026",
		Items: []OrderItem{
			{Title: "Canvas Tote", Quantity: 2, Color: "Natural", UnitPrice: "$24.99", LineTotal: "$49.98"},
			{Title: "Enamel Pin", Quantity: 1, UnitPrice: "$8.00", LineTotal: "$8.00"},
		},
		Subtotal: "$57.98",
		Shipping: "$5.99",
		Tax:      "$5.12",
		Total:    "$69.09",
	}
}

func TestRenderOrderConfirmation(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	msg, err := renderer.Render("order_confirmation", sampleOrderInfo())
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}

	if msg.To != "ada@example.com" {
		t.Errorf("to = %q", msg.To)
	}
	if want := "Order Confirmed - EX260829001 - EXStore"; msg.Subject != want {
		t.Errorf("subject = %q, want %q", msg.Subject, want)
	}
	for _, fragment := range []string{"EX260829001", "Canvas Tote", "(Natural)", "x2", "$69.09"} {
		if !strings.Contains(msg.Text, fragment) {
			t.Errorf("text body missing %q", fragment)
		}
	}
	// colorless items render without an empty parenthetical
	if strings.Contains(msg.Text, "Enamel Pin ()") {
		t.Error("empty color rendered in text body")
	}
	if !strings.Contains(msg.HTML, "<strong>Total: $69.09</strong>") {
		t.Error("HTML body missing total")
	}
}

func TestRenderDiscountLineIsOptional(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	info := sampleOrderInfo()
	msg, err := renderer.Render("order_confirmation", info)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	if strings.Contains(msg.Text, "Discount") {
		t.Error("discount line rendered without a discount")
	}

	info.Discount = "$5.00"
	msg, err = renderer.Render("order_confirmation", info)
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	if !strings.Contains(msg.Text, "Discount: -$5.00") {
		t.Error("discount line missing")
	}
}

func TestRenderShippedIncludesTracking(t *testing.T) {
	t.Parallel()

	renderer, err := NewRenderer()
	if err != nil {
		t.Fatalf("failed to create renderer: %v", err)
	}

	msg, err := renderer.Render("order_shipped", sampleOrderInfo())
	if err != nil {
		t.Fatalf("failed to render: %v", err)
	}
	if !strings.Contains(msg.Text, "TRK260829120000000001") {
		t.Error("tracking number missing from text body")
	}
	if !strings.Contains(msg.Text, "Estimated Delivery: September 5, 2026") {
		t.Error("delivery estimate missing from text body")
	}
}

func TestSendHelpersSkipNilProvider(t *testing.T) {
	t.Parallel()

	if err := SendOrderConfirmation(context.Background(), nil, sampleOrderInfo()); err != nil {
		t.Errorf("nil provider should be a no-op, got %v", err)
	}

	provider := &capturingProvider{}
	if err := SendOrderDelivered(context.Background(), provider, sampleOrderInfo()); err != nil {
		t.Fatalf("failed to send: %v", err)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(provider.sent))
	}
	if !strings.Contains(provider.sent[0].Subject, "Delivered") {
		t.Errorf("subject = %q", provider.sent[0].Subject)
	}
}
