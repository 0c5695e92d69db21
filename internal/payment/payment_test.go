package payment

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSimulatedGatewayApproves(t *testing.T) {
	t.Parallel()

	gateway := NewSimulatedGateway(
		WithDelay(0),
		WithRandFloat(func() float64 { return 0.0 }),
	)

	result, err := gateway.Charge(context.Background(), ChargeRequest{
		Amount: decimal.NewFromFloat(76.64),
		Method: "card",
	})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if !result.Approved {
		t.Fatalf("expected approval, got decline: %s", result.Reason)
	}
	if !strings.HasPrefix(result.PaymentID, "pay_") {
		t.Fatalf("payment id %q missing pay_ prefix", result.PaymentID)
	}
}

func TestSimulatedGatewayDeclines(t *testing.T) {
	t.Parallel()

	gateway := NewSimulatedGateway(
		WithDelay(0),
		WithRandFloat(func() float64 { return 0.99 }),
	)

	result, err := gateway.Charge(context.Background(), ChargeRequest{
		Amount: decimal.NewFromFloat(10),
		Method: "paypal",
	})
	if err != nil {
		t.Fatalf("Charge() error = %v", err)
	}
	if result.Approved {
		t.Fatalf("expected decline, got approval")
	}
	if result.PaymentID != "" {
		t.Fatalf("declined charge should not carry a payment id, got %q", result.PaymentID)
	}
	if result.Reason == "" {
		t.Fatalf("declined charge should carry a reason")
	}
}

func TestSimulatedGatewayZeroSuccessRateAlwaysDeclines(t *testing.T) {
	t.Parallel()

	gateway := NewSimulatedGateway(WithDelay(0), WithSuccessRate(0))

	for range 20 {
		result, err := gateway.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(5)})
		if err != nil {
			t.Fatalf("Charge() error = %v", err)
		}
		if result.Approved {
			t.Fatalf("success rate 0 should never approve")
		}
	}
}

func TestSimulatedGatewayRejectsNegativeAmount(t *testing.T) {
	t.Parallel()

	gateway := NewSimulatedGateway(WithDelay(0))

	if _, err := gateway.Charge(context.Background(), ChargeRequest{Amount: decimal.NewFromInt(-1)}); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestSimulatedGatewayHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	gateway := NewSimulatedGateway()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := gateway.Charge(ctx, ChargeRequest{Amount: decimal.NewFromInt(5)}); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestWithSuccessRateClamps(t *testing.T) {
	t.Parallel()

	gateway := NewSimulatedGateway(WithDelay(0), WithSuccessRate(4.2))
	if gateway.successRate != 1 {
		t.Fatalf("successRate = %v, want clamped to 1", gateway.successRate)
	}

	gateway = NewSimulatedGateway(WithDelay(0), WithSuccessRate(-1))
	if gateway.successRate != 0 {
		t.Fatalf("successRate = %v, want clamped to 0", gateway.successRate)
	}
}
