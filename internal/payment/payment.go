// Package payment abstracts the payment gateway used during checkout.
package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway charges an order. A declined charge is a normal ChargeResult with
// Approved=false; the error return is reserved for infrastructure failures.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

type ChargeRequest struct {
	OrderID     uuid.UUID
	OrderNumber string
	Amount      decimal.Decimal
	Currency    string
	Method      string
	// MethodToken carries the gateway-specific payment instrument
	// reference supplied by the client, when there is one.
	MethodToken string
}

type ChargeResult struct {
	Approved  bool
	PaymentID string
	Reason    string
}

const (
	defaultSuccessRate = 0.9
	maxSimulatedDelay  = 150 * time.Millisecond
)

// centsPerUnit converts decimal currency amounts to gateway cents.
var centsPerUnit = decimal.NewFromInt(100)

// SimulatedGateway stands in for a real payment processor: the outcome is
// random with a fixed success probability and a small bounded delay.
type SimulatedGateway struct {
	successRate float64
	delay       time.Duration
	randFloat   func() float64
}

type SimulatedOption func(*SimulatedGateway)

// WithSuccessRate overrides the approval probability. Values outside [0, 1]
// are clamped.
func WithSuccessRate(rate float64) SimulatedOption {
	return func(g *SimulatedGateway) {
		g.successRate = min(max(rate, 0), 1)
	}
}

// WithDelay overrides the simulated gateway latency.
func WithDelay(delay time.Duration) SimulatedOption {
	return func(g *SimulatedGateway) {
		g.delay = delay
	}
}

// WithRandFloat overrides the randomness source, for tests.
func WithRandFloat(fn func() float64) SimulatedOption {
	return func(g *SimulatedGateway) {
		g.randFloat = fn
	}
}

func NewSimulatedGateway(opts ...SimulatedOption) *SimulatedGateway {
	g := &SimulatedGateway{
		successRate: defaultSuccessRate,
		delay:       maxSimulatedDelay,
		randFloat:   rand.Float64,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if req.Amount.IsNegative() {
		return ChargeResult{}, fmt.Errorf("charge amount must not be negative: %s", req.Amount)
	}

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ChargeResult{}, ctx.Err()
		case <-timer.C:
		}
	}

	if g.randFloat() >= g.successRate {
		return ChargeResult{
			Approved: false,
			Reason:   "card declined, please try again or use a different payment method",
		}, nil
	}

	return ChargeResult{
		Approved:  true,
		PaymentID: "pay_" + uuid.NewString(),
	}, nil
}
