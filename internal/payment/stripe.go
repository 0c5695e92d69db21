package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v84"
)

// StripeGateway charges through Stripe PaymentIntents. It implements the
// same Gateway contract as the simulator so the order service does not care
// which one is wired.
type StripeGateway struct {
	client *stripe.Client
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{
		client: stripe.NewClient(secretKey),
	}
}

func (g *StripeGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if ctx == nil {
		return ChargeResult{}, fmt.Errorf("context is required")
	}

	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(req.Amount.Mul(centsPerUnit).IntPart()),
		Currency: stripe.String(currency),
		Confirm:  stripe.Bool(true),
		Metadata: map[string]string{
			"order_id":     req.OrderID.String(),
			"order_number": req.OrderNumber,
		},
	}
	if req.MethodToken != "" {
		params.PaymentMethod = stripe.String(req.MethodToken)
	}

	intent, err := g.client.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return ChargeResult{
				Approved: false,
				Reason:   stripeErr.Msg,
			}, nil
		}
		return ChargeResult{}, fmt.Errorf("failed to create payment intent: %w", err)
	}

	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return ChargeResult{
			Approved: false,
			Reason:   fmt.Sprintf("payment not completed: %s", intent.Status),
		}, nil
	}

	return ChargeResult{
		Approved:  true,
		PaymentID: intent.ID,
	}, nil
}
