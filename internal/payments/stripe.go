package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/paycartapp/paycart/internal/models"
)

// StripeGateway implements Gateway on top of the Stripe payment-intents API.
type StripeGateway struct {
	client        *stripeapi.Client
	webhookSecret string
}

func NewStripeGateway(secretKey, webhookSecret string) *StripeGateway {
	return &StripeGateway{
		client:        stripeapi.NewClient(secretKey),
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) Provider() models.PaymentProvider {
	return models.ProviderStripe
}

func (g *StripeGateway) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}

	intentParams := &stripeapi.PaymentIntentCreateParams{
		Amount:   stripeapi.Int64(minorUnits(params.Amount, params.Currency)),
		Currency: stripeapi.String(strings.ToLower(params.Currency)),
		AutomaticPaymentMethods: &stripeapi.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripeapi.Bool(true),
		},
		ReceiptEmail: stripeapi.String(params.CustomerEmail),
		Metadata:     params.Metadata,
	}
	if params.CustomerEmail == "" {
		intentParams.ReceiptEmail = nil
	}

	intent, err := g.client.V1PaymentIntents.Create(ctx, intentParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &Intent{
		Reference:    intent.ID,
		ClientHandle: intent.ClientSecret,
	}, nil
}

func (g *StripeGateway) CancelIntent(ctx context.Context, reference string) error {
	_, err := g.client.V1PaymentIntents.Cancel(ctx, reference, &stripeapi.PaymentIntentCancelParams{})
	if err != nil {
		return fmt.Errorf("failed to cancel payment intent %s: %w", reference, err)
	}
	return nil
}

func (g *StripeGateway) Capture(ctx context.Context, reference string) (*CaptureResult, error) {
	intent, err := g.client.V1PaymentIntents.Capture(ctx, reference, &stripeapi.PaymentIntentCaptureParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to capture payment intent %s: %w", reference, err)
	}
	return &CaptureResult{
		Reference: intent.ID,
		Status:    string(intent.Status),
	}, nil
}

func (g *StripeGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal, currency, reason string) (*RefundResult, error) {
	refundParams := &stripeapi.RefundCreateParams{
		PaymentIntent: stripeapi.String(reference),
	}
	if !amount.IsZero() {
		refundParams.Amount = stripeapi.Int64(minorUnits(amount, currency))
	}
	if reason != "" {
		refundParams.Metadata = map[string]string{"reason": reason}
	}

	refund, err := g.client.V1Refunds.Create(ctx, refundParams)
	if err != nil {
		return nil, fmt.Errorf("failed to refund payment intent %s: %w", reference, err)
	}
	return &RefundResult{
		RefundID: refund.ID,
		Status:   string(refund.Status),
	}, nil
}

func (g *StripeGateway) VerifyWebhook(_ context.Context, payload []byte, headers http.Header) (*Event, error) {
	signature := headers.Get("Stripe-Signature")
	if signature == "" {
		return nil, fmt.Errorf("%w: missing Stripe-Signature header", ErrSignatureVerification)
	}

	event, err := webhook.ConstructEvent(payload, signature, g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}

	return translateStripeEvent(&event)
}

func (g *StripeGateway) Status(ctx context.Context, reference string) (string, error) {
	intent, err := g.client.V1PaymentIntents.Retrieve(ctx, reference, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get payment intent %s: %w", reference, err)
	}
	return string(intent.Status), nil
}

// stripeMinimums are approximate per-currency minimum charge amounts.
var stripeMinimums = map[string]string{
	"USD": "0.50", "EUR": "0.50", "GBP": "0.30", "AUD": "0.50",
	"CAD": "0.50", "CHF": "0.50", "JPY": "50", "SEK": "3.00",
	"NOK": "3.00", "DKK": "2.50",
}

func (g *StripeGateway) MinimumCharge(currency string) decimal.Decimal {
	if min, ok := stripeMinimums[strings.ToUpper(currency)]; ok {
		return decimal.RequireFromString(min)
	}
	return decimal.RequireFromString("0.50")
}

func translateStripeEvent(event *stripeapi.Event) (*Event, error) {
	if event == nil || event.Data == nil {
		return nil, fmt.Errorf("missing stripe event data")
	}

	translated := &Event{
		ID:       event.ID,
		Provider: models.ProviderStripe,
		Raw:      event.Data.Raw,
	}

	switch event.Type {
	case "payment_intent.succeeded":
		translated.Type = EventPaymentSucceeded
	case "payment_intent.payment_failed":
		translated.Type = EventPaymentFailed
	case "payment_intent.canceled":
		translated.Type = EventPaymentCanceled
	case "charge.dispute.created":
		translated.Type = EventDisputeCreated
	default:
		translated.Type = EventUnknown
		return translated, nil
	}

	reference, err := stripeEventReference(event)
	if err != nil {
		return nil, err
	}
	translated.ProviderReference = reference
	return translated, nil
}

func stripeEventReference(event *stripeapi.Event) (string, error) {
	if event.Type == "charge.dispute.created" {
		var dispute struct {
			PaymentIntent string `json:"payment_intent"`
		}
		if err := json.Unmarshal(event.Data.Raw, &dispute); err != nil {
			return "", fmt.Errorf("invalid dispute payload: %w", err)
		}
		return dispute.PaymentIntent, nil
	}

	var intent struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return "", fmt.Errorf("invalid payment intent payload: %w", err)
	}
	if intent.ID == "" {
		return "", fmt.Errorf("missing payment intent ID in event %s", event.ID)
	}
	return intent.ID, nil
}
