// Package payments abstracts the external payment processors behind one
// capability set. Callers never branch on provider identity except to pick
// which reference field on the order to read.
package payments

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/paycartapp/paycart/internal/models"
)

var (
	// ErrSignatureVerification means the webhook payload could not be
	// authenticated. Processing stops without mutating any state.
	ErrSignatureVerification = errors.New("webhook signature verification failed")

	// ErrCancelUnsupported is returned by gateways that cannot void an
	// intent; the caller records the reference for reconciliation instead.
	ErrCancelUnsupported = errors.New("intent cancellation not supported by provider")
)

type CreateIntentParams struct {
	Amount        decimal.Decimal
	Currency      string
	CustomerEmail string
	Metadata      map[string]string
}

// Intent is the provider-issued reference plus the client-facing handle
// (client secret or approval URL) the caller needs to complete payment.
type Intent struct {
	Reference    string
	ClientHandle string
}

type CaptureResult struct {
	Reference string
	Status    string
}

type RefundResult struct {
	RefundID string
	Status   string
}

type Gateway interface {
	Provider() models.PaymentProvider
	CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error)
	CancelIntent(ctx context.Context, reference string) error
	Capture(ctx context.Context, reference string) (*CaptureResult, error)
	Refund(ctx context.Context, reference string, amount decimal.Decimal, currency, reason string) (*RefundResult, error)
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*Event, error)
	Status(ctx context.Context, reference string) (string, error)
	MinimumCharge(currency string) decimal.Decimal
}

// minorUnits converts a decimal amount to the smallest currency unit.
func minorUnits(amount decimal.Decimal, currency string) int64 {
	if isZeroDecimalCurrency(currency) {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func isZeroDecimalCurrency(currency string) bool {
	switch strings.ToUpper(currency) {
	case "JPY", "KRW", "VND", "CLP", "ISK":
		return true
	default:
		return false
	}
}
