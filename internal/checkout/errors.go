// Package checkout defines the error taxonomy shared by the order services
// and the HTTP layer. Expected business-rule rejections are sentinel values
// the handlers inspect to build 400 responses; only unexpected failures
// propagate as wrapped internal errors.
package checkout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrDiscountInvalid   = errors.New("discount code is not valid")
	ErrDiscountExpired   = errors.New("discount code has expired")
	ErrDiscountNotYet    = errors.New("discount code is not yet valid")
	ErrDiscountExhausted = errors.New("discount code usage limit reached")

	ErrAmountTooLow = errors.New("order total is below the provider minimum charge")

	// ErrPaymentProcessing wraps provider intent-creation failures. The
	// wrapped detail is logged, never shown to the end user.
	ErrPaymentProcessing = errors.New("payment processing error")

	// ErrPaymentActionFailed covers capture/refund failures; order state
	// is left unchanged and the caller may retry.
	ErrPaymentActionFailed = errors.New("payment action failed")

	ErrOrderNotFound = errors.New("order not found")
	ErrAccessDenied  = errors.New("access denied")
)

// ValidationError reports malformed input. Its message is safe to show.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ProductUnavailableError names every requested product that is missing or
// inactive; no partial order is ever created.
type ProductUnavailableError struct {
	ProductIDs []uuid.UUID
}

func (e *ProductUnavailableError) Error() string {
	ids := make([]string, len(e.ProductIDs))
	for i, id := range e.ProductIDs {
		ids[i] = id.String()
	}
	return "products unavailable: " + strings.Join(ids, ", ")
}
