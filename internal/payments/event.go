package payments

import "github.com/paycartapp/paycart/internal/models"

// EventType is the provider-agnostic classification of a webhook event.
type EventType string

const (
	EventPaymentSucceeded EventType = "payment.succeeded"
	EventPaymentFailed    EventType = "payment.failed"
	EventPaymentCanceled  EventType = "payment.canceled"
	EventCaptureCompleted EventType = "capture.completed"
	EventDisputeCreated   EventType = "dispute.created"
	EventUnknown          EventType = "unknown"
)

// Event is a signature-verified provider callback, translated into
// provider-agnostic terms. ProviderReference correlates the event with a
// local order; it may reference an order that has not committed yet.
type Event struct {
	ID                string
	Type              EventType
	Provider          models.PaymentProvider
	ProviderReference string
	Raw               []byte
}
