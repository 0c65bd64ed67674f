package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/paycartapp/paycart/internal/cache"
	"github.com/paycartapp/paycart/internal/db"
	"github.com/paycartapp/paycart/internal/models"
	"github.com/paycartapp/paycart/internal/payments"
	"github.com/paycartapp/paycart/internal/services"
)

// stubGateway returns canned responses; only the methods a test configures
// are expected to be called.
type stubGateway struct {
	provider models.PaymentProvider

	event     *payments.Event
	verifyErr error

	intent    *payments.Intent
	intentErr error
	minimum   decimal.Decimal
}

func (g *stubGateway) Provider() models.PaymentProvider { return g.provider }

func (g *stubGateway) CreateIntent(context.Context, payments.CreateIntentParams) (*payments.Intent, error) {
	return g.intent, g.intentErr
}

func (g *stubGateway) CancelIntent(context.Context, string) error { return nil }

func (g *stubGateway) Capture(_ context.Context, reference string) (*payments.CaptureResult, error) {
	return &payments.CaptureResult{Reference: reference, Status: "succeeded"}, nil
}

func (g *stubGateway) Refund(context.Context, string, decimal.Decimal, string, string) (*payments.RefundResult, error) {
	return &payments.RefundResult{RefundID: "re_1", Status: "succeeded"}, nil
}

func (g *stubGateway) VerifyWebhook(context.Context, []byte, http.Header) (*payments.Event, error) {
	return g.event, g.verifyErr
}

func (g *stubGateway) Status(context.Context, string) (string, error) { return "succeeded", nil }

func (g *stubGateway) MinimumCharge(string) decimal.Decimal { return g.minimum }

// fakeTransitionStore backs the webhook processor with a single order.
type fakeTransitionStore struct {
	order *db.Order
	paid  int
}

func (f *fakeTransitionStore) GetByProviderReference(_ context.Context, _ db.PaymentProvider, reference string) (*db.Order, error) {
	if f.order == nil || f.order.ProviderReference() != reference {
		return nil, db.ErrOrderNotFound
	}
	return f.order, nil
}

func (f *fakeTransitionStore) MarkPaid(_ context.Context, orderID uuid.UUID) error {
	if f.order == nil || f.order.ID != orderID {
		return db.ErrOrderNotFound
	}
	f.order.Status = models.StatusPaid
	f.order.PaymentStatus = models.PaymentSucceeded
	f.paid++
	return nil
}

func (f *fakeTransitionStore) MarkFailed(_ context.Context, orderID uuid.UUID, reason string) error {
	if f.order == nil || f.order.ID != orderID {
		return db.ErrOrderNotFound
	}
	f.order.Status = models.StatusFailed
	f.order.PaymentStatus = models.PaymentFailed
	f.order.FailureReason = reason
	return nil
}

func newWebhookHandlers(t *testing.T, gateway *stubGateway, store *fakeTransitionStore) *Handlers {
	t.Helper()

	memory, err := cache.NewMemoryProvider()
	if err != nil {
		t.Fatalf("failed to build cache: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &Handlers{
		cacheProvider:    memory,
		webhookProcessor: services.NewWebhookProcessor(store, nil, logger),
		gateways:         map[models.PaymentProvider]payments.Gateway{gateway.provider: gateway},
		logger:           logger,
	}
}

func postStripeWebhook(h *Handlers) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/payments/webhook/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)
	return rec
}

func TestStripeWebhook_MarksOrderPaid(t *testing.T) {
	t.Parallel()

	store := &fakeTransitionStore{order: &db.Order{
		ID:                    uuid.New(),
		Provider:              models.ProviderStripe,
		StripePaymentIntentID: "pi_hooked",
		Status:                models.StatusPending,
		PaymentStatus:         models.PaymentPending,
	}}
	gateway := &stubGateway{
		provider: models.ProviderStripe,
		event: &payments.Event{
			ID:                "evt_1",
			Type:              payments.EventPaymentSucceeded,
			Provider:          models.ProviderStripe,
			ProviderReference: "pi_hooked",
		},
	}
	h := newWebhookHandlers(t, gateway, store)

	rec := postStripeWebhook(h)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.order.Status != models.StatusPaid {
		t.Errorf("expected order paid, got %s", store.order.Status)
	}
}

func TestStripeWebhook_DuplicateEventProcessedOnce(t *testing.T) {
	t.Parallel()

	store := &fakeTransitionStore{order: &db.Order{
		ID:                    uuid.New(),
		Provider:              models.ProviderStripe,
		StripePaymentIntentID: "pi_hooked",
		Status:                models.StatusPending,
		PaymentStatus:         models.PaymentPending,
	}}
	gateway := &stubGateway{
		provider: models.ProviderStripe,
		event: &payments.Event{
			ID:                "evt_dup",
			Type:              payments.EventPaymentSucceeded,
			Provider:          models.ProviderStripe,
			ProviderReference: "pi_hooked",
		},
	}
	h := newWebhookHandlers(t, gateway, store)

	for i := 0; i < 2; i++ {
		if rec := postStripeWebhook(h); rec.Code != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i+1, rec.Code)
		}
	}
	if store.paid != 1 {
		t.Errorf("expected one transition, got %d", store.paid)
	}
}

func TestStripeWebhook_InvalidSignature(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{
		provider:  models.ProviderStripe,
		verifyErr: payments.ErrSignatureVerification,
	}
	h := newWebhookHandlers(t, gateway, &fakeTransitionStore{})

	rec := postStripeWebhook(h)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid signature") {
		t.Errorf("expected signature error, got %q", rec.Body.String())
	}
}

func TestStripeWebhook_MissingEventID(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{
		provider: models.ProviderStripe,
		event:    &payments.Event{Type: payments.EventPaymentSucceeded, ProviderReference: "pi_hooked"},
	}
	h := newWebhookHandlers(t, gateway, &fakeTransitionStore{})

	if rec := postStripeWebhook(h); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestStripeWebhook_MissingReferenceIsTerminal(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{
		provider: models.ProviderStripe,
		event: &payments.Event{
			ID:       "evt_no_ref",
			Type:     payments.EventPaymentSucceeded,
			Provider: models.ProviderStripe,
		},
	}
	h := newWebhookHandlers(t, gateway, &fakeTransitionStore{})

	// 400 is terminal: redelivering an event with no reference can never
	// succeed, so the provider must not retry it as a 5xx.
	if rec := postStripeWebhook(h); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unprocessable event, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestStripeWebhook_UnknownOrderTriggersRedelivery(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{
		provider: models.ProviderStripe,
		event: &payments.Event{
			ID:                "evt_race",
			Type:              payments.EventPaymentSucceeded,
			Provider:          models.ProviderStripe,
			ProviderReference: "pi_not_committed_yet",
		},
	}
	h := newWebhookHandlers(t, gateway, &fakeTransitionStore{})

	if rec := postStripeWebhook(h); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 so the provider redelivers, got %d", rec.Code)
	}
}

func TestPayPalWebhook_UsesPayPalGateway(t *testing.T) {
	t.Parallel()

	store := &fakeTransitionStore{order: &db.Order{
		ID:            uuid.New(),
		Provider:      models.ProviderPayPal,
		PayPalOrderID: "PP-ORDER-1",
		Status:        models.StatusPending,
		PaymentStatus: models.PaymentPending,
	}}
	gateway := &stubGateway{
		provider: models.ProviderPayPal,
		event: &payments.Event{
			ID:                "WH-1",
			Type:              payments.EventCaptureCompleted,
			Provider:          models.ProviderPayPal,
			ProviderReference: "PP-ORDER-1",
		},
	}
	h := newWebhookHandlers(t, gateway, store)

	req := httptest.NewRequest("POST", "/payments/webhook/paypal", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.PayPalWebhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if store.order.Status != models.StatusPaid {
		t.Errorf("expected order paid, got %s", store.order.Status)
	}
}

func TestStripeWebhook_UnconfiguredGateway(t *testing.T) {
	t.Parallel()

	gateway := &stubGateway{provider: models.ProviderPayPal}
	h := newWebhookHandlers(t, gateway, &fakeTransitionStore{})

	if rec := postStripeWebhook(h); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for unconfigured gateway, got %d", rec.Code)
	}
}
