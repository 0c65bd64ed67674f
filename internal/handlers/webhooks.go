package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/paycartapp/paycart/internal/cache"
	"github.com/paycartapp/paycart/internal/checkout"
	"github.com/paycartapp/paycart/internal/models"
	"github.com/paycartapp/paycart/internal/payments"
)

// webhookIdempotencyTTL is how long processed event IDs are kept for the
// fast-path dedup. The conditional status update remains the authority.
const webhookIdempotencyTTL = 24 * time.Hour

func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, models.ProviderStripe)
}

func (h *Handlers) PayPalWebhook(w http.ResponseWriter, r *http.Request) {
	h.handleWebhook(w, r, models.ProviderPayPal)
}

func (h *Handlers) handleWebhook(w http.ResponseWriter, r *http.Request, provider models.PaymentProvider) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx).With("provider", provider)

	gateway, ok := h.gateways[provider]
	if !ok {
		logger.Error("webhook received for unconfigured gateway")
		http.Error(w, "Webhook handler not configured", http.StatusInternalServerError)
		return
	}

	// The raw body must reach signature verification byte-for-byte.
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("failed to read webhook payload", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	event, err := gateway.VerifyWebhook(ctx, payload, r.Header)
	if err != nil {
		if errors.Is(err, payments.ErrSignatureVerification) {
			logger.Error("webhook signature verification failed", "error", err)
			http.Error(w, "Invalid signature", http.StatusBadRequest)
			return
		}
		logger.Error("failed to parse webhook event", "error", err)
		http.Error(w, "Invalid webhook", http.StatusBadRequest)
		return
	}

	if event.ID == "" {
		logger.Error("webhook event missing ID")
		http.Error(w, "Missing event ID", http.StatusBadRequest)
		return
	}

	cacheKey := cache.WebhookKey(string(provider), event.ID)
	if _, err := h.cacheProvider.Get(ctx, cacheKey); err == nil {
		logger.Info("webhook already processed", "event_id", event.ID, "type", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.webhookProcessor.Process(ctx, event); err != nil {
		if errors.Is(err, checkout.ErrOrderNotFound) {
			// Non-2xx so the provider redelivers; the order row may simply
			// not be visible yet.
			logger.Warn("webhook references unknown order", "event_id", event.ID, "reference", event.ProviderReference)
			http.Error(w, "Order not found", http.StatusNotFound)
			return
		}
		var validationErr *checkout.ValidationError
		if errors.As(err, &validationErr) {
			// Permanently malformed event; a 400 is terminal, redelivery
			// cannot fix it.
			logger.Error("webhook event rejected", "error", err, "event_id", event.ID, "type", event.Type)
			http.Error(w, "Invalid webhook event", http.StatusBadRequest)
			return
		}
		logger.Error("failed to process webhook", "error", err, "event_id", event.ID, "type", event.Type)
		http.Error(w, "Processing failed", http.StatusInternalServerError)
		return
	}

	if err := h.cacheProvider.Set(ctx, cacheKey, "processed", webhookIdempotencyTTL); err != nil {
		logger.Error("failed to mark webhook as processed in cache", "error", err, "event_id", event.ID)
	}

	w.WriteHeader(http.StatusOK)
}
