package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

// newPayPalTestServer serves the token endpoint plus whatever routes the
// test registers, counting token fetches.
func newPayPalTestServer(t *testing.T, mux *http.ServeMux) (*PayPalGateway, *atomic.Int64) {
	t.Helper()

	var tokenCalls atomic.Int64
	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client_id" || pass != "client_secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		tokenCalls.Add(1)
		writePayPalJSON(t, w, map[string]any{"access_token": "test_token", "expires_in": 3600})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewPayPalGateway(server.URL, "client_id", "client_secret", "wh_test"), &tokenCalls
}

func writePayPalJSON(t *testing.T, w http.ResponseWriter, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(body); err != nil {
		t.Errorf("failed to encode response: %v", err)
	}
}

func requireBearer(t *testing.T, r *http.Request) {
	t.Helper()
	if r.Header.Get("Authorization") != "Bearer test_token" {
		t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
	}
}

func TestPayPalCreateIntent(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)

		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				Amount struct {
					CurrencyCode string `json:"currency_code"`
					Value        string `json:"value"`
				} `json:"amount"`
			} `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode order request: %v", err)
		}
		if body.Intent != "CAPTURE" {
			t.Errorf("expected intent CAPTURE, got %q", body.Intent)
		}
		if len(body.PurchaseUnits) != 1 || body.PurchaseUnits[0].Amount.Value != "22.50" {
			t.Errorf("unexpected purchase units: %+v", body.PurchaseUnits)
		}
		if body.PurchaseUnits[0].Amount.CurrencyCode != "EUR" {
			t.Errorf("expected currency EUR, got %q", body.PurchaseUnits[0].Amount.CurrencyCode)
		}

		writePayPalJSON(t, w, map[string]any{
			"id":     "PP-ORDER-1",
			"status": "CREATED",
			"links": []map[string]string{
				{"rel": "self", "href": "https://api.example/self"},
				{"rel": "approve", "href": "https://paypal.example/approve/PP-ORDER-1"},
			},
		})
	})
	gateway, tokenCalls := newPayPalTestServer(t, mux)

	intent, err := gateway.CreateIntent(t.Context(), CreateIntentParams{
		Amount:   decimal.RequireFromString("22.50"),
		Currency: "eur",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.Reference != "PP-ORDER-1" {
		t.Errorf("expected reference PP-ORDER-1, got %q", intent.Reference)
	}
	if intent.ClientHandle != "https://paypal.example/approve/PP-ORDER-1" {
		t.Errorf("expected approval URL, got %q", intent.ClientHandle)
	}

	// Second call reuses the cached token.
	if _, err := gateway.CreateIntent(t.Context(), CreateIntentParams{
		Amount:   decimal.RequireFromString("22.50"),
		Currency: "EUR",
	}); err != nil {
		t.Fatalf("unexpected error on second call: %v", err)
	}
	if got := tokenCalls.Load(); got != 1 {
		t.Errorf("expected one token fetch, got %d", got)
	}
}

func TestPayPalCancelIntentUnsupported(t *testing.T) {
	t.Parallel()

	gateway := NewPayPalGateway("https://example.invalid", "id", "secret", "wh")
	if err := gateway.CancelIntent(t.Context(), "PP-ORDER-1"); !errors.Is(err, ErrCancelUnsupported) {
		t.Fatalf("expected ErrCancelUnsupported, got %v", err)
	}
}

func TestPayPalCapture(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/checkout/orders/PP-ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		requireBearer(t, r)
		writePayPalJSON(t, w, map[string]any{"id": "PP-ORDER-1", "status": "COMPLETED"})
	})
	gateway, _ := newPayPalTestServer(t, mux)

	result, err := gateway.Capture(t.Context(), "PP-ORDER-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Reference != "PP-ORDER-1" || result.Status != "COMPLETED" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestPayPalRefund(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/checkout/orders/PP-ORDER-1", func(w http.ResponseWriter, r *http.Request) {
		writePayPalJSON(t, w, map[string]any{
			"id":     "PP-ORDER-1",
			"status": "COMPLETED",
			"purchase_units": []map[string]any{
				{"payments": map[string]any{"captures": []map[string]string{{"id": "CAP-1", "status": "COMPLETED"}}}},
			},
		})
	})
	mux.HandleFunc("POST /v2/payments/captures/CAP-1/refund", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Amount struct {
				Value string `json:"value"`
			} `json:"amount"`
			NoteToPayer string `json:"note_to_payer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode refund request: %v", err)
		}
		if body.Amount.Value != "10.00" {
			t.Errorf("expected refund amount 10.00, got %q", body.Amount.Value)
		}
		if body.NoteToPayer != "damaged item" {
			t.Errorf("expected refund note, got %q", body.NoteToPayer)
		}
		writePayPalJSON(t, w, map[string]any{"id": "REF-1", "status": "COMPLETED"})
	})
	gateway, _ := newPayPalTestServer(t, mux)

	result, err := gateway.Refund(t.Context(), "PP-ORDER-1", decimal.RequireFromString("10.00"), "EUR", "damaged item")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.RefundID != "REF-1" {
		t.Errorf("expected refund REF-1, got %q", result.RefundID)
	}
}

func TestPayPalRefund_NoCapture(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/checkout/orders/PP-ORDER-2", func(w http.ResponseWriter, r *http.Request) {
		writePayPalJSON(t, w, map[string]any{"id": "PP-ORDER-2", "status": "CREATED"})
	})
	gateway, _ := newPayPalTestServer(t, mux)

	_, err := gateway.Refund(t.Context(), "PP-ORDER-2", decimal.Decimal{}, "EUR", "")
	if err == nil {
		t.Fatal("expected error for order without captures")
	}
}

func TestPayPalVerifyWebhook(t *testing.T) {
	t.Parallel()

	payload := []byte(`{
		"id": "WH-1",
		"event_type": "PAYMENT.CAPTURE.COMPLETED",
		"resource": {
			"id": "CAP-1",
			"status": "COMPLETED",
			"supplementary_data": {"related_ids": {"order_id": "PP-ORDER-1"}}
		}
	}`)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			WebhookID      string          `json:"webhook_id"`
			TransmissionID string          `json:"transmission_id"`
			WebhookEvent   json.RawMessage `json:"webhook_event"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode verification request: %v", err)
		}
		if body.WebhookID != "wh_test" {
			t.Errorf("expected webhook_id wh_test, got %q", body.WebhookID)
		}
		if body.TransmissionID != "tx-1" {
			t.Errorf("expected transmission_id tx-1, got %q", body.TransmissionID)
		}
		writePayPalJSON(t, w, map[string]string{"verification_status": "SUCCESS"})
	})
	gateway, _ := newPayPalTestServer(t, mux)

	headers := http.Header{}
	headers.Set("Paypal-Transmission-Id", "tx-1")

	event, err := gateway.VerifyWebhook(t.Context(), payload, headers)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Type != EventCaptureCompleted {
		t.Errorf("expected capture.completed, got %s", event.Type)
	}
	if event.ProviderReference != "PP-ORDER-1" {
		t.Errorf("expected reference PP-ORDER-1, got %q", event.ProviderReference)
	}
}

func TestPayPalVerifyWebhook_Failure(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		writePayPalJSON(t, w, map[string]string{"verification_status": "FAILURE"})
	})
	gateway, _ := newPayPalTestServer(t, mux)

	_, err := gateway.VerifyWebhook(t.Context(), []byte(`{"id":"WH-1"}`), http.Header{})
	if !errors.Is(err, ErrSignatureVerification) {
		t.Fatalf("expected ErrSignatureVerification, got %v", err)
	}
}

func TestTranslatePayPalEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		payload       string
		wantType      EventType
		wantReference string
	}{
		{
			name: "capture completed resolves order via supplementary data",
			payload: `{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED",
				"resource":{"id":"CAP-1","supplementary_data":{"related_ids":{"order_id":"PP-ORDER-1"}}}}`,
			wantType:      EventCaptureCompleted,
			wantReference: "PP-ORDER-1",
		},
		{
			name:          "capture denied falls back to resource id",
			payload:       `{"id":"WH-2","event_type":"PAYMENT.CAPTURE.DENIED","resource":{"id":"PP-ORDER-2"}}`,
			wantType:      EventPaymentFailed,
			wantReference: "PP-ORDER-2",
		},
		{
			name:          "order voided",
			payload:       `{"id":"WH-3","event_type":"CHECKOUT.ORDER.VOIDED","resource":{"id":"PP-ORDER-3"}}`,
			wantType:      EventPaymentCanceled,
			wantReference: "PP-ORDER-3",
		},
		{
			name:          "dispute created",
			payload:       `{"id":"WH-4","event_type":"CUSTOMER.DISPUTE.CREATED","resource":{"id":"PP-ORDER-4"}}`,
			wantType:      EventDisputeCreated,
			wantReference: "PP-ORDER-4",
		},
		{
			name:          "approval is not payment",
			payload:       `{"id":"WH-5","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"PP-ORDER-5"}}`,
			wantType:      EventUnknown,
			wantReference: "PP-ORDER-5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event, err := translatePayPalEvent([]byte(tt.payload))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if event.Type != tt.wantType {
				t.Errorf("expected type %s, got %s", tt.wantType, event.Type)
			}
			if event.ProviderReference != tt.wantReference {
				t.Errorf("expected reference %q, got %q", tt.wantReference, event.ProviderReference)
			}
		})
	}
}

func TestTranslatePayPalEvent_InvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := translatePayPalEvent([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}
