package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/paycartapp/paycart/internal/models"
	"github.com/paycartapp/paycart/internal/observability"
)

// PayPalGateway implements Gateway against the PayPal Orders v2 REST API.
// PayPal ships no Go SDK, so this is a thin HTTP client: client-credentials
// token, order create/capture, capture refund, and webhook verification via
// the verify-webhook-signature endpoint.
type PayPalGateway struct {
	baseURL      string
	clientID     string
	clientSecret string
	webhookID    string
	httpClient   *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

const paypalRequestTimeout = 10 * time.Second

func NewPayPalGateway(baseURL, clientID, clientSecret, webhookID string) *PayPalGateway {
	return &PayPalGateway{
		baseURL:      strings.TrimRight(baseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		webhookID:    webhookID,
		httpClient:   observability.NewHTTPClient(paypalRequestTimeout),
	}
}

func (g *PayPalGateway) Provider() models.PaymentProvider {
	return models.ProviderPayPal
}

type paypalOrderResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (g *PayPalGateway) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]string{
					"currency_code": strings.ToUpper(params.Currency),
					"value":         params.Amount.StringFixed(2),
				},
				"custom_id": params.Metadata["order_id"],
			},
		},
	}

	var created paypalOrderResponse
	if err := g.do(ctx, http.MethodPost, "/v2/checkout/orders", body, &created); err != nil {
		return nil, fmt.Errorf("failed to create paypal order: %w", err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("paypal order response missing ID")
	}

	approvalURL := ""
	for _, link := range created.Links {
		if link.Rel == "approve" {
			approvalURL = link.Href
			break
		}
	}

	return &Intent{
		Reference:    created.ID,
		ClientHandle: approvalURL,
	}, nil
}

// CancelIntent is unsupported: PayPal orders cannot be voided through the
// API, they expire on their own. Callers record the reference instead.
func (g *PayPalGateway) CancelIntent(context.Context, string) error {
	return ErrCancelUnsupported
}

func (g *PayPalGateway) Capture(ctx context.Context, reference string) (*CaptureResult, error) {
	var captured paypalOrderResponse
	path := fmt.Sprintf("/v2/checkout/orders/%s/capture", reference)
	if err := g.do(ctx, http.MethodPost, path, map[string]any{}, &captured); err != nil {
		return nil, fmt.Errorf("failed to capture paypal order %s: %w", reference, err)
	}
	return &CaptureResult{
		Reference: captured.ID,
		Status:    captured.Status,
	}, nil
}

func (g *PayPalGateway) Refund(ctx context.Context, reference string, amount decimal.Decimal, currency, reason string) (*RefundResult, error) {
	captureID, err := g.captureID(ctx, reference)
	if err != nil {
		return nil, err
	}

	body := map[string]any{}
	if !amount.IsZero() {
		body["amount"] = map[string]string{
			"currency_code": strings.ToUpper(currency),
			"value":         amount.StringFixed(2),
		}
	}
	if reason != "" {
		body["note_to_payer"] = reason
	}

	var refunded struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	path := fmt.Sprintf("/v2/payments/captures/%s/refund", captureID)
	if err := g.do(ctx, http.MethodPost, path, body, &refunded); err != nil {
		return nil, fmt.Errorf("failed to refund paypal capture %s: %w", captureID, err)
	}
	return &RefundResult{
		RefundID: refunded.ID,
		Status:   refunded.Status,
	}, nil
}

func (g *PayPalGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*Event, error) {
	var rawEvent json.RawMessage = payload

	verification := map[string]any{
		"auth_algo":         headers.Get("Paypal-Auth-Algo"),
		"cert_url":          headers.Get("Paypal-Cert-Url"),
		"transmission_id":   headers.Get("Paypal-Transmission-Id"),
		"transmission_sig":  headers.Get("Paypal-Transmission-Sig"),
		"transmission_time": headers.Get("Paypal-Transmission-Time"),
		"webhook_id":        g.webhookID,
		"webhook_event":     rawEvent,
	}

	var result struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", verification, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignatureVerification, err)
	}
	if result.VerificationStatus != "SUCCESS" {
		return nil, fmt.Errorf("%w: verification status %s", ErrSignatureVerification, result.VerificationStatus)
	}

	return translatePayPalEvent(payload)
}

func (g *PayPalGateway) Status(ctx context.Context, reference string) (string, error) {
	var order paypalOrderResponse
	if err := g.do(ctx, http.MethodGet, "/v2/checkout/orders/"+reference, nil, &order); err != nil {
		return "", fmt.Errorf("failed to get paypal order %s: %w", reference, err)
	}
	return order.Status, nil
}

func (g *PayPalGateway) MinimumCharge(string) decimal.Decimal {
	return decimal.RequireFromString("1.00")
}

func (g *PayPalGateway) captureID(ctx context.Context, orderID string) (string, error) {
	var order paypalOrderResponse
	if err := g.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, &order); err != nil {
		return "", fmt.Errorf("failed to get paypal order %s: %w", orderID, err)
	}
	for _, unit := range order.PurchaseUnits {
		for _, capture := range unit.Payments.Captures {
			if capture.ID != "" {
				return capture.ID, nil
			}
		}
	}
	return "", fmt.Errorf("paypal order %s has no capture to refund", orderID)
}

type paypalWebhookEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID                string `json:"id"`
		Status            string `json:"status"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	} `json:"resource"`
}

func translatePayPalEvent(payload []byte) (*Event, error) {
	var event paypalWebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("invalid paypal event payload: %w", err)
	}

	translated := &Event{
		ID:       event.ID,
		Provider: models.ProviderPayPal,
		Raw:      payload,
	}

	// Capture events carry the capture ID in resource.id; the owning
	// checkout order ID rides along in supplementary_data.
	reference := event.Resource.SupplementaryData.RelatedIDs.OrderID
	if reference == "" {
		reference = event.Resource.ID
	}
	translated.ProviderReference = reference

	switch event.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		translated.Type = EventCaptureCompleted
	case "CHECKOUT.ORDER.APPROVED":
		// Approval is not payment; capture completion drives the transition.
		translated.Type = EventUnknown
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		translated.Type = EventPaymentFailed
	case "CHECKOUT.ORDER.VOIDED":
		translated.Type = EventPaymentCanceled
	case "CUSTOMER.DISPUTE.CREATED":
		translated.Type = EventDisputeCreated
	default:
		translated.Type = EventUnknown
	}
	return translated, nil
}

func (g *PayPalGateway) do(ctx context.Context, method, path string, body any, out any) error {
	token, err := g.token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("paypal %s %s returned %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode paypal response: %w", err)
	}
	return nil
}

func (g *PayPalGateway) token(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.accessToken != "" && time.Now().Before(g.tokenExpiry) {
		return g.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/oauth2/token",
		strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(g.clientID, g.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch paypal access token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("paypal token endpoint returned %d", resp.StatusCode)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode paypal token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("paypal token response missing access_token")
	}

	g.accessToken = token.AccessToken
	// Refresh a minute early to avoid using a token at the expiry boundary.
	g.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn)*time.Second - time.Minute)
	return g.accessToken, nil
}
