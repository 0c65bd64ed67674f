package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/paycartapp/paycart/internal/checkout"
)

func TestWriteCheckoutError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name:       "validation error",
			err:        &checkout.ValidationError{Field: "currency", Message: "unsupported currency"},
			wantStatus: http.StatusBadRequest,
			wantError:  "unsupported currency",
		},
		{
			name:       "product unavailable",
			err:        &checkout.ProductUnavailableError{ProductIDs: []uuid.UUID{uuid.Nil}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "discount expired",
			err:        checkout.ErrDiscountExpired,
			wantStatus: http.StatusBadRequest,
			wantError:  checkout.ErrDiscountExpired.Error(),
		},
		{
			name:       "discount exhausted",
			err:        checkout.ErrDiscountExhausted,
			wantStatus: http.StatusBadRequest,
			wantError:  checkout.ErrDiscountExhausted.Error(),
		},
		{
			name:       "amount too low",
			err:        checkout.ErrAmountTooLow,
			wantStatus: http.StatusBadRequest,
			wantError:  checkout.ErrAmountTooLow.Error(),
		},
		{
			name:       "order not found",
			err:        checkout.ErrOrderNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "access denied",
			err:        checkout.ErrAccessDenied,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "payment processing hides wrapped detail",
			err:        fmt.Errorf("%w: stripe: card_declined acct_1SECRET", checkout.ErrPaymentProcessing),
			wantStatus: http.StatusBadGateway,
			wantError:  checkout.ErrPaymentProcessing.Error(),
		},
		{
			name:       "payment action hides wrapped detail",
			err:        fmt.Errorf("%w: paypal capture COMPLIANCE_VIOLATION", checkout.ErrPaymentActionFailed),
			wantStatus: http.StatusBadGateway,
			wantError:  checkout.ErrPaymentActionFailed.Error(),
		},
	}

	h := &Handlers{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("POST", "/orders", nil)
			rec := httptest.NewRecorder()
			h.writeCheckoutError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantError == "" {
				return
			}
			var resp errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("expected error %q, got %q", tt.wantError, resp.Error)
			}
		})
	}
}

func TestWriteCheckoutError_UnexpectedIsOpaque(t *testing.T) {
	t.Parallel()

	h := &Handlers{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	req := httptest.NewRequest("GET", "/orders", nil)
	rec := httptest.NewRecorder()
	h.writeCheckoutError(rec, req, fmt.Errorf("pgx: connection refused host=db-internal"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "db-internal") {
		t.Fatalf("internal detail leaked to client: %s", rec.Body.String())
	}
}
