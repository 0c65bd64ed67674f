package models

import "testing"

func TestValidStatusPair(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  OrderStatus
		payment PaymentStatus
		want    bool
	}{
		{StatusPending, PaymentPending, true},
		{StatusPaid, PaymentSucceeded, true},
		{StatusCompleted, PaymentSucceeded, true},
		{StatusFailed, PaymentFailed, true},
		{StatusFailed, PaymentPending, true},
		{StatusRefunded, PaymentRefunded, true},

		{StatusPaid, PaymentPending, false},
		{StatusPaid, PaymentFailed, false},
		{StatusPending, PaymentSucceeded, false},
		{StatusRefunded, PaymentSucceeded, false},
		{StatusCompleted, PaymentRefunded, false},
		{OrderStatus("shipped"), PaymentSucceeded, false},
	}

	for _, tt := range tests {
		if got := ValidStatusPair(tt.status, tt.payment); got != tt.want {
			t.Errorf("ValidStatusPair(%s, %s) = %v, want %v", tt.status, tt.payment, got, tt.want)
		}
	}
}

func TestProviderReference(t *testing.T) {
	t.Parallel()

	stripeOrder := &Order{Provider: ProviderStripe, StripePaymentIntentID: "pi_1", PayPalOrderID: ""}
	if got := stripeOrder.ProviderReference(); got != "pi_1" {
		t.Errorf("expected pi_1, got %q", got)
	}

	paypalOrder := &Order{Provider: ProviderPayPal, PayPalOrderID: "PP-1"}
	if got := paypalOrder.ProviderReference(); got != "PP-1" {
		t.Errorf("expected PP-1, got %q", got)
	}
}
