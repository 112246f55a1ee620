package paygate

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"testing"
)

func snapSignature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

func TestSnapProcessWebhookVerifiesSignature(t *testing.T) {
	s := NewSnap("server-key", false)
	ctx := context.Background()

	notif := map[string]string{
		"order_id":           "order-1",
		"status_code":        "200",
		"gross_amount":       "50.00",
		"transaction_status": "settlement",
		"signature_key":      snapSignature("order-1", "200", "50.00", "server-key"),
	}
	payload, _ := json.Marshal(notif)

	res, err := s.ProcessWebhook(ctx, payload, "")
	if err != nil {
		t.Fatalf("ProcessWebhook failed: %v", err)
	}
	if res.PaymentID != "order-1" {
		t.Fatalf("expected payment id order-1, got %q", res.PaymentID)
	}
	if res.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q", res.Status)
	}

	notif["signature_key"] = snapSignature("order-1", "200", "50.00", "wrong-key")
	payload, _ = json.Marshal(notif)
	if _, err := s.ProcessWebhook(ctx, payload, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	delete(notif, "signature_key")
	payload, _ = json.Marshal(notif)
	if _, err := s.ProcessWebhook(ctx, payload, ""); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing key, got %v", err)
	}
}

func TestMapSnapStatus(t *testing.T) {
	tests := []struct {
		transaction string
		fraud       string
		want        PaymentStatus
	}{
		{"capture", "accept", StatusCompleted},
		{"capture", "challenge", StatusPending},
		{"capture", "deny", StatusFailed},
		{"settlement", "", StatusCompleted},
		{"pending", "", StatusPending},
		{"deny", "", StatusFailed},
		{"failure", "", StatusFailed},
		{"cancel", "", StatusCancelled},
		{"expire", "", StatusExpired},
		{"refund", "", StatusRefunded},
		{"partial_refund", "", StatusRefunded},
		{"SETTLEMENT", "", StatusCompleted},
		{"something_else", "", StatusUnknown},
	}

	for _, tt := range tests {
		if got := mapSnapStatus(tt.transaction, tt.fraud); got != tt.want {
			t.Errorf("mapSnapStatus(%q, %q) = %q, want %q", tt.transaction, tt.fraud, got, tt.want)
		}
	}
}

func TestCentsToUnits(t *testing.T) {
	tests := []struct {
		cents int64
		want  int64
	}{
		{5000, 50},
		{5049, 50},
		{5050, 51},
		{99, 1},
		{0, 0},
	}
	for _, tt := range tests {
		if got := centsToUnits(tt.cents); got != tt.want {
			t.Errorf("centsToUnits(%d) = %d, want %d", tt.cents, got, tt.want)
		}
	}
}
