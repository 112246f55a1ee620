package paygate

import (
	"context"
	"errors"
	"testing"
)

func TestFakeCreateAndStatus(t *testing.T) {
	f := NewFake("secret")
	ctx := context.Background()

	res, err := f.CreatePayment(ctx, CreatePaymentParams{AmountCents: 5000, Currency: "PLN"})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}
	if !res.Success || res.PaymentID == "" || res.RedirectURL == "" {
		t.Fatalf("unexpected result: %+v", res)
	}

	status, err := f.GetPaymentStatus(ctx, res.PaymentID)
	if err != nil {
		t.Fatalf("GetPaymentStatus failed: %v", err)
	}
	if status != StatusPending {
		t.Fatalf("expected pending, got %q", status)
	}

	if _, err := f.GetPaymentStatus(ctx, "missing"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestFakeWebhookRoundTrip(t *testing.T) {
	f := NewFake("secret")
	ctx := context.Background()

	res, err := f.CreatePayment(ctx, CreatePaymentParams{AmountCents: 5000})
	if err != nil {
		t.Fatalf("CreatePayment failed: %v", err)
	}

	payload, sig := f.SignedWebhook(res.PaymentID, StatusCompleted)
	hook, err := f.ProcessWebhook(ctx, payload, sig)
	if err != nil {
		t.Fatalf("ProcessWebhook failed: %v", err)
	}
	if hook.PaymentID != res.PaymentID || hook.Status != StatusCompleted {
		t.Fatalf("unexpected webhook result: %+v", hook)
	}

	status, err := f.GetPaymentStatus(ctx, res.PaymentID)
	if err != nil {
		t.Fatalf("GetPaymentStatus failed: %v", err)
	}
	if status != StatusCompleted {
		t.Fatalf("expected completed after webhook, got %q", status)
	}
}

func TestFakeWebhookRejectsBadSignature(t *testing.T) {
	f := NewFake("secret")
	ctx := context.Background()

	payload, _ := f.SignedWebhook("fake_000001", StatusCompleted)
	if _, err := f.ProcessWebhook(ctx, payload, "deadbeef"); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	other := NewFake("other-secret")
	_, foreignSig := other.SignedWebhook("fake_000001", StatusCompleted)
	if _, err := f.ProcessWebhook(ctx, payload, foreignSig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for foreign key, got %v", err)
	}
}

func TestFakeRefund(t *testing.T) {
	f := NewFake("secret")
	ctx := context.Background()

	res, _ := f.CreatePayment(ctx, CreatePaymentParams{AmountCents: 5000})

	if _, err := f.Refund(ctx, res.PaymentID, nil, "test"); err == nil {
		t.Fatal("expected refund of pending payment to fail")
	}

	f.SetStatus(res.PaymentID, StatusCompleted)
	out, err := f.Refund(ctx, res.PaymentID, nil, "test")
	if err != nil {
		t.Fatalf("Refund failed: %v", err)
	}
	if !out.Success || out.Status != StatusRefunded {
		t.Fatalf("unexpected refund result: %+v", out)
	}

	status, _ := f.GetPaymentStatus(ctx, res.PaymentID)
	if status != StatusRefunded {
		t.Fatalf("expected refunded, got %q", status)
	}

	if _, err := f.Refund(ctx, "missing", nil, "test"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}
