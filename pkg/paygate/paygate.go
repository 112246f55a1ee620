/**
 * @description
 * Payment gateway port. The application talks to whichever provider is
 * configured through this interface; implementations live alongside it
 * (Fake for tests and local development, Snap for Midtrans).
 */
package paygate

import (
	"context"
	"errors"
)

// PaymentStatus is the gateway-side view of a payment.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
	StatusCancelled PaymentStatus = "cancelled"
	StatusExpired   PaymentStatus = "expired"
	StatusRefunded  PaymentStatus = "refunded"
	StatusUnknown   PaymentStatus = "unknown"
)

var (
	// ErrInvalidSignature is returned when a webhook payload fails
	// signature verification.
	ErrInvalidSignature = errors.New("paygate: invalid webhook signature")

	// ErrPaymentNotFound is returned when the gateway has no record of the
	// referenced payment.
	ErrPaymentNotFound = errors.New("paygate: payment not found")
)

// CreatePaymentParams describes a checkout to initiate.
type CreatePaymentParams struct {
	AmountCents int64
	Currency    string
	Description string
	UserID      string
	UserEmail   string
	UserName    string
	ReturnURL   string
	CancelURL   string
	Metadata    map[string]string
}

// CreatePaymentResult is the gateway's answer to CreatePayment. PaymentID
// is the gateway-side identifier used to correlate webhooks later.
type CreatePaymentResult struct {
	Success     bool
	PaymentID   string
	RedirectURL string
	Status      PaymentStatus
}

// WebhookResult is a verified, parsed gateway notification.
type WebhookResult struct {
	PaymentID string
	Status    PaymentStatus
	Raw       []byte
}

// RefundResult reports the outcome of a refund call.
type RefundResult struct {
	Success  bool
	RefundID string
	Status   PaymentStatus
}

// Gateway is the provider-neutral payment boundary.
type Gateway interface {
	// CreatePayment initiates a checkout and returns the redirect URL the
	// payer should be sent to.
	CreatePayment(ctx context.Context, params CreatePaymentParams) (*CreatePaymentResult, error)

	// VerifyPayment re-checks a payment against the provider and returns
	// its authoritative status.
	VerifyPayment(ctx context.Context, paymentID string) (PaymentStatus, error)

	// ProcessWebhook authenticates a raw notification payload and parses
	// it. The signature argument carries a transport-level signature
	// header; providers that embed the signature in the payload may
	// ignore it.
	ProcessWebhook(ctx context.Context, payload []byte, signature string) (*WebhookResult, error)

	// Refund reverses a completed payment, fully when amountCents is nil.
	Refund(ctx context.Context, paymentID string, amountCents *int64, reason string) (*RefundResult, error)

	// GetPaymentStatus returns the provider's current status for a
	// payment.
	GetPaymentStatus(ctx context.Context, paymentID string) (PaymentStatus, error)
}
