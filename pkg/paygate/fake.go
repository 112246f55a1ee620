/**
 * @description
 * In-memory Gateway implementation for tests and local development. It
 * records payments it has issued, signs and verifies webhook payloads with
 * HMAC-SHA256 over the raw body, and lets callers flip payment statuses to
 * simulate provider behavior.
 */
package paygate

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
)

// Fake is a deterministic in-process payment gateway.
type Fake struct {
	secret []byte

	mu       sync.Mutex
	seq      int
	payments map[string]*fakePayment
}

type fakePayment struct {
	status      PaymentStatus
	amountCents int64
}

// fakeWebhook is the payload shape Fake signs and parses.
type fakeWebhook struct {
	PaymentID string        `json:"payment_id"`
	Status    PaymentStatus `json:"status"`
}

// NewFake creates a fake gateway whose webhooks are signed with secret.
func NewFake(secret string) *Fake {
	return &Fake{
		secret:   []byte(secret),
		payments: make(map[string]*fakePayment),
	}
}

// CreatePayment registers a pending payment and hands back a synthetic
// checkout URL.
func (f *Fake) CreatePayment(_ context.Context, params CreatePaymentParams) (*CreatePaymentResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	id := fmt.Sprintf("fake_%06d", f.seq)
	f.payments[id] = &fakePayment{status: StatusPending, amountCents: params.AmountCents}

	return &CreatePaymentResult{
		Success:     true,
		PaymentID:   id,
		RedirectURL: "https://checkout.fake.test/" + id,
		Status:      StatusPending,
	}, nil
}

// VerifyPayment returns the stored status.
func (f *Fake) VerifyPayment(ctx context.Context, paymentID string) (PaymentStatus, error) {
	return f.GetPaymentStatus(ctx, paymentID)
}

// ProcessWebhook verifies the HMAC-SHA256 hex signature over the raw
// payload, then parses it.
func (f *Fake) ProcessWebhook(_ context.Context, payload []byte, signature string) (*WebhookResult, error) {
	mac := hmac.New(sha256.New, f.secret)
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return nil, ErrInvalidSignature
	}

	var hook fakeWebhook
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if hook.PaymentID == "" {
		return nil, fmt.Errorf("webhook payload missing payment_id")
	}

	f.mu.Lock()
	if p, ok := f.payments[hook.PaymentID]; ok {
		p.status = hook.Status
	}
	f.mu.Unlock()

	return &WebhookResult{PaymentID: hook.PaymentID, Status: hook.Status, Raw: payload}, nil
}

// Refund flips a completed payment to refunded.
func (f *Fake) Refund(_ context.Context, paymentID string, _ *int64, _ string) (*RefundResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[paymentID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	if p.status != StatusCompleted {
		return nil, fmt.Errorf("cannot refund payment in status %q", p.status)
	}
	p.status = StatusRefunded

	return &RefundResult{
		Success:  true,
		RefundID: "refund_" + paymentID,
		Status:   StatusRefunded,
	}, nil
}

// GetPaymentStatus returns the stored status.
func (f *Fake) GetPaymentStatus(_ context.Context, paymentID string) (PaymentStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.payments[paymentID]
	if !ok {
		return StatusUnknown, ErrPaymentNotFound
	}
	return p.status, nil
}

// SetStatus forces a payment's status, for driving test scenarios.
func (f *Fake) SetStatus(paymentID string, status PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.payments[paymentID]; ok {
		p.status = status
	}
}

// SignedWebhook builds a payload for paymentID/status and its valid
// signature, the way the provider side would.
func (f *Fake) SignedWebhook(paymentID string, status PaymentStatus) ([]byte, string) {
	payload, _ := json.Marshal(fakeWebhook{PaymentID: paymentID, Status: status})
	mac := hmac.New(sha256.New, f.secret)
	mac.Write(payload)
	return payload, hex.EncodeToString(mac.Sum(nil))
}
