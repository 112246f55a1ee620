/**
 * @description
 * This file defines the payment domain model. A Payment row is created before
 * the gateway is called and is the audit record of the attempt; it outlives
 * its registration (no cascade) so the money trail survives cancellations.
 *
 * @notes
 * - Status transitions into COMPLETED carry the side effects (registration
 *   confirmation, loyalty points, donation completion); they are applied only
 *   on the transition, never on a replay, which is what makes webhook
 *   processing idempotent.
 */
package domain

import "time"

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentCompleted  PaymentStatus = "completed"
	PaymentFailed     PaymentStatus = "failed"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentCancelled  PaymentStatus = "cancelled"
)

// Final reports whether no gateway update may change the status anymore,
// except COMPLETED -> REFUNDED through the admin refund path.
func (s PaymentStatus) Final() bool {
	switch s {
	case PaymentCompleted, PaymentFailed, PaymentRefunded, PaymentCancelled:
		return true
	}
	return false
}

// Payment is the gateway-linked transaction record.
type Payment struct {
	ID               string        `json:"id"`
	UserID           *string       `json:"user_id,omitempty"`
	RegistrationID   *string       `json:"registration_id,omitempty"`
	DonationID       *string       `json:"donation_id,omitempty"`
	Gateway          string        `json:"gateway"` // 'fake', 'snap'
	GatewayPaymentID *string       `json:"gateway_payment_id,omitempty"`
	AmountCents      int64         `json:"amount_cents"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"status"`
	Description      string        `json:"description"`
	GatewayPayload   []byte        `json:"-"` // opaque audit copy of the last gateway message
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// CheckoutRequest is the DTO starting a gateway payment for a registration.
type CheckoutRequest struct {
	RegistrationID string `json:"registration_id" validate:"required"`
}

// CheckoutResponse carries the redirect the client must follow.
type CheckoutResponse struct {
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
	Status      string `json:"status"`
}
