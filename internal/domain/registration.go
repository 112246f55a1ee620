/**
 * @description
 * This file defines the registration domain model: the state machine at the
 * core of the platform. A registration moves
 *   pending -> confirmed
 *   manual_payment_required -> manual_payment_verification -> confirmed
 *   any non-terminal -> cancelled -> refunded
 * and `waitlist` is a parallel branch entered when capacity is exhausted,
 * exited only by promotion (to manual_payment_required or pending) or by
 * cancellation.
 *
 * @notes
 * - Slot accounting counts every registration in a slot-holding status, not
 *   just CONFIRMED ones; otherwise several pending registrations could all
 *   confirm past capacity without any race being involved.
 * - One registration per (user, event, occurrence) is enforced by a unique
 *   constraint; the service maps the violation to a domain error.
 */
package domain

import (
	"strings"
	"time"
)

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	RegistrationPending                   RegistrationStatus = "pending"
	RegistrationConfirmed                 RegistrationStatus = "confirmed"
	RegistrationManualPaymentRequired     RegistrationStatus = "manual_payment_required"
	RegistrationManualPaymentVerification RegistrationStatus = "manual_payment_verification"
	RegistrationWaitlist                  RegistrationStatus = "waitlist"
	RegistrationCancelled                 RegistrationStatus = "cancelled"
	RegistrationRefunded                  RegistrationStatus = "refunded"
)

// HoldsSlot reports whether a registration in this status occupies one of the
// event's limited spots. Waitlisted and terminal registrations do not.
func (s RegistrationStatus) HoldsSlot() bool {
	switch s {
	case RegistrationPending,
		RegistrationConfirmed,
		RegistrationManualPaymentRequired,
		RegistrationManualPaymentVerification:
		return true
	}
	return false
}

// Cancellable reports whether the status permits a transition to CANCELLED.
func (s RegistrationStatus) Cancellable() bool {
	return s != RegistrationCancelled && s != RegistrationRefunded
}

// Terminal reports whether no further transitions are allowed out of s,
// except CANCELLED -> REFUNDED.
func (s RegistrationStatus) Terminal() bool {
	return s == RegistrationCancelled || s == RegistrationRefunded
}

// PaymentFlow selects how a registration intends to pay.
type PaymentFlow string

const (
	FlowGateway PaymentFlow = "gateway"
	FlowManual  PaymentFlow = "manual"
)

// Registration ties a user to one occurrence of an event.
type Registration struct {
	ID                       string             `json:"id"`
	UserID                   string             `json:"user_id"`
	EventID                  string             `json:"event_id"`
	OccurrenceDate           time.Time          `json:"occurrence_date"` // date component only
	Status                   RegistrationStatus `json:"status"`
	PaymentID                *string            `json:"payment_id,omitempty"`
	ManualPaymentDueAt       *time.Time         `json:"manual_payment_due_at,omitempty"`
	ManualPaymentConfirmedAt *time.Time         `json:"manual_payment_confirmed_at,omitempty"`
	WaitlistNotified         bool               `json:"waitlist_notified"`
	WaitlistNotifiedAt       *time.Time         `json:"waitlist_notified_at,omitempty"`
	PromotedFromWaitlistAt   *time.Time         `json:"promoted_from_waitlist_at,omitempty"`
	CreatedAt                time.Time          `json:"created_at"`
	UpdatedAt                time.Time          `json:"updated_at"`
}

// RefundTask is the review record created when a paid registration is
// cancelled with a refund request. At most one exists per registration.
// RefundEligible records what the cutoff arithmetic said at cancellation
// time; ShouldRefund is the independent admin decision and may contradict it.
type RefundTask struct {
	ID                      string     `json:"id"`
	RegistrationID          string     `json:"registration_id"`
	UserID                  string     `json:"user_id"`
	EventID                 string     `json:"event_id"`
	PaymentID               *string    `json:"payment_id,omitempty"`
	AmountCents             int64      `json:"amount_cents"`
	Currency                string     `json:"currency"`
	RefundEligible          bool       `json:"refund_eligible"`
	RecommendedShouldRefund bool       `json:"recommended_should_refund"`
	ShouldRefund            *bool      `json:"should_refund,omitempty"`
	RefundIssued            bool       `json:"refund_issued"`
	ReviewedBy              *string    `json:"reviewed_by,omitempty"`
	ReviewNotes             *string    `json:"review_notes,omitempty"`
	ReviewedAt              *time.Time `json:"reviewed_at,omitempty"`
	RefundedAt              *time.Time `json:"refunded_at,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               time.Time  `json:"updated_at"`
}

// RegisterRequest is the DTO for creating a registration.
type RegisterRequest struct {
	EventID        string      `json:"event_id" validate:"required"`
	OccurrenceDate string      `json:"occurrence_date" validate:"required,datetime=2006-01-02"`
	PaymentFlow    PaymentFlow `json:"payment_flow" validate:"required,oneof=gateway manual"`
}

// CancelRegistrationRequest is the DTO for cancelling a registration.
type CancelRegistrationRequest struct {
	RequestRefund bool `json:"request_refund"`
}

// ReviewRefundTaskRequest is the admin DTO deciding a refund task.
type ReviewRefundTaskRequest struct {
	ShouldRefund bool   `json:"should_refund"`
	Notes        string `json:"notes" validate:"max=2000"`
}

// ManualPaymentDetails is the read-only projection a member needs to complete
// a bank transfer for a manual-payment registration.
type ManualPaymentDetails struct {
	RegistrationID    string     `json:"registration_id"`
	EventTitle        string     `json:"event_title"`
	OccurrenceDate    time.Time  `json:"occurrence_date"`
	AmountCents       int64      `json:"amount_cents"`
	Currency          string     `json:"currency"`
	TransferReference string     `json:"transfer_reference"`
	BankAccountName   string     `json:"bank_account_name"`
	BankAccountNumber string     `json:"bank_account_number"`
	DueAt             *time.Time `json:"due_at,omitempty"`
}

// RegistrationWithEvent is the "my registrations" listing projection.
type RegistrationWithEvent struct {
	Registration
	EventTitle     string    `json:"event_title"`
	EventStartDate time.Time `json:"event_start_date"`
	EventLocation  string    `json:"event_location"`
}

// TransferReferenceFor derives the bank-transfer reference a member quotes
// when paying for a registration manually.
func TransferReferenceFor(registrationID string) string {
	id := NormalizeID(registrationID)
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "KNZ-" + strings.ToUpper(id)
}
