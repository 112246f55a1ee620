/**
 * @description
 * This file defines the subscription and donation domain models. A
 * subscription is one-to-one with a user; it is active while its end date is
 * unset or in the future, and accumulates loyalty points from completed
 * payments. Donations may be anonymous and are unique per transfer reference.
 */
package domain

import "time"

// Subscription represents a member's club subscription.
type Subscription struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	StartedAt     time.Time  `json:"started_at"`
	EndDate       *time.Time `json:"end_date,omitempty"` // nil = open-ended
	LoyaltyPoints int64      `json:"loyalty_points"`
	AutoRenew     bool       `json:"auto_renew"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// ActiveAt reports whether the subscription grants member benefits at t.
func (s *Subscription) ActiveAt(t time.Time) bool {
	if s == nil {
		return false
	}
	return s.EndDate == nil || s.EndDate.After(t)
}

// SubscriptionStatus is the API projection of a member's subscription.
type SubscriptionStatus struct {
	Active        bool       `json:"active"`
	EndDate       *time.Time `json:"end_date,omitempty"`
	LoyaltyPoints int64      `json:"loyalty_points"`
	AutoRenew     bool       `json:"auto_renew"`
}

// GrantSubscriptionRequest is the admin DTO creating or extending a
// subscription.
type GrantSubscriptionRequest struct {
	Months    int  `json:"months" validate:"required,min=1,max=36"`
	AutoRenew bool `json:"auto_renew"`
}

// DonationStatus is the lifecycle state of a donation.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationCancelled DonationStatus = "cancelled"
)

// Donation represents a one-off contribution to the club.
type Donation struct {
	ID                string         `json:"id"`
	UserID            *string        `json:"user_id,omitempty"` // nil = anonymous
	DonorName         string         `json:"donor_name"`
	AmountCents       int64          `json:"amount_cents"`
	Currency          string         `json:"currency"`
	TransferReference string         `json:"transfer_reference"`
	Message           string         `json:"message"`
	Status            DonationStatus `json:"status"`
	PaymentID         *string        `json:"payment_id,omitempty"`
	PaidAt            *time.Time     `json:"paid_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// CreateDonationRequest is the DTO for starting a donation. Method 'transfer'
// returns bank details with the generated reference; 'gateway' returns a
// redirect URL and requires an authenticated caller.
type CreateDonationRequest struct {
	AmountCents int64  `json:"amount_cents" validate:"required,min=100"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	DonorName   string `json:"donor_name" validate:"max=200"`
	Message     string `json:"message" validate:"max=1000"`
	Method      string `json:"method" validate:"required,oneof=transfer gateway"`
}

// DonationInstructions is the response to a new donation: bank details for
// the transfer method, the gateway redirect for the other.
type DonationInstructions struct {
	Donation          *Donation `json:"donation"`
	BankAccountName   string    `json:"bank_account_name,omitempty"`
	BankAccountNumber string    `json:"bank_account_number,omitempty"`
	RedirectURL       string    `json:"redirect_url,omitempty"`
	PaymentID         string    `json:"payment_id,omitempty"`
}
