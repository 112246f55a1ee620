/**
 * @description
 * Donation business logic. Transfer-method donations get a unique bank
 * reference and wait for an admin to match the incoming transfer;
 * gateway-method donations require an account and go through the regular
 * checkout, completing on the payment webhook. Anyone, including anonymous
 * visitors, may donate by transfer.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

// recentDonationsLimit caps the public recent-donations wall.
const recentDonationsLimit = 10

// DonationStore defines the database operations the donation service needs.
type DonationStore interface {
	CreateDonation(ctx context.Context, d *domain.Donation) error
	GetDonation(ctx context.Context, id string) (*domain.Donation, error)
	ListRecentDonations(ctx context.Context, limit int) ([]domain.Donation, error)
	ListDonations(ctx context.Context) ([]domain.Donation, error)
	CompleteDonation(ctx context.Context, id string, now time.Time) (bool, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// DonationCheckout starts a gateway payment for a donation. The payment
// service implements it.
type DonationCheckout interface {
	CreateDonationPayment(ctx context.Context, donation *domain.Donation, user *domain.User) (*domain.CheckoutResponse, error)
}

// DonationService implements donations.
type DonationService struct {
	store    DonationStore
	checkout DonationCheckout
	notifier Notifier
	logger   *slog.Logger
	bank     BankDetails

	now func() time.Time
}

// NewDonationService creates the donation service.
func NewDonationService(st DonationStore, checkout DonationCheckout, notifier Notifier, logger *slog.Logger, bank BankDetails) *DonationService {
	return &DonationService{
		store:    st,
		checkout: checkout,
		notifier: notifier,
		logger:   logger,
		bank:     bank,
		now:      time.Now,
	}
}

// Create starts a donation. userID is nil for anonymous visitors, who may
// only use the transfer method.
func (s *DonationService) Create(ctx context.Context, userID *string, req domain.CreateDonationRequest) (*domain.DonationInstructions, error) {
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	var user *domain.User
	if userID != nil {
		u, err := s.store.GetUserByID(ctx, *userID)
		if err != nil {
			if errors.Is(err, store.ErrUserNotFound) {
				return nil, domain.NotFound("user_not_found", "user not found")
			}
			return nil, err
		}
		user = u
	}
	if req.Method == "gateway" && user == nil {
		return nil, domain.Unauthorized("auth_required", "online donations require an account, use a bank transfer instead")
	}

	donorName := strings.TrimSpace(req.DonorName)
	if donorName == "" {
		if user != nil {
			donorName = user.FirstName + " " + user.LastName
		} else {
			donorName = "Anonymous"
		}
	}

	donation := &domain.Donation{
		DonorName:   donorName,
		AmountCents: req.AmountCents,
		Currency:    currency,
		Message:     req.Message,
		Status:      domain.DonationPending,
	}
	if user != nil {
		donation.UserID = &user.ID
	}

	// The reference derives from the donation id; a collision gets a fresh id.
	var err error
	for attempt := 1; ; attempt++ {
		donation.ID = uuid.NewString()
		donation.TransferReference = donationReference(donation.ID)
		err = s.store.CreateDonation(ctx, donation)
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrDuplicateReference) && attempt < 3 {
			continue
		}
		return nil, err
	}

	s.logger.Info("donation created",
		"donation_id", donation.ID, "amount_cents", donation.AmountCents, "method", req.Method)
	s.notifier.Activity("donation_created", map[string]any{
		"donation_id":  donation.ID,
		"amount_cents": donation.AmountCents,
	})

	instructions := &domain.DonationInstructions{Donation: donation}
	if req.Method == "gateway" {
		resp, err := s.checkout.CreateDonationPayment(ctx, donation, user)
		if err != nil {
			return nil, err
		}
		instructions.RedirectURL = resp.RedirectURL
		instructions.PaymentID = resp.PaymentID
	} else {
		instructions.BankAccountName = s.bank.AccountName
		instructions.BankAccountNumber = s.bank.AccountNumber
	}
	return instructions, nil
}

// Recent returns the public recent-donations wall.
func (s *DonationService) Recent(ctx context.Context) ([]domain.Donation, error) {
	return s.store.ListRecentDonations(ctx, recentDonationsLimit)
}

// ListAll returns every donation for the admin ledger.
func (s *DonationService) ListAll(ctx context.Context) ([]domain.Donation, error) {
	return s.store.ListDonations(ctx)
}

// Complete marks a transfer-method donation as received. Admins call it when
// the bank statement shows the reference; gateway donations complete through
// the payment webhook instead.
func (s *DonationService) Complete(ctx context.Context, id string) (*domain.Donation, error) {
	completed, err := s.store.CompleteDonation(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	if !completed {
		if _, gerr := s.store.GetDonation(ctx, id); gerr != nil {
			if errors.Is(gerr, store.ErrDonationNotFound) {
				return nil, domain.NotFound("donation_not_found", "donation not found")
			}
			return nil, gerr
		}
		return nil, domain.Conflict("not_pending", "the donation is not pending")
	}

	donation, err := s.store.GetDonation(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("donation completed", "donation_id", id)
	s.notifier.Activity("donation_completed", map[string]any{
		"donation_id":  donation.ID,
		"amount_cents": donation.AmountCents,
	})
	if donation.UserID != nil {
		s.notifier.SendToUser(*donation.UserID, domain.PushMessage{
			Title: "Thank you!",
			Body:  "Your donation of " + formatAmount(donation.AmountCents, donation.Currency) + " arrived. The club appreciates it.",
			URL:   "/donations",
			Tag:   "donation",
		})
	}
	return donation, nil
}

// donationReference derives the unique bank reference for a donation.
func donationReference(donationID string) string {
	id := strings.ReplaceAll(domain.NormalizeID(donationID), "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return "KNZ-D-" + strings.ToUpper(id)
}
