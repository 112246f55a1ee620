/**
 * @description
 * Payment business logic over the gateway port. A PENDING Payment row is
 * persisted before any gateway call so the money trail starts local; webhook
 * processing translates gateway states into the PaymentStatus enum and
 * applies each transition as a conditional update guarded by the previous
 * status. Side effects (registration confirmation, donation completion,
 * loyalty points, push) run only when the guarded transition actually
 * happened, which is what makes replayed webhooks harmless.
 *
 * @notes
 * - Loyalty points accrue at 1 point per full 10 PLN of a completed payment.
 * - GetPaymentStatus doubles as a pull-based reconcile: a completed payment
 *   discovered by polling triggers the same side effects as its webhook.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/pkg/paygate"
)

// loyaltyPointUnitCents is the completed-payment amount worth one point.
const loyaltyPointUnitCents = 1000

// PaymentStore defines the database operations the payment service needs.
type PaymentStore interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	GetPayment(ctx context.Context, id string) (*domain.Payment, error)
	GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*domain.Payment, error)
	GetCompletedPaymentByRegistration(ctx context.Context, registrationID string) (*domain.Payment, error)
	AttachGatewayRef(ctx context.Context, id, gatewayPaymentID string, payload []byte) error
	TransitionPayment(ctx context.Context, id string, allowedFrom []domain.PaymentStatus, to domain.PaymentStatus, payload []byte, now time.Time) (bool, error)
	AwardLoyaltyPoints(ctx context.Context, userID string, points int64) (bool, error)

	GetRegistration(ctx context.Context, id string) (*domain.Registration, error)
	LinkRegistrationPayment(ctx context.Context, registrationID, paymentID string) error
	ConfirmPaidRegistration(ctx context.Context, registrationID string, now time.Time) (bool, error)
	MarkRegistrationRefunded(ctx context.Context, registrationID string, now time.Time) (bool, error)

	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error)

	LinkDonationPayment(ctx context.Context, donationID, paymentID string) error
	CompleteDonation(ctx context.Context, id string, now time.Time) (bool, error)
}

// PaymentService implements checkout, webhook processing and refunds.
type PaymentService struct {
	store       PaymentStore
	gateway     paygate.Gateway
	gatewayName string
	notifier    Notifier
	logger      *slog.Logger
	metrics     *metrics.Metrics
	publicURL   string

	now func() time.Time
}

// NewPaymentService creates the payment service. gatewayName labels Payment
// rows ('fake' or 'snap'); publicURL is the site base the gateway redirects
// back to.
func NewPaymentService(st PaymentStore, gateway paygate.Gateway, gatewayName string, notifier Notifier, logger *slog.Logger, m *metrics.Metrics, publicURL string) *PaymentService {
	return &PaymentService{
		store:       st,
		gateway:     gateway,
		gatewayName: gatewayName,
		notifier:    notifier,
		logger:      logger,
		metrics:     m,
		publicURL:   publicURL,
		now:         time.Now,
	}
}

// CreateRegistrationPayment starts a gateway checkout for a PENDING
// registration and returns the redirect the member must follow.
func (s *PaymentService) CreateRegistrationPayment(ctx context.Context, userID string, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	reg, err := s.store.GetRegistration(ctx, req.RegistrationID)
	if err != nil {
		if errors.Is(err, store.ErrRegistrationNotFound) {
			return nil, domain.NotFound("registration_not_found", "registration not found")
		}
		return nil, err
	}
	if !domain.SameID(reg.UserID, userID) {
		return nil, domain.NotFound("registration_not_found", "registration not found")
	}
	if reg.Status != domain.RegistrationPending {
		return nil, domain.Conflict("not_payable", "the registration is not awaiting an online payment")
	}
	if _, err := s.store.GetCompletedPaymentByRegistration(ctx, reg.ID); err == nil {
		return nil, domain.Conflict("already_paid", "the registration is already paid")
	} else if !errors.Is(err, store.ErrPaymentNotFound) {
		return nil, err
	}

	event, err := s.store.GetEvent(ctx, reg.EventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil, domain.NotFound("event_not_found", "event not found")
		}
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	member := false
	if sub, err := s.store.GetSubscriptionByUser(ctx, userID); err == nil {
		member = sub.ActiveAt(s.now())
	} else if !errors.Is(err, store.ErrSubscriptionNotFound) {
		return nil, err
	}

	amount := event.PriceFor(member)
	if amount <= 0 {
		return nil, domain.Conflict("nothing_to_pay", "this event is free for you")
	}

	payment := &domain.Payment{
		ID:             uuid.NewString(),
		UserID:         &user.ID,
		RegistrationID: &reg.ID,
		Gateway:        s.gatewayName,
		AmountCents:    amount,
		Currency:       event.Currency,
		Status:         domain.PaymentPending,
		Description:    fmt.Sprintf("Registration: %s (%s)", event.Title, reg.OccurrenceDate.Format(occurrenceLayout)),
	}
	resp, err := s.startCheckout(ctx, payment, paygate.CreatePaymentParams{
		AmountCents: amount,
		Currency:    event.Currency,
		Description: payment.Description,
		UserID:      user.ID,
		UserEmail:   user.Email,
		UserName:    fmt.Sprintf("%s %s", user.FirstName, user.LastName),
		ReturnURL:   s.publicURL + "/payments/result",
		CancelURL:   s.publicURL + "/payments/cancelled",
		Metadata:    map[string]string{"registration_id": reg.ID},
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.LinkRegistrationPayment(ctx, reg.ID, payment.ID); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateDonationPayment starts a gateway checkout for a donation. The
// donation service calls it for method=gateway donations.
func (s *PaymentService) CreateDonationPayment(ctx context.Context, donation *domain.Donation, user *domain.User) (*domain.CheckoutResponse, error) {
	payment := &domain.Payment{
		ID:          uuid.NewString(),
		UserID:      &user.ID,
		DonationID:  &donation.ID,
		Gateway:     s.gatewayName,
		AmountCents: donation.AmountCents,
		Currency:    donation.Currency,
		Status:      domain.PaymentPending,
		Description: "Donation to the club",
	}
	resp, err := s.startCheckout(ctx, payment, paygate.CreatePaymentParams{
		AmountCents: donation.AmountCents,
		Currency:    donation.Currency,
		Description: payment.Description,
		UserID:      user.ID,
		UserEmail:   user.Email,
		UserName:    fmt.Sprintf("%s %s", user.FirstName, user.LastName),
		ReturnURL:   s.publicURL + "/donations/thank-you",
		CancelURL:   s.publicURL + "/donations",
		Metadata:    map[string]string{"donation_id": donation.ID},
	})
	if err != nil {
		return nil, err
	}
	if err := s.store.LinkDonationPayment(ctx, donation.ID, payment.ID); err != nil {
		return nil, err
	}
	return resp, nil
}

// startCheckout persists the PENDING row, calls the gateway and attaches the
// provider reference. A refused create marks the row FAILED and surfaces the
// failure.
func (s *PaymentService) startCheckout(ctx context.Context, payment *domain.Payment, params paygate.CreatePaymentParams) (*domain.CheckoutResponse, error) {
	if err := s.store.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	result, err := s.gateway.CreatePayment(ctx, params)
	if err != nil || !result.Success {
		if _, terr := s.store.TransitionPayment(ctx, payment.ID,
			[]domain.PaymentStatus{domain.PaymentPending}, domain.PaymentFailed, nil, s.now()); terr != nil {
			s.logger.Error("failed to mark payment failed after gateway refusal",
				"payment_id", payment.ID, "error", terr)
		}
		if err == nil {
			err = fmt.Errorf("gateway refused the payment")
		}
		return nil, fmt.Errorf("failed to create gateway payment: %w", err)
	}

	if err := s.store.AttachGatewayRef(ctx, payment.ID, result.PaymentID, nil); err != nil {
		return nil, err
	}
	s.logger.Info("checkout started",
		"payment_id", payment.ID, "gateway_payment_id", result.PaymentID, "amount_cents", payment.AmountCents)

	return &domain.CheckoutResponse{
		PaymentID:   payment.ID,
		RedirectURL: result.RedirectURL,
		Status:      string(domain.PaymentProcessing),
	}, nil
}

// HandleWebhook verifies and applies one gateway notification. Replays and
// out-of-order notifications fall through the status guards without side
// effects and report success so the provider stops retrying.
func (s *PaymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	result, err := s.gateway.ProcessWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, paygate.ErrInvalidSignature) {
			return domain.Unauthorized("invalid_signature", "webhook signature verification failed")
		}
		return fmt.Errorf("failed to process webhook: %w", err)
	}

	payment, err := s.store.GetPaymentByGatewayID(ctx, result.PaymentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			return domain.NotFound("payment_not_found", "no payment matches this notification")
		}
		return err
	}

	to, ok := translateGatewayStatus(result.Status)
	if !ok {
		s.logger.Warn("webhook carried an unmapped gateway status",
			"payment_id", payment.ID, "gateway_status", result.Status)
		return nil
	}
	return s.applyTransition(ctx, payment, to, result.Raw)
}

// RefundPayment reverses a completed payment through the gateway and records
// the REFUNDED states on the payment and its registration. The admin
// refund-task execution path calls it.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID string, amountCents *int64, reason string) error {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			return domain.NotFound("payment_not_found", "payment not found")
		}
		return err
	}
	if payment.Status != domain.PaymentCompleted {
		return domain.Conflict("not_refundable", "only completed payments can be refunded")
	}
	if payment.GatewayPaymentID == nil {
		return domain.Conflict("not_refundable", "the payment has no gateway reference")
	}

	result, err := s.gateway.Refund(ctx, *payment.GatewayPaymentID, amountCents, reason)
	if err != nil {
		return fmt.Errorf("failed to refund payment: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("gateway refused the refund for payment %s", payment.ID)
	}
	return s.applyTransition(ctx, payment, domain.PaymentRefunded, nil)
}

// GetPaymentStatus returns the payment visible to the caller, reconciling a
// non-final row against the gateway first.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, paymentID, userID string, admin bool) (*domain.Payment, error) {
	payment, err := s.store.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			return nil, domain.NotFound("payment_not_found", "payment not found")
		}
		return nil, err
	}
	if !admin && (payment.UserID == nil || !domain.SameID(*payment.UserID, userID)) {
		return nil, domain.NotFound("payment_not_found", "payment not found")
	}

	if !payment.Status.Final() && payment.GatewayPaymentID != nil {
		gwStatus, err := s.gateway.GetPaymentStatus(ctx, *payment.GatewayPaymentID)
		if err != nil {
			// The local row still answers; reconciliation just did not happen.
			s.logger.Warn("gateway status check failed", "payment_id", payment.ID, "error", err)
			return payment, nil
		}
		if to, ok := translateGatewayStatus(gwStatus); ok && to != payment.Status {
			if err := s.applyTransition(ctx, payment, to, nil); err != nil {
				return nil, err
			}
			return s.store.GetPayment(ctx, paymentID)
		}
	}
	return payment, nil
}

// applyTransition moves the payment into `to` under the previous-status guard
// and runs the transition's side effects only when the guarded update
// happened.
func (s *PaymentService) applyTransition(ctx context.Context, payment *domain.Payment, to domain.PaymentStatus, raw []byte) error {
	allowedFrom, ok := transitionSources[to]
	if !ok {
		return nil
	}
	now := s.now()
	applied, err := s.store.TransitionPayment(ctx, payment.ID, allowedFrom, to, raw, now)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Info("payment transition skipped, status already moved on",
			"payment_id", payment.ID, "to", to, "current", payment.Status)
		return nil
	}

	s.metrics.Payments.WithLabelValues(string(to)).Inc()
	s.logger.Info("payment transitioned", "payment_id", payment.ID, "to", to)

	switch to {
	case domain.PaymentCompleted:
		s.applyCompleted(ctx, payment, now)
	case domain.PaymentRefunded:
		if payment.RegistrationID != nil {
			refunded, err := s.store.MarkRegistrationRefunded(ctx, *payment.RegistrationID, now)
			if err != nil {
				return err
			}
			if !refunded {
				s.logger.Warn("registration not in a refundable state",
					"payment_id", payment.ID, "registration_id", *payment.RegistrationID)
			}
		}
	case domain.PaymentFailed:
		if payment.UserID != nil && payment.RegistrationID != nil {
			s.notifier.SendToUser(*payment.UserID, domain.PushMessage{
				Title: "Payment failed",
				Body:  "Your payment did not go through. You can retry from your registrations.",
				URL:   "/registrations",
				Tag:   "payment-failed",
			})
		}
	}
	return nil
}

// applyCompleted runs the COMPLETED side effects: confirm the registration,
// complete the donation, award loyalty points, tell the payer. Failures here
// are logged, not returned; the payment row is already COMPLETED and the
// webhook must not be retried into double effects.
func (s *PaymentService) applyCompleted(ctx context.Context, payment *domain.Payment, now time.Time) {
	if payment.RegistrationID != nil {
		confirmed, err := s.store.ConfirmPaidRegistration(ctx, *payment.RegistrationID, now)
		switch {
		case err != nil:
			s.logger.Error("failed to confirm paid registration",
				"payment_id", payment.ID, "registration_id", *payment.RegistrationID, "error", err)
		case confirmed:
			s.metrics.Registrations.WithLabelValues("confirmed").Inc()
			s.notifier.Activity("registration_confirmed", map[string]any{
				"registration_id": *payment.RegistrationID,
			})
		default:
			s.logger.Info("registration already left pending, skipping confirmation",
				"payment_id", payment.ID, "registration_id", *payment.RegistrationID)
		}
	}

	if payment.DonationID != nil {
		completed, err := s.store.CompleteDonation(ctx, *payment.DonationID, now)
		if err != nil {
			s.logger.Error("failed to complete donation",
				"payment_id", payment.ID, "donation_id", *payment.DonationID, "error", err)
		} else if completed {
			s.notifier.Activity("donation_completed", map[string]any{
				"donation_id":  *payment.DonationID,
				"amount_cents": payment.AmountCents,
			})
		}
	}

	if payment.UserID != nil {
		if points := payment.AmountCents / loyaltyPointUnitCents; points > 0 {
			awarded, err := s.store.AwardLoyaltyPoints(ctx, *payment.UserID, points)
			if err != nil {
				s.logger.Error("failed to award loyalty points",
					"payment_id", payment.ID, "user_id", *payment.UserID, "error", err)
			} else if awarded {
				s.logger.Info("loyalty points awarded",
					"user_id", *payment.UserID, "points", points)
			}
		}
		s.notifier.SendToUser(*payment.UserID, domain.PushMessage{
			Title: "Payment received",
			Body:  fmt.Sprintf("We received your payment of %s. Thank you!", formatAmount(payment.AmountCents, payment.Currency)),
			URL:   "/registrations",
			Tag:   "payment-completed",
		})
	}
}

// transitionSources names the statuses each transition may leave from. The
// guards encode the lifecycle: final states absorb everything except the
// refund of a completed payment.
var transitionSources = map[domain.PaymentStatus][]domain.PaymentStatus{
	domain.PaymentProcessing: {domain.PaymentPending},
	domain.PaymentCompleted:  {domain.PaymentPending, domain.PaymentProcessing},
	domain.PaymentFailed:     {domain.PaymentPending, domain.PaymentProcessing},
	domain.PaymentCancelled:  {domain.PaymentPending, domain.PaymentProcessing},
	domain.PaymentRefunded:   {domain.PaymentCompleted},
}

// translateGatewayStatus maps the gateway's view onto the payment lifecycle.
// Unknown states report !ok and are logged, never applied.
func translateGatewayStatus(gw paygate.PaymentStatus) (domain.PaymentStatus, bool) {
	switch gw {
	case paygate.StatusPending:
		return domain.PaymentProcessing, true
	case paygate.StatusCompleted:
		return domain.PaymentCompleted, true
	case paygate.StatusFailed:
		return domain.PaymentFailed, true
	case paygate.StatusCancelled, paygate.StatusExpired:
		return domain.PaymentCancelled, true
	case paygate.StatusRefunded:
		return domain.PaymentRefunded, true
	default:
		return "", false
	}
}
