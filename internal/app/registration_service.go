/**
 * @description
 * Registration business logic: the capacity/status state machine. Admission,
 * cancellation with waitlist promotion, the manual-payment flow and the
 * refund-task lifecycle all live here; the store executes each mutation as
 * one transaction guarded by the event version column, and this service owns
 * the retry loop around version conflicts plus every push/broadcast side
 * effect that must not run unless the transaction committed.
 *
 * @notes
 * - Capacity correctness comes from the version CAS in the store, retried
 *   here up to registerAttempts times against fresh state. Exhausted retries
 *   surface as a 409 so the client can resubmit.
 * - Side effects (push, activity feed) run strictly after commit and never
 *   fail the operation.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

// registerAttempts bounds the admission retries after version conflicts.
const registerAttempts = 3

// occurrenceLayout is the wire format of occurrence dates.
const occurrenceLayout = "2006-01-02"

// RegistrationStore defines the database operations the registration service
// needs.
type RegistrationStore interface {
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error)

	AdmitRegistration(ctx context.Context, p store.AdmitRegistrationParams) (*domain.Registration, error)
	CancelRegistration(ctx context.Context, p store.CancelRegistrationParams) (*store.CancelRegistrationOutcome, error)
	MarkManualPaymentConfirmed(ctx context.Context, registrationID string, now time.Time) (*domain.Registration, error)
	FinalizeManualPayment(ctx context.Context, registrationID string, approve bool, newDueAt *time.Time, now time.Time) (*domain.Registration, error)
	GetRegistration(ctx context.Context, id string) (*domain.Registration, error)
	ListUserRegistrations(ctx context.Context, userID string) ([]domain.RegistrationWithEvent, error)

	GetRefundTask(ctx context.Context, id string) (*domain.RefundTask, error)
	ListRefundTasks(ctx context.Context, openOnly bool) ([]domain.RefundTask, error)
	ReviewRefundTask(ctx context.Context, id, reviewerID string, shouldRefund bool, notes string, now time.Time) (*domain.RefundTask, error)
	MarkRefundIssued(ctx context.Context, id string, now time.Time) (bool, error)
	ReopenRefundTask(ctx context.Context, id string, now time.Time) error
}

// Refunder reverses a completed payment. The payment service implements it;
// the refund-task execution path consumes it.
type Refunder interface {
	RefundPayment(ctx context.Context, paymentID string, amountCents *int64, reason string) error
}

// BankDetails is the club account quoted on manual-payment instructions.
type BankDetails struct {
	AccountName   string
	AccountNumber string
}

// RegistrationService implements the registration state machine.
type RegistrationService struct {
	store    RegistrationStore
	refunder Refunder
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	bank     BankDetails

	now func() time.Time
}

// NewRegistrationService creates the registration service. refunder may be
// nil until the payment service is attached; executing a refund task without
// one fails.
func NewRegistrationService(st RegistrationStore, refunder Refunder, notifier Notifier, logger *slog.Logger, m *metrics.Metrics, bank BankDetails) *RegistrationService {
	return &RegistrationService{
		store:    st,
		refunder: refunder,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		bank:     bank,
		now:      time.Now,
	}
}

// SetRefunder attaches the payment service after construction; the two
// services reference each other, so one side is wired late.
func (s *RegistrationService) SetRefunder(r Refunder) {
	s.refunder = r
}

// Register admits a user to one occurrence of an event. The requested status
// depends on the price for the caller's tier and the chosen flow; the store
// downgrades to the waitlist when capacity is exhausted. Version conflicts
// with concurrent admissions are retried against fresh state.
func (s *RegistrationService) Register(ctx context.Context, userID string, req domain.RegisterRequest) (*domain.Registration, error) {
	occurrence, err := time.ParseInLocation(occurrenceLayout, req.OccurrenceDate, time.UTC)
	if err != nil {
		return nil, domain.Invalid("invalid_occurrence_date", "occurrence_date must be formatted YYYY-MM-DD")
	}

	event, err := s.store.GetEvent(ctx, req.EventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil, domain.NotFound("event_not_found", "event not found")
		}
		return nil, err
	}

	now := s.now()
	if !event.RegistrationOpen {
		return nil, domain.Conflict("registration_closed", "registration for this event is closed")
	}
	if !event.OccursOn(occurrence) {
		return nil, domain.Invalid("no_occurrence", "the event has no occurrence on this date")
	}
	if req.PaymentFlow == domain.FlowManual && !event.AllowManualPayment {
		return nil, domain.Invalid("manual_payment_not_allowed", "this event does not accept manual bank transfers")
	}

	member, err := s.hasActiveSubscription(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if event.RequiresSubscription && !member {
		return nil, domain.Forbidden("subscription_required", "this event is open to active subscribers only")
	}

	requested := domain.RegistrationPending
	var dueAt *time.Time
	switch {
	case event.PriceFor(member) == 0:
		// Free tier: nothing to pay, confirm in the same admission.
		requested = domain.RegistrationConfirmed
	case req.PaymentFlow == domain.FlowManual:
		requested = domain.RegistrationManualPaymentRequired
		d := now.Add(time.Duration(event.ManualPaymentDueHours) * time.Hour)
		dueAt = &d
	}

	var reg *domain.Registration
	for attempt := 1; ; attempt++ {
		reg, err = s.store.AdmitRegistration(ctx, store.AdmitRegistrationParams{
			ID:             uuid.NewString(),
			EventID:        event.ID,
			UserID:         userID,
			OccurrenceDate: occurrence,
			Requested:      requested,
			ManualDueAt:    dueAt,
			Now:            s.now(),
		})
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrVersionConflict) && attempt < registerAttempts {
			s.logger.Warn("registration admission conflicted, retrying",
				"event_id", event.ID, "user_id", userID, "attempt", attempt)
			continue
		}
		switch {
		case errors.Is(err, store.ErrVersionConflict):
			s.metrics.Registrations.WithLabelValues("conflict").Inc()
			return nil, domain.Conflict("capacity_contention", "the event filled up while registering, please try again")
		case errors.Is(err, store.ErrDuplicateRegistration):
			return nil, domain.Conflict("already_registered", "you are already registered for this occurrence")
		case errors.Is(err, store.ErrEventNotFound):
			return nil, domain.NotFound("event_not_found", "event not found")
		default:
			return nil, err
		}
	}

	s.metrics.Registrations.WithLabelValues(string(reg.Status)).Inc()
	s.logger.Info("registration created",
		"registration_id", reg.ID, "event_id", event.ID, "user_id", userID, "status", reg.Status)
	s.notifier.Activity("registration_created", map[string]any{
		"registration_id": reg.ID,
		"event_id":        event.ID,
		"status":          reg.Status,
	})
	return reg, nil
}

// ListMine returns the caller's registrations with event basics.
func (s *RegistrationService) ListMine(ctx context.Context, userID string) ([]domain.RegistrationWithEvent, error) {
	return s.store.ListUserRegistrations(ctx, userID)
}

// Get returns a registration visible to the caller: the owner or an admin.
func (s *RegistrationService) Get(ctx context.Context, registrationID, userID string, admin bool) (*domain.Registration, error) {
	reg, err := s.getVisible(ctx, registrationID, userID, admin)
	if err != nil {
		return nil, err
	}
	return reg, nil
}

// Cancel cancels the caller's own registration, promoting the head of the
// waitlist and recording a refund task when one is due.
func (s *RegistrationService) Cancel(ctx context.Context, registrationID, userID string, requestRefund bool) (*domain.Registration, error) {
	if _, err := s.getVisible(ctx, registrationID, userID, false); err != nil {
		return nil, err
	}
	return s.cancel(ctx, registrationID, requestRefund)
}

// AdminCancel cancels any registration with the same semantics minus the
// ownership check.
func (s *RegistrationService) AdminCancel(ctx context.Context, registrationID string, requestRefund bool) (*domain.Registration, error) {
	return s.cancel(ctx, registrationID, requestRefund)
}

func (s *RegistrationService) cancel(ctx context.Context, registrationID string, requestRefund bool) (*domain.Registration, error) {
	var outcome *store.CancelRegistrationOutcome
	var err error
	for attempt := 1; ; attempt++ {
		outcome, err = s.store.CancelRegistration(ctx, store.CancelRegistrationParams{
			RegistrationID: registrationID,
			Now:            s.now(),
			RequestRefund:  requestRefund,
			RefundTaskID:   uuid.NewString(),
		})
		if err == nil {
			break
		}
		if errors.Is(err, store.ErrVersionConflict) && attempt < registerAttempts {
			s.logger.Warn("cancellation conflicted, retrying",
				"registration_id", registrationID, "attempt", attempt)
			continue
		}
		switch {
		case errors.Is(err, store.ErrVersionConflict):
			return nil, domain.Conflict("capacity_contention", "the event changed while cancelling, please try again")
		case errors.Is(err, store.ErrRegistrationNotFound):
			return nil, domain.NotFound("registration_not_found", "registration not found")
		case errors.Is(err, store.ErrRegistrationNotCancellable):
			return nil, domain.Conflict("not_cancellable", "the registration is already cancelled or refunded")
		case errors.Is(err, store.ErrEventNotFound):
			return nil, domain.NotFound("event_not_found", "event not found")
		default:
			return nil, err
		}
	}

	s.metrics.Registrations.WithLabelValues("cancelled").Inc()
	s.logger.Info("registration cancelled",
		"registration_id", registrationID,
		"promoted", outcome.Promoted != nil,
		"refund_task", outcome.RefundTask != nil)

	if promoted := outcome.Promoted; promoted != nil {
		msg := domain.PushMessage{
			Title: "A spot opened up!",
			Body:  "You have been moved off the waitlist. Check your registration for the next step.",
			URL:   "/registrations",
			Tag:   "waitlist-promotion",
		}
		s.notifier.SendToUser(promoted.UserID, msg)
		s.notifier.Activity("registration_promoted", map[string]any{
			"registration_id": promoted.ID,
			"event_id":        promoted.EventID,
			"status":          promoted.Status,
		})
	}
	if task := outcome.RefundTask; task != nil {
		s.notifier.SendToAdmins(domain.PushMessage{
			Title: "Refund request awaiting review",
			Body:  fmt.Sprintf("A cancelled registration left %s to review.", formatAmount(task.AmountCents, task.Currency)),
			URL:   "/admin/refunds",
			Tag:   "admin-refunds",
		})
	}
	return outcome.Cancelled, nil
}

// ConfirmManualPayment records that the member says the transfer was sent,
// moving the registration into verification. Past-due registrations are
// refused, never silently ignored.
func (s *RegistrationService) ConfirmManualPayment(ctx context.Context, registrationID, userID string) (*domain.Registration, error) {
	reg, err := s.getVisible(ctx, registrationID, userID, false)
	if err != nil {
		return nil, err
	}
	if reg.Status != domain.RegistrationManualPaymentRequired {
		return nil, domain.Conflict("invalid_status", "the registration is not awaiting a manual payment")
	}
	now := s.now()
	if reg.ManualPaymentDueAt != nil && now.After(*reg.ManualPaymentDueAt) {
		return nil, domain.Conflict("manual_payment_overdue", "the payment deadline for this registration has passed")
	}

	updated, err := s.store.MarkManualPaymentConfirmed(ctx, registrationID, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTransition):
			return nil, domain.Conflict("invalid_status", "the registration is not awaiting a manual payment")
		case errors.Is(err, store.ErrRegistrationNotFound):
			return nil, domain.NotFound("registration_not_found", "registration not found")
		default:
			return nil, err
		}
	}

	s.logger.Info("manual payment confirmed by member", "registration_id", registrationID)
	s.notifier.SendToAdmins(domain.PushMessage{
		Title: "Bank transfer awaiting verification",
		Body:  "A member reported a manual payment. Verify it to confirm the registration.",
		URL:   "/admin/registrations",
		Tag:   "admin-manual-payments",
	})
	return updated, nil
}

// GetManualPaymentDetails returns everything the member needs to wire the
// money: amount for their tier, the club account and the transfer reference.
func (s *RegistrationService) GetManualPaymentDetails(ctx context.Context, registrationID, userID string) (*domain.ManualPaymentDetails, error) {
	reg, err := s.getVisible(ctx, registrationID, userID, false)
	if err != nil {
		return nil, err
	}
	event, err := s.store.GetEvent(ctx, reg.EventID)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil, domain.NotFound("event_not_found", "event not found")
		}
		return nil, err
	}
	member, err := s.hasActiveSubscription(ctx, userID, s.now())
	if err != nil {
		return nil, err
	}

	return &domain.ManualPaymentDetails{
		RegistrationID:    reg.ID,
		EventTitle:        event.Title,
		OccurrenceDate:    reg.OccurrenceDate,
		AmountCents:       event.PriceFor(member),
		Currency:          event.Currency,
		TransferReference: domain.TransferReferenceFor(reg.ID),
		BankAccountName:   s.bank.AccountName,
		BankAccountNumber: s.bank.AccountNumber,
		DueAt:             reg.ManualPaymentDueAt,
	}, nil
}

// FinalizeManualPayment is the admin verdict on a reported transfer: approve
// confirms the registration, reject returns it to MANUAL_PAYMENT_REQUIRED
// with a fresh deadline.
func (s *RegistrationService) FinalizeManualPayment(ctx context.Context, registrationID string, approve bool) (*domain.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		if errors.Is(err, store.ErrRegistrationNotFound) {
			return nil, domain.NotFound("registration_not_found", "registration not found")
		}
		return nil, err
	}

	now := s.now()
	var newDueAt *time.Time
	if !approve {
		event, err := s.store.GetEvent(ctx, reg.EventID)
		if err != nil {
			if errors.Is(err, store.ErrEventNotFound) {
				return nil, domain.NotFound("event_not_found", "event not found")
			}
			return nil, err
		}
		d := now.Add(time.Duration(event.ManualPaymentDueHours) * time.Hour)
		newDueAt = &d
	}

	updated, err := s.store.FinalizeManualPayment(ctx, registrationID, approve, newDueAt, now)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidTransition):
			return nil, domain.Conflict("invalid_status", "the registration is not awaiting verification")
		case errors.Is(err, store.ErrRegistrationNotFound):
			return nil, domain.NotFound("registration_not_found", "registration not found")
		default:
			return nil, err
		}
	}

	if approve {
		s.metrics.Registrations.WithLabelValues("confirmed").Inc()
		s.logger.Info("manual payment approved", "registration_id", registrationID)
		s.notifier.SendToUser(updated.UserID, domain.PushMessage{
			Title: "Payment confirmed",
			Body:  "Your bank transfer was verified and your spot is confirmed. See you there!",
			URL:   "/registrations",
			Tag:   "registration-confirmed",
		})
	} else {
		s.logger.Info("manual payment rejected", "registration_id", registrationID)
		s.notifier.SendToUser(updated.UserID, domain.PushMessage{
			Title: "Payment could not be verified",
			Body:  "We could not match your transfer. Please check the reference and try again before the new deadline.",
			URL:   "/registrations",
			Tag:   "registration-payment",
		})
	}
	return updated, nil
}

// ListRefundTasks returns refund tasks for the admin review queue.
func (s *RegistrationService) ListRefundTasks(ctx context.Context, openOnly bool) ([]domain.RefundTask, error) {
	return s.store.ListRefundTasks(ctx, openOnly)
}

// ReviewRefundTask records the admin decision. The decision is independent of
// the computed eligibility, but overriding an ineligible task in the member's
// favor requires notes explaining why.
func (s *RegistrationService) ReviewRefundTask(ctx context.Context, taskID, reviewerID string, req domain.ReviewRefundTaskRequest) (*domain.RefundTask, error) {
	task, err := s.store.GetRefundTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrRefundTaskNotFound) {
			return nil, domain.NotFound("refund_task_not_found", "refund task not found")
		}
		return nil, err
	}
	if task.RefundIssued {
		return nil, domain.Conflict("refund_already_issued", "the refund was already issued; the decision can no longer change")
	}
	if req.ShouldRefund && !task.RefundEligible && strings.TrimSpace(req.Notes) == "" {
		return nil, domain.Invalid("notes_required", "refunding past the cutoff requires review notes")
	}

	reviewed, err := s.store.ReviewRefundTask(ctx, taskID, reviewerID, req.ShouldRefund, req.Notes, s.now())
	if err != nil {
		if errors.Is(err, store.ErrRefundTaskNotFound) {
			return nil, domain.NotFound("refund_task_not_found", "refund task not found")
		}
		return nil, err
	}
	s.logger.Info("refund task reviewed",
		"task_id", taskID, "reviewer_id", reviewerID, "should_refund", req.ShouldRefund)
	return reviewed, nil
}

// ExecuteRefundTask issues the payout for an approved task. The task row is
// claimed before the gateway call so two admins cannot both pay out, and the
// claim is released if the gateway refuses.
func (s *RegistrationService) ExecuteRefundTask(ctx context.Context, taskID string) (*domain.RefundTask, error) {
	task, err := s.store.GetRefundTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrRefundTaskNotFound) {
			return nil, domain.NotFound("refund_task_not_found", "refund task not found")
		}
		return nil, err
	}
	if task.ShouldRefund == nil {
		return nil, domain.Conflict("not_reviewed", "the refund task has not been reviewed yet")
	}
	if !*task.ShouldRefund {
		return nil, domain.Conflict("refund_declined", "the refund was declined on review")
	}
	if task.RefundIssued {
		return nil, domain.Conflict("refund_already_issued", "the refund was already issued")
	}
	if task.PaymentID == nil {
		return nil, domain.Conflict("no_payment", "the refund task has no payment attached")
	}
	if s.refunder == nil {
		return nil, fmt.Errorf("no payment refunder attached")
	}

	// Claim first: only one caller flips refund_issued, the loser gets false.
	claimed, err := s.store.MarkRefundIssued(ctx, taskID, s.now())
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, domain.Conflict("refund_already_issued", "the refund was already issued")
	}

	amount := task.AmountCents
	if err := s.refunder.RefundPayment(ctx, *task.PaymentID, &amount, "registration cancellation refund"); err != nil {
		if rerr := s.store.ReopenRefundTask(ctx, taskID, s.now()); rerr != nil {
			s.logger.Error("failed to reopen refund task after gateway failure; manual intervention required",
				"task_id", taskID, "error", rerr)
		}
		return nil, fmt.Errorf("failed to issue refund: %w", err)
	}

	s.logger.Info("refund issued", "task_id", taskID, "registration_id", task.RegistrationID)
	s.notifier.SendToUser(task.UserID, domain.PushMessage{
		Title: "Refund issued",
		Body:  fmt.Sprintf("Your refund of %s is on its way back to you.", formatAmount(task.AmountCents, task.Currency)),
		URL:   "/registrations",
		Tag:   "refund-issued",
	})

	return s.store.GetRefundTask(ctx, taskID)
}

// getVisible loads a registration and enforces visibility: owners see their
// own rows, admins see everything, everyone else gets a 404.
func (s *RegistrationService) getVisible(ctx context.Context, registrationID, userID string, admin bool) (*domain.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, registrationID)
	if err != nil {
		if errors.Is(err, store.ErrRegistrationNotFound) {
			return nil, domain.NotFound("registration_not_found", "registration not found")
		}
		return nil, err
	}
	if !admin && !domain.SameID(reg.UserID, userID) {
		return nil, domain.NotFound("registration_not_found", "registration not found")
	}
	return reg, nil
}

// hasActiveSubscription reports whether the user holds member pricing at t.
func (s *RegistrationService) hasActiveSubscription(ctx context.Context, userID string, t time.Time) (bool, error) {
	sub, err := s.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return false, nil
		}
		return false, err
	}
	return sub.ActiveAt(t), nil
}

// formatAmount renders minor units as "12.50 PLN" for notification bodies.
func formatAmount(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}
