package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

type registrationStoreStub struct {
	RegistrationStore

	event        *domain.Event
	subscription *domain.Subscription
	reg          *domain.Registration

	admitErrs  []error
	admitCalls int
	admitted   []store.AdmitRegistrationParams

	cancelErrs    []error
	cancelOutcome *store.CancelRegistrationOutcome
	cancelCalls   int
	cancelled     []store.CancelRegistrationParams

	markConfirmedCalled bool
	markConfirmedAt     time.Time

	finalizeCalled  bool
	finalizeApprove bool
	finalizeDueAt   *time.Time
	finalized       *domain.Registration

	task             *domain.RefundTask
	reviewCalled     bool
	reviewShould     bool
	reviewNotes      string
	markIssuedResult bool
	markIssuedErr    error
	markIssuedCalled bool
	reopenCalled     bool
}

func (s *registrationStoreStub) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	if s.event == nil || s.event.ID != id {
		return nil, store.ErrEventNotFound
	}
	return s.event, nil
}

func (s *registrationStoreStub) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	if s.subscription == nil {
		return nil, store.ErrSubscriptionNotFound
	}
	return s.subscription, nil
}

func (s *registrationStoreStub) AdmitRegistration(ctx context.Context, p store.AdmitRegistrationParams) (*domain.Registration, error) {
	s.admitCalls++
	s.admitted = append(s.admitted, p)
	if len(s.admitErrs) > 0 {
		err := s.admitErrs[0]
		s.admitErrs = s.admitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &domain.Registration{
		ID:                 p.ID,
		UserID:             p.UserID,
		EventID:            p.EventID,
		OccurrenceDate:     p.OccurrenceDate,
		Status:             p.Requested,
		ManualPaymentDueAt: p.ManualDueAt,
		CreatedAt:          p.Now,
		UpdatedAt:          p.Now,
	}, nil
}

func (s *registrationStoreStub) CancelRegistration(ctx context.Context, p store.CancelRegistrationParams) (*store.CancelRegistrationOutcome, error) {
	s.cancelCalls++
	s.cancelled = append(s.cancelled, p)
	if len(s.cancelErrs) > 0 {
		err := s.cancelErrs[0]
		s.cancelErrs = s.cancelErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if s.cancelOutcome != nil {
		return s.cancelOutcome, nil
	}
	return &store.CancelRegistrationOutcome{
		Cancelled: &domain.Registration{ID: p.RegistrationID, Status: domain.RegistrationCancelled},
	}, nil
}

func (s *registrationStoreStub) MarkManualPaymentConfirmed(ctx context.Context, registrationID string, now time.Time) (*domain.Registration, error) {
	s.markConfirmedCalled = true
	s.markConfirmedAt = now
	updated := *s.reg
	updated.Status = domain.RegistrationManualPaymentVerification
	updated.ManualPaymentConfirmedAt = &now
	return &updated, nil
}

func (s *registrationStoreStub) FinalizeManualPayment(ctx context.Context, registrationID string, approve bool, newDueAt *time.Time, now time.Time) (*domain.Registration, error) {
	s.finalizeCalled = true
	s.finalizeApprove = approve
	s.finalizeDueAt = newDueAt
	return s.finalized, nil
}

func (s *registrationStoreStub) GetRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	if s.reg == nil || s.reg.ID != id {
		return nil, store.ErrRegistrationNotFound
	}
	return s.reg, nil
}

func (s *registrationStoreStub) GetRefundTask(ctx context.Context, id string) (*domain.RefundTask, error) {
	if s.task == nil || s.task.ID != id {
		return nil, store.ErrRefundTaskNotFound
	}
	return s.task, nil
}

func (s *registrationStoreStub) ReviewRefundTask(ctx context.Context, id, reviewerID string, shouldRefund bool, notes string, now time.Time) (*domain.RefundTask, error) {
	s.reviewCalled = true
	s.reviewShould = shouldRefund
	s.reviewNotes = notes
	reviewed := *s.task
	reviewed.ShouldRefund = &shouldRefund
	reviewed.ReviewedBy = &reviewerID
	reviewed.ReviewedAt = &now
	return &reviewed, nil
}

func (s *registrationStoreStub) MarkRefundIssued(ctx context.Context, id string, now time.Time) (bool, error) {
	s.markIssuedCalled = true
	return s.markIssuedResult, s.markIssuedErr
}

func (s *registrationStoreStub) ReopenRefundTask(ctx context.Context, id string, now time.Time) error {
	s.reopenCalled = true
	return nil
}

type notifierStub struct {
	mu         sync.Mutex
	userIDs    []string
	userMsgs   []domain.PushMessage
	adminMsgs  []domain.PushMessage
	broadcast  []domain.PushMessage
	activities []string
}

func (n *notifierStub) SendToUser(userID string, msg domain.PushMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.userIDs = append(n.userIDs, userID)
	n.userMsgs = append(n.userMsgs, msg)
}

func (n *notifierStub) SendToAdmins(msg domain.PushMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.adminMsgs = append(n.adminMsgs, msg)
}

func (n *notifierStub) SendToAllActiveUsers(msg domain.PushMessage) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcast = append(n.broadcast, msg)
}

func (n *notifierStub) Activity(event string, payload any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.activities = append(n.activities, event)
}

func (n *notifierStub) activityCount(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.activities {
		if e == event {
			count++
		}
	}
	return count
}

type refunderStub struct {
	refundErr     error
	refundCalled  bool
	paymentID     string
	amount        *int64
	reason        string
	claimedBefore bool
	st            *registrationStoreStub
}

func (r *refunderStub) RefundPayment(ctx context.Context, paymentID string, amountCents *int64, reason string) error {
	r.refundCalled = true
	r.paymentID = paymentID
	r.amount = amountCents
	r.reason = reason
	if r.st != nil {
		r.claimedBefore = r.st.markIssuedCalled
	}
	return r.refundErr
}

func newRegistrationTestService(st RegistrationStore, n Notifier) *RegistrationService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.MustNew(prometheus.NewRegistry())
	return NewRegistrationService(st, nil, n, logger, m, BankDetails{AccountName: "Kenaz Club", AccountNumber: "12 3456 7890"})
}

var registrationTestNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func testEvent() *domain.Event {
	max := 10
	return &domain.Event{
		ID:                    "evt-1",
		Title:                 "Morning trail run",
		StartDate:             time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC),
		MaxParticipants:       &max,
		PriceGuestCents:       5000,
		PriceMemberCents:      3000,
		Currency:              "PLN",
		CancelCutoffHours:     24,
		AllowManualPayment:    true,
		ManualPaymentDueHours: 48,
		RegistrationOpen:      true,
		Version:               1,
	}
}

func TestRegister_RetriesOnVersionConflictThenSucceeds(t *testing.T) {
	st := &registrationStoreStub{
		event:     testEvent(),
		admitErrs: []error{store.ErrVersionConflict, store.ErrVersionConflict, nil},
	}
	notifier := &notifierStub{}
	svc := newRegistrationTestService(st, notifier)
	svc.now = func() time.Time { return registrationTestNow }

	reg, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowGateway,
	})
	if err != nil {
		t.Fatalf("expected retried admission to succeed, got %v", err)
	}
	if st.admitCalls != 3 {
		t.Fatalf("expected 3 admission attempts, got %d", st.admitCalls)
	}
	if reg.Status != domain.RegistrationPending {
		t.Fatalf("expected pending registration, got %s", reg.Status)
	}
	if notifier.activityCount("registration_created") != 1 {
		t.Fatal("expected a registration_created activity event")
	}
}

func TestRegister_ExhaustedRetriesSurfaceCapacityConflict(t *testing.T) {
	st := &registrationStoreStub{
		event:     testEvent(),
		admitErrs: []error{store.ErrVersionConflict, store.ErrVersionConflict, store.ErrVersionConflict},
	}
	svc := newRegistrationTestService(st, &notifierStub{})

	_, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowGateway,
	})
	de, ok := domain.AsError(err)
	if !ok {
		t.Fatalf("expected a domain error, got %v", err)
	}
	if de.Code != "capacity_contention" || de.Status != 409 {
		t.Fatalf("expected 409 capacity_contention, got %d %s", de.Status, de.Code)
	}
	if st.admitCalls != 3 {
		t.Fatalf("expected exactly 3 admission attempts before giving up, got %d", st.admitCalls)
	}
}

func TestRegister_FreeEventConfirmsImmediately(t *testing.T) {
	event := testEvent()
	event.PriceGuestCents = 0
	event.PriceMemberCents = 0
	st := &registrationStoreStub{event: event}
	svc := newRegistrationTestService(st, &notifierStub{})
	svc.now = func() time.Time { return registrationTestNow }

	reg, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowGateway,
	})
	if err != nil {
		t.Fatalf("expected free registration to succeed, got %v", err)
	}
	if reg.Status != domain.RegistrationConfirmed {
		t.Fatalf("expected immediate confirmation for a free event, got %s", reg.Status)
	}
	if st.admitted[0].Requested != domain.RegistrationConfirmed {
		t.Fatalf("expected confirmed admission request, got %s", st.admitted[0].Requested)
	}
	if st.admitted[0].ManualDueAt != nil {
		t.Fatal("expected no manual payment deadline for a free event")
	}
}

func TestRegister_MemberPriceZeroConfirmsSubscriber(t *testing.T) {
	event := testEvent()
	event.PriceMemberCents = 0
	end := registrationTestNow.Add(30 * 24 * time.Hour)
	st := &registrationStoreStub{
		event: event,
		subscription: &domain.Subscription{
			ID:        "sub-1",
			UserID:    "user-1",
			StartedAt: registrationTestNow.Add(-24 * time.Hour),
			EndDate:   &end,
		},
	}
	svc := newRegistrationTestService(st, &notifierStub{})
	svc.now = func() time.Time { return registrationTestNow }

	reg, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowGateway,
	})
	if err != nil {
		t.Fatalf("expected member registration to succeed, got %v", err)
	}
	if reg.Status != domain.RegistrationConfirmed {
		t.Fatalf("expected member tier to confirm at zero price, got %s", reg.Status)
	}
}

func TestRegister_ManualFlowSetsPaymentDeadline(t *testing.T) {
	st := &registrationStoreStub{event: testEvent()}
	svc := newRegistrationTestService(st, &notifierStub{})
	svc.now = func() time.Time { return registrationTestNow }

	reg, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowManual,
	})
	if err != nil {
		t.Fatalf("expected manual registration to succeed, got %v", err)
	}
	if reg.Status != domain.RegistrationManualPaymentRequired {
		t.Fatalf("expected manual_payment_required, got %s", reg.Status)
	}
	wantDue := registrationTestNow.Add(48 * time.Hour)
	if reg.ManualPaymentDueAt == nil || !reg.ManualPaymentDueAt.Equal(wantDue) {
		t.Fatalf("expected payment deadline %v, got %v", wantDue, reg.ManualPaymentDueAt)
	}
}

func TestRegister_ManualFlowRejectedWhenEventDisallowsIt(t *testing.T) {
	event := testEvent()
	event.AllowManualPayment = false
	st := &registrationStoreStub{event: event}
	svc := newRegistrationTestService(st, &notifierStub{})

	_, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowManual,
	})
	de, ok := domain.AsError(err)
	if !ok || de.Code != "manual_payment_not_allowed" {
		t.Fatalf("expected manual_payment_not_allowed, got %v", err)
	}
	if st.admitCalls != 0 {
		t.Fatal("expected no admission attempt for a rejected flow")
	}
}

func TestRegister_ClosedRegistrationRejected(t *testing.T) {
	event := testEvent()
	event.RegistrationOpen = false
	svc := newRegistrationTestService(&registrationStoreStub{event: event}, &notifierStub{})

	_, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowGateway,
	})
	de, ok := domain.AsError(err)
	if !ok || de.Code != "registration_closed" || de.Status != 409 {
		t.Fatalf("expected 409 registration_closed, got %v", err)
	}
}

func TestRegister_SubscriberOnlyEventRejectsGuests(t *testing.T) {
	event := testEvent()
	event.RequiresSubscription = true
	svc := newRegistrationTestService(&registrationStoreStub{event: event}, &notifierStub{})

	_, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowGateway,
	})
	de, ok := domain.AsError(err)
	if !ok || de.Code != "subscription_required" || de.Status != 403 {
		t.Fatalf("expected 403 subscription_required, got %v", err)
	}
}

func TestRegister_DuplicateRegistrationConflict(t *testing.T) {
	st := &registrationStoreStub{
		event:     testEvent(),
		admitErrs: []error{store.ErrDuplicateRegistration},
	}
	svc := newRegistrationTestService(st, &notifierStub{})

	_, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-12",
		PaymentFlow:    domain.FlowGateway,
	})
	de, ok := domain.AsError(err)
	if !ok || de.Code != "already_registered" {
		t.Fatalf("expected already_registered, got %v", err)
	}
	if st.admitCalls != 1 {
		t.Fatalf("expected no retry on duplicate, got %d attempts", st.admitCalls)
	}
}

func TestRegister_RejectsDatesWithoutOccurrence(t *testing.T) {
	svc := newRegistrationTestService(&registrationStoreStub{event: testEvent()}, &notifierStub{})

	_, err := svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "not-a-date",
		PaymentFlow:    domain.FlowGateway,
	})
	if de, ok := domain.AsError(err); !ok || de.Code != "invalid_occurrence_date" {
		t.Fatalf("expected invalid_occurrence_date, got %v", err)
	}

	// Well-formed date, but the one-off event does not occur on it.
	_, err = svc.Register(context.Background(), "user-1", domain.RegisterRequest{
		EventID:        "evt-1",
		OccurrenceDate: "2026-09-13",
		PaymentFlow:    domain.FlowGateway,
	})
	if de, ok := domain.AsError(err); !ok || de.Code != "no_occurrence" {
		t.Fatalf("expected no_occurrence, got %v", err)
	}
}

func TestCancel_HidesForeignRegistration(t *testing.T) {
	st := &registrationStoreStub{
		reg: &domain.Registration{ID: "reg-1", UserID: "owner", Status: domain.RegistrationConfirmed},
	}
	svc := newRegistrationTestService(st, &notifierStub{})

	_, err := svc.Cancel(context.Background(), "reg-1", "intruder", false)
	de, ok := domain.AsError(err)
	if !ok || de.Code != "registration_not_found" || de.Status != 404 {
		t.Fatalf("expected 404 registration_not_found for a foreign registration, got %v", err)
	}
	if st.cancelCalls != 0 {
		t.Fatal("expected no cancellation attempt for a foreign registration")
	}
}

func TestCancel_RetriesVersionConflict(t *testing.T) {
	st := &registrationStoreStub{
		reg:        &domain.Registration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationConfirmed},
		cancelErrs: []error{store.ErrVersionConflict, nil},
	}
	svc := newRegistrationTestService(st, &notifierStub{})

	reg, err := svc.Cancel(context.Background(), "reg-1", "user-1", false)
	if err != nil {
		t.Fatalf("expected retried cancellation to succeed, got %v", err)
	}
	if st.cancelCalls != 2 {
		t.Fatalf("expected 2 cancellation attempts, got %d", st.cancelCalls)
	}
	if reg.Status != domain.RegistrationCancelled {
		t.Fatalf("expected cancelled registration, got %s", reg.Status)
	}
}

func TestCancel_PromotedMemberGetsPushAndActivity(t *testing.T) {
	st := &registrationStoreStub{
		reg: &domain.Registration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationConfirmed},
		cancelOutcome: &store.CancelRegistrationOutcome{
			Cancelled: &domain.Registration{ID: "reg-1", Status: domain.RegistrationCancelled},
			Promoted:  &domain.Registration{ID: "reg-2", UserID: "waiter", EventID: "evt-1", Status: domain.RegistrationPending},
		},
	}
	notifier := &notifierStub{}
	svc := newRegistrationTestService(st, notifier)

	if _, err := svc.Cancel(context.Background(), "reg-1", "user-1", false); err != nil {
		t.Fatalf("expected cancellation to succeed, got %v", err)
	}
	if len(notifier.userIDs) != 1 || notifier.userIDs[0] != "waiter" {
		t.Fatalf("expected one push to the promoted member, got %v", notifier.userIDs)
	}
	if notifier.userMsgs[0].Tag != "waitlist-promotion" {
		t.Fatalf("expected waitlist-promotion push, got tag %q", notifier.userMsgs[0].Tag)
	}
	if notifier.activityCount("registration_promoted") != 1 {
		t.Fatal("expected a registration_promoted activity event")
	}
}

func TestCancel_RefundTaskAlertsAdmins(t *testing.T) {
	st := &registrationStoreStub{
		reg: &domain.Registration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationConfirmed},
		cancelOutcome: &store.CancelRegistrationOutcome{
			Cancelled:  &domain.Registration{ID: "reg-1", Status: domain.RegistrationCancelled},
			RefundTask: &domain.RefundTask{ID: "task-1", RegistrationID: "reg-1", AmountCents: 5000, Currency: "PLN"},
		},
	}
	notifier := &notifierStub{}
	svc := newRegistrationTestService(st, notifier)

	if _, err := svc.Cancel(context.Background(), "reg-1", "user-1", true); err != nil {
		t.Fatalf("expected cancellation to succeed, got %v", err)
	}
	if !st.cancelled[0].RequestRefund {
		t.Fatal("expected the refund request to reach the store")
	}
	if len(notifier.adminMsgs) != 1 || notifier.adminMsgs[0].Tag != "admin-refunds" {
		t.Fatalf("expected one admin-refunds push, got %v", notifier.adminMsgs)
	}
}

func TestConfirmManualPayment_MovesToVerification(t *testing.T) {
	due := registrationTestNow.Add(24 * time.Hour)
	st := &registrationStoreStub{
		reg: &domain.Registration{
			ID:                 "reg-1",
			UserID:             "user-1",
			Status:             domain.RegistrationManualPaymentRequired,
			ManualPaymentDueAt: &due,
		},
	}
	notifier := &notifierStub{}
	svc := newRegistrationTestService(st, notifier)
	svc.now = func() time.Time { return registrationTestNow }

	updated, err := svc.ConfirmManualPayment(context.Background(), "reg-1", "user-1")
	if err != nil {
		t.Fatalf("expected confirmation to succeed, got %v", err)
	}
	if updated.Status != domain.RegistrationManualPaymentVerification {
		t.Fatalf("expected manual_payment_verification, got %s", updated.Status)
	}
	if !st.markConfirmedCalled {
		t.Fatal("expected the confirmation to be persisted")
	}
	if len(notifier.adminMsgs) != 1 || notifier.adminMsgs[0].Tag != "admin-manual-payments" {
		t.Fatalf("expected an admin verification push, got %v", notifier.adminMsgs)
	}
}

func TestConfirmManualPayment_RejectsPastDeadline(t *testing.T) {
	due := registrationTestNow.Add(-time.Hour)
	st := &registrationStoreStub{
		reg: &domain.Registration{
			ID:                 "reg-1",
			UserID:             "user-1",
			Status:             domain.RegistrationManualPaymentRequired,
			ManualPaymentDueAt: &due,
		},
	}
	svc := newRegistrationTestService(st, &notifierStub{})
	svc.now = func() time.Time { return registrationTestNow }

	_, err := svc.ConfirmManualPayment(context.Background(), "reg-1", "user-1")
	de, ok := domain.AsError(err)
	if !ok || de.Code != "manual_payment_overdue" || de.Status != 409 {
		t.Fatalf("expected 409 manual_payment_overdue, got %v", err)
	}
	if st.markConfirmedCalled {
		t.Fatal("expected no persistence for an overdue confirmation")
	}
}

func TestConfirmManualPayment_RequiresAwaitingStatus(t *testing.T) {
	st := &registrationStoreStub{
		reg: &domain.Registration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationPending},
	}
	svc := newRegistrationTestService(st, &notifierStub{})

	_, err := svc.ConfirmManualPayment(context.Background(), "reg-1", "user-1")
	if de, ok := domain.AsError(err); !ok || de.Code != "invalid_status" {
		t.Fatalf("expected invalid_status, got %v", err)
	}
}

func TestFinalizeManualPayment_ApproveConfirmsAndNotifies(t *testing.T) {
	st := &registrationStoreStub{
		reg:       &domain.Registration{ID: "reg-1", UserID: "user-1", EventID: "evt-1", Status: domain.RegistrationManualPaymentVerification},
		finalized: &domain.Registration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationConfirmed},
	}
	notifier := &notifierStub{}
	svc := newRegistrationTestService(st, notifier)
	svc.now = func() time.Time { return registrationTestNow }

	updated, err := svc.FinalizeManualPayment(context.Background(), "reg-1", true)
	if err != nil {
		t.Fatalf("expected approval to succeed, got %v", err)
	}
	if updated.Status != domain.RegistrationConfirmed {
		t.Fatalf("expected confirmed registration, got %s", updated.Status)
	}
	if !st.finalizeApprove {
		t.Fatal("expected the approval verdict to reach the store")
	}
	if st.finalizeDueAt != nil {
		t.Fatal("expected no new deadline on approval")
	}
	if len(notifier.userMsgs) != 1 || notifier.userMsgs[0].Tag != "registration-confirmed" {
		t.Fatalf("expected a registration-confirmed push, got %v", notifier.userMsgs)
	}
}

func TestFinalizeManualPayment_RejectExtendsDeadline(t *testing.T) {
	st := &registrationStoreStub{
		event:     testEvent(),
		reg:       &domain.Registration{ID: "reg-1", UserID: "user-1", EventID: "evt-1", Status: domain.RegistrationManualPaymentVerification},
		finalized: &domain.Registration{ID: "reg-1", UserID: "user-1", Status: domain.RegistrationManualPaymentRequired},
	}
	notifier := &notifierStub{}
	svc := newRegistrationTestService(st, notifier)
	svc.now = func() time.Time { return registrationTestNow }

	updated, err := svc.FinalizeManualPayment(context.Background(), "reg-1", false)
	if err != nil {
		t.Fatalf("expected rejection to succeed, got %v", err)
	}
	if updated.Status != domain.RegistrationManualPaymentRequired {
		t.Fatalf("expected registration back in manual_payment_required, got %s", updated.Status)
	}
	wantDue := registrationTestNow.Add(48 * time.Hour)
	if st.finalizeDueAt == nil || !st.finalizeDueAt.Equal(wantDue) {
		t.Fatalf("expected fresh deadline %v, got %v", wantDue, st.finalizeDueAt)
	}
	if len(notifier.userMsgs) != 1 || notifier.userMsgs[0].Tag != "registration-payment" {
		t.Fatalf("expected a verification-failed push, got %v", notifier.userMsgs)
	}
}

func TestReviewRefundTask_OverridingIneligibleTaskRequiresNotes(t *testing.T) {
	st := &registrationStoreStub{
		task: &domain.RefundTask{ID: "task-1", RegistrationID: "reg-1", RefundEligible: false},
	}
	svc := newRegistrationTestService(st, &notifierStub{})

	_, err := svc.ReviewRefundTask(context.Background(), "task-1", "admin-1", domain.ReviewRefundTaskRequest{
		ShouldRefund: true,
		Notes:        "   ",
	})
	de, ok := domain.AsError(err)
	if !ok || de.Code != "notes_required" || de.Status != 400 {
		t.Fatalf("expected 400 notes_required, got %v", err)
	}
	if st.reviewCalled {
		t.Fatal("expected no review to be persisted without notes")
	}

	reviewed, err := svc.ReviewRefundTask(context.Background(), "task-1", "admin-1", domain.ReviewRefundTaskRequest{
		ShouldRefund: true,
		Notes:        "goodwill, informed us before the cutoff by phone",
	})
	if err != nil {
		t.Fatalf("expected noted override to succeed, got %v", err)
	}
	if reviewed.ShouldRefund == nil || !*reviewed.ShouldRefund {
		t.Fatal("expected the override decision to be recorded")
	}
}

func TestReviewRefundTask_LockedAfterIssue(t *testing.T) {
	st := &registrationStoreStub{
		task: &domain.RefundTask{ID: "task-1", RegistrationID: "reg-1", RefundIssued: true},
	}
	svc := newRegistrationTestService(st, &notifierStub{})

	_, err := svc.ReviewRefundTask(context.Background(), "task-1", "admin-1", domain.ReviewRefundTaskRequest{ShouldRefund: false})
	if de, ok := domain.AsError(err); !ok || de.Code != "refund_already_issued" {
		t.Fatalf("expected refund_already_issued, got %v", err)
	}
}

func approvedRefundTask() *domain.RefundTask {
	should := true
	paymentID := "pay-1"
	return &domain.RefundTask{
		ID:             "task-1",
		RegistrationID: "reg-1",
		UserID:         "user-1",
		EventID:        "evt-1",
		PaymentID:      &paymentID,
		AmountCents:    5000,
		Currency:       "PLN",
		RefundEligible: true,
		ShouldRefund:   &should,
	}
}

func TestExecuteRefundTask_ClaimsBeforeGatewayCall(t *testing.T) {
	st := &registrationStoreStub{task: approvedRefundTask(), markIssuedResult: true}
	refunder := &refunderStub{st: st}
	notifier := &notifierStub{}
	svc := newRegistrationTestService(st, notifier)
	svc.SetRefunder(refunder)

	task, err := svc.ExecuteRefundTask(context.Background(), "task-1")
	if err != nil {
		t.Fatalf("expected refund execution to succeed, got %v", err)
	}
	if task == nil {
		t.Fatal("expected the refreshed task back")
	}
	if !refunder.refundCalled {
		t.Fatal("expected the gateway refund to be called")
	}
	if !refunder.claimedBefore {
		t.Fatal("expected the task to be claimed before the gateway call")
	}
	if refunder.paymentID != "pay-1" {
		t.Fatalf("expected refund against pay-1, got %q", refunder.paymentID)
	}
	if refunder.amount == nil || *refunder.amount != 5000 {
		t.Fatalf("expected full 5000 refund, got %v", refunder.amount)
	}
	if len(notifier.userMsgs) != 1 || notifier.userMsgs[0].Tag != "refund-issued" {
		t.Fatalf("expected a refund-issued push, got %v", notifier.userMsgs)
	}
}

func TestExecuteRefundTask_ReopensClaimOnGatewayFailure(t *testing.T) {
	st := &registrationStoreStub{task: approvedRefundTask(), markIssuedResult: true}
	refunder := &refunderStub{st: st, refundErr: errors.New("gateway unavailable")}
	notifier := &notifierStub{}
	svc := newRegistrationTestService(st, notifier)
	svc.SetRefunder(refunder)

	_, err := svc.ExecuteRefundTask(context.Background(), "task-1")
	if err == nil {
		t.Fatal("expected the gateway failure to surface")
	}
	if !st.reopenCalled {
		t.Fatal("expected the claim to be released after the gateway failure")
	}
	if len(notifier.userMsgs) != 0 {
		t.Fatal("expected no member push for a failed refund")
	}
}

func TestExecuteRefundTask_SecondCallerLosesClaim(t *testing.T) {
	st := &registrationStoreStub{task: approvedRefundTask(), markIssuedResult: false}
	refunder := &refunderStub{st: st}
	svc := newRegistrationTestService(st, &notifierStub{})
	svc.SetRefunder(refunder)

	_, err := svc.ExecuteRefundTask(context.Background(), "task-1")
	de, ok := domain.AsError(err)
	if !ok || de.Code != "refund_already_issued" || de.Status != 409 {
		t.Fatalf("expected 409 refund_already_issued for the losing caller, got %v", err)
	}
	if refunder.refundCalled {
		t.Fatal("expected no gateway call without the claim")
	}
}

func TestExecuteRefundTask_RequiresReview(t *testing.T) {
	task := approvedRefundTask()
	task.ShouldRefund = nil
	svc := newRegistrationTestService(&registrationStoreStub{task: task}, &notifierStub{})
	svc.SetRefunder(&refunderStub{})

	_, err := svc.ExecuteRefundTask(context.Background(), "task-1")
	if de, ok := domain.AsError(err); !ok || de.Code != "not_reviewed" {
		t.Fatalf("expected not_reviewed, got %v", err)
	}
}

func TestExecuteRefundTask_DeclinedTaskRefused(t *testing.T) {
	task := approvedRefundTask()
	declined := false
	task.ShouldRefund = &declined
	svc := newRegistrationTestService(&registrationStoreStub{task: task}, &notifierStub{})
	svc.SetRefunder(&refunderStub{})

	_, err := svc.ExecuteRefundTask(context.Background(), "task-1")
	if de, ok := domain.AsError(err); !ok || de.Code != "refund_declined" {
		t.Fatalf("expected refund_declined, got %v", err)
	}
}

func TestExecuteRefundTask_WithoutRefunderFails(t *testing.T) {
	st := &registrationStoreStub{task: approvedRefundTask(), markIssuedResult: true}
	svc := newRegistrationTestService(st, &notifierStub{})

	_, err := svc.ExecuteRefundTask(context.Background(), "task-1")
	if err == nil {
		t.Fatal("expected an error without a refunder attached")
	}
	if _, ok := domain.AsError(err); ok {
		t.Fatalf("expected an infrastructure error, not a domain error, got %v", err)
	}
	if st.markIssuedCalled {
		t.Fatal("expected no claim without a refunder attached")
	}
}
