/**
 * @description
 * Subscription business logic. Subscriptions are admin-granted (payment for
 * them is settled out of band); granting months extends from the later of
 * now and the current end date, members read their status and toggle the
 * renewal preference themselves.
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
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

// SubscriptionStore defines the database operations the subscription service
// needs.
type SubscriptionStore interface {
	GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error)
	GrantSubscription(ctx context.Context, id, userID string, months int, autoRenew bool, now time.Time) (*domain.Subscription, error)
	SetAutoRenew(ctx context.Context, userID string, autoRenew bool) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// SubscriptionService implements membership status and granting.
type SubscriptionService struct {
	store    SubscriptionStore
	notifier Notifier
	logger   *slog.Logger

	now func() time.Time
}

// NewSubscriptionService creates the subscription service.
func NewSubscriptionService(st SubscriptionStore, notifier Notifier, logger *slog.Logger) *SubscriptionService {
	return &SubscriptionService{store: st, notifier: notifier, logger: logger, now: time.Now}
}

// Status returns the caller's membership projection. Users without a
// subscription row read as inactive, not as an error.
func (s *SubscriptionService) Status(ctx context.Context, userID string) (*domain.SubscriptionStatus, error) {
	sub, err := s.store.GetSubscriptionByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return &domain.SubscriptionStatus{}, nil
		}
		return nil, err
	}
	return &domain.SubscriptionStatus{
		Active:        sub.ActiveAt(s.now()),
		EndDate:       sub.EndDate,
		LoyaltyPoints: sub.LoyaltyPoints,
		AutoRenew:     sub.AutoRenew,
	}, nil
}

// Grant creates or extends the user's subscription by whole months and tells
// them about it.
func (s *SubscriptionService) Grant(ctx context.Context, userID string, req domain.GrantSubscriptionRequest) (*domain.Subscription, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, domain.NotFound("user_not_found", "user not found")
		}
		return nil, err
	}

	sub, err := s.store.GrantSubscription(ctx, uuid.NewString(), user.ID, req.Months, req.AutoRenew, s.now())
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription granted",
		"user_id", user.ID, "months", req.Months, "end_date", sub.EndDate)
	body := "Your club membership is active."
	if sub.EndDate != nil {
		body = fmt.Sprintf("Your club membership is active until %s.", sub.EndDate.Format("2 January 2006"))
	}
	s.notifier.SendToUser(user.ID, domain.PushMessage{
		Title: "Membership extended",
		Body:  body,
		URL:   "/profile",
		Tag:   "subscription",
	})
	return sub, nil
}

// SetAutoRenew stores the member's renewal preference.
func (s *SubscriptionService) SetAutoRenew(ctx context.Context, userID string, autoRenew bool) error {
	if err := s.store.SetAutoRenew(ctx, userID, autoRenew); err != nil {
		if errors.Is(err, store.ErrSubscriptionNotFound) {
			return domain.NotFound("subscription_not_found", "you have no subscription to update")
		}
		return err
	}
	return nil
}
