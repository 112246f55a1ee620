/**
 * @description
 * Push notification fan-out. Other services reach users through the
 * Notifier interface; the implementation lists the target subscriptions,
 * delivers each through a bounded worker pool and prunes endpoints the
 * push service reports as permanently gone (404/410). Delivery never
 * blocks or fails the operation that triggered it: Send* methods return
 * immediately and errors are logged.
 *
 * @notes
 * - The WS activity feed rides along here: Activity hands an event to the
 *   hub when one is attached, so business services announce through a
 *   single dependency.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/pkg/pushsender"
)

// defaultPushWorkers bounds concurrent deliveries per fan-out.
const defaultPushWorkers = 8

// sendTimeout caps one whole fan-out, lists and prune included.
const sendTimeout = 30 * time.Second

// NotificationStore defines the database operations the notification
// service needs.
type NotificationStore interface {
	UpsertPushSubscription(ctx context.Context, s *domain.PushSubscription) error
	DeletePushSubscription(ctx context.Context, userID, endpoint string) error
	ListPushSubscriptionsByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error)
	ListAdminPushSubscriptions(ctx context.Context) ([]domain.PushSubscription, error)
	ListActivePushSubscriptions(ctx context.Context) ([]domain.PushSubscription, error)
	DeletePushSubscriptionsByEndpoint(ctx context.Context, endpoints []string) (int64, error)
}

// ActivitySink receives activity-feed events for connected admin clients.
type ActivitySink interface {
	Broadcast(event string, payload any)
}

// Notifier is how business services reach users. Implementations must not
// block the caller on delivery.
type Notifier interface {
	SendToUser(userID string, msg domain.PushMessage)
	SendToAdmins(msg domain.PushMessage)
	SendToAllActiveUsers(msg domain.PushMessage)
	Activity(event string, payload any)
}

// NotificationService implements Notifier over Web Push.
type NotificationService struct {
	store          NotificationStore
	sender         pushsender.Sender
	sink           ActivitySink
	logger         *slog.Logger
	metrics        *metrics.Metrics
	vapidPublicKey string
	workers        int

	wg sync.WaitGroup
}

// NewNotificationService creates the push fan-out service. sink may be nil
// when no websocket hub is attached.
func NewNotificationService(store NotificationStore, sender pushsender.Sender, sink ActivitySink, logger *slog.Logger, m *metrics.Metrics, vapidPublicKey string) *NotificationService {
	return &NotificationService{
		store:          store,
		sender:         sender,
		sink:           sink,
		logger:         logger,
		metrics:        m,
		vapidPublicKey: vapidPublicKey,
		workers:        defaultPushWorkers,
	}
}

// VAPIDPublicKey returns the key browsers need to subscribe.
func (n *NotificationService) VAPIDPublicKey() string {
	return n.vapidPublicKey
}

// Subscribe upserts the caller's browser subscription by endpoint.
func (n *NotificationService) Subscribe(ctx context.Context, userID string, req domain.SubscribePushRequest) error {
	sub := &domain.PushSubscription{
		ID:       uuid.NewString(),
		UserID:   userID,
		Endpoint: req.Endpoint,
		P256dh:   req.Keys.P256dh,
		Auth:     req.Keys.Auth,
	}
	if err := n.store.UpsertPushSubscription(ctx, sub); err != nil {
		return err
	}
	return nil
}

// Unsubscribe removes the caller's subscription for one endpoint.
func (n *NotificationService) Unsubscribe(ctx context.Context, userID, endpoint string) error {
	return n.store.DeletePushSubscription(ctx, userID, endpoint)
}

// SendToUser pushes to every subscription of one user.
func (n *NotificationService) SendToUser(userID string, msg domain.PushMessage) {
	n.dispatch(msg, func(ctx context.Context) ([]domain.PushSubscription, error) {
		return n.store.ListPushSubscriptionsByUser(ctx, userID)
	})
}

// SendToAdmins pushes to every admin subscription.
func (n *NotificationService) SendToAdmins(msg domain.PushMessage) {
	n.dispatch(msg, func(ctx context.Context) ([]domain.PushSubscription, error) {
		return n.store.ListAdminPushSubscriptions(ctx)
	})
}

// SendToAllActiveUsers pushes to every subscription of an active account.
func (n *NotificationService) SendToAllActiveUsers(msg domain.PushMessage) {
	n.dispatch(msg, func(ctx context.Context) ([]domain.PushSubscription, error) {
		return n.store.ListActivePushSubscriptions(ctx)
	})
}

// Activity forwards an event to the websocket hub, if one is attached.
func (n *NotificationService) Activity(event string, payload any) {
	if n.sink != nil {
		n.sink.Broadcast(event, payload)
	}
}

// Close waits for in-flight fan-outs to finish.
func (n *NotificationService) Close() {
	n.wg.Wait()
}

// dispatch runs one fan-out asynchronously under its own deadline.
func (n *NotificationService) dispatch(msg domain.PushMessage, list func(ctx context.Context) ([]domain.PushSubscription, error)) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		subs, err := list(ctx)
		if err != nil {
			n.logger.Error("failed to list push subscriptions", "error", err)
			return
		}
		if len(subs) == 0 {
			return
		}
		n.deliver(ctx, subs, msg)
	}()
}

// deliver sends msg to each subscription through the bounded pool and
// prunes endpoints reported gone, in one follow-up store call.
func (n *NotificationService) deliver(ctx context.Context, subs []domain.PushSubscription, msg domain.PushMessage) {
	sem := make(chan struct{}, n.workers)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		gone []string
	)

	for _, sub := range subs {
		wg.Add(1)
		sem <- struct{}{}
		go func(sub domain.PushSubscription) {
			defer wg.Done()
			defer func() { <-sem }()

			err := n.sender.Send(ctx, pushsender.Subscription{
				Endpoint: sub.Endpoint,
				P256dh:   sub.P256dh,
				Auth:     sub.Auth,
			}, pushsender.Message(msg))

			switch {
			case err == nil:
				n.metrics.PushSent.WithLabelValues("ok").Inc()
			case errors.Is(err, pushsender.ErrSubscriptionGone):
				n.metrics.PushSent.WithLabelValues("gone").Inc()
				mu.Lock()
				gone = append(gone, sub.Endpoint)
				mu.Unlock()
			default:
				n.metrics.PushSent.WithLabelValues("error").Inc()
				n.logger.Warn("push delivery failed", "user_id", sub.UserID, "error", err)
			}
		}(sub)
	}
	wg.Wait()

	if len(gone) > 0 {
		pruned, err := n.store.DeletePushSubscriptionsByEndpoint(ctx, gone)
		if err != nil {
			n.logger.Error("failed to prune dead push subscriptions", "count", len(gone), "error", err)
			return
		}
		n.metrics.PushPruned.Add(float64(pruned))
		n.logger.Info("pruned dead push subscriptions", "count", pruned)
	}
}
