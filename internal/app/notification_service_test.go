package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/pkg/pushsender"
)

type notificationStoreStub struct {
	NotificationStore

	mu   sync.Mutex
	subs []domain.PushSubscription

	userListCalled   bool
	adminListCalled  bool
	activeListCalled bool

	pruneCalls      int
	prunedEndpoints []string

	upserted        *domain.PushSubscription
	deletedUser     string
	deletedEndpoint string
}

func (s *notificationStoreStub) UpsertPushSubscription(ctx context.Context, sub *domain.PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = sub
	return nil
}

func (s *notificationStoreStub) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedUser = userID
	s.deletedEndpoint = endpoint
	return nil
}

func (s *notificationStoreStub) ListPushSubscriptionsByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userListCalled = true
	return s.subs, nil
}

func (s *notificationStoreStub) ListAdminPushSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminListCalled = true
	return s.subs, nil
}

func (s *notificationStoreStub) ListActivePushSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeListCalled = true
	return s.subs, nil
}

func (s *notificationStoreStub) DeletePushSubscriptionsByEndpoint(ctx context.Context, endpoints []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneCalls++
	s.prunedEndpoints = append(s.prunedEndpoints, endpoints...)
	return int64(len(endpoints)), nil
}

type pushSenderStub struct {
	mu            sync.Mutex
	errByEndpoint map[string]error
	sent          []string
}

func (p *pushSenderStub) Send(ctx context.Context, sub pushsender.Subscription, msg pushsender.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sub.Endpoint)
	return p.errByEndpoint[sub.Endpoint]
}

func (p *pushSenderStub) sentEndpoints() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := append([]string(nil), p.sent...)
	sort.Strings(out)
	return out
}

type sinkStub struct {
	mu     sync.Mutex
	events []string
}

func (s *sinkStub) Broadcast(event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func newNotificationTestService(st NotificationStore, sender pushsender.Sender, sink ActivitySink) *NotificationService {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.MustNew(prometheus.NewRegistry())
	return NewNotificationService(st, sender, sink, logger, m, "test-vapid-public-key")
}

func pushSub(userID, endpoint string) domain.PushSubscription {
	return domain.PushSubscription{
		ID:       "sub-" + endpoint,
		UserID:   userID,
		Endpoint: endpoint,
		P256dh:   "p256dh-key",
		Auth:     "auth-key",
	}
}

func TestSendToUser_PrunesGoneEndpointsInOneCall(t *testing.T) {
	st := &notificationStoreStub{
		subs: []domain.PushSubscription{
			pushSub("user-1", "https://push.example/a"),
			pushSub("user-1", "https://push.example/b"),
			pushSub("user-1", "https://push.example/c"),
		},
	}
	sender := &pushSenderStub{
		errByEndpoint: map[string]error{
			"https://push.example/b": pushsender.ErrSubscriptionGone,
			"https://push.example/c": pushsender.ErrSubscriptionGone,
		},
	}
	svc := newNotificationTestService(st, sender, nil)

	svc.SendToUser("user-1", domain.PushMessage{Title: "Hello"})
	svc.Close()

	if got := sender.sentEndpoints(); len(got) != 3 {
		t.Fatalf("expected delivery attempts to all 3 endpoints, got %v", got)
	}
	if st.pruneCalls != 1 {
		t.Fatalf("expected exactly one prune call, got %d", st.pruneCalls)
	}
	sort.Strings(st.prunedEndpoints)
	want := []string{"https://push.example/b", "https://push.example/c"}
	if len(st.prunedEndpoints) != 2 || st.prunedEndpoints[0] != want[0] || st.prunedEndpoints[1] != want[1] {
		t.Fatalf("expected the gone endpoints pruned, got %v", st.prunedEndpoints)
	}
}

func TestSendToUser_TransientFailuresAreNotPruned(t *testing.T) {
	st := &notificationStoreStub{
		subs: []domain.PushSubscription{
			pushSub("user-1", "https://push.example/a"),
			pushSub("user-1", "https://push.example/b"),
		},
	}
	sender := &pushSenderStub{
		errByEndpoint: map[string]error{
			"https://push.example/b": errors.New("push service 5xx"),
		},
	}
	svc := newNotificationTestService(st, sender, nil)

	svc.SendToUser("user-1", domain.PushMessage{Title: "Hello"})
	svc.Close()

	if st.pruneCalls != 0 {
		t.Fatalf("expected no pruning for transient failures, got %d calls", st.pruneCalls)
	}
}

func TestSendToUser_NoSubscriptionsSendsNothing(t *testing.T) {
	st := &notificationStoreStub{}
	sender := &pushSenderStub{}
	svc := newNotificationTestService(st, sender, nil)

	svc.SendToUser("user-1", domain.PushMessage{Title: "Hello"})
	svc.Close()

	if len(sender.sentEndpoints()) != 0 {
		t.Fatalf("expected no deliveries, got %v", sender.sentEndpoints())
	}
	if st.pruneCalls != 0 {
		t.Fatal("expected no prune call without deliveries")
	}
}

func TestSendToAdmins_TargetsAdminSubscriptions(t *testing.T) {
	st := &notificationStoreStub{
		subs: []domain.PushSubscription{pushSub("admin-1", "https://push.example/adm")},
	}
	sender := &pushSenderStub{}
	svc := newNotificationTestService(st, sender, nil)

	svc.SendToAdmins(domain.PushMessage{Title: "Review needed"})
	svc.Close()

	if !st.adminListCalled {
		t.Fatal("expected the admin subscription list to be used")
	}
	if st.userListCalled || st.activeListCalled {
		t.Fatal("expected no other subscription list to be touched")
	}
	if got := sender.sentEndpoints(); len(got) != 1 || got[0] != "https://push.example/adm" {
		t.Fatalf("expected one delivery to the admin endpoint, got %v", got)
	}
}

func TestActivity_ForwardsToSink(t *testing.T) {
	sink := &sinkStub{}
	svc := newNotificationTestService(&notificationStoreStub{}, &pushSenderStub{}, sink)

	svc.Activity("registration_created", map[string]any{"registration_id": "reg-1"})

	if len(sink.events) != 1 || sink.events[0] != "registration_created" {
		t.Fatalf("expected the event forwarded to the sink, got %v", sink.events)
	}
}

func TestActivity_NoSinkIsSafe(t *testing.T) {
	svc := newNotificationTestService(&notificationStoreStub{}, &pushSenderStub{}, nil)

	// Must not panic without a hub attached.
	svc.Activity("registration_created", nil)
}

func TestSubscribe_PersistsBrowserSubscription(t *testing.T) {
	st := &notificationStoreStub{}
	svc := newNotificationTestService(st, &pushSenderStub{}, nil)

	req := domain.SubscribePushRequest{Endpoint: "https://push.example/new"}
	req.Keys.P256dh = "client-p256dh"
	req.Keys.Auth = "client-auth"
	if err := svc.Subscribe(context.Background(), "user-1", req); err != nil {
		t.Fatalf("expected subscribe to succeed, got %v", err)
	}
	if st.upserted == nil || st.upserted.UserID != "user-1" || st.upserted.Endpoint != "https://push.example/new" {
		t.Fatalf("expected the subscription upserted for user-1, got %+v", st.upserted)
	}
	if st.upserted.P256dh != "client-p256dh" || st.upserted.Auth != "client-auth" {
		t.Fatal("expected the browser keys persisted with the subscription")
	}

	if err := svc.Unsubscribe(context.Background(), "user-1", "https://push.example/new"); err != nil {
		t.Fatalf("expected unsubscribe to succeed, got %v", err)
	}
	if st.deletedUser != "user-1" || st.deletedEndpoint != "https://push.example/new" {
		t.Fatalf("expected the endpoint removed for user-1, got %s %s", st.deletedUser, st.deletedEndpoint)
	}
}
