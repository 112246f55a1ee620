package pushsender

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// testSubscription builds a subscription with a valid P-256 key pair and
// auth secret, the way a browser would.
func testSubscription(t *testing.T, endpoint string) Subscription {
	t.Helper()

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate subscription key: %v", err)
	}
	auth := make([]byte, 16)
	if _, err := rand.Read(auth); err != nil {
		t.Fatalf("failed to generate auth secret: %v", err)
	}

	return Subscription{
		Endpoint: endpoint,
		P256dh:   base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		Auth:     base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestSender(t *testing.T) *WebPush {
	t.Helper()
	private, public, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("failed to generate VAPID keys: %v", err)
	}
	return NewWebPush(public, private, "mailto:ops@example.com")
}

func TestWebPushSendDelivers(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	sender := newTestSender(t)
	sub := testSubscription(t, srv.URL)

	err := sender.Send(context.Background(), sub, Message{Title: "Reminder", Body: "Event starts soon"})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotAuth == "" {
		t.Fatal("expected VAPID Authorization header to be set")
	}
}

func TestWebPushSendClassifiesGoneEndpoints(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		sender := newTestSender(t)
		sub := testSubscription(t, srv.URL)

		err := sender.Send(context.Background(), sub, Message{Title: "x"})
		if !errors.Is(err, ErrSubscriptionGone) {
			t.Errorf("status %d: expected ErrSubscriptionGone, got %v", status, err)
		}
		srv.Close()
	}
}

func TestWebPushSendReportsOtherFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := newTestSender(t)
	sub := testSubscription(t, srv.URL)

	err := sender.Send(context.Background(), sub, Message{Title: "x"})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if errors.Is(err, ErrSubscriptionGone) {
		t.Fatal("429 must not be classified as a gone subscription")
	}
}
