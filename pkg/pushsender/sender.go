/**
 * @description
 * Web Push delivery. Wraps the VAPID-signed Web Push protocol behind a
 * small Sender interface and classifies permanently dead endpoints so the
 * caller can prune their subscriptions.
 *
 * @dependencies
 * - github.com/SherClockHolmes/webpush-go: Payload encryption and VAPID
 *   signing per RFC 8291/8292.
 */
package pushsender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
)

// ErrSubscriptionGone means the push service no longer knows the endpoint;
// the subscription should be deleted.
var ErrSubscriptionGone = errors.New("pushsender: subscription gone")

// Subscription is a browser push subscription.
type Subscription struct {
	Endpoint string
	P256dh   string
	Auth     string
}

// Message is the notification payload shown by the service worker.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Sender delivers one message to one subscription.
type Sender interface {
	Send(ctx context.Context, sub Subscription, msg Message) error
}

// WebPush sends through the standard Web Push protocol.
type WebPush struct {
	opts webpush.Options
}

// NewWebPush creates a sender signing with the given VAPID key pair.
// subscriber is the contact address push services may use (mailto: URL).
func NewWebPush(vapidPublicKey, vapidPrivateKey, subscriber string) *WebPush {
	return &WebPush{
		opts: webpush.Options{
			Subscriber:      subscriber,
			VAPIDPublicKey:  vapidPublicKey,
			VAPIDPrivateKey: vapidPrivateKey,
			TTL:             86400,
		},
	}
}

// Send encrypts msg for sub and posts it to the push service.
func (w *WebPush) Send(ctx context.Context, sub Subscription, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, &w.opts)
	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	case resp.StatusCode >= 400:
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys creates a fresh VAPID key pair for configuration.
func GenerateVAPIDKeys() (privateKey, publicKey string, err error) {
	return webpush.GenerateVAPIDKeys()
}

// Noop discards every message. Used when VAPID keys are not configured so
// the rest of the platform keeps working without push delivery.
type Noop struct{}

// NewNoop creates a sender that drops messages.
func NewNoop() *Noop {
	return &Noop{}
}

// Send discards the message.
func (*Noop) Send(ctx context.Context, sub Subscription, msg Message) error {
	return nil
}
