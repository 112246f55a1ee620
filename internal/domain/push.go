package domain

import "time"

// PushSubscription stores one browser push endpoint for a user. The endpoint
// is globally unique; re-subscribing from the same browser upserts the keys.
type PushSubscription struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Endpoint  string    `json:"endpoint"`
	P256dh    string    `json:"p256dh"`
	Auth      string    `json:"auth"`
	CreatedAt time.Time `json:"created_at"`
}

// PushMessage is the payload delivered to subscribed browsers.
type PushMessage struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// SubscribePushRequest is the DTO mirroring the browser PushSubscription JSON.
type SubscribePushRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

// UnsubscribePushRequest identifies the endpoint to remove.
type UnsubscribePushRequest struct {
	Endpoint string `json:"endpoint" validate:"required,url"`
}
