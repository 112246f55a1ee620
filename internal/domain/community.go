/**
 * @description
 * This file defines the community-content domain models: comments under
 * events, admin announcements, anonymous feedback, the merchandise catalog
 * and upload metadata.
 */
package domain

import "time"

// Comment is a member comment under an event.
type Comment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	EventID   string    `json:"event_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CommentWithAuthor is the listing projection including the author's name.
type CommentWithAuthor struct {
	Comment
	AuthorName string `json:"author_name"`
}

// CreateCommentRequest is the DTO for posting a comment.
type CreateCommentRequest struct {
	EventID string `json:"event_id" validate:"required"`
	Body    string `json:"body" validate:"required,max=2000"`
}

// Announcement is an admin-authored message pushed to all active members.
type Announcement struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Body        string     `json:"body"`
	Pinned      bool       `json:"pinned"`
	CreatedBy   *string    `json:"created_by,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CreateAnnouncementRequest is the admin DTO for announcements.
type CreateAnnouncementRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Body    string `json:"body" validate:"required,max=10000"`
	Pinned  bool   `json:"pinned"`
	Publish bool   `json:"publish"`
}

// Feedback is a message to the board; the author may stay anonymous.
type Feedback struct {
	ID        string    `json:"id"`
	UserID    *string   `json:"user_id,omitempty"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateFeedbackRequest is the DTO for submitting feedback.
type CreateFeedbackRequest struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required,max=5000"`
}

// Product is a club-merchandise catalog entry. Purchases are settled as
// manual transfers; there is no checkout flow for products.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	PriceCents  int64     `json:"price_cents"`
	Currency    string    `json:"currency"`
	Stock       int       `json:"stock"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProductRequest is the admin DTO for catalog entries.
type CreateProductRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
	PriceCents  int64  `json:"price_cents" validate:"min=0"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	Stock       int    `json:"stock" validate:"min=0"`
	Active      bool   `json:"active"`
}

// CreateEventTypeRequest is the admin DTO for event categories.
type CreateEventTypeRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// CreateCityRequest is the admin DTO for reference cities.
type CreateCityRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Upload is the metadata row for a file stored on local disk.
type Upload struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	FileName    string    `json:"file_name"`
	StoredName  string    `json:"stored_name"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}

// AdminStats is the dashboard summary for administrators.
type AdminStats struct {
	UsersTotal          int   `json:"users_total"`
	UsersPending        int   `json:"users_pending"`
	EventsUpcoming      int   `json:"events_upcoming"`
	RegistrationsActive int   `json:"registrations_active"`
	RefundTasksOpen     int   `json:"refund_tasks_open"`
	DonationsCents      int64 `json:"donations_cents"`
	PushSubscriptions   int   `json:"push_subscriptions"`
	PaymentsCompleted   int   `json:"payments_completed"`
}
