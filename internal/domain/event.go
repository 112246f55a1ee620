/**
 * @description
 * This file defines the event domain model: the club's trainings, trips and
 * socials. A recurring event shares one row and is addressed per occurrence
 * date by registrations. Capacity state is guarded by the `version` column
 * (optimistic lock): every capacity-relevant write must compare-and-increment
 * it, and concurrent writers retry on mismatch.
 *
 * @notes
 * - Prices are stored as int64 minor units (grosze) to avoid floating-point
 *   inaccuracies; a price of zero means the tier attends free of charge and
 *   registrations confirm immediately.
 * - MaxParticipants == nil means unlimited capacity.
 */
package domain

import "time"

// Event represents a club event, possibly recurring.
type Event struct {
	ID                    string     `json:"id"`
	Title                 string     `json:"title"`
	Description           string     `json:"description"`
	EventTypeID           *string    `json:"event_type_id,omitempty"`
	CityID                *string    `json:"city_id,omitempty"`
	Location              string     `json:"location"`
	StartDate             time.Time  `json:"start_date"`
	EndDate               *time.Time `json:"end_date,omitempty"`
	RecurrenceRule        *string    `json:"recurrence_rule,omitempty"` // e.g. 'weekly'
	MaxParticipants       *int       `json:"max_participants,omitempty"`
	PriceGuestCents       int64      `json:"price_guest_cents"`
	PriceMemberCents      int64      `json:"price_member_cents"`
	Currency              string     `json:"currency"`
	CancelCutoffHours     int        `json:"cancel_cutoff_hours"`
	AllowManualPayment    bool       `json:"allow_manual_payment"`
	ManualPaymentDueHours int        `json:"manual_payment_due_hours"`
	RequiresSubscription  bool       `json:"requires_subscription"`
	RegistrationOpen      bool       `json:"registration_open"`
	ReminderSent          bool       `json:"reminder_sent"`
	Version               int        `json:"version"`
	CreatedBy             *string    `json:"created_by,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// Unlimited reports whether the event has no capacity bound.
func (e *Event) Unlimited() bool {
	return e.MaxParticipants == nil
}

// PriceFor returns the price in minor units for the caller's tier.
func (e *Event) PriceFor(member bool) int64 {
	if member {
		return e.PriceMemberCents
	}
	return e.PriceGuestCents
}

// CancelCutoff returns the instant after which a cancellation is no longer
// refund-eligible for the given occurrence.
func (e *Event) CancelCutoff(occurrenceStart time.Time) time.Time {
	return occurrenceStart.Add(-time.Duration(e.CancelCutoffHours) * time.Hour)
}

// OccursOn reports whether the event has an occurrence on the given calendar
// day. One-off events occur only on their start day; recurring events repeat
// per their rule from the start day on, bounded by EndDate when set.
func (e *Event) OccursOn(day time.Time) bool {
	base := DateOnly(e.StartDate)
	d := DateOnly(day)

	if d.Before(base) {
		return false
	}
	if e.EndDate != nil && d.After(DateOnly(*e.EndDate)) {
		return false
	}
	if d.Equal(base) {
		return true
	}
	if e.RecurrenceRule == nil {
		return false
	}

	days := int(d.Sub(base).Hours() / 24)
	switch *e.RecurrenceRule {
	case "weekly":
		return days%7 == 0
	case "biweekly":
		return days%14 == 0
	case "monthly":
		return d.Day() == base.Day()
	default:
		return false
	}
}

// OccurrenceStart combines an occurrence day with the event's start time of
// day, yielding the instant that occurrence begins.
func (e *Event) OccurrenceStart(day time.Time) time.Time {
	return time.Date(
		day.Year(), day.Month(), day.Day(),
		e.StartDate.Hour(), e.StartDate.Minute(), e.StartDate.Second(), 0,
		e.StartDate.Location(),
	)
}

// DateOnly truncates t to its calendar day in UTC, the canonical form of
// occurrence dates.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// EventType categorizes events (training, trip, social, ...).
type EventType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// EventWithAvailability is the listing projection: the event plus the derived
// occupancy numbers. SpotsAvailable is nil for unlimited events.
type EventWithAvailability struct {
	Event
	SpotsTaken     int  `json:"spots_taken"`
	SpotsAvailable *int `json:"spots_available,omitempty"`
}

// CreateEventRequest is the admin DTO for creating or updating an event.
type CreateEventRequest struct {
	Title                 string     `json:"title" validate:"required,max=200"`
	Description           string     `json:"description" validate:"max=5000"`
	EventTypeID           *string    `json:"event_type_id,omitempty"`
	CityID                *string    `json:"city_id,omitempty"`
	Location              string     `json:"location" validate:"max=300"`
	StartDate             time.Time  `json:"start_date" validate:"required"`
	EndDate               *time.Time `json:"end_date,omitempty"`
	RecurrenceRule        *string    `json:"recurrence_rule,omitempty" validate:"omitempty,oneof=weekly biweekly monthly"`
	MaxParticipants       *int       `json:"max_participants,omitempty" validate:"omitempty,min=1"`
	PriceGuestCents       int64      `json:"price_guest_cents" validate:"min=0"`
	PriceMemberCents      int64      `json:"price_member_cents" validate:"min=0"`
	Currency              string     `json:"currency" validate:"omitempty,len=3"`
	CancelCutoffHours     int        `json:"cancel_cutoff_hours" validate:"min=0"`
	AllowManualPayment    bool       `json:"allow_manual_payment"`
	ManualPaymentDueHours int        `json:"manual_payment_due_hours" validate:"min=0"`
	RequiresSubscription  bool       `json:"requires_subscription"`
	RegistrationOpen      bool       `json:"registration_open"`
}
