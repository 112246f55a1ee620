/**
 * @description
 * Event queries, including the availability projection used by listings and
 * the reminder sweep queries used by the scheduler.
 *
 * @notes
 * - spots_taken reports CONFIRMED registrations only (the public number);
 *   admission accounting over all slot-holding statuses lives in
 *   registrations.go.
 * - Every capacity-relevant write goes through the version compare-and-
 *   increment; callers retry on ErrVersionConflict.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

const eventColumns = `
        id, title, description, event_type_id, city_id, location,
        start_date, end_date, recurrence_rule, max_participants,
        price_guest_cents, price_member_cents, currency, cancel_cutoff_hours,
        allow_manual_payment, manual_payment_due_hours, requires_subscription,
        registration_open, reminder_sent, version, created_by, created_at, updated_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.EventTypeID,
		&e.CityID,
		&e.Location,
		&e.StartDate,
		&e.EndDate,
		&e.RecurrenceRule,
		&e.MaxParticipants,
		&e.PriceGuestCents,
		&e.PriceMemberCents,
		&e.Currency,
		&e.CancelCutoffHours,
		&e.AllowManualPayment,
		&e.ManualPaymentDueHours,
		&e.RequiresSubscription,
		&e.RegistrationOpen,
		&e.ReminderSent,
		&e.Version,
		&e.CreatedBy,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateEvent inserts a new event with version 1.
func (r *Postgres) CreateEvent(ctx context.Context, e *domain.Event) error {
	query := `
        INSERT INTO events (
            id, title, description, event_type_id, city_id, location,
            start_date, end_date, recurrence_rule, max_participants,
            price_guest_cents, price_member_cents, currency, cancel_cutoff_hours,
            allow_manual_payment, manual_payment_due_hours, requires_subscription,
            registration_open, reminder_sent, version, created_by, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, FALSE, 1, $19, NOW(), NOW())
    `
	_, err := r.db.Exec(ctx, query,
		e.ID,
		e.Title,
		e.Description,
		e.EventTypeID,
		e.CityID,
		e.Location,
		e.StartDate,
		e.EndDate,
		e.RecurrenceRule,
		e.MaxParticipants,
		e.PriceGuestCents,
		e.PriceMemberCents,
		e.Currency,
		e.CancelCutoffHours,
		e.AllowManualPayment,
		e.ManualPaymentDueHours,
		e.RequiresSubscription,
		e.RegistrationOpen,
		e.CreatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// UpdateEvent applies an admin edit under the optimistic lock. The caller
// passes the version it read; a stale version returns ErrVersionConflict.
func (r *Postgres) UpdateEvent(ctx context.Context, e *domain.Event) error {
	query := `
        UPDATE events
        SET title = $2, description = $3, event_type_id = $4, city_id = $5, location = $6,
            start_date = $7, end_date = $8, recurrence_rule = $9, max_participants = $10,
            price_guest_cents = $11, price_member_cents = $12, currency = $13,
            cancel_cutoff_hours = $14, allow_manual_payment = $15, manual_payment_due_hours = $16,
            requires_subscription = $17, registration_open = $18,
            version = version + 1, updated_at = NOW()
        WHERE id = $1 AND version = $19
    `
	tag, err := r.db.Exec(ctx, query,
		e.ID,
		e.Title,
		e.Description,
		e.EventTypeID,
		e.CityID,
		e.Location,
		e.StartDate,
		e.EndDate,
		e.RecurrenceRule,
		e.MaxParticipants,
		e.PriceGuestCents,
		e.PriceMemberCents,
		e.Currency,
		e.CancelCutoffHours,
		e.AllowManualPayment,
		e.ManualPaymentDueHours,
		e.RequiresSubscription,
		e.RegistrationOpen,
		e.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the event is gone or a concurrent writer bumped the version.
		if _, gerr := r.GetEvent(ctx, e.ID); gerr != nil {
			return gerr
		}
		return ErrVersionConflict
	}
	return nil
}

// DeleteEvent removes an event; registrations cascade.
func (r *Postgres) DeleteEvent(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// GetEvent loads one event.
func (r *Postgres) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	e, err := scanEvent(r.db.QueryRow(ctx, `SELECT`+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// ListEvents returns events with the confirmed-count availability projection
// for their base occurrence, soonest first.
func (r *Postgres) ListEvents(ctx context.Context, upcomingOnly bool) ([]domain.EventWithAvailability, error) {
	query := `
        SELECT e.id, e.title, e.description, e.event_type_id, e.city_id, e.location,
               e.start_date, e.end_date, e.recurrence_rule, e.max_participants,
               e.price_guest_cents, e.price_member_cents, e.currency, e.cancel_cutoff_hours,
               e.allow_manual_payment, e.manual_payment_due_hours, e.requires_subscription,
               e.registration_open, e.reminder_sent, e.version, e.created_by, e.created_at, e.updated_at,
               COALESCE(c.confirmed, 0) AS spots_taken
        FROM events e
        LEFT JOIN (
            SELECT r.event_id, COUNT(*) AS confirmed
            FROM registrations r
            JOIN events ev ON ev.id = r.event_id
            WHERE r.status = 'confirmed' AND r.occurrence_date = ev.start_date::date
            GROUP BY r.event_id
        ) c ON c.event_id = e.id
        WHERE $1 = FALSE OR e.start_date >= NOW()
        ORDER BY e.start_date ASC
    `
	rows, err := r.db.Query(ctx, query, upcomingOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []domain.EventWithAvailability
	for rows.Next() {
		var ev domain.EventWithAvailability
		if err := rows.Scan(
			&ev.ID,
			&ev.Title,
			&ev.Description,
			&ev.EventTypeID,
			&ev.CityID,
			&ev.Location,
			&ev.StartDate,
			&ev.EndDate,
			&ev.RecurrenceRule,
			&ev.MaxParticipants,
			&ev.PriceGuestCents,
			&ev.PriceMemberCents,
			&ev.Currency,
			&ev.CancelCutoffHours,
			&ev.AllowManualPayment,
			&ev.ManualPaymentDueHours,
			&ev.RequiresSubscription,
			&ev.RegistrationOpen,
			&ev.ReminderSent,
			&ev.Version,
			&ev.CreatedBy,
			&ev.CreatedAt,
			&ev.UpdatedAt,
			&ev.SpotsTaken,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		if ev.MaxParticipants != nil {
			avail := *ev.MaxParticipants - ev.SpotsTaken
			if avail < 0 {
				avail = 0
			}
			ev.SpotsAvailable = &avail
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountConfirmed returns the public spots_taken number for one occurrence.
func (r *Postgres) CountConfirmed(ctx context.Context, eventID string, occurrence time.Time) (int, error) {
	var n int
	query := `
        SELECT COUNT(*)
        FROM registrations
        WHERE event_id = $1 AND occurrence_date = $2 AND status = 'confirmed'
    `
	if err := r.db.QueryRow(ctx, query, eventID, occurrence).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count confirmed registrations: %w", err)
	}
	return n, nil
}

// SetRegistrationOpen toggles whether the event accepts registrations.
func (r *Postgres) SetRegistrationOpen(ctx context.Context, id string, open bool) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE events SET registration_open = $2, updated_at = NOW() WHERE id = $1`, id, open)
	if err != nil {
		return fmt.Errorf("failed to toggle registration_open: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// ListEventsNeedingReminder returns events starting within the window whose
// reminder has not been sent yet.
func (r *Postgres) ListEventsNeedingReminder(ctx context.Context, now time.Time, window time.Duration) ([]domain.Event, error) {
	query := `SELECT` + eventColumns + `
        FROM events
        WHERE reminder_sent = FALSE AND start_date >= $1 AND start_date <= $2
        ORDER BY start_date ASC
    `
	rows, err := r.db.Query(ctx, query, now, now.Add(window))
	if err != nil {
		return nil, fmt.Errorf("failed to list events needing reminder: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// ListReminderTargets returns the user ids holding a CONFIRMED registration
// for any upcoming occurrence of the event.
func (r *Postgres) ListReminderTargets(ctx context.Context, eventID string) ([]string, error) {
	query := `
        SELECT DISTINCT user_id
        FROM registrations
        WHERE event_id = $1 AND status = 'confirmed' AND occurrence_date >= CURRENT_DATE
    `
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder targets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkEventReminderSent flips the reminder flag so an event is reminded once.
func (r *Postgres) MarkEventReminderSent(ctx context.Context, eventID string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE events SET reminder_sent = TRUE, updated_at = NOW() WHERE id = $1`, eventID); err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}
	return nil
}
