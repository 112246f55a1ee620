/**
 * @description
 * This file holds the idempotent schema bootstrap: an ordered chain of DDL
 * statements executed at startup. Each statement is safe to re-run, which is
 * what lets a new binary come up against an existing database.
 *
 * @notes
 * - Column names, types, nullability and the four compatibility uniques
 *   (registrations user/event/occurrence, refund task registration_id,
 *   push subscription endpoint, donation transfer_reference) must not change:
 *   deployed databases depend on them.
 * - Identifier columns are TEXT, not UUID: legacy deployments carry integer
 *   identifiers in some rows, and TEXT holds both representations. Lookups
 *   against possibly-legacy values cast with ::text on the SQL side.
 */
package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS cities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS event_types (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'user',
		status TEXT NOT NULL DEFAULT 'pending',
		city_id TEXT REFERENCES cities(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		event_type_id TEXT REFERENCES event_types(id) ON DELETE SET NULL,
		city_id TEXT REFERENCES cities(id) ON DELETE SET NULL,
		location TEXT NOT NULL DEFAULT '',
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		recurrence_rule TEXT,
		max_participants INT,
		price_guest_cents BIGINT NOT NULL DEFAULT 0,
		price_member_cents BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'PLN',
		cancel_cutoff_hours INT NOT NULL DEFAULT 24,
		allow_manual_payment BOOLEAN NOT NULL DEFAULT FALSE,
		manual_payment_due_hours INT NOT NULL DEFAULT 48,
		requires_subscription BOOLEAN NOT NULL DEFAULT FALSE,
		registration_open BOOLEAN NOT NULL DEFAULT TRUE,
		reminder_sent BOOLEAN NOT NULL DEFAULT FALSE,
		version INT NOT NULL DEFAULT 1,
		created_by TEXT REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_events_start_date ON events (start_date)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
		started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		end_date TIMESTAMPTZ,
		loyalty_points BIGINT NOT NULL DEFAULT 0,
		auto_renew BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS registrations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		occurrence_date DATE NOT NULL,
		status TEXT NOT NULL,
		payment_id TEXT,
		manual_payment_due_at TIMESTAMPTZ,
		manual_payment_confirmed_at TIMESTAMPTZ,
		waitlist_notified BOOLEAN NOT NULL DEFAULT FALSE,
		waitlist_notified_at TIMESTAMPTZ,
		promoted_from_waitlist_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT registrations_user_event_occurrence_key UNIQUE (user_id, event_id, occurrence_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_registrations_event_occurrence
		ON registrations (event_id, occurrence_date, status)`,
	`CREATE INDEX IF NOT EXISTS idx_registrations_waitlist_order
		ON registrations (event_id, occurrence_date, created_at) WHERE status = 'waitlist'`,
	`CREATE TABLE IF NOT EXISTS donations (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
		donor_name TEXT NOT NULL DEFAULT '',
		amount_cents BIGINT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'PLN',
		transfer_reference TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		payment_id TEXT,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT donations_transfer_reference_key UNIQUE (transfer_reference)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
		registration_id TEXT REFERENCES registrations(id) ON DELETE SET NULL,
		donation_id TEXT REFERENCES donations(id) ON DELETE SET NULL,
		gateway TEXT NOT NULL,
		gateway_payment_id TEXT,
		amount_cents BIGINT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'PLN',
		status TEXT NOT NULL DEFAULT 'pending',
		description TEXT NOT NULL DEFAULT '',
		gateway_payload JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_gateway_payment_id ON payments (gateway_payment_id)`,
	`CREATE TABLE IF NOT EXISTS registration_refund_tasks (
		id TEXT PRIMARY KEY,
		registration_id TEXT NOT NULL REFERENCES registrations(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		payment_id TEXT,
		amount_cents BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'PLN',
		refund_eligible BOOLEAN NOT NULL DEFAULT FALSE,
		recommended_should_refund BOOLEAN NOT NULL DEFAULT FALSE,
		should_refund BOOLEAN,
		refund_issued BOOLEAN NOT NULL DEFAULT FALSE,
		reviewed_by TEXT,
		review_notes TEXT,
		reviewed_at TIMESTAMPTZ,
		refunded_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT registration_refund_tasks_registration_id_key UNIQUE (registration_id)
	)`,
	`CREATE TABLE IF NOT EXISTS push_subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		endpoint TEXT NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT push_subscriptions_endpoint_key UNIQUE (endpoint)
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		event_id TEXT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_event ON comments (event_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		pinned BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT REFERENCES users(id) ON DELETE SET NULL,
		published_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS feedback (
		id TEXT PRIMARY KEY,
		user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'PLN',
		stock INT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		file_name TEXT NOT NULL,
		stored_name TEXT NOT NULL,
		content_type TEXT NOT NULL,
		size_bytes BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema runs the DDL chain. Safe to call on every startup.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	return nil
}
