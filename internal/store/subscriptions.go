/**
 * @description
 * Subscription queries. One row per user (unique user_id); granting months
 * upserts and extends from whichever is later, the current end date or now,
 * so lapsed members restart cleanly and active ones stack time.
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

const subscriptionColumns = `
        id, user_id, started_at, end_date, loyalty_points, auto_renew, created_at, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var s domain.Subscription
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.StartedAt,
		&s.EndDate,
		&s.LoyaltyPoints,
		&s.AutoRenew,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSubscriptionByUser loads the user's subscription row.
func (r *Postgres) GetSubscriptionByUser(ctx context.Context, userID string) (*domain.Subscription, error) {
	s, err := scanSubscription(r.db.QueryRow(ctx,
		`SELECT`+subscriptionColumns+` FROM subscriptions WHERE user_id::text = $1`,
		domain.NormalizeID(userID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}
	return s, nil
}

// GrantSubscription creates or extends the user's subscription by the given
// number of months.
func (r *Postgres) GrantSubscription(ctx context.Context, id, userID string, months int, autoRenew bool, now time.Time) (*domain.Subscription, error) {
	query := `
        INSERT INTO subscriptions (id, user_id, started_at, end_date, auto_renew, created_at, updated_at)
        VALUES ($1, $2, $3, $3 + make_interval(months => $4), $5, $3, $3)
        ON CONFLICT (user_id) DO UPDATE SET
            end_date = GREATEST(COALESCE(subscriptions.end_date, EXCLUDED.started_at), EXCLUDED.started_at) + make_interval(months => $4),
            auto_renew = EXCLUDED.auto_renew,
            updated_at = EXCLUDED.updated_at
        RETURNING` + subscriptionColumns
	s, err := scanSubscription(r.db.QueryRow(ctx, query, id, userID, now, months, autoRenew))
	if err != nil {
		return nil, fmt.Errorf("failed to grant subscription: %w", err)
	}
	return s, nil
}

// SetAutoRenew toggles the renewal preference.
func (r *Postgres) SetAutoRenew(ctx context.Context, userID string, autoRenew bool) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE subscriptions SET auto_renew = $2, updated_at = NOW() WHERE user_id::text = $1
    `, domain.NormalizeID(userID), autoRenew)
	if err != nil {
		return fmt.Errorf("failed to set auto renew: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
