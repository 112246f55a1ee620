/**
 * @description
 * Push subscription queries. The endpoint is the natural key: re-subscribing
 * from the same browser updates the keys in place, and pruning dead endpoints
 * is one statement over the collected endpoint list.
 */
package store

import (
	"context"
	"fmt"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// UpsertPushSubscription stores a browser subscription, updating the keys and
// owner when the endpoint is already known.
func (r *Postgres) UpsertPushSubscription(ctx context.Context, s *domain.PushSubscription) error {
	query := `
        INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh, auth, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (endpoint) DO UPDATE SET
            user_id = EXCLUDED.user_id,
            p256dh = EXCLUDED.p256dh,
            auth = EXCLUDED.auth
    `
	if _, err := r.db.Exec(ctx, query, s.ID, s.UserID, s.Endpoint, s.P256dh, s.Auth); err != nil {
		return fmt.Errorf("failed to upsert push subscription: %w", err)
	}
	return nil
}

// DeletePushSubscription removes the caller's subscription for one endpoint.
func (r *Postgres) DeletePushSubscription(ctx context.Context, userID, endpoint string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE user_id::text = $1 AND endpoint = $2`,
		domain.NormalizeID(userID), endpoint); err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

// ListPushSubscriptionsByUser returns all of one user's subscriptions.
func (r *Postgres) ListPushSubscriptionsByUser(ctx context.Context, userID string) ([]domain.PushSubscription, error) {
	query := `
        SELECT id, user_id, endpoint, p256dh, auth, created_at
        FROM push_subscriptions
        WHERE user_id::text = $1
    `
	return r.queryPushSubscriptions(ctx, query, domain.NormalizeID(userID))
}

// ListAdminPushSubscriptions returns subscriptions of all admin accounts.
func (r *Postgres) ListAdminPushSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	query := `
        SELECT ps.id, ps.user_id, ps.endpoint, ps.p256dh, ps.auth, ps.created_at
        FROM push_subscriptions ps
        JOIN users u ON u.id = ps.user_id
        WHERE u.role = 'admin'
    `
	return r.queryPushSubscriptions(ctx, query)
}

// ListActivePushSubscriptions returns subscriptions of all active accounts.
func (r *Postgres) ListActivePushSubscriptions(ctx context.Context) ([]domain.PushSubscription, error) {
	query := `
        SELECT ps.id, ps.user_id, ps.endpoint, ps.p256dh, ps.auth, ps.created_at
        FROM push_subscriptions ps
        JOIN users u ON u.id = ps.user_id
        WHERE u.status = 'active'
    `
	return r.queryPushSubscriptions(ctx, query)
}

// DeletePushSubscriptionsByEndpoint prunes dead endpoints in one statement.
func (r *Postgres) DeletePushSubscriptionsByEndpoint(ctx context.Context, endpoints []string) (int64, error) {
	if len(endpoints) == 0 {
		return 0, nil
	}
	tag, err := r.db.Exec(ctx,
		`DELETE FROM push_subscriptions WHERE endpoint = ANY($1)`, endpoints)
	if err != nil {
		return 0, fmt.Errorf("failed to prune push subscriptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *Postgres) queryPushSubscriptions(ctx context.Context, query string, args ...any) ([]domain.PushSubscription, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.PushSubscription
	for rows.Next() {
		var s domain.PushSubscription
		if err := rows.Scan(&s.ID, &s.UserID, &s.Endpoint, &s.P256dh, &s.Auth, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
