/**
 * @description
 * Catalog queries: shop products, cities, event types, upload metadata and
 * the aggregated admin dashboard counters.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// CreateProduct inserts a shop product.
func (r *Postgres) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `
        INSERT INTO products (id, name, description, price_cents, currency, stock, active, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
    `
	_, err := r.db.Exec(ctx, query,
		p.ID, p.Name, p.Description, p.PriceCents, p.Currency, p.Stock, p.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// UpdateProduct edits a product's listing fields.
func (r *Postgres) UpdateProduct(ctx context.Context, p *domain.Product) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE products
        SET name = $2, description = $3, price_cents = $4, currency = $5, stock = $6, active = $7, updated_at = NOW()
        WHERE id = $1
    `, p.ID, p.Name, p.Description, p.PriceCents, p.Currency, p.Stock, p.Active)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// DeleteProduct removes a product.
func (r *Postgres) DeleteProduct(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

// GetProduct loads one product.
func (r *Postgres) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRow(ctx, `
        SELECT id, name, description, price_cents, currency, stock, active, created_at, updated_at
        FROM products
        WHERE id = $1
    `, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.PriceCents,
		&p.Currency,
		&p.Stock,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ListProducts returns products, optionally only active listings.
func (r *Postgres) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `
        SELECT id, name, description, price_cents, currency, stock, active, created_at, updated_at
        FROM products
        WHERE $1 = FALSE OR active = TRUE
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var p domain.Product
		err := rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.PriceCents,
			&p.Currency,
			&p.Stock,
			&p.Active,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateCity inserts a city; duplicate names map to ErrDuplicateName.
func (r *Postgres) CreateCity(ctx context.Context, c *domain.City) error {
	query := `
        INSERT INTO cities (id, name, created_at)
        VALUES ($1, $2, NOW())
    `
	if _, err := r.db.Exec(ctx, query, c.ID, c.Name); err != nil {
		if uniqueViolation(err, "cities_name_key") {
			return ErrDuplicateName
		}
		return fmt.Errorf("failed to create city: %w", err)
	}
	return nil
}

// ListCities returns all cities ordered by name.
func (r *Postgres) ListCities(ctx context.Context) ([]domain.City, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM cities ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	defer rows.Close()

	var out []domain.City
	for rows.Next() {
		var c domain.City
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan city row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteCity removes a city.
func (r *Postgres) DeleteCity(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM cities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete city: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCityNotFound
	}
	return nil
}

// CreateEventType inserts an event type; duplicate names map to
// ErrDuplicateName.
func (r *Postgres) CreateEventType(ctx context.Context, t *domain.EventType) error {
	query := `
        INSERT INTO event_types (id, name, description, created_at)
        VALUES ($1, $2, $3, NOW())
    `
	if _, err := r.db.Exec(ctx, query, t.ID, t.Name, t.Description); err != nil {
		if uniqueViolation(err, "event_types_name_key") {
			return ErrDuplicateName
		}
		return fmt.Errorf("failed to create event type: %w", err)
	}
	return nil
}

// ListEventTypes returns all event types ordered by name.
func (r *Postgres) ListEventTypes(ctx context.Context) ([]domain.EventType, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, description, created_at FROM event_types ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list event types: %w", err)
	}
	defer rows.Close()

	var out []domain.EventType
	for rows.Next() {
		var t domain.EventType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event type row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteEventType removes an event type.
func (r *Postgres) DeleteEventType(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM event_types WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event type: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEventTypeNotFound
	}
	return nil
}

// CreateUpload records metadata for a stored file.
func (r *Postgres) CreateUpload(ctx context.Context, u *domain.Upload) error {
	query := `
        INSERT INTO uploads (id, user_id, file_name, stored_name, content_type, size_bytes, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())
    `
	_, err := r.db.Exec(ctx, query,
		u.ID, u.UserID, u.FileName, u.StoredName, u.ContentType, u.SizeBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to create upload: %w", err)
	}
	return nil
}

// GetUpload loads upload metadata.
func (r *Postgres) GetUpload(ctx context.Context, id string) (*domain.Upload, error) {
	var u domain.Upload
	err := r.db.QueryRow(ctx, `
        SELECT id, user_id, file_name, stored_name, content_type, size_bytes, created_at
        FROM uploads
        WHERE id = $1
    `, id).Scan(&u.ID, &u.UserID, &u.FileName, &u.StoredName, &u.ContentType, &u.SizeBytes, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUploadNotFound
		}
		return nil, fmt.Errorf("failed to get upload: %w", err)
	}
	return &u, nil
}

// DeleteUpload removes upload metadata; the caller deletes the file itself.
func (r *Postgres) DeleteUpload(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete upload: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUploadNotFound
	}
	return nil
}

// GetAdminStats aggregates the dashboard counters in a single round trip.
func (r *Postgres) GetAdminStats(ctx context.Context) (*domain.AdminStats, error) {
	query := `
        SELECT
            (SELECT COUNT(*) FROM users),
            (SELECT COUNT(*) FROM users WHERE status = 'pending'),
            (SELECT COUNT(*) FROM events WHERE start_date >= NOW()),
            (SELECT COUNT(*) FROM registrations WHERE status IN ('pending', 'manual_payment_required', 'manual_payment_verification', 'confirmed')),
            (SELECT COUNT(*) FROM registration_refund_tasks WHERE reviewed_at IS NULL),
            (SELECT COALESCE(SUM(amount_cents), 0) FROM donations WHERE status = 'completed'),
            (SELECT COUNT(*) FROM push_subscriptions),
            (SELECT COUNT(*) FROM payments WHERE status = 'completed')
    `
	var s domain.AdminStats
	err := r.db.QueryRow(ctx, query).Scan(
		&s.UsersTotal,
		&s.UsersPending,
		&s.EventsUpcoming,
		&s.RegistrationsActive,
		&s.RefundTasksOpen,
		&s.DonationsCents,
		&s.PushSubscriptions,
		&s.PaymentsCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get admin stats: %w", err)
	}
	return &s, nil
}
