/**
 * @description
 * User queries. Lookups by identifier cast the column with ::text so the same
 * query is correct against legacy integer identifiers and UUID strings; the
 * caller passes a value already passed through domain.NormalizeID.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// CreateUser inserts a new account. Returns ErrEmailTaken when the email is
// already registered.
func (r *Postgres) CreateUser(ctx context.Context, u *domain.User) error {
	query := `
        INSERT INTO users (id, email, password_hash, first_name, last_name, role, status, city_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
    `
	_, err := r.db.Exec(ctx, query,
		u.ID,
		u.Email,
		u.PasswordHash,
		u.FirstName,
		u.LastName,
		u.Role,
		u.Status,
		u.CityID,
	)
	if err != nil {
		if uniqueViolation(err, "users_email_key") {
			return ErrEmailTaken
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail loads an account by its unique email.
func (r *Postgres) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var u domain.User
	query := `
        SELECT id, email, password_hash, first_name, last_name, role, status, city_id, created_at, updated_at
        FROM users
        WHERE email = $1
    `
	err := r.db.QueryRow(ctx, query, email).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.Status,
		&u.CityID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return &u, nil
}

// GetUserByID loads an account by identifier.
func (r *Postgres) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	query := `
        SELECT id, email, password_hash, first_name, last_name, role, status, city_id, created_at, updated_at
        FROM users
        WHERE id::text = $1
    `
	err := r.db.QueryRow(ctx, query, domain.NormalizeID(id)).Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.Role,
		&u.Status,
		&u.CityID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return &u, nil
}

// UpdateUserPassword replaces the stored hash.
func (r *Postgres) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id::text = $1`,
		domain.NormalizeID(id), passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateUserProfile updates the editable profile fields.
func (r *Postgres) UpdateUserProfile(ctx context.Context, id, firstName, lastName string, cityID *string) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE users
        SET first_name = $2, last_name = $3, city_id = $4, updated_at = NOW()
        WHERE id::text = $1
    `, domain.NormalizeID(id), firstName, lastName, cityID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// ListUsers returns all accounts, newest first.
func (r *Postgres) ListUsers(ctx context.Context) ([]domain.User, error) {
	query := `
        SELECT id, email, password_hash, first_name, last_name, role, status, city_id, created_at, updated_at
        FROM users
        ORDER BY created_at DESC
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(
			&u.ID,
			&u.Email,
			&u.PasswordHash,
			&u.FirstName,
			&u.LastName,
			&u.Role,
			&u.Status,
			&u.CityID,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetUserStatus updates the account lifecycle state.
func (r *Postgres) SetUserStatus(ctx context.Context, id string, status domain.UserStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET status = $2, updated_at = NOW() WHERE id::text = $1`,
		domain.NormalizeID(id), status)
	if err != nil {
		return fmt.Errorf("failed to set user status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetUserRole updates the account role.
func (r *Postgres) SetUserRole(ctx context.Context, id string, role domain.Role) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id::text = $1`,
		domain.NormalizeID(id), role)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
