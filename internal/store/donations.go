/**
 * @description
 * Donation queries. The transfer reference is globally unique so incoming
 * bank transfers reconcile to exactly one donation.
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

const donationColumns = `
        id, user_id, donor_name, amount_cents, currency, transfer_reference,
        message, status, payment_id, paid_at, created_at`

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var d domain.Donation
	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.DonorName,
		&d.AmountCents,
		&d.Currency,
		&d.TransferReference,
		&d.Message,
		&d.Status,
		&d.PaymentID,
		&d.PaidAt,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// CreateDonation inserts a pending donation. Returns ErrDuplicateReference
// when the generated transfer reference collides.
func (r *Postgres) CreateDonation(ctx context.Context, d *domain.Donation) error {
	query := `
        INSERT INTO donations (id, user_id, donor_name, amount_cents, currency, transfer_reference,
                               message, status, payment_id, paid_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
    `
	_, err := r.db.Exec(ctx, query,
		d.ID,
		d.UserID,
		d.DonorName,
		d.AmountCents,
		d.Currency,
		d.TransferReference,
		d.Message,
		d.Status,
		d.PaymentID,
		d.PaidAt,
	)
	if err != nil {
		if uniqueViolation(err, "donations_transfer_reference_key") {
			return ErrDuplicateReference
		}
		return fmt.Errorf("failed to create donation: %w", err)
	}
	return nil
}

// GetDonation loads one donation.
func (r *Postgres) GetDonation(ctx context.Context, id string) (*domain.Donation, error) {
	d, err := scanDonation(r.db.QueryRow(ctx,
		`SELECT`+donationColumns+` FROM donations WHERE id::text = $1`, domain.NormalizeID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDonationNotFound
		}
		return nil, fmt.Errorf("failed to get donation: %w", err)
	}
	return d, nil
}

// ListRecentDonations returns the latest completed donations.
func (r *Postgres) ListRecentDonations(ctx context.Context, limit int) ([]domain.Donation, error) {
	query := `SELECT` + donationColumns + `
        FROM donations
        WHERE status = 'completed'
        ORDER BY paid_at DESC NULLS LAST
        LIMIT $1
    `
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent donations: %w", err)
	}
	defer rows.Close()

	var out []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation row: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// ListDonations returns all donations, newest first (admin view).
func (r *Postgres) ListDonations(ctx context.Context) ([]domain.Donation, error) {
	rows, err := r.db.Query(ctx, `SELECT`+donationColumns+` FROM donations ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list donations: %w", err)
	}
	defer rows.Close()

	var out []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan donation row: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// LinkDonationPayment attaches the gateway payment backing the donation.
func (r *Postgres) LinkDonationPayment(ctx context.Context, donationID, paymentID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE donations SET payment_id = $2 WHERE id = $1`, donationID, paymentID)
	if err != nil {
		return fmt.Errorf("failed to link donation payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDonationNotFound
	}
	return nil
}

// CompleteDonation marks a pending donation as paid. False means it already
// completed (or was cancelled), which replayed webhooks hit harmlessly.
func (r *Postgres) CompleteDonation(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE donations
        SET status = 'completed', paid_at = $2
        WHERE id = $1 AND status = 'pending'
    `, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to complete donation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
