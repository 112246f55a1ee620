/**
 * @description
 * Payment queries. Status transitions are conditional updates: the WHERE
 * clause names the statuses the transition may leave from, and a zero-row
 * result tells the service the payment already moved on (the replayed-webhook
 * case) rather than failing the request.
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

const paymentColumns = `
        id, user_id, registration_id, donation_id, gateway, gateway_payment_id,
        amount_cents, currency, status, description, gateway_payload, created_at, updated_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.RegistrationID,
		&p.DonationID,
		&p.Gateway,
		&p.GatewayPaymentID,
		&p.AmountCents,
		&p.Currency,
		&p.Status,
		&p.Description,
		&p.GatewayPayload,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePayment inserts the PENDING payment row that precedes every gateway
// call.
func (r *Postgres) CreatePayment(ctx context.Context, p *domain.Payment) error {
	query := `
        INSERT INTO payments (id, user_id, registration_id, donation_id, gateway, gateway_payment_id,
                              amount_cents, currency, status, description, gateway_payload, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
    `
	_, err := r.db.Exec(ctx, query,
		p.ID,
		p.UserID,
		p.RegistrationID,
		p.DonationID,
		p.Gateway,
		p.GatewayPaymentID,
		p.AmountCents,
		p.Currency,
		p.Status,
		p.Description,
		p.GatewayPayload,
	)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPayment loads one payment.
func (r *Postgres) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT`+paymentColumns+` FROM payments WHERE id::text = $1`, domain.NormalizeID(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return p, nil
}

// GetPaymentByGatewayID loads a payment by the provider's identifier, the key
// webhooks arrive with.
func (r *Postgres) GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT`+paymentColumns+` FROM payments WHERE gateway_payment_id = $1`, gatewayPaymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment by gateway id: %w", err)
	}
	return p, nil
}

// GetCompletedPaymentByRegistration finds the completed payment backing a
// registration, the one a refund would reverse.
func (r *Postgres) GetCompletedPaymentByRegistration(ctx context.Context, registrationID string) (*domain.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx, `
        SELECT`+paymentColumns+`
        FROM payments
        WHERE registration_id::text = $1 AND status = 'completed'
        ORDER BY created_at DESC
        LIMIT 1
    `, domain.NormalizeID(registrationID)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to get payment for registration: %w", err)
	}
	return p, nil
}

// AttachGatewayRef stores the provider's payment id and payload after the
// create call and moves the row into PROCESSING.
func (r *Postgres) AttachGatewayRef(ctx context.Context, id, gatewayPaymentID string, payload []byte) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE payments
        SET gateway_payment_id = $2, status = 'processing', gateway_payload = $3, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `, id, gatewayPaymentID, payload)
	if err != nil {
		return fmt.Errorf("failed to attach gateway reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

// TransitionPayment updates the status when the current status is one of
// allowedFrom, storing the triggering payload for audit. Returns false when
// no transition happened (already in a final state).
func (r *Postgres) TransitionPayment(ctx context.Context, id string, allowedFrom []domain.PaymentStatus, to domain.PaymentStatus, payload []byte, now time.Time) (bool, error) {
	from := make([]string, len(allowedFrom))
	for i, s := range allowedFrom {
		from[i] = string(s)
	}
	query := `
        UPDATE payments
        SET status = $2, gateway_payload = COALESCE($3, gateway_payload), updated_at = $4
        WHERE id = $1 AND status = ANY($5)
    `
	tag, err := r.db.Exec(ctx, query, id, to, payload, now, from)
	if err != nil {
		return false, fmt.Errorf("failed to transition payment: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AwardLoyaltyPoints adds points to the user's subscription. Accounts without
// a subscription row accumulate nothing; that is reported as false, not an
// error.
func (r *Postgres) AwardLoyaltyPoints(ctx context.Context, userID string, points int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE subscriptions
        SET loyalty_points = loyalty_points + $2, updated_at = NOW()
        WHERE user_id::text = $1
    `, domain.NormalizeID(userID), points)
	if err != nil {
		return false, fmt.Errorf("failed to award loyalty points: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
