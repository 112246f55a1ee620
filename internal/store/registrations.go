/**
 * @description
 * Registration queries: the atomic admission, cancellation/promotion and
 * manual-payment transitions at the heart of the platform, plus the refund
 * task bookkeeping.
 *
 * Admission and cancellation are multi-statement transactions guarded by the
 * event version column: the transaction reads the version, makes its writes,
 * and finishes with `UPDATE events SET version = version + 1 WHERE id = $1
 * AND version = $2`. Zero rows affected means a concurrent capacity writer
 * committed in between; the whole transaction rolls back with
 * ErrVersionConflict and the service retries against fresh state. No row is
 * ever locked with FOR UPDATE on this path.
 *
 * @notes
 * - Slot accounting counts the statuses in domain.RegistrationStatus.HoldsSlot;
 *   waitlisted rows never bump the version because they take no slot.
 * - The refund task insert uses ON CONFLICT (registration_id) DO NOTHING, so
 *   at most one task can ever exist per registration.
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

const registrationColumns = `
        id, user_id, event_id, occurrence_date, status, payment_id,
        manual_payment_due_at, manual_payment_confirmed_at,
        waitlist_notified, waitlist_notified_at, promoted_from_waitlist_at,
        created_at, updated_at`

func scanRegistration(row pgx.Row) (*domain.Registration, error) {
	var reg domain.Registration
	err := row.Scan(
		&reg.ID,
		&reg.UserID,
		&reg.EventID,
		&reg.OccurrenceDate,
		&reg.Status,
		&reg.PaymentID,
		&reg.ManualPaymentDueAt,
		&reg.ManualPaymentConfirmedAt,
		&reg.WaitlistNotified,
		&reg.WaitlistNotifiedAt,
		&reg.PromotedFromWaitlistAt,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// occurrenceStartAt combines an occurrence date with the event's start time
// of day, yielding the instant that occurrence begins.
func occurrenceStartAt(occurrence, eventStart time.Time) time.Time {
	return time.Date(
		occurrence.Year(), occurrence.Month(), occurrence.Day(),
		eventStart.Hour(), eventStart.Minute(), eventStart.Second(), 0,
		eventStart.Location(),
	)
}

// AdmitRegistrationParams carries one admission attempt. Requested is the
// status the caller wants if a slot is free (pending, manual_payment_required
// or confirmed for free events); the store downgrades to waitlist when
// capacity is exhausted.
type AdmitRegistrationParams struct {
	ID             string
	EventID        string
	UserID         string
	OccurrenceDate time.Time
	Requested      domain.RegistrationStatus
	ManualDueAt    *time.Time
	Now            time.Time
}

// AdmitRegistration inserts a registration under the optimistic capacity
// check. Returns ErrVersionConflict when a concurrent capacity writer won,
// ErrDuplicateRegistration when the (user, event, occurrence) row exists and
// ErrEventNotFound when the event is gone.
func (r *Postgres) AdmitRegistration(ctx context.Context, p AdmitRegistrationParams) (*domain.Registration, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Read the event's capacity state. No FOR UPDATE: the version column
	//    detects concurrent writers at commit time instead.
	var version int
	var maxParticipants *int
	err = tx.QueryRow(ctx,
		`SELECT version, max_participants FROM events WHERE id = $1`, p.EventID,
	).Scan(&version, &maxParticipants)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to read event capacity state: %w", err)
	}

	// 2. Count the registrations currently holding a slot for this occurrence.
	var held int
	err = tx.QueryRow(ctx, `
        SELECT COUNT(*)
        FROM registrations
        WHERE event_id = $1 AND occurrence_date = $2
          AND status IN ('pending', 'confirmed', 'manual_payment_required', 'manual_payment_verification')
    `, p.EventID, p.OccurrenceDate).Scan(&held)
	if err != nil {
		return nil, fmt.Errorf("failed to count held slots: %w", err)
	}

	// 3. Decide the admission outcome.
	status := p.Requested
	dueAt := p.ManualDueAt
	if maxParticipants != nil && held >= *maxParticipants {
		status = domain.RegistrationWaitlist
		dueAt = nil
	}

	// 4. Insert the registration row.
	insertQuery := `
        INSERT INTO registrations (id, user_id, event_id, occurrence_date, status, manual_payment_due_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        RETURNING` + registrationColumns
	reg, err := scanRegistration(tx.QueryRow(ctx, insertQuery,
		p.ID, p.UserID, p.EventID, p.OccurrenceDate, status, dueAt, p.Now))
	if err != nil {
		if uniqueViolation(err, "registrations_user_event_occurrence_key") {
			return nil, ErrDuplicateRegistration
		}
		return nil, fmt.Errorf("failed to insert registration: %w", err)
	}

	// 5. Capacity-relevant write: bump the event version, detecting races.
	//    Waitlist rows hold no slot and skip the bump.
	if status.HoldsSlot() {
		tag, err := tx.Exec(ctx,
			`UPDATE events SET version = version + 1, updated_at = NOW() WHERE id = $1 AND version = $2`,
			p.EventID, version)
		if err != nil {
			return nil, fmt.Errorf("failed to bump event version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrVersionConflict
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit registration: %w", err)
	}
	return reg, nil
}

// CancelRegistrationParams carries one cancellation. RefundTaskID is the
// pre-generated id used if a refund task gets created.
type CancelRegistrationParams struct {
	RegistrationID string
	Now            time.Time
	RequestRefund  bool
	RefundTaskID   string
}

// CancelRegistrationOutcome reports what the transaction did. Promoted and
// RefundTask are nil when no waitlisted row was promoted / no task was
// created in this call.
type CancelRegistrationOutcome struct {
	Cancelled  *domain.Registration
	Promoted   *domain.Registration
	RefundTask *domain.RefundTask
}

// CancelRegistration cancels a registration and, when it held a slot,
// promotes the earliest-created waitlisted registration for the same
// occurrence in the same transaction. When requested and a completed payment
// is linked, it also records the refund-review task (at most once per
// registration). Everything commits atomically or not at all.
func (r *Postgres) CancelRegistration(ctx context.Context, p CancelRegistrationParams) (*CancelRegistrationOutcome, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Load the registration and its event.
	reg, err := scanRegistration(tx.QueryRow(ctx,
		`SELECT`+registrationColumns+` FROM registrations WHERE id = $1`, p.RegistrationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to load registration: %w", err)
	}
	if !reg.Status.Cancellable() {
		return nil, ErrRegistrationNotCancellable
	}

	var (
		version            int
		allowManualPayment bool
		dueHours           int
		cutoffHours        int
		startDate          time.Time
	)
	err = tx.QueryRow(ctx, `
        SELECT version, allow_manual_payment, manual_payment_due_hours, cancel_cutoff_hours, start_date
        FROM events
        WHERE id = $1
    `, reg.EventID).Scan(&version, &allowManualPayment, &dueHours, &cutoffHours, &startDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to load event for cancellation: %w", err)
	}

	// 2. Cancel. The status guard in the WHERE clause closes the race with a
	//    concurrent cancel of the same row.
	cancelled, err := scanRegistration(tx.QueryRow(ctx, `
        UPDATE registrations
        SET status = 'cancelled', updated_at = $2
        WHERE id = $1 AND status NOT IN ('cancelled', 'refunded')
        RETURNING`+registrationColumns, p.RegistrationID, p.Now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotCancellable
		}
		return nil, fmt.Errorf("failed to cancel registration: %w", err)
	}

	outcome := &CancelRegistrationOutcome{Cancelled: cancelled}

	// 3. A freed slot promotes the earliest waitlisted registration (FIFO by
	//    created_at) for the same occurrence.
	if reg.Status.HoldsSlot() {
		var promoteID string
		err = tx.QueryRow(ctx, `
            SELECT id
            FROM registrations
            WHERE event_id = $1 AND occurrence_date = $2 AND status = 'waitlist'
            ORDER BY created_at ASC
            LIMIT 1
        `, reg.EventID, reg.OccurrenceDate).Scan(&promoteID)
		switch {
		case err == nil:
			target := domain.RegistrationPending
			var dueAt *time.Time
			if allowManualPayment {
				target = domain.RegistrationManualPaymentRequired
				d := p.Now.Add(time.Duration(dueHours) * time.Hour)
				dueAt = &d
			}
			promoted, perr := scanRegistration(tx.QueryRow(ctx, `
                UPDATE registrations
                SET status = $2, manual_payment_due_at = $3, promoted_from_waitlist_at = $4,
                    waitlist_notified = TRUE, waitlist_notified_at = $4, updated_at = $4
                WHERE id = $1
                RETURNING`+registrationColumns, promoteID, target, dueAt, p.Now))
			if perr != nil {
				return nil, fmt.Errorf("failed to promote waitlisted registration: %w", perr)
			}
			outcome.Promoted = promoted
		case errors.Is(err, pgx.ErrNoRows):
			// Nobody waiting; the slot simply frees up.
		default:
			return nil, fmt.Errorf("failed to find waitlisted registration: %w", err)
		}

		// 4. Capacity changed either way: bump the version under the
		//    optimistic check.
		tag, err := tx.Exec(ctx,
			`UPDATE events SET version = version + 1, updated_at = NOW() WHERE id = $1 AND version = $2`,
			reg.EventID, version)
		if err != nil {
			return nil, fmt.Errorf("failed to bump event version: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, ErrVersionConflict
		}
	}

	// 5. Refund task, only when requested and the registration was paid
	//    through a completed payment.
	if p.RequestRefund && reg.PaymentID != nil {
		var payStatus string
		var amount int64
		var currency string
		err = tx.QueryRow(ctx,
			`SELECT status, amount_cents, currency FROM payments WHERE id::text = $1`,
			domain.NormalizeID(*reg.PaymentID),
		).Scan(&payStatus, &amount, &currency)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to load payment for refund task: %w", err)
		}
		if err == nil && domain.PaymentStatus(payStatus) == domain.PaymentCompleted {
			eligible := p.Now.Before(occurrenceStartAt(reg.OccurrenceDate, startDate).Add(-time.Duration(cutoffHours) * time.Hour))
			tag, err := tx.Exec(ctx, `
                INSERT INTO registration_refund_tasks
                    (id, registration_id, user_id, event_id, payment_id, amount_cents, currency,
                     refund_eligible, recommended_should_refund, created_at, updated_at)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $9)
                ON CONFLICT (registration_id) DO NOTHING
            `, p.RefundTaskID, reg.ID, reg.UserID, reg.EventID, reg.PaymentID, amount, currency, eligible, p.Now)
			if err != nil {
				return nil, fmt.Errorf("failed to create refund task: %w", err)
			}
			if tag.RowsAffected() > 0 {
				task, terr := r.getRefundTaskTx(ctx, tx, p.RefundTaskID)
				if terr != nil {
					return nil, terr
				}
				outcome.RefundTask = task
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return outcome, nil
}

// MarkManualPaymentConfirmed moves MANUAL_PAYMENT_REQUIRED into
// MANUAL_PAYMENT_VERIFICATION. The status guard makes the transition atomic;
// ErrInvalidTransition reports a row in any other state.
func (r *Postgres) MarkManualPaymentConfirmed(ctx context.Context, registrationID string, now time.Time) (*domain.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx, `
        UPDATE registrations
        SET status = 'manual_payment_verification', manual_payment_confirmed_at = $2, updated_at = $2
        WHERE id = $1 AND status = 'manual_payment_required'
        RETURNING`+registrationColumns, registrationID, now))
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to confirm manual payment: %w", err)
	}
	if _, gerr := r.GetRegistration(ctx, registrationID); gerr != nil {
		return nil, gerr
	}
	return nil, ErrInvalidTransition
}

// FinalizeManualPayment resolves a MANUAL_PAYMENT_VERIFICATION registration:
// approve confirms it, reject sends it back to MANUAL_PAYMENT_REQUIRED with a
// fresh deadline.
func (r *Postgres) FinalizeManualPayment(ctx context.Context, registrationID string, approve bool, newDueAt *time.Time, now time.Time) (*domain.Registration, error) {
	var (
		reg *domain.Registration
		err error
	)
	if approve {
		reg, err = scanRegistration(r.db.QueryRow(ctx, `
            UPDATE registrations
            SET status = 'confirmed', updated_at = $2
            WHERE id = $1 AND status = 'manual_payment_verification'
            RETURNING`+registrationColumns, registrationID, now))
	} else {
		reg, err = scanRegistration(r.db.QueryRow(ctx, `
            UPDATE registrations
            SET status = 'manual_payment_required', manual_payment_due_at = $3,
                manual_payment_confirmed_at = NULL, updated_at = $2
            WHERE id = $1 AND status = 'manual_payment_verification'
            RETURNING`+registrationColumns, registrationID, now, newDueAt))
	}
	if err == nil {
		return reg, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to finalize manual payment: %w", err)
	}
	if _, gerr := r.GetRegistration(ctx, registrationID); gerr != nil {
		return nil, gerr
	}
	return nil, ErrInvalidTransition
}

// LinkRegistrationPayment attaches a payment to a registration at checkout.
func (r *Postgres) LinkRegistrationPayment(ctx context.Context, registrationID, paymentID string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE registrations SET payment_id = $2, updated_at = NOW() WHERE id = $1`,
		registrationID, paymentID)
	if err != nil {
		return fmt.Errorf("failed to link payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRegistrationNotFound
	}
	return nil
}

// ConfirmPaidRegistration moves a PENDING registration to CONFIRMED after its
// payment completed. Reports false without error when the registration is not
// pending anymore, which is what makes webhook replays harmless.
func (r *Postgres) ConfirmPaidRegistration(ctx context.Context, registrationID string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE registrations
        SET status = 'confirmed', updated_at = $2
        WHERE id = $1 AND status = 'pending'
    `, registrationID, now)
	if err != nil {
		return false, fmt.Errorf("failed to confirm paid registration: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRegistrationRefunded completes the cancelled -> refunded transition.
func (r *Postgres) MarkRegistrationRefunded(ctx context.Context, registrationID string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE registrations
        SET status = 'refunded', updated_at = $2
        WHERE id = $1 AND status = 'cancelled'
    `, registrationID, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark registration refunded: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetRegistration loads one registration.
func (r *Postgres) GetRegistration(ctx context.Context, id string) (*domain.Registration, error) {
	reg, err := scanRegistration(r.db.QueryRow(ctx,
		`SELECT`+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

// ListUserRegistrations returns the caller's registrations joined with event
// basics, newest first.
func (r *Postgres) ListUserRegistrations(ctx context.Context, userID string) ([]domain.RegistrationWithEvent, error) {
	query := `
        SELECT r.id, r.user_id, r.event_id, r.occurrence_date, r.status, r.payment_id,
               r.manual_payment_due_at, r.manual_payment_confirmed_at,
               r.waitlist_notified, r.waitlist_notified_at, r.promoted_from_waitlist_at,
               r.created_at, r.updated_at,
               e.title, e.start_date, e.location
        FROM registrations r
        JOIN events e ON e.id = r.event_id
        WHERE r.user_id::text = $1
        ORDER BY r.created_at DESC
    `
	rows, err := r.db.Query(ctx, query, domain.NormalizeID(userID))
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	var out []domain.RegistrationWithEvent
	for rows.Next() {
		var rw domain.RegistrationWithEvent
		if err := rows.Scan(
			&rw.ID,
			&rw.UserID,
			&rw.EventID,
			&rw.OccurrenceDate,
			&rw.Status,
			&rw.PaymentID,
			&rw.ManualPaymentDueAt,
			&rw.ManualPaymentConfirmedAt,
			&rw.WaitlistNotified,
			&rw.WaitlistNotifiedAt,
			&rw.PromotedFromWaitlistAt,
			&rw.CreatedAt,
			&rw.UpdatedAt,
			&rw.EventTitle,
			&rw.EventStartDate,
			&rw.EventLocation,
		); err != nil {
			return nil, fmt.Errorf("failed to scan registration row: %w", err)
		}
		out = append(out, rw)
	}
	return out, rows.Err()
}

const refundTaskColumns = `
        id, registration_id, user_id, event_id, payment_id, amount_cents, currency,
        refund_eligible, recommended_should_refund, should_refund, refund_issued,
        reviewed_by, review_notes, reviewed_at, refunded_at, created_at, updated_at`

func scanRefundTask(row pgx.Row) (*domain.RefundTask, error) {
	var t domain.RefundTask
	err := row.Scan(
		&t.ID,
		&t.RegistrationID,
		&t.UserID,
		&t.EventID,
		&t.PaymentID,
		&t.AmountCents,
		&t.Currency,
		&t.RefundEligible,
		&t.RecommendedShouldRefund,
		&t.ShouldRefund,
		&t.RefundIssued,
		&t.ReviewedBy,
		&t.ReviewNotes,
		&t.ReviewedAt,
		&t.RefundedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Postgres) getRefundTaskTx(ctx context.Context, tx pgx.Tx, id string) (*domain.RefundTask, error) {
	task, err := scanRefundTask(tx.QueryRow(ctx,
		`SELECT`+refundTaskColumns+` FROM registration_refund_tasks WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to load refund task: %w", err)
	}
	return task, nil
}

// GetRefundTask loads one refund task.
func (r *Postgres) GetRefundTask(ctx context.Context, id string) (*domain.RefundTask, error) {
	task, err := scanRefundTask(r.db.QueryRow(ctx,
		`SELECT`+refundTaskColumns+` FROM registration_refund_tasks WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefundTaskNotFound
		}
		return nil, fmt.Errorf("failed to get refund task: %w", err)
	}
	return task, nil
}

// ListRefundTasks returns refund tasks, oldest first; openOnly restricts to
// tasks awaiting review.
func (r *Postgres) ListRefundTasks(ctx context.Context, openOnly bool) ([]domain.RefundTask, error) {
	query := `SELECT` + refundTaskColumns + `
        FROM registration_refund_tasks
        WHERE $1 = FALSE OR reviewed_at IS NULL
        ORDER BY created_at ASC
    `
	rows, err := r.db.Query(ctx, query, openOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list refund tasks: %w", err)
	}
	defer rows.Close()

	var out []domain.RefundTask
	for rows.Next() {
		t, err := scanRefundTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund task row: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ReviewRefundTask records the admin decision. The decision is independent of
// the computed eligibility and may be changed until the refund is issued.
func (r *Postgres) ReviewRefundTask(ctx context.Context, id, reviewerID string, shouldRefund bool, notes string, now time.Time) (*domain.RefundTask, error) {
	task, err := scanRefundTask(r.db.QueryRow(ctx, `
        UPDATE registration_refund_tasks
        SET should_refund = $2, reviewed_by = $3, review_notes = $4, reviewed_at = $5, updated_at = $5
        WHERE id = $1 AND refund_issued = FALSE
        RETURNING`+refundTaskColumns, id, shouldRefund, reviewerID, notes, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRefundTaskNotFound
		}
		return nil, fmt.Errorf("failed to review refund task: %w", err)
	}
	return task, nil
}

// MarkRefundIssued flags the payout as done; only approved, unpaid tasks
// match, so double execution is a no-op reported as false.
func (r *Postgres) MarkRefundIssued(ctx context.Context, id string, now time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
        UPDATE registration_refund_tasks
        SET refund_issued = TRUE, refunded_at = $2, updated_at = $2
        WHERE id = $1 AND should_refund = TRUE AND refund_issued = FALSE
    `, id, now)
	if err != nil {
		return false, fmt.Errorf("failed to mark refund issued: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ReopenRefundTask reverses MarkRefundIssued after a failed gateway refund,
// returning the task to the executable state.
func (r *Postgres) ReopenRefundTask(ctx context.Context, id string, now time.Time) error {
	_, err := r.db.Exec(ctx, `
        UPDATE registration_refund_tasks
        SET refund_issued = FALSE, refunded_at = NULL, updated_at = $2
        WHERE id = $1 AND refund_issued = TRUE
    `, id, now)
	if err != nil {
		return fmt.Errorf("failed to reopen refund task: %w", err)
	}
	return nil
}
