/**
 * @description
 * Community-content queries: comments under events, announcements and
 * feedback.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// CreateComment inserts a comment.
func (r *Postgres) CreateComment(ctx context.Context, c *domain.Comment) error {
	query := `
        INSERT INTO comments (id, user_id, event_id, body, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())
    `
	if _, err := r.db.Exec(ctx, query, c.ID, c.UserID, c.EventID, c.Body); err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return nil
}

// GetComment loads one comment.
func (r *Postgres) GetComment(ctx context.Context, id string) (*domain.Comment, error) {
	var c domain.Comment
	err := r.db.QueryRow(ctx, `
        SELECT id, user_id, event_id, body, created_at, updated_at
        FROM comments
        WHERE id = $1
    `, id).Scan(&c.ID, &c.UserID, &c.EventID, &c.Body, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCommentNotFound
		}
		return nil, fmt.Errorf("failed to get comment: %w", err)
	}
	return &c, nil
}

// DeleteComment removes a comment.
func (r *Postgres) DeleteComment(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// ListEventComments returns an event's comments with author names, oldest
// first.
func (r *Postgres) ListEventComments(ctx context.Context, eventID string) ([]domain.CommentWithAuthor, error) {
	query := `
        SELECT c.id, c.user_id, c.event_id, c.body, c.created_at, c.updated_at,
               u.first_name || ' ' || u.last_name AS author_name
        FROM comments c
        JOIN users u ON u.id = c.user_id
        WHERE c.event_id = $1
        ORDER BY c.created_at ASC
    `
	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	defer rows.Close()

	var out []domain.CommentWithAuthor
	for rows.Next() {
		var c domain.CommentWithAuthor
		if err := rows.Scan(&c.ID, &c.UserID, &c.EventID, &c.Body, &c.CreatedAt, &c.UpdatedAt, &c.AuthorName); err != nil {
			return nil, fmt.Errorf("failed to scan comment row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateAnnouncement inserts an announcement; PublishedAt nil keeps it a
// draft.
func (r *Postgres) CreateAnnouncement(ctx context.Context, a *domain.Announcement) error {
	query := `
        INSERT INTO announcements (id, title, body, pinned, created_by, published_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
    `
	if _, err := r.db.Exec(ctx, query, a.ID, a.Title, a.Body, a.Pinned, a.CreatedBy, a.PublishedAt); err != nil {
		return fmt.Errorf("failed to create announcement: %w", err)
	}
	return nil
}

// GetAnnouncement loads one announcement.
func (r *Postgres) GetAnnouncement(ctx context.Context, id string) (*domain.Announcement, error) {
	var a domain.Announcement
	err := r.db.QueryRow(ctx, `
        SELECT id, title, body, pinned, created_by, published_at, created_at, updated_at
        FROM announcements
        WHERE id = $1
    `, id).Scan(&a.ID, &a.Title, &a.Body, &a.Pinned, &a.CreatedBy, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnnouncementNotFound
		}
		return nil, fmt.Errorf("failed to get announcement: %w", err)
	}
	return &a, nil
}

// UpdateAnnouncement edits title, body, pinned flag and publication state.
func (r *Postgres) UpdateAnnouncement(ctx context.Context, a *domain.Announcement) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE announcements
        SET title = $2, body = $3, pinned = $4, published_at = $5, updated_at = NOW()
        WHERE id = $1
    `, a.ID, a.Title, a.Body, a.Pinned, a.PublishedAt)
	if err != nil {
		return fmt.Errorf("failed to update announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnnouncementNotFound
	}
	return nil
}

// DeleteAnnouncement removes an announcement.
func (r *Postgres) DeleteAnnouncement(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete announcement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAnnouncementNotFound
	}
	return nil
}

// ListAnnouncements returns announcements, pinned first then newest;
// publishedOnly hides drafts.
func (r *Postgres) ListAnnouncements(ctx context.Context, publishedOnly bool) ([]domain.Announcement, error) {
	query := `
        SELECT id, title, body, pinned, created_by, published_at, created_at, updated_at
        FROM announcements
        WHERE $1 = FALSE OR published_at IS NOT NULL
        ORDER BY pinned DESC, COALESCE(published_at, created_at) DESC
    `
	rows, err := r.db.Query(ctx, query, publishedOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list announcements: %w", err)
	}
	defer rows.Close()

	var out []domain.Announcement
	for rows.Next() {
		var a domain.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Pinned, &a.CreatedBy, &a.PublishedAt, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateFeedback stores a feedback message.
func (r *Postgres) CreateFeedback(ctx context.Context, f *domain.Feedback) error {
	query := `
        INSERT INTO feedback (id, user_id, subject, body, created_at)
        VALUES ($1, $2, $3, $4, NOW())
    `
	if _, err := r.db.Exec(ctx, query, f.ID, f.UserID, f.Subject, f.Body); err != nil {
		return fmt.Errorf("failed to create feedback: %w", err)
	}
	return nil
}

// ListFeedback returns all feedback, newest first (admin view).
func (r *Postgres) ListFeedback(ctx context.Context) ([]domain.Feedback, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, subject, body, created_at
        FROM feedback
        ORDER BY created_at DESC
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	var out []domain.Feedback
	for rows.Next() {
		var f domain.Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Subject, &f.Body, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
