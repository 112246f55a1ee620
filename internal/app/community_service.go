/**
 * @description
 * Community content logic: event comments, admin announcements and feedback.
 * Comments are deletable by their author or any admin; publishing an
 * announcement pushes it to every active member.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/store"
)

// CommunityStore defines the database operations the community service needs.
type CommunityStore interface {
	CreateComment(ctx context.Context, c *domain.Comment) error
	GetComment(ctx context.Context, id string) (*domain.Comment, error)
	DeleteComment(ctx context.Context, id string) error
	ListEventComments(ctx context.Context, eventID string) ([]domain.CommentWithAuthor, error)

	CreateAnnouncement(ctx context.Context, a *domain.Announcement) error
	GetAnnouncement(ctx context.Context, id string) (*domain.Announcement, error)
	UpdateAnnouncement(ctx context.Context, a *domain.Announcement) error
	DeleteAnnouncement(ctx context.Context, id string) error
	ListAnnouncements(ctx context.Context, publishedOnly bool) ([]domain.Announcement, error)

	CreateFeedback(ctx context.Context, f *domain.Feedback) error
	ListFeedback(ctx context.Context) ([]domain.Feedback, error)

	GetEvent(ctx context.Context, id string) (*domain.Event, error)
}

// CommunityService implements comments, announcements and feedback.
type CommunityService struct {
	store    CommunityStore
	notifier Notifier
	logger   *slog.Logger

	now func() time.Time
}

// NewCommunityService creates the community service.
func NewCommunityService(st CommunityStore, notifier Notifier, logger *slog.Logger) *CommunityService {
	return &CommunityService{store: st, notifier: notifier, logger: logger, now: time.Now}
}

// PostComment adds a comment under an event.
func (s *CommunityService) PostComment(ctx context.Context, userID string, req domain.CreateCommentRequest) (*domain.Comment, error) {
	if _, err := s.store.GetEvent(ctx, req.EventID); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil, domain.NotFound("event_not_found", "event not found")
		}
		return nil, err
	}

	comment := &domain.Comment{
		ID:      uuid.NewString(),
		UserID:  userID,
		EventID: req.EventID,
		Body:    req.Body,
	}
	if err := s.store.CreateComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

// ListComments returns an event's comments with author names, oldest first.
func (s *CommunityService) ListComments(ctx context.Context, eventID string) ([]domain.CommentWithAuthor, error) {
	return s.store.ListEventComments(ctx, eventID)
}

// DeleteComment removes a comment. Authors delete their own, admins delete
// anything; everyone else gets a 404.
func (s *CommunityService) DeleteComment(ctx context.Context, commentID, userID string, admin bool) error {
	comment, err := s.store.GetComment(ctx, commentID)
	if err != nil {
		if errors.Is(err, store.ErrCommentNotFound) {
			return domain.NotFound("comment_not_found", "comment not found")
		}
		return err
	}
	if !admin && !domain.SameID(comment.UserID, userID) {
		return domain.NotFound("comment_not_found", "comment not found")
	}
	if err := s.store.DeleteComment(ctx, commentID); err != nil {
		if errors.Is(err, store.ErrCommentNotFound) {
			return domain.NotFound("comment_not_found", "comment not found")
		}
		return err
	}
	return nil
}

// CreateAnnouncement stores an announcement; publishing it immediately
// pushes it to every active member.
func (s *CommunityService) CreateAnnouncement(ctx context.Context, adminID string, req domain.CreateAnnouncementRequest) (*domain.Announcement, error) {
	ann := &domain.Announcement{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Body:      req.Body,
		Pinned:    req.Pinned,
		CreatedBy: &adminID,
	}
	if req.Publish {
		now := s.now()
		ann.PublishedAt = &now
	}
	if err := s.store.CreateAnnouncement(ctx, ann); err != nil {
		return nil, err
	}

	s.logger.Info("announcement created", "announcement_id", ann.ID, "published", req.Publish)
	if req.Publish {
		s.notifyPublished(ann)
	}
	return ann, nil
}

// UpdateAnnouncement edits an announcement. Publishing a draft for the first
// time triggers the member push; re-saving an already-published one does not.
func (s *CommunityService) UpdateAnnouncement(ctx context.Context, id string, req domain.CreateAnnouncementRequest) (*domain.Announcement, error) {
	existing, err := s.store.GetAnnouncement(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrAnnouncementNotFound) {
			return nil, domain.NotFound("announcement_not_found", "announcement not found")
		}
		return nil, err
	}

	ann := &domain.Announcement{
		ID:          id,
		Title:       req.Title,
		Body:        req.Body,
		Pinned:      req.Pinned,
		CreatedBy:   existing.CreatedBy,
		PublishedAt: existing.PublishedAt,
	}
	firstPublish := req.Publish && existing.PublishedAt == nil
	if firstPublish {
		now := s.now()
		ann.PublishedAt = &now
	}
	if !req.Publish {
		ann.PublishedAt = nil
	}

	if err := s.store.UpdateAnnouncement(ctx, ann); err != nil {
		if errors.Is(err, store.ErrAnnouncementNotFound) {
			return nil, domain.NotFound("announcement_not_found", "announcement not found")
		}
		return nil, err
	}
	if firstPublish {
		s.notifyPublished(ann)
	}
	return ann, nil
}

// DeleteAnnouncement removes an announcement.
func (s *CommunityService) DeleteAnnouncement(ctx context.Context, id string) error {
	if err := s.store.DeleteAnnouncement(ctx, id); err != nil {
		if errors.Is(err, store.ErrAnnouncementNotFound) {
			return domain.NotFound("announcement_not_found", "announcement not found")
		}
		return err
	}
	return nil
}

// ListAnnouncements returns announcements; the public view hides drafts.
func (s *CommunityService) ListAnnouncements(ctx context.Context, includeDrafts bool) ([]domain.Announcement, error) {
	return s.store.ListAnnouncements(ctx, !includeDrafts)
}

// SubmitFeedback stores a message to the board. userID is nil when the
// sender wants to stay anonymous.
func (s *CommunityService) SubmitFeedback(ctx context.Context, userID *string, req domain.CreateFeedbackRequest) (*domain.Feedback, error) {
	fb := &domain.Feedback{
		ID:      uuid.NewString(),
		UserID:  userID,
		Subject: req.Subject,
		Body:    req.Body,
	}
	if err := s.store.CreateFeedback(ctx, fb); err != nil {
		return nil, err
	}
	s.notifier.SendToAdmins(domain.PushMessage{
		Title: "New feedback",
		Body:  fb.Subject,
		URL:   "/admin/feedback",
		Tag:   "admin-feedback",
	})
	return fb, nil
}

// ListFeedback returns all feedback for the admin view.
func (s *CommunityService) ListFeedback(ctx context.Context) ([]domain.Feedback, error) {
	return s.store.ListFeedback(ctx)
}

func (s *CommunityService) notifyPublished(ann *domain.Announcement) {
	s.notifier.SendToAllActiveUsers(domain.PushMessage{
		Title: ann.Title,
		Body:  announcementPreview(ann.Body),
		URL:   "/announcements",
		Tag:   "announcement-" + ann.ID,
	})
	s.notifier.Activity("announcement_published", map[string]any{
		"announcement_id": ann.ID,
		"title":           ann.Title,
	})
}

// announcementPreview trims the body to a push-sized excerpt.
func announcementPreview(body string) string {
	const max = 140
	if len(body) <= max {
		return body
	}
	return body[:max-3] + "..."
}
