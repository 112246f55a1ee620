/**
 * @description
 * HTTP handlers for the community surface: event comments, announcements and
 * board feedback. Feedback accepts anonymous submissions; the author is
 * recorded only when the request carries a valid token.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// ListCommentsHandler returns the comment thread for one event.
func (h *Handlers) ListCommentsHandler(w http.ResponseWriter, r *http.Request) {
	eventID := r.URL.Query().Get("event_id")
	if eventID == "" {
		h.writeError(w, http.StatusBadRequest, "event_id query parameter is required")
		return
	}

	comments, err := h.svc.Community.ListComments(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, comments)
}

// CreateCommentHandler posts a comment on an event.
func (h *Handlers) CreateCommentHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.CreateCommentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	comment, err := h.svc.Community.PostComment(r.Context(), ident.UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, comment)
}

// DeleteCommentHandler removes a comment; allowed for the author and admins.
func (h *Handlers) DeleteCommentHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	commentID := chi.URLParam(r, "id")
	if commentID == "" {
		h.writeError(w, http.StatusBadRequest, "comment ID is required")
		return
	}

	if err := h.svc.Community.DeleteComment(r.Context(), commentID, ident.UserID, ident.IsAdmin()); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ListAnnouncementsHandler returns announcements. The public list carries
// published entries only; admins see drafts with ?drafts=true.
func (h *Handlers) ListAnnouncementsHandler(w http.ResponseWriter, r *http.Request) {
	includeDrafts := false
	if r.URL.Query().Get("drafts") == "true" {
		ident, ok := identityFrom(r)
		includeDrafts = ok && ident.IsAdmin()
	}

	announcements, err := h.svc.Community.ListAnnouncements(r.Context(), includeDrafts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, announcements)
}

// CreateAnnouncementHandler creates an announcement (admin). Publishing
// immediately pushes it to every active member.
func (h *Handlers) CreateAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.CreateAnnouncementRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ann, err := h.svc.Community.CreateAnnouncement(r.Context(), ident.UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, ann)
}

// UpdateAnnouncementHandler edits an announcement (admin). The first
// transition to published pushes it to every active member; clearing the
// publish flag unpublishes.
func (h *Handlers) UpdateAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	announcementID := chi.URLParam(r, "id")
	if announcementID == "" {
		h.writeError(w, http.StatusBadRequest, "announcement ID is required")
		return
	}

	var req domain.CreateAnnouncementRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	ann, err := h.svc.Community.UpdateAnnouncement(r.Context(), announcementID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ann)
}

// DeleteAnnouncementHandler removes an announcement (admin).
func (h *Handlers) DeleteAnnouncementHandler(w http.ResponseWriter, r *http.Request) {
	announcementID := chi.URLParam(r, "id")
	if announcementID == "" {
		h.writeError(w, http.StatusBadRequest, "announcement ID is required")
		return
	}

	if err := h.svc.Community.DeleteAnnouncement(r.Context(), announcementID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// CreateFeedbackHandler submits feedback to the board. Anonymous submissions
// are allowed; a valid token attributes the message.
func (h *Handlers) CreateFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFeedbackRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	var userID *string
	if ident, ok := identityFrom(r); ok {
		userID = &ident.UserID
	}

	fb, err := h.svc.Community.SubmitFeedback(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, fb)
}

// ListFeedbackHandler returns all feedback (admin).
func (h *Handlers) ListFeedbackHandler(w http.ResponseWriter, r *http.Request) {
	feedback, err := h.svc.Community.ListFeedback(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, feedback)
}
