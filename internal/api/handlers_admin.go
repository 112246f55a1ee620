/**
 * @description
 * HTTP handlers for the admin surface that is not tied to another area:
 * dashboard stats, member management (status and role changes) and manual
 * subscription grants.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// AdminStatsHandler returns the dashboard summary (admin).
func (h *Handlers) AdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Catalog.Stats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// ListUsersHandler returns every account (admin).
func (h *Handlers) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.Accounts.ListUsers(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, users)
}

type setUserStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending active blocked"`
}

// SetUserStatusHandler activates or blocks an account (admin). Admins cannot
// change their own status.
func (h *Handlers) SetUserStatusHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID := chi.URLParam(r, "id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	var req setUserStatusRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Accounts.SetUserStatus(r.Context(), ident.UserID, userID, domain.UserStatus(req.Status)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type setUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=user admin"`
}

// SetUserRoleHandler promotes or demotes an account (admin). Admins cannot
// change their own role.
func (h *Handlers) SetUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID := chi.URLParam(r, "id")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	var req setUserRoleRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Accounts.SetUserRole(r.Context(), ident.UserID, userID, domain.Role(req.Role)); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// GrantSubscriptionHandler creates or extends a member's subscription
// (admin). Repeated grants extend from the later of now and the current end
// date.
func (h *Handlers) GrantSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if userID == "" {
		h.writeError(w, http.StatusBadRequest, "user ID is required")
		return
	}

	var req domain.GrantSubscriptionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.svc.Subscriptions.Grant(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sub)
}
