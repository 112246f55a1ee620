/**
 * @description
 * HTTP handlers for the public event catalog and the admin event CRUD,
 * including the registration-open toggle that announces an event to every
 * active member.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// ListEventsHandler returns the event catalog with availability numbers.
// ?upcoming=true narrows the list to events that have not started yet.
func (h *Handlers) ListEventsHandler(w http.ResponseWriter, r *http.Request) {
	upcomingOnly := r.URL.Query().Get("upcoming") == "true"

	events, err := h.svc.Events.List(r.Context(), upcomingOnly)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, events)
}

// GetEventHandler returns one event with its current availability.
func (h *Handlers) GetEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if eventID == "" {
		h.writeError(w, http.StatusBadRequest, "event ID is required")
		return
	}

	event, err := h.svc.Events.Get(r.Context(), eventID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

// CreateEventHandler creates an event (admin).
func (h *Handlers) CreateEventHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.CreateEventRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	event, err := h.svc.Events.Create(r.Context(), ident.UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, event)
}

// UpdateEventHandler replaces an event's fields (admin). The update bumps the
// event version, so it participates in the same conflict detection as
// registration admissions.
func (h *Handlers) UpdateEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if eventID == "" {
		h.writeError(w, http.StatusBadRequest, "event ID is required")
		return
	}

	var req domain.CreateEventRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	event, err := h.svc.Events.Update(r.Context(), eventID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}

// DeleteEventHandler removes an event (admin).
func (h *Handlers) DeleteEventHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if eventID == "" {
		h.writeError(w, http.StatusBadRequest, "event ID is required")
		return
	}

	if err := h.svc.Events.Delete(r.Context(), eventID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type setRegistrationOpenRequest struct {
	Open bool `json:"open"`
}

// SetRegistrationOpenHandler toggles whether members can register (admin).
// Opening registration pushes an announcement to all active members.
func (h *Handlers) SetRegistrationOpenHandler(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")
	if eventID == "" {
		h.writeError(w, http.StatusBadRequest, "event ID is required")
		return
	}

	var req setRegistrationOpenRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	event, err := h.svc.Events.SetRegistrationOpen(r.Context(), eventID, req.Open)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, event)
}
