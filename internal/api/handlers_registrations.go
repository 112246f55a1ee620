/**
 * @description
 * HTTP handlers for the registration lifecycle: member registration, listing,
 * cancellation and the manual-payment flow, plus the admin refund-task queue
 * and manual-payment verification.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// CreateRegistrationHandler registers the caller for an event occurrence.
// Full events land on the waitlist; the response status tells the client
// which lane the caller is in.
func (h *Handlers) CreateRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.RegisterRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	reg, err := h.svc.Registrations.Register(r.Context(), ident.UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, reg)
}

// ListMyRegistrationsHandler returns the caller's registrations with event
// context, newest first.
func (h *Handlers) ListMyRegistrationsHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	regs, err := h.svc.Registrations.ListMine(r.Context(), ident.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, regs)
}

// GetRegistrationHandler returns one registration visible to the caller.
func (h *Handlers) GetRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		h.writeError(w, http.StatusBadRequest, "registration ID is required")
		return
	}

	reg, err := h.svc.Registrations.Get(r.Context(), registrationID, ident.UserID, ident.IsAdmin())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reg)
}

// CancelRegistrationHandler cancels the caller's registration. A vacated
// confirmed spot promotes the earliest waitlist entry; paid registrations
// may request a refund, which opens an admin task.
func (h *Handlers) CancelRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		h.writeError(w, http.StatusBadRequest, "registration ID is required")
		return
	}

	var req domain.CancelRegistrationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	reg, err := h.svc.Registrations.Cancel(r.Context(), registrationID, ident.UserID, req.RequestRefund)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reg)
}

// AdminCancelRegistrationHandler cancels any registration (admin).
func (h *Handlers) AdminCancelRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		h.writeError(w, http.StatusBadRequest, "registration ID is required")
		return
	}

	var req domain.CancelRegistrationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	reg, err := h.svc.Registrations.AdminCancel(r.Context(), registrationID, req.RequestRefund)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reg)
}

// ConfirmManualPaymentHandler lets a member declare a bank transfer sent
// before the deadline, moving the registration to verification.
func (h *Handlers) ConfirmManualPaymentHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		h.writeError(w, http.StatusBadRequest, "registration ID is required")
		return
	}

	reg, err := h.svc.Registrations.ConfirmManualPayment(r.Context(), registrationID, ident.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reg)
}

// ManualPaymentDetailsHandler returns the bank details, amount and transfer
// reference a member needs to pay for a manual-payment registration.
func (h *Handlers) ManualPaymentDetailsHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		h.writeError(w, http.StatusBadRequest, "registration ID is required")
		return
	}

	details, err := h.svc.Registrations.GetManualPaymentDetails(r.Context(), registrationID, ident.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, details)
}

type finalizeManualPaymentRequest struct {
	Approve bool `json:"approve"`
}

// FinalizeManualPaymentHandler approves or rejects a declared bank transfer
// (admin). Approval confirms the registration; rejection sends it back with
// a fresh deadline.
func (h *Handlers) FinalizeManualPaymentHandler(w http.ResponseWriter, r *http.Request) {
	registrationID := chi.URLParam(r, "id")
	if registrationID == "" {
		h.writeError(w, http.StatusBadRequest, "registration ID is required")
		return
	}

	var req finalizeManualPaymentRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	reg, err := h.svc.Registrations.FinalizeManualPayment(r.Context(), registrationID, req.Approve)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, reg)
}

// ListRefundTasksHandler returns the refund queue (admin). ?open=true narrows
// to tasks still awaiting review or execution.
func (h *Handlers) ListRefundTasksHandler(w http.ResponseWriter, r *http.Request) {
	openOnly := r.URL.Query().Get("open") == "true"

	tasks, err := h.svc.Registrations.ListRefundTasks(r.Context(), openOnly)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tasks)
}

// ReviewRefundTaskHandler records the admin's refund decision. The decision
// may override the cutoff-derived eligibility; overrides against eligibility
// require a note.
func (h *Handlers) ReviewRefundTaskHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		h.writeError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	var req domain.ReviewRefundTaskRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	task, err := h.svc.Registrations.ReviewRefundTask(r.Context(), taskID, ident.UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}

// ExecuteRefundTaskHandler issues the gateway refund for an approved task
// (admin). The task is claimed before the gateway call, so a double click
// cannot refund twice.
func (h *Handlers) ExecuteRefundTaskHandler(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "id")
	if taskID == "" {
		h.writeError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	task, err := h.svc.Registrations.ExecuteRefundTask(r.Context(), taskID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, task)
}
