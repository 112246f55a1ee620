/**
 * @description
 * HTTP handlers for membership self-service (subscription status and
 * auto-renew), donations and Web Push subscription management. Donations
 * accept anonymous callers for the transfer method; the gateway method needs
 * an authenticated member for the checkout.
 */

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// MySubscriptionHandler returns the caller's subscription status. Members
// without a subscription get an inactive zero status, not a 404.
func (h *Handlers) MySubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	status, err := h.svc.Subscriptions.Status(r.Context(), ident.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

type setAutoRenewRequest struct {
	AutoRenew bool `json:"auto_renew"`
}

// SetAutoRenewHandler toggles the caller's subscription auto-renew flag.
func (h *Handlers) SetAutoRenewHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req setAutoRenewRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Subscriptions.SetAutoRenew(r.Context(), ident.UserID, req.AutoRenew); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// CreateDonationHandler starts a donation. The transfer method returns bank
// details with a generated reference and works anonymously; the gateway
// method returns a checkout redirect and requires authentication.
func (h *Handlers) CreateDonationHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateDonationRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	var userID *string
	if ident, ok := identityFrom(r); ok {
		userID = &ident.UserID
	}

	instructions, err := h.svc.Donations.Create(r.Context(), userID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, instructions)
}

// RecentDonationsHandler returns the public recent-donations feed.
func (h *Handlers) RecentDonationsHandler(w http.ResponseWriter, r *http.Request) {
	donations, err := h.svc.Donations.Recent(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, donations)
}

// ListDonationsHandler returns every donation (admin).
func (h *Handlers) ListDonationsHandler(w http.ResponseWriter, r *http.Request) {
	donations, err := h.svc.Donations.ListAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, donations)
}

// CompleteDonationHandler marks a transfer-method donation as received
// (admin). Gateway donations complete through the webhook instead.
func (h *Handlers) CompleteDonationHandler(w http.ResponseWriter, r *http.Request) {
	donationID := chi.URLParam(r, "id")
	if donationID == "" {
		h.writeError(w, http.StatusBadRequest, "donation ID is required")
		return
	}

	donation, err := h.svc.Donations.Complete(r.Context(), donationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, donation)
}

// PushSubscribeHandler stores the caller's browser push subscription.
func (h *Handlers) PushSubscribeHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.SubscribePushRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Notifications.Subscribe(r.Context(), ident.UserID, req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"status": "subscribed"})
}

// PushUnsubscribeHandler removes the caller's push subscription for one
// endpoint.
func (h *Handlers) PushUnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.UnsubscribePushRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Notifications.Unsubscribe(r.Context(), ident.UserID, req.Endpoint); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// VAPIDPublicKeyHandler returns the key browsers need to subscribe to push.
func (h *Handlers) VAPIDPublicKeyHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"public_key": h.svc.Notifications.VAPIDPublicKey()})
}
