/**
 * @description
 * HTTP handlers for the payment surface: gateway checkout for registrations,
 * payment status polling and the provider webhook. The webhook endpoint is
 * public; the gateway adapter verifies the signature before anything is
 * trusted, and replayed notifications return 200 without side effects.
 */

package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// webhookSignatureHeader carries the transport-level signature for gateways
// that sign outside the payload. Providers that sign inside the payload
// ignore it.
const webhookSignatureHeader = "X-Webhook-Signature"

// maxWebhookBytes caps webhook bodies; provider notifications are small.
const maxWebhookBytes = 1 << 20

// CheckoutHandler starts a gateway payment for a pending registration and
// returns the redirect URL.
func (h *Handlers) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.CheckoutRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	checkout, err := h.svc.Payments.CreateRegistrationPayment(r.Context(), ident.UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, checkout)
}

// GetPaymentHandler returns a payment visible to the caller, reconciling a
// non-final local status against the provider first.
func (h *Handlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	paymentID := chi.URLParam(r, "id")
	if paymentID == "" {
		h.writeError(w, http.StatusBadRequest, "payment ID is required")
		return
	}

	payment, err := h.svc.Payments.GetPaymentStatus(r.Context(), paymentID, ident.UserID, ident.IsAdmin())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, payment)
}

// PaymentWebhookHandler receives provider notifications. The body is handed
// to the gateway adapter for signature verification; unverifiable payloads
// get 401, everything else 200 so the provider stops retrying.
func (h *Handlers) PaymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "could not read body")
		return
	}

	err = h.svc.Payments.HandleWebhook(r.Context(), payload, r.Header.Get(webhookSignatureHeader))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
