/**
 * @description
 * This file defines the Handlers struct shared by every HTTP endpoint and the
 * account/auth handlers. Handlers parse requests, call the application
 * services and write JSON responses; business-rule failures arrive as
 * *domain.Error values carrying their HTTP status, everything else becomes a
 * generic 500.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-playground/validator/v10: Request DTO validation.
 * - internal/app, internal/domain: Service logic and models.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/app"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
)

// Services bundles the application services the HTTP layer exposes.
type Services struct {
	Accounts      *app.AccountService
	Events        *app.EventService
	Registrations *app.RegistrationService
	Payments      *app.PaymentService
	Subscriptions *app.SubscriptionService
	Donations     *app.DonationService
	Community     *app.CommunityService
	Catalog       *app.CatalogService
	Uploads       *app.UploadService
	Notifications *app.NotificationService
}

// Handlers holds the services and request plumbing shared by all endpoints.
type Handlers struct {
	svc            Services
	validate       *validator.Validate
	maxUploadBytes int64
}

// NewHandlers creates the handler set. maxUploadBytes caps multipart upload
// bodies.
func NewHandlers(svc Services, maxUploadBytes int64) *Handlers {
	return &Handlers{
		svc:            svc,
		validate:       validator.New(),
		maxUploadBytes: maxUploadBytes,
	}
}

// writeJSON is a helper for writing JSON responses.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service failure to its HTTP response. Domain
// errors carry their own status and stable code; anything else is an
// infrastructure failure and must not leak details to the client.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if de, ok := domain.AsError(err); ok {
		h.writeJSON(w, de.Status, map[string]string{"error": de.Message, "code": de.Code})
		return
	}
	log.Printf("level=error component=api path=%s msg=\"request failed\" err=%v", r.URL.Path, err)
	h.writeError(w, http.StatusInternalServerError, "internal server error")
}

// decodeJSON parses the request body into dst and runs struct validation.
// It writes the 400 response itself and reports whether the caller should
// continue.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			h.writeError(w, http.StatusBadRequest, "validation failed on field "+verrs[0].Field())
			return false
		}
		h.writeError(w, http.StatusBadRequest, "validation failed")
		return false
	}
	return true
}

// RegisterAccountHandler creates a new pending account.
func (h *Handlers) RegisterAccountHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterUserRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.Accounts.Register(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, user)
}

// LoginHandler exchanges credentials for a signed token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	result, err := h.svc.Accounts.Login(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// MeHandler returns the authenticated caller's profile.
func (h *Handlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	user, err := h.svc.Accounts.GetProfile(r.Context(), ident.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// UpdateProfileHandler edits the caller's own profile.
func (h *Handlers) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.UpdateProfileRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	user, err := h.svc.Accounts.UpdateProfile(r.Context(), ident.UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// ChangePasswordHandler rotates the caller's password.
func (h *Handlers) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	ident, ok := identityFrom(r)
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req domain.ChangePasswordRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.Accounts.ChangePassword(r.Context(), ident.UserID, req); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "password changed"})
}
