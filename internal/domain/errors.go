/**
 * @description
 * This file defines the domain error type shared by all services. Business-rule
 * violations (capacity, ownership, illegal status transitions, expired
 * deadlines) are reported as *domain.Error values carrying the HTTP status the
 * API layer should respond with, so handlers can map them without inspecting
 * message text.
 *
 * @notes
 * - Infrastructure failures (database, gateway, push provider) are NOT domain
 *   errors; they are wrapped with fmt.Errorf("...: %w", err) and surface as 500s.
 */
package domain

import (
	"errors"
	"net/http"
)

// Error is a business-rule violation with a stable code and an HTTP status.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// NotFound reports a missing or invisible resource (mapped to 404).
func NotFound(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusNotFound}
}

// Invalid reports a request that violates a business rule (mapped to 400).
func Invalid(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusBadRequest}
}

// Forbidden reports an ownership or permission violation (mapped to 403).
func Forbidden(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusForbidden}
}

// Unauthorized reports a missing or invalid credential (mapped to 401).
func Unauthorized(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusUnauthorized}
}

// Conflict reports a state that cannot absorb the requested change (mapped to 409).
func Conflict(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: http.StatusConflict}
}

// AsError unwraps err into a *Error if one is anywhere in its chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
