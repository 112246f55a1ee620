/**
 * @description
 * This file defines the sentinel errors returned by the store. Services
 * translate them into domain errors; the API layer never sees them directly.
 */
package store

import "errors"

var (
	ErrUserNotFound               = errors.New("user not found")
	ErrEmailTaken                 = errors.New("email already registered")
	ErrCityNotFound               = errors.New("city not found")
	ErrEventTypeNotFound          = errors.New("event type not found")
	ErrEventNotFound              = errors.New("event not found")
	ErrRegistrationNotFound       = errors.New("registration not found")
	ErrDuplicateRegistration      = errors.New("registration already exists for this occurrence")
	ErrRegistrationNotCancellable = errors.New("registration is not cancellable")
	ErrInvalidTransition          = errors.New("registration status does not allow this transition")
	ErrVersionConflict            = errors.New("event version conflict")
	ErrRefundTaskNotFound         = errors.New("refund task not found")
	ErrPaymentNotFound            = errors.New("payment not found")
	ErrSubscriptionNotFound       = errors.New("subscription not found")
	ErrDonationNotFound           = errors.New("donation not found")
	ErrDuplicateReference         = errors.New("transfer reference already in use")
	ErrCommentNotFound            = errors.New("comment not found")
	ErrAnnouncementNotFound       = errors.New("announcement not found")
	ErrProductNotFound            = errors.New("product not found")
	ErrUploadNotFound             = errors.New("upload not found")
	ErrDuplicateName              = errors.New("name already in use")
)
