/**
 * @description
 * Event catalog logic: public listings with the availability projection and
 * the admin CRUD. Admin edits go through the same optimistic version check
 * as registrations; a stale edit is refused with a conflict instead of
 * silently overwriting what a concurrent admission changed.
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

// defaultCurrency is assumed when a request leaves the currency blank.
const defaultCurrency = "PLN"

// EventStore defines the database operations the event service needs.
type EventStore interface {
	CreateEvent(ctx context.Context, e *domain.Event) error
	UpdateEvent(ctx context.Context, e *domain.Event) error
	DeleteEvent(ctx context.Context, id string) error
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	ListEvents(ctx context.Context, upcomingOnly bool) ([]domain.EventWithAvailability, error)
	CountConfirmed(ctx context.Context, eventID string, occurrence time.Time) (int, error)
	SetRegistrationOpen(ctx context.Context, id string, open bool) error
}

// EventService implements event listing and administration.
type EventService struct {
	store    EventStore
	notifier Notifier
	logger   *slog.Logger
}

// NewEventService creates the event service.
func NewEventService(st EventStore, notifier Notifier, logger *slog.Logger) *EventService {
	return &EventService{store: st, notifier: notifier, logger: logger}
}

// List returns events with their availability projection.
func (s *EventService) List(ctx context.Context, upcomingOnly bool) ([]domain.EventWithAvailability, error) {
	return s.store.ListEvents(ctx, upcomingOnly)
}

// Get returns one event with the confirmed count for its base occurrence.
func (s *EventService) Get(ctx context.Context, id string) (*domain.EventWithAvailability, error) {
	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil, domain.NotFound("event_not_found", "event not found")
		}
		return nil, err
	}

	taken, err := s.store.CountConfirmed(ctx, event.ID, domain.DateOnly(event.StartDate))
	if err != nil {
		return nil, err
	}

	out := &domain.EventWithAvailability{Event: *event, SpotsTaken: taken}
	if event.MaxParticipants != nil {
		avail := *event.MaxParticipants - taken
		if avail < 0 {
			avail = 0
		}
		out.SpotsAvailable = &avail
	}
	return out, nil
}

// Create inserts a new event authored by the admin.
func (s *EventService) Create(ctx context.Context, adminID string, req domain.CreateEventRequest) (*domain.Event, error) {
	event := eventFromRequest(req)
	event.ID = uuid.NewString()
	event.Version = 1
	event.CreatedBy = &adminID

	if err := s.store.CreateEvent(ctx, event); err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", event.ID, "title", event.Title)
	return event, nil
}

// Update applies an admin edit under the optimistic lock. A concurrent
// capacity write bumps the version first and the edit is refused.
func (s *EventService) Update(ctx context.Context, id string, req domain.CreateEventRequest) (*domain.Event, error) {
	current, err := s.store.GetEvent(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil, domain.NotFound("event_not_found", "event not found")
		}
		return nil, err
	}

	event := eventFromRequest(req)
	event.ID = current.ID
	event.Version = current.Version
	event.CreatedBy = current.CreatedBy

	if err := s.store.UpdateEvent(ctx, event); err != nil {
		switch {
		case errors.Is(err, store.ErrVersionConflict):
			return nil, domain.Conflict("version_conflict", "the event changed underneath this edit, reload and retry")
		case errors.Is(err, store.ErrEventNotFound):
			return nil, domain.NotFound("event_not_found", "event not found")
		default:
			return nil, err
		}
	}

	s.logger.Info("event updated", "event_id", event.ID)
	return s.store.GetEvent(ctx, id)
}

// Delete removes an event; its registrations cascade away with it.
func (s *EventService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return domain.NotFound("event_not_found", "event not found")
		}
		return err
	}
	s.logger.Info("event deleted", "event_id", id)
	return nil
}

// SetRegistrationOpen toggles admissions. Opening an event announces it to
// every active member.
func (s *EventService) SetRegistrationOpen(ctx context.Context, id string, open bool) (*domain.Event, error) {
	if err := s.store.SetRegistrationOpen(ctx, id, open); err != nil {
		if errors.Is(err, store.ErrEventNotFound) {
			return nil, domain.NotFound("event_not_found", "event not found")
		}
		return nil, err
	}

	event, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("registration toggled", "event_id", id, "open", open)
	if open {
		s.notifier.SendToAllActiveUsers(domain.PushMessage{
			Title: "Registration is open",
			Body:  "Sign-ups just opened: " + event.Title,
			URL:   "/events/" + event.ID,
			Tag:   "event-" + event.ID,
		})
	}
	return event, nil
}

func eventFromRequest(req domain.CreateEventRequest) *domain.Event {
	currency := req.Currency
	if currency == "" {
		currency = defaultCurrency
	}
	return &domain.Event{
		Title:                 req.Title,
		Description:           req.Description,
		EventTypeID:           req.EventTypeID,
		CityID:                req.CityID,
		Location:              req.Location,
		StartDate:             req.StartDate,
		EndDate:               req.EndDate,
		RecurrenceRule:        req.RecurrenceRule,
		MaxParticipants:       req.MaxParticipants,
		PriceGuestCents:       req.PriceGuestCents,
		PriceMemberCents:      req.PriceMemberCents,
		Currency:              currency,
		CancelCutoffHours:     req.CancelCutoffHours,
		AllowManualPayment:    req.AllowManualPayment,
		ManualPaymentDueHours: req.ManualPaymentDueHours,
		RequiresSubscription:  req.RequiresSubscription,
		RegistrationOpen:      req.RegistrationOpen,
	}
}
