/**
 * @description
 * Scheduled job implementations: the hourly event-reminder sweep. The sweep
 * finds events starting inside the reminder window whose reminder has not
 * gone out, pushes a reminder to every confirmed registrant and flips the
 * per-event flag so the next run skips them.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
)

// ReminderStore defines the database operations needed by the jobs.
type ReminderStore interface {
	ListEventsNeedingReminder(ctx context.Context, now time.Time, window time.Duration) ([]domain.Event, error)
	ListReminderTargets(ctx context.Context, eventID string) ([]string, error)
	MarkEventReminderSent(ctx context.Context, eventID string) error
}

// Notifier is the push boundary the jobs deliver through.
type Notifier interface {
	SendToUser(userID string, msg domain.PushMessage)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	store    ReminderStore
	notifier Notifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
	window   time.Duration

	now func() time.Time
}

// NewJobs creates a new Jobs runner. window is how far ahead the reminder
// sweep looks for upcoming events.
func NewJobs(store ReminderStore, notifier Notifier, logger *slog.Logger, m *metrics.Metrics, window time.Duration) *Jobs {
	return &Jobs{
		store:    store,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		window:   window,
		now:      time.Now,
	}
}

// SendEventReminders runs one reminder sweep. The flag flip happens after
// delivery is queued, so a crash mid-sweep re-sends rather than silently
// skipping an event.
func (j *Jobs) SendEventReminders() {
	j.logger.Info("starting event reminder sweep")
	ctx := context.Background()
	now := j.now()

	events, err := j.store.ListEventsNeedingReminder(ctx, now, j.window)
	if err != nil {
		j.logger.Error("failed to list events needing reminder", "error", err)
		return
	}

	for _, ev := range events {
		targets, err := j.store.ListReminderTargets(ctx, ev.ID)
		if err != nil {
			j.logger.Error("failed to list reminder targets", "event_id", ev.ID, "error", err)
			continue
		}

		msg := domain.PushMessage{
			Title: "Reminder: " + ev.Title,
			Body:  "Starts " + ev.StartDate.Format("2 January 2006 at 15:04") + ". See you there!",
			URL:   "/events/" + ev.ID,
			Tag:   "reminder-" + ev.ID,
		}
		for _, userID := range targets {
			j.notifier.SendToUser(userID, msg)
		}

		if err := j.store.MarkEventReminderSent(ctx, ev.ID); err != nil {
			j.logger.Error("failed to mark reminder sent", "event_id", ev.ID, "error", err)
			continue
		}
		j.logger.Info("event reminder sent", "event_id", ev.ID, "recipients", len(targets))
	}

	j.metrics.ReminderRuns.Inc()
	j.logger.Info("event reminder sweep finished", "events", len(events))
}
