package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/domain"
	"github.com/tomaszpiescikowski/centrumkenaz.com-sub001/internal/metrics"
)

type reminderStoreStub struct {
	events     []domain.Event
	eventsErr  error
	targets    map[string][]string
	targetsErr map[string]error
	marked     []string
}

func (s *reminderStoreStub) ListEventsNeedingReminder(ctx context.Context, now time.Time, window time.Duration) ([]domain.Event, error) {
	if s.eventsErr != nil {
		return nil, s.eventsErr
	}
	return s.events, nil
}

func (s *reminderStoreStub) ListReminderTargets(ctx context.Context, eventID string) ([]string, error) {
	if err := s.targetsErr[eventID]; err != nil {
		return nil, err
	}
	return s.targets[eventID], nil
}

func (s *reminderStoreStub) MarkEventReminderSent(ctx context.Context, eventID string) error {
	s.marked = append(s.marked, eventID)
	return nil
}

type reminderNotifierStub struct {
	userIDs []string
	msgs    []domain.PushMessage
}

func (n *reminderNotifierStub) SendToUser(userID string, msg domain.PushMessage) {
	n.userIDs = append(n.userIDs, userID)
	n.msgs = append(n.msgs, msg)
}

func newTestJobs(store ReminderStore, notifier Notifier) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.MustNew(prometheus.NewRegistry())
	return NewJobs(store, notifier, logger, m, 24*time.Hour)
}

func TestSendEventReminders_PushesToRegistrantsAndMarksEvent(t *testing.T) {
	store := &reminderStoreStub{
		events: []domain.Event{{
			ID:        "evt-1",
			Title:     "Morning trail run",
			StartDate: time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC),
		}},
		targets: map[string][]string{"evt-1": {"alice", "bob"}},
	}
	notifier := &reminderNotifierStub{}
	jobs := newTestJobs(store, notifier)

	jobs.SendEventReminders()

	if len(notifier.userIDs) != 2 {
		t.Fatalf("expected 2 reminder pushes, got %d", len(notifier.userIDs))
	}
	if notifier.msgs[0].Tag != "reminder-evt-1" {
		t.Fatalf("expected the reminder tag, got %q", notifier.msgs[0].Tag)
	}
	if notifier.msgs[0].Title != "Reminder: Morning trail run" {
		t.Fatalf("expected the event title in the reminder, got %q", notifier.msgs[0].Title)
	}
	if len(store.marked) != 1 || store.marked[0] != "evt-1" {
		t.Fatalf("expected the event marked as reminded, got %v", store.marked)
	}
}

func TestSendEventReminders_TargetFailureSkipsOnlyThatEvent(t *testing.T) {
	store := &reminderStoreStub{
		events: []domain.Event{
			{ID: "evt-1", Title: "Broken", StartDate: time.Date(2026, 9, 12, 18, 0, 0, 0, time.UTC)},
			{ID: "evt-2", Title: "Fine", StartDate: time.Date(2026, 9, 13, 18, 0, 0, 0, time.UTC)},
		},
		targets:    map[string][]string{"evt-2": {"carol"}},
		targetsErr: map[string]error{"evt-1": errors.New("db down")},
	}
	notifier := &reminderNotifierStub{}
	jobs := newTestJobs(store, notifier)

	jobs.SendEventReminders()

	if len(notifier.userIDs) != 1 || notifier.userIDs[0] != "carol" {
		t.Fatalf("expected only the healthy event delivered, got %v", notifier.userIDs)
	}
	// The failed event stays unmarked so the next sweep retries it.
	if len(store.marked) != 1 || store.marked[0] != "evt-2" {
		t.Fatalf("expected only evt-2 marked, got %v", store.marked)
	}
}

func TestSendEventReminders_ListFailureAbortsSweep(t *testing.T) {
	store := &reminderStoreStub{eventsErr: errors.New("db down")}
	notifier := &reminderNotifierStub{}
	jobs := newTestJobs(store, notifier)

	jobs.SendEventReminders()

	if len(notifier.userIDs) != 0 {
		t.Fatalf("expected no pushes when the sweep cannot list events, got %v", notifier.userIDs)
	}
	if len(store.marked) != 0 {
		t.Fatalf("expected no events marked, got %v", store.marked)
	}
}

func TestSendEventReminders_QuietWindowDoesNothing(t *testing.T) {
	store := &reminderStoreStub{}
	notifier := &reminderNotifierStub{}
	jobs := newTestJobs(store, notifier)

	jobs.SendEventReminders()

	if len(notifier.userIDs) != 0 || len(store.marked) != 0 {
		t.Fatal("expected an empty window to produce no work")
	}
}
