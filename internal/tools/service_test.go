package tools

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/homar/homar/internal/clock"
	"github.com/homar/homar/internal/schedule"
)

type nopDeliverer struct{}

func (nopDeliverer) Deliver(ctx context.Context, target, payload string) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *clock.Fake, *schedule.Registry) {
	t.Helper()
	warsaw, err := time.LoadLocation("Europe/Warsaw")
	if err != nil {
		t.Fatalf("load timezone: %v", err)
	}
	// 2024-12-24 10:00 UTC is 11:00 in Warsaw (winter, UTC+1).
	fake := clock.NewFake(time.Date(2024, 12, 24, 10, 0, 0, 0, time.UTC))
	registry := schedule.NewRegistry(nopDeliverer{}, fake, warsaw, testLogger())
	t.Cleanup(registry.Close)
	service := NewService(registry, nil, fake, warsaw, time.Second, 7*24*time.Hour, testLogger())
	return service, fake, registry
}

func TestFormatDelaySeconds(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{1, "1 seconds"},
		{59, "59 seconds"},
		{60, "1 minutes"},
		{1800, "30 minutes"},
		{3599, "59 minutes"},
		{3600, "1 hours"},
		{7200, "2 hours"},
		{3660, "1 hours and 1 minutes"},
		{5400, "1 hours and 30 minutes"},
		{9000, "2 hours and 30 minutes"},
		{86400, "24 hours"},
	}
	for _, tc := range cases {
		if got := formatDelaySeconds(tc.seconds); got != tc.want {
			t.Fatalf("formatDelaySeconds(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestScheduleDelayedValidation(t *testing.T) {
	service, _, registry := newTestService(t)

	cases := []struct {
		name                    string
		hours, minutes, seconds int
	}{
		{"all zero", 0, 0, 0},
		{"negative hours", -1, 0, 0},
		{"hours too large", 169, 0, 0},
		{"minutes too large", 0, 60, 0},
		{"seconds too large", 0, 0, 60},
	}
	for _, tc := range cases {
		if _, err := service.ScheduleDelayed("test", "thread-1", tc.hours, tc.minutes, tc.seconds); !errors.Is(err, ErrInvalidDuration) {
			t.Fatalf("%s: expected ErrInvalidDuration, got %v", tc.name, err)
		}
	}
	if len(registry.List()) != 0 {
		t.Fatal("rejected schedules must leave the registry unchanged")
	}
}

func TestScheduleDelayedArmsDelivery(t *testing.T) {
	service, fake, registry := newTestService(t)

	result, err := service.ScheduleDelayed("water the plants", "thread-1", 0, 30, 0)
	if err != nil {
		t.Fatalf("schedule delayed failed: %v", err)
	}
	if !strings.Contains(result, "30 minutes") {
		t.Fatalf("result should phrase the delay: %s", result)
	}

	entries := registry.List()
	if len(entries) != 1 {
		t.Fatalf("expected one pending entry, got %d", len(entries))
	}
	if !entries[0].FireAt.Equal(fake.Now().Add(30 * time.Minute)) {
		t.Fatalf("unexpected fire time: %s", entries[0].FireAt)
	}
}

func TestScheduleDelayedBoundaries(t *testing.T) {
	service, _, _ := newTestService(t)

	if _, err := service.ScheduleDelayed("min", "thread-1", 0, 0, 1); err != nil {
		t.Fatalf("1 second delay should be accepted: %v", err)
	}
	if _, err := service.ScheduleDelayed("max", "thread-1", 168, 0, 0); err != nil {
		t.Fatalf("7 day delay should be accepted: %v", err)
	}
}

func TestScheduleAtAcceptedFormats(t *testing.T) {
	service, _, _ := newTestService(t)

	inputs := []string{
		"2024-12-25T09:00:00",
		"2024-12-25 09:00:00",
		"2024-12-25 09:00",
		"2024-12-25T09:00",
		"2024-12-25",
	}
	for _, input := range inputs {
		if _, err := service.ScheduleAt("turn off light", input, "thread-42"); err != nil {
			t.Fatalf("format %q rejected: %v", input, err)
		}
	}
}

func TestScheduleAtScenario(t *testing.T) {
	service, _, _ := newTestService(t)

	result, err := service.ScheduleAt("turn off light", "2024-12-25T09:00:00", "thread-42")
	if err != nil {
		t.Fatalf("schedule at failed: %v", err)
	}
	if !strings.Contains(result, "scheduled_1") {
		t.Fatalf("expected id scheduled_1 in result: %s", result)
	}

	listing := service.ListScheduled()
	if !strings.Contains(listing, "2024-12-25 09:00:00 CET") {
		t.Fatalf("listing should show zone-qualified time: %s", listing)
	}
	if !strings.Contains(listing, "turn off light") {
		t.Fatalf("listing should show the payload: %s", listing)
	}

	if _, err := service.CancelScheduled("scheduled_1"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if service.ListScheduled() != "No scheduled messages pending." {
		t.Fatalf("unexpected empty listing: %s", service.ListScheduled())
	}
}

func TestScheduleAtPastDatetime(t *testing.T) {
	service, _, registry := newTestService(t)
	if _, err := service.ScheduleAt("too late", "2020-01-01T00:00:00", "thread-1"); !errors.Is(err, ErrPastTime) {
		t.Fatalf("expected ErrPastTime, got %v", err)
	}
	if len(registry.List()) != 0 {
		t.Fatal("past schedule must leave the registry unchanged")
	}
}

func TestScheduleAtTooFarInFuture(t *testing.T) {
	service, _, _ := newTestService(t)
	if _, err := service.ScheduleAt("next year", "2025-06-01T00:00:00", "thread-1"); !errors.Is(err, ErrTooFarInFuture) {
		t.Fatalf("expected ErrTooFarInFuture, got %v", err)
	}
}

func TestScheduleAtUnparseable(t *testing.T) {
	service, _, _ := newTestService(t)
	for _, input := range []string{"tomorrow", "25-12-2024", "2024/12/25", ""} {
		if _, err := service.ScheduleAt("x", input, "thread-1"); !errors.Is(err, ErrUnparseableTime) {
			t.Fatalf("input %q: expected ErrUnparseableTime, got %v", input, err)
		}
	}
}

func TestScheduleAtInterpretsConfiguredZone(t *testing.T) {
	service, fake, registry := newTestService(t)

	// 11:30 Warsaw on the current day is 10:30 UTC, 30 minutes ahead.
	if _, err := service.ScheduleAt("zone check", "2024-12-24 11:30", "thread-1"); err != nil {
		t.Fatalf("schedule at failed: %v", err)
	}
	entries := registry.List()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].FireAt.Sub(fake.Now()); got != 30*time.Minute {
		t.Fatalf("expected 30m until fire, got %s", got)
	}
}

func TestCancelScheduledNotFound(t *testing.T) {
	service, _, _ := newTestService(t)
	if _, err := service.CancelScheduled("nonexistent_id"); err == nil {
		t.Fatal("expected error for unknown id")
	} else if !strings.Contains(err.Error(), "nonexistent_id") {
		t.Fatalf("error should name the id: %v", err)
	}
}

func TestScheduleRecurring(t *testing.T) {
	service, _, registry := newTestService(t)

	result, err := service.ScheduleRecurring("stand up", "0 9 * * *", "thread-7")
	if err != nil {
		t.Fatalf("schedule recurring failed: %v", err)
	}
	if !strings.Contains(result, "recurring_1") {
		t.Fatalf("expected recurring id in result: %s", result)
	}
	entries := registry.List()
	if len(entries) != 1 || entries[0].CronExpr != "0 9 * * *" {
		t.Fatalf("unexpected entries: %+v", entries)
	}

	if _, err := service.ScheduleRecurring("bad", "not cron", "thread-7"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}
