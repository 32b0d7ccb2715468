// Package tools exposes the caller-facing scheduling and approval entry
// points. Results are phrased for a natural-language layer: every success and
// every validation failure reads as a sentence a chat user can be shown.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/homar/homar/internal/approval"
	"github.com/homar/homar/internal/clock"
	"github.com/homar/homar/internal/schedule"
)

const (
	maxDelayHours = 168
)

var (
	ErrInvalidDuration = errors.New("invalid duration")
	ErrUnparseableTime = errors.New("unparseable datetime")
	ErrPastTime        = errors.New("datetime is in the past")
	ErrTooFarInFuture  = errors.New("datetime is too far in the future")
)

// datetimeLayouts are the accepted textual formats for absolute scheduling,
// tried in order. Date-only input implies midnight.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

type Service struct {
	registry  *schedule.Registry
	approvals *approval.Coordinator
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger

	minDelay time.Duration
	maxDelay time.Duration
}

func NewService(
	registry *schedule.Registry,
	approvals *approval.Coordinator,
	clk clock.Clock,
	location *time.Location,
	minDelay, maxDelay time.Duration,
	logger *slog.Logger,
) *Service {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 7 * 24 * time.Hour
	}
	if location == nil {
		location = time.UTC
	}
	return &Service{
		registry:  registry,
		approvals: approvals,
		clock:     clk,
		location:  location,
		logger:    logger,
		minDelay:  minDelay,
		maxDelay:  maxDelay,
	}
}

// ScheduleDelayed arms a delivery after a relative delay. At least one unit
// must be nonzero and the total must stay within the configured bounds.
func (s *Service) ScheduleDelayed(message, target string, hours, minutes, seconds int) (string, error) {
	if hours < 0 || hours > maxDelayHours {
		return "", fmt.Errorf("%w: hours must be between 0 and %d", ErrInvalidDuration, maxDelayHours)
	}
	if minutes < 0 || minutes > 59 {
		return "", fmt.Errorf("%w: minutes must be between 0 and 59", ErrInvalidDuration)
	}
	if seconds < 0 || seconds > 59 {
		return "", fmt.Errorf("%w: seconds must be between 0 and 59", ErrInvalidDuration)
	}
	delay := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	if delay < s.minDelay {
		return "", fmt.Errorf("%w: delay must be at least %s (all time parameters cannot be zero)", ErrInvalidDuration, s.minDelay)
	}
	if delay > s.maxDelay {
		return "", fmt.Errorf("%w: maximum delay is %s", ErrInvalidDuration, s.maxDelay)
	}

	fireAt := s.clock.Now().Add(delay)
	if _, err := s.registry.Schedule(message, fireAt, target, schedule.KindDelayed); err != nil {
		return "", err
	}
	return fmt.Sprintf("Scheduled to send '%s' in %s.", message, formatDelaySeconds(int(delay.Seconds()))), nil
}

// ScheduleAt arms a delivery at an absolute wall-clock time, interpreted in
// the configured timezone with daylight-saving awareness.
func (s *Service) ScheduleAt(message, datetimeStr, target string) (string, error) {
	fireAt, err := s.parseDatetime(datetimeStr)
	if err != nil {
		return "", err
	}

	now := s.clock.Now()
	if !fireAt.After(now) {
		return "", fmt.Errorf("%w: %s has already passed", ErrPastTime, fireAt.Format("2006-01-02 15:04:05 MST"))
	}
	if fireAt.Sub(now) > s.maxDelay {
		return "", fmt.Errorf("%w: scheduling is limited to %s ahead", ErrTooFarInFuture, s.maxDelay)
	}

	id, err := s.registry.Schedule(message, fireAt, target, schedule.KindScheduled)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Scheduled to send '%s' at %s (ID: %s).",
		message, fireAt.In(s.location).Format("2006-01-02 15:04:05 MST"), id), nil
}

// ScheduleRecurring arms a cron-driven delivery evaluated in the configured
// timezone.
func (s *Service) ScheduleRecurring(message, cronExpr, target string) (string, error) {
	id, err := s.registry.ScheduleCron(message, cronExpr, target)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidDuration, err.Error())
	}
	entries := s.registry.List()
	next := ""
	for _, entry := range entries {
		if entry.ID == id {
			next = entry.FireAt.In(s.location).Format("2006-01-02 15:04:05 MST")
			break
		}
	}
	return fmt.Sprintf("Scheduled recurring message '%s' (ID: %s), next at %s.", message, id, next), nil
}

// ListScheduled enumerates pending deliveries as human-readable text. The
// empty case is an explicit sentence, not an empty collection, because the
// result is consumed as natural language upstream.
func (s *Service) ListScheduled() string {
	entries := s.registry.List()
	if len(entries) == 0 {
		return "No scheduled messages pending."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d scheduled message(s):\n", len(entries))
	for _, entry := range entries {
		fmt.Fprintf(&b, "\n- ID: %s\n", entry.ID)
		fmt.Fprintf(&b, "  Time: %s\n", entry.FireAt.In(s.location).Format("2006-01-02 15:04:05 MST"))
		if entry.CronExpr != "" {
			fmt.Fprintf(&b, "  Repeats: %s\n", entry.CronExpr)
		}
		fmt.Fprintf(&b, "  Message: %s\n", entry.Payload)
	}
	return strings.TrimRight(b.String(), "\n")
}

// PendingEntries exposes the raw pending deliveries for programmatic callers
// that want structure rather than the chat rendering.
func (s *Service) PendingEntries() []schedule.Entry {
	return s.registry.List()
}

// CancelScheduled cancels a pending delivery by id.
func (s *Service) CancelScheduled(id string) (string, error) {
	if err := s.registry.Cancel(id); err != nil {
		return "", fmt.Errorf("could not find scheduled message with ID: %s; use the list of scheduled messages to see available IDs", id)
	}
	return fmt.Sprintf("Successfully cancelled scheduled message: %s", id), nil
}

// RequestApproval gates an action batch on an external decision. The caller
// blocks until the decision, the timeout, or ctx cancellation.
func (s *Service) RequestApproval(ctx context.Context, toolCalls []approval.ToolCall, target string) (approval.Outcome, error) {
	return s.approvals.Request(ctx, toolCalls, target, 0)
}

func (s *Service) parseDatetime(datetimeStr string) (time.Time, error) {
	trimmed := strings.TrimSpace(datetimeStr)
	for _, layout := range datetimeLayouts {
		parsed, err := time.ParseInLocation(layout, trimmed, s.location)
		if err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q (expected formats like 2024-12-25T09:00:00 or 2024-12-25 09:00)", ErrUnparseableTime, trimmed)
}

// formatDelaySeconds phrases a delay the way a person would say it.
func formatDelaySeconds(seconds int) string {
	if seconds < 60 {
		return fmt.Sprintf("%d seconds", seconds)
	}
	if seconds < 3600 {
		return fmt.Sprintf("%d minutes", seconds/60)
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if minutes == 0 {
		return fmt.Sprintf("%d hours", hours)
	}
	return fmt.Sprintf("%d hours and %d minutes", hours, minutes)
}
