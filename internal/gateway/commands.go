package gateway

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/homar/homar/internal/store"
)

const helpText = `Available commands:
/remind <duration> <message> - deliver a message after a delay (e.g. /remind 1h30m water the plants)
/at <datetime> <message> - deliver a message at an absolute time (e.g. /at 2024-12-25 09:00 turn off light)
/cron <expression> | <message> - deliver a message on a cron schedule
/scheduled - list pending scheduled messages
/cancel <id> - cancel a scheduled message
/remember <text> - store a memory for this user
/recall [query] - search stored memories
/help - show this help`

var timeOfDayPattern = regexp.MustCompile(`^\d{1,2}:\d{2}(:\d{2})?$`)

func (s *Service) dispatch(ctx context.Context, input MessageInput, payload string) string {
	if !strings.HasPrefix(payload, "/") {
		// Free-form text belongs to the language layer, an external
		// collaborator; the core only records it.
		return ""
	}

	command, args := splitCommand(payload)
	switch command {
	case "/remind":
		return s.commandRemind(args, input.ChatID)
	case "/at":
		return s.commandAt(args, input.ChatID)
	case "/cron":
		return s.commandCron(args, input.ChatID)
	case "/scheduled":
		return s.tools.ListScheduled()
	case "/cancel":
		return s.commandCancel(args)
	case "/remember":
		return s.commandRemember(ctx, input, args)
	case "/recall":
		return s.commandRecall(ctx, input, args)
	case "/help":
		return helpText
	default:
		return fmt.Sprintf("Unknown command %s. Send /help for the list of commands.", command)
	}
}

func (s *Service) commandRemind(args, chatID string) string {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "Usage: /remind <duration> <message>, e.g. /remind 20m check the oven"
	}
	delay, err := time.ParseDuration(fields[0])
	if err != nil || delay <= 0 {
		return fmt.Sprintf("Could not read %q as a duration. Try something like 45s, 20m or 1h30m.", fields[0])
	}
	message := strings.TrimSpace(strings.TrimPrefix(args, fields[0]))

	total := int(delay.Seconds())
	result, err := s.tools.ScheduleDelayed(message, chatID, total/3600, (total%3600)/60, total%60)
	if err != nil {
		return err.Error()
	}
	return result
}

func (s *Service) commandAt(args, chatID string) string {
	datetime, message := splitDatetimeArgument(args)
	if datetime == "" || message == "" {
		return "Usage: /at <datetime> <message>, e.g. /at 2024-12-25 09:00 turn off light"
	}
	result, err := s.tools.ScheduleAt(message, datetime, chatID)
	if err != nil {
		return err.Error()
	}
	return result
}

func (s *Service) commandCron(args, chatID string) string {
	expr, message, found := strings.Cut(args, "|")
	if !found || strings.TrimSpace(expr) == "" || strings.TrimSpace(message) == "" {
		return "Usage: /cron <expression> | <message>, e.g. /cron 0 9 * * * | stand-up reminder"
	}
	result, err := s.tools.ScheduleRecurring(strings.TrimSpace(message), strings.TrimSpace(expr), chatID)
	if err != nil {
		return err.Error()
	}
	return result
}

func (s *Service) commandCancel(args string) string {
	id := strings.TrimSpace(args)
	if id == "" {
		return "Usage: /cancel <id>"
	}
	result, err := s.tools.CancelScheduled(id)
	if err != nil {
		return err.Error()
	}
	return result
}

func (s *Service) commandRemember(ctx context.Context, input MessageInput, args string) string {
	text := strings.TrimSpace(args)
	if text == "" {
		return "Usage: /remember <text>"
	}
	if s.store == nil {
		return "Memory storage is not available."
	}
	if _, err := s.store.AddMemory(ctx, input.FromUserID, text); err != nil {
		s.logger.Error("add memory failed", "error", err)
		return "Could not store that memory."
	}
	return "Noted."
}

func (s *Service) commandRecall(ctx context.Context, input MessageInput, args string) string {
	if s.store == nil {
		return "Memory storage is not available."
	}
	memories, err := s.store.SearchMemories(ctx, input.FromUserID, strings.TrimSpace(args), true)
	if err != nil {
		s.logger.Error("search memories failed", "error", err)
		return "Could not search memories."
	}
	if len(memories) == 0 {
		return "No matching memories."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d memor%s:\n", len(memories), pluralY(len(memories)))
	for _, memory := range memories {
		scope := "you"
		if memory.UserID == store.GlobalMemoryUserID {
			scope = "everyone"
		}
		fmt.Fprintf(&b, "- %s (for %s)\n", memory.Text, scope)
	}
	return strings.TrimRight(b.String(), "\n")
}

func splitCommand(payload string) (string, string) {
	command, rest, _ := strings.Cut(payload, " ")
	return strings.ToLower(command), strings.TrimSpace(rest)
}

// splitDatetimeArgument separates the leading datetime from the message,
// allowing the date and time of day to be space-separated.
func splitDatetimeArgument(args string) (string, string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return "", ""
	}
	datetime := fields[0]
	rest := fields[1:]
	if len(rest) > 0 && timeOfDayPattern.MatchString(rest[0]) {
		datetime += " " + rest[0]
		rest = rest[1:]
	}
	return datetime, strings.Join(rest, " ")
}

func pluralY(count int) string {
	if count == 1 {
		return "y"
	}
	return "ies"
}
