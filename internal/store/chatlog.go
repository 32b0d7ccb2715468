package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

type ChatMessage struct {
	ID          int64
	ChatID      string
	Direction   string
	ActorID     string
	DisplayName string
	Text        string
	Reinjected  bool
	CreatedAt   time.Time
}

type AppendChatMessageInput struct {
	ChatID      string
	Direction   string
	ActorID     string
	DisplayName string
	Text        string
	Reinjected  bool
}

func (s *Store) AppendChatMessage(ctx context.Context, input AppendChatMessageInput) error {
	chatID := strings.TrimSpace(input.ChatID)
	text := strings.TrimSpace(input.Text)
	if chatID == "" || text == "" {
		return fmt.Errorf("chat id and text are required")
	}
	direction := strings.ToLower(strings.TrimSpace(input.Direction))
	if direction != DirectionInbound && direction != DirectionOutbound {
		return fmt.Errorf("direction must be inbound or outbound")
	}
	reinjected := 0
	if input.Reinjected {
		reinjected = 1
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO chat_messages (chat_id, direction, actor_id, display_name, text, reinjected, created_at_unix)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		chatID,
		direction,
		nullIfEmpty(strings.TrimSpace(input.ActorID)),
		nullIfEmpty(strings.TrimSpace(input.DisplayName)),
		text,
		reinjected,
		time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}
	return nil
}

// TailChatMessages returns the most recent messages of one chat in
// chronological order.
func (s *Store) TailChatMessages(ctx context.Context, chatID string, limit int) ([]ChatMessage, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, chat_id, direction, actor_id, display_name, text, reinjected, created_at_unix
		 FROM chat_messages
		 WHERE chat_id = ?
		 ORDER BY id DESC
		 LIMIT ?`,
		strings.TrimSpace(chatID),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var message ChatMessage
		var actorID, displayName *string
		var reinjected int
		var createdAtUnix int64
		if err := rows.Scan(
			&message.ID,
			&message.ChatID,
			&message.Direction,
			&actorID,
			&displayName,
			&message.Text,
			&reinjected,
			&createdAtUnix,
		); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		if actorID != nil {
			message.ActorID = *actorID
		}
		if displayName != nil {
			message.DisplayName = *displayName
		}
		message.Reinjected = reinjected == 1
		message.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat messages: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
