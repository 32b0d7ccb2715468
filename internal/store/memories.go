package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GlobalMemoryUserID scopes memories that apply to everyone rather than to a
// single user.
const GlobalMemoryUserID = "__GLOBAL__"

var ErrMemoryNotFound = errors.New("memory not found")

type Memory struct {
	ID        string
	UserID    string
	Text      string
	CreatedAt time.Time
}

func (s *Store) AddMemory(ctx context.Context, userID, text string) (Memory, error) {
	userID = strings.TrimSpace(userID)
	text = strings.TrimSpace(text)
	if userID == "" {
		userID = GlobalMemoryUserID
	}
	if text == "" {
		return Memory{}, fmt.Errorf("memory text is required")
	}
	memory := Memory{
		ID:        "memory-" + uuid.NewString(),
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(
		ctx,
		`INSERT INTO memories (id, user_id, text, created_at_unix) VALUES (?, ?, ?, ?)`,
		memory.ID,
		memory.UserID,
		memory.Text,
		memory.CreatedAt.Unix(),
	); err != nil {
		return Memory{}, fmt.Errorf("insert memory: %w", err)
	}
	return memory, nil
}

// SearchMemories returns memories whose text contains the query, matching the
// user's own scope and, when includeGlobal is set, the global scope too.
// An empty query returns everything in scope.
func (s *Store) SearchMemories(ctx context.Context, userID, query string, includeGlobal bool) ([]Memory, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = GlobalMemoryUserID
	}
	pattern := "%" + strings.TrimSpace(query) + "%"

	scope := `user_id = ?`
	args := []any{pattern, userID}
	if includeGlobal && userID != GlobalMemoryUserID {
		scope = `user_id IN (?, ?)`
		args = append(args, GlobalMemoryUserID)
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, user_id, text, created_at_unix
		 FROM memories
		 WHERE text LIKE ? AND `+scope+`
		 ORDER BY created_at_unix DESC, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var memories []Memory
	for rows.Next() {
		var memory Memory
		var createdAtUnix int64
		if err := rows.Scan(&memory.ID, &memory.UserID, &memory.Text, &createdAtUnix); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		memory.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
		memories = append(memories, memory)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memories: %w", err)
	}
	return memories, nil
}

func (s *Store) DeleteMemory(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete memory result: %w", err)
	}
	if affected == 0 {
		return ErrMemoryNotFound
	}
	return nil
}
