// Package gateway is the message-pipeline side of the core: it receives chat
// messages, recognizes re-injected scheduler payloads by their marker,
// dispatches slash commands into the tool layer, and records the transcript.
package gateway

import (
	"context"
	"log/slog"
	"strings"

	"github.com/homar/homar/internal/schedule"
	"github.com/homar/homar/internal/store"
	"github.com/homar/homar/internal/tools"
)

// SchedulerActorID identifies transcript entries written by a fired delivery
// rather than a human.
const SchedulerActorID = "homar:scheduler"

// Transport sends a message into a chat thread. Implementations are external
// collaborators (websocket hub, chat connector, test fake).
type Transport interface {
	Send(ctx context.Context, target, text string) error
}

type MessageInput struct {
	ChatID      string
	FromUserID  string
	DisplayName string
	Text        string
}

type Service struct {
	tools     *tools.Service
	store     *store.Store
	transport Transport
	logger    *slog.Logger
}

func NewService(toolService *tools.Service, st *store.Store, transport Transport, logger *slog.Logger) *Service {
	return &Service{
		tools:     toolService,
		store:     st,
		transport: transport,
		logger:    logger,
	}
}

// HandleMessage processes one inbound message: strips the re-injection
// marker, records the transcript, and dispatches slash commands. The reply,
// if any, is sent back through the transport and returned.
func (s *Service) HandleMessage(ctx context.Context, input MessageInput) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" || strings.TrimSpace(input.ChatID) == "" {
		return "", nil
	}

	payload, reinjected := schedule.Unmark(text)
	actorID := strings.TrimSpace(input.FromUserID)
	if reinjected && actorID == "" {
		actorID = SchedulerActorID
	}
	s.record(ctx, store.AppendChatMessageInput{
		ChatID:      input.ChatID,
		Direction:   store.DirectionInbound,
		ActorID:     actorID,
		DisplayName: input.DisplayName,
		Text:        payload,
		Reinjected:  reinjected,
	})

	reply := s.dispatch(ctx, input, payload)
	if reply == "" {
		return "", nil
	}

	s.record(ctx, store.AppendChatMessageInput{
		ChatID:    input.ChatID,
		Direction: store.DirectionOutbound,
		Text:      reply,
	})
	if err := s.transport.Send(ctx, input.ChatID, reply); err != nil {
		s.logger.Error("reply send failed", "chat_id", input.ChatID, "error", err)
	}
	return reply, nil
}

// Deliver implements schedule.Deliverer: the fired payload is echoed into the
// thread and re-enters the pipeline as if it had just arrived, marker intact.
func (s *Service) Deliver(ctx context.Context, target, payload string) error {
	sendErr := s.transport.Send(ctx, target, payload)
	if _, err := s.HandleMessage(ctx, MessageInput{ChatID: target, Text: payload}); err != nil {
		s.logger.Error("re-injection failed", "target", target, "error", err)
	}
	return sendErr
}

func (s *Service) record(ctx context.Context, input store.AppendChatMessageInput) {
	if s.store == nil {
		return
	}
	if err := s.store.AppendChatMessage(ctx, input); err != nil {
		s.logger.Error("transcript append failed", "chat_id", input.ChatID, "error", err)
	}
}
