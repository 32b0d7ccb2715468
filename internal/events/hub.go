// Package events streams runtime events (outbound messages, fired deliveries,
// approval requests and outcomes) to connected rendering clients over
// websockets, and feeds approval decisions back from them.
package events

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type Type string

const (
	TypeMessage           Type = "message"
	TypeDeliveryFired     Type = "delivery_fired"
	TypeApprovalRequested Type = "approval_requested"
	TypeApprovalResolved  Type = "approval_resolved"
	TypeDecisionAck       Type = "approval_decision_ack"
)

type Event struct {
	Type    Type           `json:"type"`
	Target  string         `json:"target,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	At      time.Time      `json:"at"`
}

// DecisionFrame is what a rendering client sends back when a user clicks
// approve or reject.
type DecisionFrame struct {
	Type     string `json:"type"`
	ID       string `json:"id"`
	Decision string `json:"decision"`
	Actor    string `json:"actor"`
}

// DecisionHandler applies an external approval decision.
type DecisionHandler func(id, decision, actor string) error

type subscriber struct {
	ch chan Event
}

type Hub struct {
	logger     *slog.Logger
	bufferSize int
	upgrader   websocket.Upgrader

	mu          sync.Mutex
	subscribers map[*subscriber]struct{}
	decision    DecisionHandler
}

func NewHub(bufferSize int, logger *slog.Logger) *Hub {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &Hub{
		logger:      logger,
		bufferSize:  bufferSize,
		upgrader:    websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		subscribers: map[*subscriber]struct{}{},
	}
}

// SetDecisionHandler wires the approval coordinator in after construction;
// the hub and the coordinator reference each other.
func (h *Hub) SetDecisionHandler(handler DecisionHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.decision = handler
}

// Publish fans an event out to all subscribers. Slow subscribers drop events
// rather than blocking the producer.
func (h *Hub) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers {
		select {
		case sub.ch <- event:
		default:
			h.logger.Warn("event dropped for slow subscriber", "type", string(event.Type))
		}
	}
}

// Subscribe registers an event listener. The returned cancel func must be
// called to release the subscription.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, h.bufferSize)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
	}
	return sub.ch, cancel
}

// HandleWS upgrades the connection and pumps events to the client while
// reading decision frames back. One writer goroutine per connection; acks to
// a decision travel through the same event channel as broadcasts.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	sub := &subscriber{ch: make(chan Event, h.bufferSize)}
	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer conn.Close()
		for {
			select {
			case event := <-sub.ch:
				if err := conn.WriteJSON(event); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	defer func() {
		close(done)
		h.mu.Lock()
		delete(h.subscribers, sub)
		h.mu.Unlock()
	}()

	for {
		var frame DecisionFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Type != "approval_decision" {
			continue
		}
		h.mu.Lock()
		handler := h.decision
		h.mu.Unlock()
		if handler == nil {
			continue
		}
		ack := Event{
			Type:    TypeDecisionAck,
			Payload: map[string]any{"id": frame.ID, "status": "ok"},
			At:      time.Now().UTC(),
		}
		if err := handler(frame.ID, frame.Decision, frame.Actor); err != nil {
			ack.Payload["status"] = "error"
			ack.Payload["error"] = err.Error()
		}
		select {
		case sub.ch <- ack:
		default:
		}
	}
}
