package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/homar/homar/internal/approval"
	"github.com/homar/homar/internal/config"
	"github.com/homar/homar/internal/events"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Environment:            "test",
		HTTPAddr:               "127.0.0.1:0",
		DBPath:                 filepath.Join(t.TempDir(), "homar.sqlite"),
		Timezone:               "UTC",
		MinDelaySeconds:        1,
		MaxDelaySeconds:        604800,
		ApprovalTimeoutSeconds: 300,
		EventBufferSize:        8,
		ShutdownGraceSec:       2,
	}
}

func TestRuntimeStartsAndShutsDown(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runtime, err := New(testConfig(t), logger)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer runtime.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runtime.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("runtime did not shut down")
	}
}

func TestRuntimeRejectsBadTimezone(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := testConfig(t)
	cfg.Timezone = "Not/AZone"
	if _, err := New(cfg, logger); err == nil {
		t.Fatal("expected an error for an unknown timezone")
	}
}

func TestHubRendererPublishesApprovalEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := events.NewHub(8, logger)
	eventCh, cancel := hub.Subscribe()
	defer cancel()

	renderer := &hubRenderer{hub: hub}
	request := approval.Request{
		ID:     "approval-test",
		Target: "chat-1",
		ToolCalls: []approval.ToolCall{
			{Name: "unlock_door", Arguments: map[string]any{"door": "front"}},
		},
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}

	renderedID, err := renderer.Render(request)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if renderedID != "approval-test" {
		t.Fatalf("rendered id = %q, want the request id", renderedID)
	}

	select {
	case event := <-eventCh:
		if event.Type != events.TypeApprovalRequested {
			t.Fatalf("event type = %q", event.Type)
		}
		if event.Payload["id"] != "approval-test" {
			t.Fatalf("event payload = %+v", event.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no approval_requested event published")
	}

	if err := renderer.UpdateRendering(renderedID, approval.Outcome{Decision: approval.DecisionApproved, DecidedBy: "alice"}); err != nil {
		t.Fatalf("UpdateRendering: %v", err)
	}
	select {
	case event := <-eventCh:
		if event.Type != events.TypeApprovalResolved || event.Payload["decision"] != "approved" {
			t.Fatalf("unexpected resolved event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no approval_resolved event published")
	}
}

type failingDeliverer struct{}

func (failingDeliverer) Deliver(context.Context, string, string) error {
	return errors.New("transport unreachable")
}

func TestEventedDelivererReportsFailedHandoff(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := events.NewHub(8, logger)
	eventCh, cancel := hub.Subscribe()
	defer cancel()

	deliverer := &eventedDeliverer{next: failingDeliverer{}, hub: hub}
	if err := deliverer.Deliver(context.Background(), "chat-1", "[DELAYED_COMMAND] water the plants"); err == nil {
		t.Fatal("expected the transport error to propagate")
	}

	select {
	case event := <-eventCh:
		if event.Type != events.TypeDeliveryFired || event.Payload["delivered"] != false {
			t.Fatalf("unexpected event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no delivery_fired event published")
	}
}

func TestHubTransportPublishesMessages(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := events.NewHub(8, logger)
	eventCh, cancel := hub.Subscribe()
	defer cancel()

	transport := &hubTransport{hub: hub}
	if err := transport.Send(context.Background(), "chat-1", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case event := <-eventCh:
		if event.Type != events.TypeMessage || event.Target != "chat-1" || event.Payload["text"] != "hello" {
			t.Fatalf("unexpected message event: %+v", event)
		}
	case <-time.After(time.Second):
		t.Fatal("no message event published")
	}
}
