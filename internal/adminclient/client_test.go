package adminclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/homar/homar/internal/config"
)

func newTestClient(handler http.Handler) (*Client, func()) {
	server := httptest.NewServer(handler)
	client := New(config.Config{ClientAPIURL: server.URL, ClientTimeoutSec: 5})
	return client, server.Close
}

func TestChatRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		var payload ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload.ChatID != "chat-1" || payload.Text != "/scheduled" {
			t.Fatalf("unexpected request: %+v", payload)
		}
		json.NewEncoder(w).Encode(ChatResponse{Reply: "No scheduled messages pending."})
	})
	client, closeServer := newTestClient(mux)
	defer closeServer()

	response, err := client.Chat(context.Background(), ChatRequest{ChatID: "chat-1", Text: "/scheduled"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if response.Reply != "No scheduled messages pending." {
		t.Fatalf("reply = %q", response.Reply)
	}
}

func TestErrorPayloadSurfaced(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/scheduled/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "could not find scheduled message with ID: delayed_9"})
	})
	client, closeServer := newTestClient(mux)
	defer closeServer()

	err := client.CancelScheduled(context.Background(), "delayed_9")
	if err == nil || err.Error() != "could not find scheduled message with ID: delayed_9" {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelRequiresID(t *testing.T) {
	client := New(config.Config{ClientAPIURL: "http://127.0.0.1:0"})
	if err := client.CancelScheduled(context.Background(), "  "); err == nil {
		t.Fatal("expected an error for a blank id")
	}
}
