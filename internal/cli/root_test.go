package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRootIncludesExpectedCommands(t *testing.T) {
	root := NewRoot(nil)
	expected := []string{"serve", "chat", "scheduled", "approvals", "version"}
	for _, name := range expected {
		if _, _, err := root.Find([]string{name}); err != nil {
			t.Fatalf("expected command %q to exist: %v", name, err)
		}
	}
}

func TestScheduledIncludesCancelSubcommand(t *testing.T) {
	cmd := newScheduledCommand(nil)
	if _, _, err := cmd.Find([]string{"cancel"}); err != nil {
		t.Fatalf("expected cancel subcommand: %v", err)
	}
}

func TestApprovalsIncludesResolveSubcommands(t *testing.T) {
	cmd := newApprovalsCommand(nil)
	for _, name := range []string{"approve", "reject"} {
		if _, _, err := cmd.Find([]string{name}); err != nil {
			t.Fatalf("expected subcommand %q to exist: %v", name, err)
		}
	}
}

func TestVersionCommandPrintsVersion(t *testing.T) {
	cmd := newVersionCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)
	if strings.TrimSpace(out.String()) != version {
		t.Fatalf("version output = %q", out.String())
	}
}

func TestChatCommandSingleMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/chat", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"reply": "No scheduled messages pending."})
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	t.Setenv("HOMAR_API_URL", server.URL)

	cmd := newChatCommand(nil)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--message", "/scheduled", "--timeout-sec", "5"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("chat command: %v", err)
	}
	if !strings.Contains(out.String(), "No scheduled messages pending.") {
		t.Fatalf("output = %q", out.String())
	}
}

func TestBoundedTimeout(t *testing.T) {
	if got := boundedTimeout(0); got != 120*time.Second {
		t.Fatalf("boundedTimeout(0) = %v", got)
	}
	if got := boundedTimeout(10_000); got != 600*time.Second {
		t.Fatalf("boundedTimeout(10000) = %v", got)
	}
	if got := boundedTimeout(30); got != 30*time.Second {
		t.Fatalf("boundedTimeout(30) = %v", got)
	}
}
