// Package httpapi exposes the scheduler, the approval gate and the chat
// pipeline over HTTP for operators and external connectors.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/homar/homar/internal/approval"
	"github.com/homar/homar/internal/config"
	"github.com/homar/homar/internal/events"
	"github.com/homar/homar/internal/gateway"
	"github.com/homar/homar/internal/health"
	"github.com/homar/homar/internal/store"
	"github.com/homar/homar/internal/tools"
)

type Dependencies struct {
	Config    config.Config
	Store     *store.Store
	Tools     *tools.Service
	Approvals *approval.Coordinator
	Gateway   *gateway.Service
	Health    *health.Registry
	Hub       *events.Hub
	Logger    *slog.Logger
}

type router struct {
	deps Dependencies
}

func NewRouter(deps Dependencies) http.Handler {
	rt := &router{deps: deps}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.handleHealth)
	mux.HandleFunc("/readyz", rt.handleReady)
	mux.HandleFunc("/api/v1/info", rt.handleInfo)
	mux.HandleFunc("/api/v1/scheduled", rt.handleScheduled)
	mux.HandleFunc("/api/v1/scheduled/", rt.handleScheduledByID)
	mux.HandleFunc("/api/v1/approvals", rt.handleApprovals)
	mux.HandleFunc("/api/v1/approvals/resolve", rt.handleApprovalResolve)
	mux.HandleFunc("/api/v1/chat", rt.handleChat)
	mux.HandleFunc("/api/v1/chat/tail", rt.handleChatTail)
	if deps.Hub != nil {
		mux.HandleFunc("/ws", deps.Hub.HandleWS)
	}
	return mux
}

func (r *router) handleHealth(w http.ResponseWriter, req *http.Request) {
	overall, components := r.deps.Health.Snapshot()
	payload := make([]map[string]any, 0, len(components))
	for _, component := range components {
		payload = append(payload, map[string]any{
			"component": component.Name,
			"state":     component.State,
			"message":   component.Message,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": overall, "components": payload})
}

func (r *router) handleReady(w http.ResponseWriter, req *http.Request) {
	if err := r.deps.Store.Ping(req.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not-ready", "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (r *router) handleInfo(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":     "homar",
		"timezone": r.deps.Config.Timezone,
	})
}

type scheduleRequest struct {
	Message  string `json:"message"`
	Target   string `json:"target"`
	Hours    int    `json:"hours"`
	Minutes  int    `json:"minutes"`
	Seconds  int    `json:"seconds"`
	Datetime string `json:"datetime"`
	Cron     string `json:"cron"`
}

func (r *router) handleScheduled(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.handleScheduledList(w, req)
	case http.MethodPost:
		r.handleScheduledCreate(w, req)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (r *router) handleScheduledList(w http.ResponseWriter, req *http.Request) {
	entries := r.deps.Tools.PendingEntries()
	payload := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		item := map[string]any{
			"id":           entry.ID,
			"kind":         entry.Kind,
			"message":      entry.Payload,
			"target":       entry.Target,
			"fire_at_unix": entry.FireAt.Unix(),
		}
		if entry.CronExpr != "" {
			item["cron"] = entry.CronExpr
		}
		payload = append(payload, item)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": payload,
		"count": len(payload),
	})
}

func (r *router) handleScheduledCreate(w http.ResponseWriter, req *http.Request) {
	var payload scheduleRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "message is required"})
		return
	}

	var result string
	var err error
	switch {
	case strings.TrimSpace(payload.Cron) != "":
		result, err = r.deps.Tools.ScheduleRecurring(payload.Message, payload.Cron, payload.Target)
	case strings.TrimSpace(payload.Datetime) != "":
		result, err = r.deps.Tools.ScheduleAt(payload.Message, payload.Datetime, payload.Target)
	default:
		result, err = r.deps.Tools.ScheduleDelayed(payload.Message, payload.Target, payload.Hours, payload.Minutes, payload.Seconds)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"result": result})
}

func (r *router) handleScheduledByID(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodDelete {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	id := strings.TrimPrefix(req.URL.Path, "/api/v1/scheduled/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "scheduled message id is required"})
		return
	}

	result, err := r.deps.Tools.CancelScheduled(id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": result})
}

func (r *router) handleApprovals(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	pending := r.deps.Approvals.Pending()
	writeJSON(w, http.StatusOK, map[string]any{
		"items": pending,
		"count": len(pending),
	})
}

type resolveRequest struct {
	ID       string `json:"id"`
	Decision string `json:"decision"`
	Actor    string `json:"actor"`
}

func (r *router) handleApprovalResolve(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var payload resolveRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.ID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is required"})
		return
	}

	err := r.deps.Approvals.Resolve(payload.ID, approval.Decision(payload.Decision), payload.Actor)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, approval.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, approval.ErrAlreadyResolved):
			status = http.StatusConflict
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":       payload.ID,
		"decision": payload.Decision,
	})
}

type chatRequest struct {
	ChatID      string `json:"chat_id"`
	FromUserID  string `json:"from_user_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.ChatID) == "" || strings.TrimSpace(payload.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat_id and text are required"})
		return
	}

	reply, err := r.deps.Gateway.HandleMessage(req.Context(), gateway.MessageInput{
		ChatID:      payload.ChatID,
		FromUserID:  payload.FromUserID,
		DisplayName: payload.DisplayName,
		Text:        payload.Text,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (r *router) handleChatTail(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	chatID := strings.TrimSpace(req.URL.Query().Get("chat_id"))
	if chatID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "chat_id query parameter is required"})
		return
	}
	limit := 50
	if raw := strings.TrimSpace(req.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 {
			limit = parsed
		}
	}

	messages, err := r.deps.Store.TailChatMessages(req.Context(), chatID, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	payload := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		payload = append(payload, map[string]any{
			"id":              message.ID,
			"chat_id":         message.ChatID,
			"direction":       message.Direction,
			"actor_id":        message.ActorID,
			"display_name":    message.DisplayName,
			"text":            message.Text,
			"reinjected":      message.Reinjected,
			"created_at_unix": message.CreatedAt.Unix(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": payload,
		"count": len(payload),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
