// Package adminclient is the thin HTTP client behind the operator CLI
// commands. It mirrors the httpapi surface.
package adminclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/homar/homar/internal/config"
)

type Client struct {
	baseURL string
	http    *http.Client
}

type ChatRequest struct {
	ChatID      string `json:"chat_id"`
	FromUserID  string `json:"from_user_id"`
	DisplayName string `json:"display_name"`
	Text        string `json:"text"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type ScheduledEntry struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
	Target     string `json:"target"`
	FireAtUnix int64  `json:"fire_at_unix"`
	Cron       string `json:"cron"`
}

type ListScheduledResponse struct {
	Items []ScheduledEntry `json:"items"`
	Count int              `json:"count"`
}

type ChatMessage struct {
	ID            int64  `json:"id"`
	ChatID        string `json:"chat_id"`
	Direction     string `json:"direction"`
	ActorID       string `json:"actor_id"`
	DisplayName   string `json:"display_name"`
	Text          string `json:"text"`
	Reinjected    bool   `json:"reinjected"`
	CreatedAtUnix int64  `json:"created_at_unix"`
}

type TailResponse struct {
	Items []ChatMessage `json:"items"`
	Count int           `json:"count"`
}

func New(cfg config.Config) *Client {
	timeout := time.Duration(cfg.ClientTimeoutSec) * time.Second
	if timeout < time.Second {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.ClientAPIURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Chat(ctx context.Context, request ChatRequest) (ChatResponse, error) {
	var response ChatResponse
	err := c.postJSON(ctx, "/api/v1/chat", request, &response)
	return response, err
}

func (c *Client) ListScheduled(ctx context.Context) (ListScheduledResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/scheduled", nil)
	if err != nil {
		return ListScheduledResponse{}, err
	}
	var response ListScheduledResponse
	if err := c.doJSON(req, &response); err != nil {
		return ListScheduledResponse{}, err
	}
	return response, nil
}

func (c *Client) CancelScheduled(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("scheduled message id is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/scheduled/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

func (c *Client) ListApprovals(ctx context.Context) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/approvals", nil)
	if err != nil {
		return nil, err
	}
	var response struct {
		Items []map[string]any `json:"items"`
	}
	if err := c.doJSON(req, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

func (c *Client) ResolveApproval(ctx context.Context, id, decision, actor string) error {
	payload := map[string]string{"id": id, "decision": decision, "actor": actor}
	return c.postJSON(ctx, "/api/v1/approvals/resolve", payload, nil)
}

func (c *Client) TailChat(ctx context.Context, chatID string, limit int) (TailResponse, error) {
	endpoint := c.baseURL + "/api/v1/chat/tail?chat_id=" + url.QueryEscape(chatID)
	if limit > 0 {
		endpoint += "&limit=" + strconv.Itoa(limit)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return TailResponse{}, err
	}
	var response TailResponse
	if err := c.doJSON(req, &response); err != nil {
		return TailResponse{}, err
	}
	return response, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(requestBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.doJSON(req, out)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return errors.New(apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
