// Package approval gates sensitive actions behind an external yes/no decision
// with a bounded wait. Exactly one resolution path wins per request: an
// external decision, the timeout, or caller cancellation.
package approval

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/homar/homar/internal/clock"
)

type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionExpired  Decision = "expired"
)

var (
	ErrNotFound        = errors.New("approval request not found")
	ErrAlreadyResolved = errors.New("approval request already resolved")
	ErrNoToolCalls     = errors.New("approval request has no tool calls")
	ErrBadDecision     = errors.New("decision must be approved or rejected")
)

// ToolCall describes one action awaiting confirmation. The batch is resolved
// as a whole; the ordered slice shape leaves room for per-call resolution
// later.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type Request struct {
	ID        string     `json:"id"`
	ToolCalls []ToolCall `json:"tool_calls"`
	Target    string     `json:"target"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Outcome is the terminal result of one approval request.
type Outcome struct {
	Decision  Decision `json:"decision"`
	DecidedBy string   `json:"decided_by,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Renderer displays a pending request to the target channel and later updates
// that rendering with the outcome. It is a pure consumer: decisions flow back
// only through Coordinator.Resolve.
type Renderer interface {
	Render(req Request) (renderedID string, err error)
	UpdateRendering(renderedID string, outcome Outcome) error
}

type pendingApproval struct {
	request    Request
	renderedID string
	resultCh   chan Outcome
}

// Coordinator owns all pending approval requests. Removal from the pending
// map is the commit point of the terminal transition: whoever deletes the
// entry decides the outcome, everyone else observes not-found.
type Coordinator struct {
	renderer       Renderer
	clock          clock.Clock
	logger         *slog.Logger
	defaultTimeout time.Duration

	mu       sync.Mutex
	pending  map[string]*pendingApproval
	resolved map[string]time.Time

	resolvedTTL time.Duration
}

func NewCoordinator(renderer Renderer, clk clock.Clock, defaultTimeout time.Duration, logger *slog.Logger) *Coordinator {
	if defaultTimeout <= 0 {
		defaultTimeout = 300 * time.Second
	}
	return &Coordinator{
		renderer:       renderer,
		clock:          clk,
		logger:         logger,
		defaultTimeout: defaultTimeout,
		pending:        map[string]*pendingApproval{},
		resolved:       map[string]time.Time{},
		resolvedTTL:    10 * time.Minute,
	}
}

// Request renders the approval request and blocks the caller until an
// external decision arrives, the timeout elapses, or ctx is cancelled.
// A timeout of zero uses the coordinator default.
func (c *Coordinator) Request(ctx context.Context, toolCalls []ToolCall, target string, timeout time.Duration) (Outcome, error) {
	if len(toolCalls) == 0 {
		return Outcome{}, ErrNoToolCalls
	}
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}

	now := c.clock.Now()
	req := Request{
		ID:        "approval-" + uuid.NewString(),
		ToolCalls: toolCalls,
		Target:    target,
		CreatedAt: now,
		ExpiresAt: now.Add(timeout),
	}
	entry := &pendingApproval{
		request:  req,
		resultCh: make(chan Outcome, 1),
	}

	c.mu.Lock()
	c.pending[req.ID] = entry
	c.mu.Unlock()

	renderedID, err := c.renderer.Render(req)
	if err != nil {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return Outcome{}, err
	}
	c.mu.Lock()
	entry.renderedID = renderedID
	c.mu.Unlock()

	c.logger.Info("approval requested",
		"id", req.ID, "target", target, "tool_calls", len(toolCalls), "timeout", timeout.String())

	timer := c.clock.NewTimer(timeout)
	defer timer.Stop()

	var outcome Outcome
	select {
	case outcome = <-entry.resultCh:
	case <-timer.C():
		outcome = c.expire(entry)
	case <-ctx.Done():
		outcome = c.abort(entry, ctx.Err())
	}

	if err := c.renderer.UpdateRendering(renderedID, outcome); err != nil {
		c.logger.Error("approval rendering update failed", "id", req.ID, "error", err)
	}
	c.logger.Info("approval resolved",
		"id", req.ID, "decision", string(outcome.Decision), "decided_by", outcome.DecidedBy)
	return outcome, nil
}

// Resolve records an external decision. It is safe to race with the timeout:
// the loser observes ErrNotFound (request no longer pending) and a repeated
// decision on an already decided id observes ErrAlreadyResolved.
func (c *Coordinator) Resolve(id string, decision Decision, actor string) error {
	if decision != DecisionApproved && decision != DecisionRejected {
		return ErrBadDecision
	}

	now := c.clock.Now()
	c.mu.Lock()
	c.pruneResolved(now)
	entry, ok := c.pending[id]
	if !ok {
		_, wasResolved := c.resolved[id]
		c.mu.Unlock()
		if wasResolved {
			return ErrAlreadyResolved
		}
		return ErrNotFound
	}
	delete(c.pending, id)
	c.resolved[id] = now.Add(c.resolvedTTL)
	c.mu.Unlock()

	entry.resultCh <- Outcome{Decision: decision, DecidedBy: actor}
	return nil
}

// Pending snapshots the requests still awaiting a decision.
func (c *Coordinator) Pending() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	requests := make([]Request, 0, len(c.pending))
	for _, entry := range c.pending {
		requests = append(requests, entry.request)
	}
	return requests
}

// expire claims the timeout transition. If an external decision won the race
// first, the decision outcome is drained from the result channel instead.
func (c *Coordinator) expire(entry *pendingApproval) Outcome {
	c.mu.Lock()
	if _, ok := c.pending[entry.request.ID]; !ok {
		c.mu.Unlock()
		return <-entry.resultCh
	}
	delete(c.pending, entry.request.ID)
	c.mu.Unlock()
	return Outcome{Decision: DecisionExpired, Reason: "approval request timed out"}
}

func (c *Coordinator) abort(entry *pendingApproval, cause error) Outcome {
	c.mu.Lock()
	if _, ok := c.pending[entry.request.ID]; !ok {
		c.mu.Unlock()
		return <-entry.resultCh
	}
	delete(c.pending, entry.request.ID)
	c.mu.Unlock()
	reason := "approval request aborted"
	if cause != nil {
		reason = "approval request aborted: " + cause.Error()
	}
	return Outcome{Decision: DecisionExpired, Reason: reason}
}

func (c *Coordinator) pruneResolved(now time.Time) {
	for id, expiry := range c.resolved {
		if !expiry.After(now) {
			delete(c.resolved, id)
		}
	}
}
