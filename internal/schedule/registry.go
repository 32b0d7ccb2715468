// Package schedule owns deferred deliveries: payloads armed to be re-injected
// into the message pipeline at a future time. State is in-memory only and is
// lost on restart.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/homar/homar/internal/clock"
)

type Kind string

const (
	KindDelayed   Kind = "delayed"
	KindScheduled Kind = "scheduled"
	KindRecurring Kind = "recurring"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusFired     Status = "fired"
	StatusCancelled Status = "cancelled"
)

var (
	ErrNotFound     = errors.New("scheduled delivery not found")
	ErrPastFireTime = errors.New("fire time is not in the future")
)

// Deliverer hands a marked payload to the transport. Errors are logged and
// never retried; a failed attempt still counts as fired.
type Deliverer interface {
	Deliver(ctx context.Context, target, payload string) error
}

// Entry is a point-in-time snapshot of one pending delivery.
type Entry struct {
	ID       string
	Payload  string
	FireAt   time.Time
	Target   string
	Kind     Kind
	CronExpr string
}

type delivery struct {
	id       string
	payload  string
	target   string
	kind     Kind
	cronExpr string
	fireAt   time.Time
	status   Status
	cancelCh chan struct{}
}

// Registry is the single owner of all pending deliveries. Every mutation
// happens under its mutex; each delivery additionally runs its own goroutine
// that waits on the armed timer or the cancel signal, whichever comes first.
type Registry struct {
	deliverer Deliverer
	clock     clock.Clock
	location  *time.Location
	logger    *slog.Logger

	mu       sync.Mutex
	entries  map[string]*delivery
	counters map[Kind]int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRegistry(deliverer Deliverer, clk clock.Clock, location *time.Location, logger *slog.Logger) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	if location == nil {
		location = time.UTC
	}
	return &Registry{
		deliverer: deliverer,
		clock:     clk,
		location:  location,
		logger:    logger,
		entries:   map[string]*delivery{},
		counters:  map[Kind]int{},
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Schedule arms a one-shot delivery. It never blocks: the wait happens in a
// dedicated goroutine. fireAt must be in the future; bounds policy (minimum
// and maximum delay) belongs to the caller-facing layer.
func (r *Registry) Schedule(payload string, fireAt time.Time, target string, kind Kind) (string, error) {
	now := r.clock.Now()
	if !fireAt.After(now) {
		return "", ErrPastFireTime
	}

	r.mu.Lock()
	r.counters[kind]++
	id := fmt.Sprintf("%s_%d", kind, r.counters[kind])
	d := &delivery{
		id:       id,
		payload:  payload,
		target:   target,
		kind:     kind,
		fireAt:   fireAt,
		status:   StatusPending,
		cancelCh: make(chan struct{}),
	}
	r.entries[id] = d
	r.mu.Unlock()

	timer := r.clock.NewTimer(fireAt.Sub(now))
	r.wg.Add(1)
	go r.run(d, timer)

	r.logger.Info("scheduled delivery armed",
		"id", id, "target", target, "fire_at", fireAt.In(r.location).Format(time.RFC3339))
	return id, nil
}

// ScheduleCron arms a recurring delivery driven by a cron expression
// evaluated in the registry timezone. After each fire the entry re-arms at
// the next occurrence until cancelled.
func (r *Registry) ScheduleCron(payload, cronExpr, target string) (string, error) {
	next, err := NextCronTime(cronExpr, r.location, r.clock.Now())
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.counters[KindRecurring]++
	id := fmt.Sprintf("%s_%d", KindRecurring, r.counters[KindRecurring])
	d := &delivery{
		id:       id,
		payload:  payload,
		target:   target,
		kind:     KindRecurring,
		cronExpr: cronExpr,
		fireAt:   next,
		status:   StatusPending,
		cancelCh: make(chan struct{}),
	}
	r.entries[id] = d
	r.mu.Unlock()

	timer := r.clock.NewTimer(next.Sub(r.clock.Now()))
	r.wg.Add(1)
	go r.run(d, timer)

	r.logger.Info("recurring delivery armed",
		"id", id, "target", target, "cron", cronExpr,
		"next_fire_at", next.In(r.location).Format(time.RFC3339))
	return id, nil
}

// Cancel transitions a pending delivery to cancelled and signals its
// goroutine. Unknown ids and deliveries that already fired (including a fire
// currently in flight) report ErrNotFound: cancellation after the terminal
// transition is impossible, not retryable.
func (r *Registry) Cancel(id string) error {
	r.mu.Lock()
	d, ok := r.entries[id]
	if !ok || d.status != StatusPending {
		r.mu.Unlock()
		return ErrNotFound
	}
	d.status = StatusCancelled
	delete(r.entries, id)
	r.mu.Unlock()

	close(d.cancelCh)
	r.logger.Info("scheduled delivery cancelled", "id", id)
	return nil
}

// List snapshots all pending deliveries ordered by fire time, soonest first.
func (r *Registry) List() []Entry {
	r.mu.Lock()
	entries := make([]Entry, 0, len(r.entries))
	for _, d := range r.entries {
		if d.status != StatusPending {
			continue
		}
		entries = append(entries, Entry{
			ID:       d.id,
			Payload:  d.payload,
			FireAt:   d.fireAt,
			Target:   d.target,
			Kind:     d.kind,
			CronExpr: d.cronExpr,
		})
	}
	r.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].FireAt.Equal(entries[j].FireAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].FireAt.Before(entries[j].FireAt)
	})
	return entries
}

// Location returns the timezone used to render fire times.
func (r *Registry) Location() *time.Location {
	return r.location
}

// Close stops all delivery goroutines and waits for them to exit. Pending
// deliveries are dropped; the registry is never durable.
func (r *Registry) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Registry) run(d *delivery, timer clock.Timer) {
	defer r.wg.Done()
	for {
		select {
		case <-timer.C():
			if !r.beginFire(d) {
				return
			}
			marked := Mark(d.payload)
			if err := r.deliverer.Deliver(r.ctx, d.target, marked); err != nil {
				r.logger.Error("scheduled delivery failed", "id", d.id, "target", d.target, "error", err)
			} else {
				r.logger.Info("scheduled delivery sent", "id", d.id, "target", d.target)
			}
			next, again := r.rearm(d)
			if !again {
				return
			}
			timer = r.clock.NewTimer(next.Sub(r.clock.Now()))
		case <-d.cancelCh:
			timer.Stop()
			return
		case <-r.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// beginFire claims the terminal transition to fired. A delivery that lost the
// race to a concurrent cancel stays cancelled and never delivers.
func (r *Registry) beginFire(d *delivery) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.status != StatusPending {
		return false
	}
	d.status = StatusFired
	return true
}

// rearm removes a finished one-shot, or resets a recurring delivery to its
// next cron occurrence.
func (r *Registry) rearm(d *delivery) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.kind != KindRecurring {
		delete(r.entries, d.id)
		return time.Time{}, false
	}
	next, err := NextCronTime(d.cronExpr, r.location, r.clock.Now())
	if err != nil {
		delete(r.entries, d.id)
		r.logger.Error("recurring delivery dropped", "id", d.id, "error", err)
		return time.Time{}, false
	}
	d.fireAt = next
	d.status = StatusPending
	return next, true
}
