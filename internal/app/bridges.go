package app

import (
	"context"
	"time"

	"github.com/homar/homar/internal/approval"
	"github.com/homar/homar/internal/events"
	"github.com/homar/homar/internal/schedule"
)

// hubRenderer surfaces approval requests to connected rendering clients as
// events. The rendered id is the request id itself; clients echo it back in
// their decision frames.
type hubRenderer struct {
	hub *events.Hub
}

func (r *hubRenderer) Render(req approval.Request) (string, error) {
	calls := make([]map[string]any, 0, len(req.ToolCalls))
	for _, call := range req.ToolCalls {
		arguments := make(map[string]string, len(call.Arguments))
		for key, value := range call.Arguments {
			arguments[key] = approval.DisplayValue(value)
		}
		calls = append(calls, map[string]any{
			"name":      call.Name,
			"arguments": arguments,
		})
	}
	r.hub.Publish(events.Event{
		Type:   events.TypeApprovalRequested,
		Target: req.Target,
		Payload: map[string]any{
			"id":              req.ID,
			"summary":         approval.Summary(req),
			"tool_calls":      calls,
			"expires_at_unix": req.ExpiresAt.Unix(),
		},
	})
	return req.ID, nil
}

func (r *hubRenderer) UpdateRendering(renderedID string, outcome approval.Outcome) error {
	r.hub.Publish(events.Event{
		Type: events.TypeApprovalResolved,
		Payload: map[string]any{
			"id":         renderedID,
			"decision":   string(outcome.Decision),
			"decided_by": outcome.DecidedBy,
			"reason":     outcome.Reason,
		},
	})
	return nil
}

// eventedDeliverer announces each fired delivery on the hub after handing it
// to the pipeline.
type eventedDeliverer struct {
	next schedule.Deliverer
	hub  *events.Hub
}

func (d *eventedDeliverer) Deliver(ctx context.Context, target, payload string) error {
	err := d.next.Deliver(ctx, target, payload)
	d.hub.Publish(events.Event{
		Type:   events.TypeDeliveryFired,
		Target: target,
		Payload: map[string]any{
			"payload":   payload,
			"delivered": err == nil,
		},
	})
	return err
}

// hubTransport delivers outbound chat text to rendering clients.
type hubTransport struct {
	hub *events.Hub
}

func (t *hubTransport) Send(_ context.Context, target, text string) error {
	t.hub.Publish(events.Event{
		Type:   events.TypeMessage,
		Target: target,
		Payload: map[string]any{
			"text": text,
		},
		At: time.Now().UTC(),
	})
	return nil
}
