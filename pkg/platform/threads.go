package platform

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/agentdeck/agentdeck/pkg/interrupt"
)

// ThreadStatus is the backend's classification of a run.
type ThreadStatus string

const (
	// StatusInterrupted means the run is paused on a pending decision.
	StatusInterrupted ThreadStatus = "interrupted"

	// StatusIdle means the run finished and is waiting for new input.
	StatusIdle ThreadStatus = "idle"

	// StatusBusy means the run is actively streaming.
	StatusBusy ThreadStatus = "busy"

	// StatusError means the run crashed.
	StatusError ThreadStatus = "error"
)

// ParseThreadStatus validates a status string from user input.
func ParseThreadStatus(s string) (ThreadStatus, bool) {
	switch ThreadStatus(s) {
	case StatusInterrupted, StatusIdle, StatusBusy, StatusError:
		return ThreadStatus(s), true
	default:
		return "", false
	}
}

// Thread is one run of a workflow, as listed in the inbox.
type Thread struct {
	ID         string                `json:"thread_id"`
	WorkflowID string                `json:"workflow_id,omitempty"`
	Status     ThreadStatus          `json:"status"`
	Values     map[string]any        `json:"values,omitempty"`
	Interrupts []interrupt.Interrupt `json:"interrupts,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// PendingInterrupt returns the first pending interrupt, if any. The
// backend can attach several but the review surface handles one at a
// time.
func (t *Thread) PendingInterrupt() (*interrupt.Interrupt, bool) {
	if t.Status != StatusInterrupted || len(t.Interrupts) == 0 {
		return nil, false
	}
	return &t.Interrupts[0], true
}

// ThreadFilter narrows a thread listing.
type ThreadFilter struct {
	Status     ThreadStatus
	WorkflowID string
	Limit      int
	Offset     int
}

func (f ThreadFilter) query() string {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.WorkflowID != "" {
		q.Set("workflow_id", f.WorkflowID)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

type threadList struct {
	Threads []Thread `json:"threads"`
	Total   int      `json:"total"`
}

// ListThreads returns threads matching the filter, newest first.
func (c *Client) ListThreads(ctx context.Context, filter ThreadFilter) ([]Thread, int, error) {
	var out threadList
	if err := c.do(ctx, "GET", "/v1/threads"+filter.query(), nil, &out); err != nil {
		return nil, 0, err
	}
	return out.Threads, out.Total, nil
}

// GetThread fetches one thread with its full state and interrupts.
func (c *Client) GetThread(ctx context.Context, id string) (*Thread, error) {
	var out Thread
	if err := c.do(ctx, "GET", "/v1/threads/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteThread removes a thread from the backend.
func (c *Client) DeleteThread(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/v1/threads/"+url.PathEscape(id), nil, nil)
}

// InboxCounts is the per-status tally shown in the view switcher.
type InboxCounts struct {
	Interrupted int `json:"interrupted"`
	Idle        int `json:"idle"`
	Busy        int `json:"busy"`
	Error       int `json:"error"`
}

// CountThreads returns the per-status thread tallies.
func (c *Client) CountThreads(ctx context.Context) (*InboxCounts, error) {
	var out InboxCounts
	if err := c.do(ctx, "GET", "/v1/threads/counts", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
