package platform

import (
	"context"
	"net/url"
	"time"
)

// Insight is a saved note attached to the operator's account,
// typically extracted from a reviewed thread.
type Insight struct {
	ID        string    `json:"insight_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type insightList struct {
	Insights []Insight `json:"insights"`
}

// ListInsights returns all saved insights, pinned first.
func (c *Client) ListInsights(ctx context.Context) ([]Insight, error) {
	var out insightList
	if err := c.do(ctx, "GET", "/v1/insights", nil, &out); err != nil {
		return nil, err
	}
	return out.Insights, nil
}

// CreateInsight saves a new insight and returns it with its assigned id.
func (c *Client) CreateInsight(ctx context.Context, in Insight) (*Insight, error) {
	var out Insight
	if err := c.do(ctx, "POST", "/v1/insights", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateInsight overwrites an existing insight's mutable fields.
func (c *Client) UpdateInsight(ctx context.Context, in Insight) (*Insight, error) {
	var out Insight
	if err := c.do(ctx, "PUT", "/v1/insights/"+url.PathEscape(in.ID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteInsight removes an insight.
func (c *Client) DeleteInsight(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/v1/insights/"+url.PathEscape(id), nil, nil)
}
