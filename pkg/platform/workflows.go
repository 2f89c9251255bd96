package platform

import (
	"context"
	"net/url"
	"time"
)

// Workflow is an assistant configuration: the graph a thread runs.
type Workflow struct {
	ID          string         `json:"workflow_id"`
	Name        string         `json:"name"`
	GraphID     string         `json:"graph_id"`
	Description string         `json:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type workflowList struct {
	Workflows []Workflow `json:"workflows"`
}

// ListWorkflows returns every workflow visible to the caller.
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var out workflowList
	if err := c.do(ctx, "GET", "/v1/workflows", nil, &out); err != nil {
		return nil, err
	}
	return out.Workflows, nil
}

// GetWorkflow fetches one workflow by id.
func (c *Client) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var out Workflow
	if err := c.do(ctx, "GET", "/v1/workflows/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
