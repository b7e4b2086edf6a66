// Package remote provides the client for the primary remote task store, the
// application's own backend across devices.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mindmate/internal/ratelimit"
	"mindmate/task"
)

// Config holds primary remote store connection settings.
type Config struct {
	BaseURL   string
	UserEmail string
	Timeout   time.Duration
}

// Client talks to the primary remote store. Every call is bounded by the
// configured timeout; a timeout is treated by callers identically to a
// connection failure.
type Client struct {
	http      *ratelimit.Client
	baseURL   string
	userEmail string
}

// New creates a new primary remote store client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("remote base URL is required")
	}

	return &Client{
		http: ratelimit.NewClient(ratelimit.Config{
			Timeout: cfg.Timeout,
			Service: "remote store",
		}),
		baseURL:   cfg.BaseURL,
		userEmail: cfg.UserEmail,
	}, nil
}

// wireTask is the JSON shape exchanged with the remote store. Sync-internal
// fields (syncStatus, external ids) are local-only and never leave the client.
type wireTask struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	Category        string     `json:"category,omitempty"`
	Priority        int        `json:"priority,omitempty"`
	DurationMinutes int        `json:"durationMinutes,omitempty"`
	DueDate         *time.Time `json:"dueDate,omitempty"`
	ReminderAt      *time.Time `json:"reminderAt,omitempty"`
	StartDate       *time.Time `json:"startDate,omitempty"`
	ParentID        string     `json:"parentId,omitempty"`
	Archived        bool       `json:"archived,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

func toWire(t *task.Task) *wireTask {
	return &wireTask{
		ID:              t.ID,
		UserID:          t.UserID,
		Title:           t.Title,
		Description:     t.Description,
		Category:        t.Category,
		Priority:        t.Priority,
		DurationMinutes: t.DurationMinutes,
		DueDate:         t.DueDate,
		ReminderAt:      t.ReminderAt,
		StartDate:       t.StartDate,
		ParentID:        t.ParentID,
		Archived:        t.Archived,
		CompletedAt:     t.CompletedAt,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

func fromWire(w *wireTask) task.Task {
	return task.Task{
		ID:              w.ID,
		UserID:          w.UserID,
		Title:           w.Title,
		Description:     w.Description,
		Category:        w.Category,
		Priority:        w.Priority,
		DurationMinutes: w.DurationMinutes,
		DueDate:         w.DueDate,
		ReminderAt:      w.ReminderAt,
		StartDate:       w.StartDate,
		ParentID:        w.ParentID,
		Archived:        w.Archived,
		CompletedAt:     w.CompletedAt,
		CreatedAt:       w.CreatedAt,
		UpdatedAt:       w.UpdatedAt,
	}
}

// doRequest performs a JSON request against the remote store.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var bodyReader *bytes.Reader
	header := http.Header{}
	header.Set("Content-Type", "application/json")

	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
		return c.http.Do(ctx, method, c.baseURL+path, header, bodyReader)
	}

	return c.http.Do(ctx, method, c.baseURL+path, header, nil)
}

// CreateTask creates the task on the remote store.
func (c *Client) CreateTask(ctx context.Context, t *task.Task) error {
	resp, err := c.doRequest(ctx, http.MethodPost, "/tasks", toWire(t))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("failed to create task: status %d", resp.StatusCode)
	}
	return nil
}

// UpdateTask updates the task on the remote store.
func (c *Client) UpdateTask(ctx context.Context, t *task.Task) error {
	resp, err := c.doRequest(ctx, http.MethodPatch, "/tasks/"+t.ID, toWire(t))
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// A missing record on update means the create never landed; recreate it
	// so an offline-edited task still reaches the remote store.
	if resp.StatusCode == http.StatusNotFound {
		return c.CreateTask(ctx, t)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to update task: status %d", resp.StatusCode)
	}
	return nil
}

// DeleteTask removes the task from the remote store. A 404 is treated as
// success: the record is already gone.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	resp, err := c.doRequest(ctx, http.MethodDelete, "/tasks/"+taskID, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("failed to delete task: status %d", resp.StatusCode)
	}
	return nil
}

// GetTasks fetches all tasks for the configured user.
func (c *Client) GetTasks(ctx context.Context) ([]task.Task, error) {
	path := "/tasks?userEmail=" + url.QueryEscape(c.userEmail)
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get tasks: status %d", resp.StatusCode)
	}

	var items []wireTask
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, err
	}

	tasks := make([]task.Task, len(items))
	for i := range items {
		tasks[i] = fromWire(&items[i])
	}
	return tasks, nil
}

// Health probes the remote store. Used by the connectivity checker to decide
// whether the application server is reachable.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("remote store unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
