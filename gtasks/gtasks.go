// Package gtasks provides the client for the delegated-authorization external
// task service that mirrors local tasks.
package gtasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"mindmate/internal/ratelimit"
)

// ErrNotFound is returned when the external service reports that a list or
// task does not exist. Callers self-heal by clearing the stale id.
var ErrNotFound = errors.New("gtasks: not found")

// ErrUnauthorized is returned when the service still rejects the bearer token
// after a forced refresh.
var ErrUnauthorized = errors.New("gtasks: unauthorized")

// TokenProvider supplies valid bearer tokens for a user. Implemented by the
// credentials manager.
type TokenProvider interface {
	// AccessToken returns a token that is valid at call time, refreshing if
	// the stored one has expired.
	AccessToken(ctx context.Context, userID string) (string, error)
	// ForceRefresh discards the current access token and performs the
	// refresh exchange regardless of expiry.
	ForceRefresh(ctx context.Context, userID string) (string, error)
}

// Config holds external task service connection settings.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client performs list/task CRUD and the move operation against the external
// service. All calls are authorized via the TokenProvider.
type Client struct {
	http    *ratelimit.Client
	baseURL string
	tokens  TokenProvider
}

// New creates a new external task service client.
func New(cfg Config, tokens TokenProvider) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("external service base URL is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token provider is required")
	}

	return &Client{
		http: ratelimit.NewClient(ratelimit.Config{
			Timeout: cfg.Timeout,
			Service: "external task service",
		}),
		baseURL: cfg.BaseURL,
		tokens:  tokens,
	}, nil
}

// List represents an external container that tasks are grouped into.
type List struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Task is the external service's task shape.
type Task struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	Notes  string `json:"notes,omitempty"`
	Status string `json:"status,omitempty"` // "needsAction" or "completed"
	Due    string `json:"due,omitempty"`    // RFC3339
	Parent string `json:"parent,omitempty"`
}

// doRequest performs an authorized request. On 401 it forces a single token
// refresh and retries once with the new token.
func (c *Client) doRequest(ctx context.Context, userID, method, path string, body interface{}) (*http.Response, error) {
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	var jsonBody []byte
	if body != nil {
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.send(ctx, method, path, token, jsonBody)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		_ = resp.Body.Close()

		token, err = c.tokens.ForceRefresh(ctx, userID)
		if err != nil {
			return nil, err
		}

		resp, err = c.send(ctx, method, path, token, jsonBody)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			_ = resp.Body.Close()
			return nil, ErrUnauthorized
		}
	}

	return resp, nil
}

func (c *Client) send(ctx context.Context, method, path, token string, body []byte) (*http.Response, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	header.Set("Content-Type", "application/json")

	var bodyReader *bytes.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
		return c.http.Do(ctx, method, c.baseURL+path, header, bodyReader)
	}
	return c.http.Do(ctx, method, c.baseURL+path, header, nil)
}

// GetLists returns all lists visible to the user.
func (c *Client) GetLists(ctx context.Context, userID string) ([]List, error) {
	resp, err := c.doRequest(ctx, userID, http.MethodGet, "/lists", nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get lists: status %d", resp.StatusCode)
	}

	var result struct {
		Items []List `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return result.Items, nil
}

// CreateList creates a new list. The external API offers no idempotency key
// here: two near-simultaneous creates for the same title both succeed.
func (c *Client) CreateList(ctx context.Context, userID, title string) (*List, error) {
	body := map[string]string{"title": title}

	resp, err := c.doRequest(ctx, userID, http.MethodPost, "/lists", body)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("failed to create list: status %d", resp.StatusCode)
	}

	var created List
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, err
	}
	return &created, nil
}

// GetTask returns one task, or ErrNotFound.
func (c *Client) GetTask(ctx context.Context, userID, listID, taskID string) (*Task, error) {
	resp, err := c.doRequest(ctx, userID, http.MethodGet, "/lists/"+listID+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get task: status %d", resp.StatusCode)
	}

	var t Task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateTask creates a task in a list and returns the created record with its
// service-assigned id.
func (c *Client) CreateTask(ctx context.Context, userID, listID string, t *Task) (*Task, error) {
	resp, err := c.doRequest(ctx, userID, http.MethodPost, "/lists/"+listID+"/tasks", t)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("failed to create task: status %d", resp.StatusCode)
	}

	var created Task
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateTask updates an existing task. Returns ErrNotFound when the record
// was deleted out-of-band.
func (c *Client) UpdateTask(ctx context.Context, userID, listID string, t *Task) (*Task, error) {
	resp, err := c.doRequest(ctx, userID, http.MethodPatch, "/lists/"+listID+"/tasks/"+t.ID, t)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to update task: status %d", resp.StatusCode)
	}

	var updated Task
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteTask removes a task. Returns ErrNotFound when it is already gone.
func (c *Client) DeleteTask(ctx context.Context, userID, listID, taskID string) error {
	resp, err := c.doRequest(ctx, userID, http.MethodDelete, "/lists/"+listID+"/tasks/"+taskID, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to delete task: status %d", resp.StatusCode)
	}
	return nil
}

// MoveTask re-parents a task within its list. The external API treats this
// as a separate operation from update.
func (c *Client) MoveTask(ctx context.Context, userID, listID, taskID, parentID string) error {
	path := "/lists/" + listID + "/tasks/" + taskID + "/move"
	if parentID != "" {
		path += "?parent=" + url.QueryEscape(parentID)
	}

	resp, err := c.doRequest(ctx, userID, http.MethodPost, path, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("failed to move task: status %d", resp.StatusCode)
	}
	return nil
}
