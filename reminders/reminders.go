// Package reminders consumes the reminder endpoints through an authenticated
// session: CRUD over the user's reminders plus the polling banner feed of
// due ones.
package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tasknest/go-tasknest-client/gateway"
)

// Frequency values accepted by the server.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyWeekdays = "weekdays"
)

// Status values a reminder can carry.
const (
	StatusActive = "active"
	StatusPaused = "paused"
)

// Reminder is a scheduled reminder as returned by the server.
type Reminder struct {
	ID         int64  `json:"id"`
	Content    string `json:"content"`
	Frequency  string `json:"frequency,omitempty"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"` // 0-6, weekly reminders only
	RemindTime string `json:"remind_time,omitempty"` // HH:MM, UTC
	Status     string `json:"status,omitempty"`
}

// Spec describes a reminder to create.
type Spec struct {
	Content    string `json:"content"`
	Frequency  string `json:"frequency"`
	DayOfWeek  *int   `json:"day_of_week,omitempty"`
	RemindTime string `json:"remind_time"`
}

// Requester is the authenticated request surface the reminder client needs;
// satisfied by *session.Session.
type Requester interface {
	Do(ctx context.Context, method, path string, body any) (*http.Response, error)
}

// Client calls the reminder endpoints through the session's retry-on-expiry
// wrapper.
type Client struct {
	session Requester
}

// NewClient creates a reminder client over an authenticated session.
func NewClient(session Requester) (*Client, error) {
	if session == nil {
		return nil, fmt.Errorf("[reminders.NewClient] session is required")
	}
	return &Client{session: session}, nil
}

type listResponse struct {
	Reminders []Reminder `json:"reminders"`
	Total     int        `json:"total"`
}

type dueResponse struct {
	Reminders []Reminder `json:"reminders"`
	Count     int        `json:"count"`
}

type reminderEnvelope struct {
	Reminder *Reminder `json:"reminder"`
}

// List returns the user's reminders, optionally filtered by status
// ("active", "paused", "all") and a content search term.
func (c *Client) List(ctx context.Context, status, search string) ([]Reminder, error) {
	path := "/api/reminders"
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if search != "" {
		query.Set("search", search)
	}
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var resp listResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("[Client.List] %w", err)
	}
	return resp.Reminders, nil
}

// Due returns the reminders due right now.
func (c *Client) Due(ctx context.Context) ([]Reminder, error) {
	var resp dueResponse
	if err := c.call(ctx, http.MethodGet, "/api/reminders/due", nil, &resp); err != nil {
		return nil, fmt.Errorf("[Client.Due] %w", err)
	}
	return resp.Reminders, nil
}

// Create registers a new reminder.
func (c *Client) Create(ctx context.Context, spec Spec) (*Reminder, error) {
	var resp reminderEnvelope
	if err := c.call(ctx, http.MethodPost, "/api/reminders", spec, &resp); err != nil {
		return nil, fmt.Errorf("[Client.Create] %w", err)
	}
	return resp.Reminder, nil
}

// Acknowledge marks a reminder as seen today.
func (c *Client) Acknowledge(ctx context.Context, id int64) error {
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/api/reminders/%d/acknowledge", id), nil, nil); err != nil {
		return fmt.Errorf("[Client.Acknowledge] %w", err)
	}
	return nil
}

// Pause stops a reminder from triggering until resumed.
func (c *Client) Pause(ctx context.Context, id int64) error {
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/api/reminders/%d/pause", id), nil, nil); err != nil {
		return fmt.Errorf("[Client.Pause] %w", err)
	}
	return nil
}

// Resume reactivates a paused reminder.
func (c *Client) Resume(ctx context.Context, id int64) error {
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/api/reminders/%d/resume", id), nil, nil); err != nil {
		return fmt.Errorf("[Client.Resume] %w", err)
	}
	return nil
}

// Delete removes a reminder. Server-side this is a soft delete.
func (c *Client) Delete(ctx context.Context, id int64) error {
	if err := c.call(ctx, http.MethodDelete, fmt.Sprintf("/api/reminders/%d", id), nil, nil); err != nil {
		return fmt.Errorf("[Client.Delete] %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.session.Do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var parsed struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&parsed)
		if parsed.Error == "" {
			parsed.Error = http.StatusText(resp.StatusCode)
		}
		return &gateway.APIError{StatusCode: resp.StatusCode, Message: parsed.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
