// Package remote syncs reminders from the wellness backend. The backend
// owns the reminder entities; this process owns their triggers. The sync
// service polls the CRUD API and drives the local scheduler to match.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"lembra/internal/reminder"
	logx "lembra/pkg/logx"
)

// ErrNotFound reports a reminder id the backend no longer knows.
var ErrNotFound = errors.New("reminder not found")

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration // per request; default 10s
}

// Client is a thin typed wrapper over the backend's /api/reminders CRUD.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("remote.base_url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}, nil
}

// reminderPayload is the request body for create/update. The backend mints
// ids and timestamps; we never send them.
type reminderPayload struct {
	Kind    reminder.Kind      `json:"type,omitempty"`
	Title   string             `json:"title"`
	Time    reminder.ClockTime `json:"time"`
	Enabled bool               `json:"enabled"`
	Days    []reminder.Weekday `json:"days"`
}

func payloadFor(r reminder.Reminder) reminderPayload {
	return reminderPayload{Kind: r.Kind, Title: r.Title, Time: r.Time, Enabled: r.Enabled, Days: r.Days}
}

// List fetches every reminder for the authenticated user.
func (c *Client) List(ctx context.Context) ([]reminder.Reminder, error) {
	var out []reminder.Reminder
	if err := c.do(ctx, http.MethodGet, "/api/reminders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create registers a new reminder with the backend and returns it with the
// assigned id.
func (c *Client) Create(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	var out reminder.Reminder
	if err := c.do(ctx, http.MethodPost, "/api/reminders", payloadFor(r), &out); err != nil {
		return reminder.Reminder{}, err
	}
	return out, nil
}

// Update patches an existing reminder and returns the backend's view of it.
func (c *Client) Update(ctx context.Context, r reminder.Reminder) (reminder.Reminder, error) {
	if strings.TrimSpace(r.ID) == "" {
		return reminder.Reminder{}, fmt.Errorf("%w: empty id", reminder.ErrInvalid)
	}
	var out reminder.Reminder
	if err := c.do(ctx, http.MethodPatch, "/api/reminders/"+r.ID, payloadFor(r), &out); err != nil {
		return reminder.Reminder{}, err
	}
	return out, nil
}

// Delete removes a reminder. Deleting an unknown id returns ErrNotFound.
func (c *Client) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty id", reminder.ErrInvalid)
	}
	return c.do(ctx, http.MethodDelete, "/api/reminders/"+id, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode/100 != 2 {
		// FastAPI-style error body: {"detail": "..."}
		var apiErr struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Detail != "" {
			return fmt.Errorf("%s %s: %s (http %d)", method, path, apiErr.Detail, resp.StatusCode)
		}
		return fmt.Errorf("%s %s: http %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
