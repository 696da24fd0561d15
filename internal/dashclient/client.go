// Package dashclient talks to a running dashboard: it starts jobs over the
// JSON API and collects their progress events from the WebSocket stream.
package dashclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/dashboard"
	"github.com/deskwarrior/simulator/internal/progression"
	"github.com/deskwarrior/simulator/internal/session"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// JobRequest is the body of a batch or progression start request.
type JobRequest struct {
	Runs        int                   `json:"runs,omitempty"`
	TargetLevel int                   `json:"target_level,omitempty"`
	Seed        uint64                `json:"seed,omitempty"`
	Stats       map[string]int        `json:"stats,omitempty"`
	Profile     *session.InputProfile `json:"profile,omitempty"`
	Strategy    string                `json:"strategy,omitempty"`
	MaxSessions int                   `json:"max_sessions,omitempty"`
}

// Started is the reply to a start request.
type Started struct {
	Job  string `json:"job"`
	Kind string `json:"kind"`
	Seed uint64 `json:"seed"`
}

// Client is one connection to a dashboard.
type Client struct {
	BaseURL  string
	Password string
	HTTP     *http.Client

	mu     sync.Mutex
	conn   *websocket.Conn
	events []dashboard.Event
	notify chan struct{}
	done   chan struct{}
}

// New creates a client for the dashboard at baseURL, e.g.
// "http://localhost:8080".
func New(baseURL, password string) *Client {
	return &Client{
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		Password: password,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		notify:   make(chan struct{}, 1),
	}
}

// Subscribe opens the progress stream. Events are collected in the
// background until Close.
func (c *Client) Subscribe(ctx context.Context) error {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect: %w", &StatusError{Code: resp.StatusCode})
		}
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.readEvents(conn)
	return nil
}

func (c *Client) readEvents(conn *websocket.Conn) {
	defer close(c.done)
	for {
		var e dashboard.Event
		if err := conn.ReadJSON(&e); err != nil {
			return
		}
		c.mu.Lock()
		c.events = append(c.events, e)
		c.mu.Unlock()
		select {
		case c.notify <- struct{}{}:
		default:
		}
	}
}

// Events returns a copy of every event received so far.
func (c *Client) Events() []dashboard.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]dashboard.Event, len(c.events))
	copy(out, c.events)
	return out
}

// JobEvents returns the received events of one job.
func (c *Client) JobEvents(job string) []dashboard.Event {
	var out []dashboard.Event
	for _, e := range c.Events() {
		if e.Job == job {
			out = append(out, e)
		}
	}
	return out
}

// ClearEvents drops the collected events.
func (c *Client) ClearEvents() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// WaitForEvent waits until an event matching match has arrived, or timeout.
func (c *Client) WaitForEvent(match func(dashboard.Event) bool, timeout time.Duration) (dashboard.Event, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		for _, e := range c.Events() {
			if match(e) {
				return e, true
			}
		}
		select {
		case <-c.notify:
		case <-deadline.C:
			return dashboard.Event{}, false
		}
	}
}

// WaitForDone waits for the done event of job.
func (c *Client) WaitForDone(job string, timeout time.Duration) (dashboard.Event, bool) {
	return c.WaitForEvent(func(e dashboard.Event) bool {
		return e.Job == job && e.Type == dashboard.EventDone
	}, timeout)
}

// Close closes the progress stream.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := conn.Close()
	<-done
	return err
}

// StartBatch starts a batch job.
func (c *Client) StartBatch(ctx context.Context, req JobRequest) (*Started, error) {
	var out Started
	if err := c.do(ctx, http.MethodPost, "/api/batch", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartProgression starts a progression job.
func (c *Client) StartProgression(ctx context.Context, req JobRequest) (*Started, error) {
	var out Started
	if err := c.do(ctx, http.MethodPost, "/api/progression", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Job returns the status of a job.
func (c *Client) Job(ctx context.Context, id string) (*dashboard.JobStatus, error) {
	var out dashboard.JobStatus
	if err := c.do(ctx, http.MethodGet, "/api/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Batch returns a stored batch result.
func (c *Client) Batch(ctx context.Context, id string) (*batch.Result, error) {
	var out batch.Result
	if err := c.do(ctx, http.MethodGet, "/api/batch/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progression returns a stored progression result.
func (c *Client) Progression(ctx context.Context, id string) (*progression.Result, error) {
	var out progression.Result
	if err := c.do(ctx, http.MethodGet, "/api/progression/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Healthy reports whether the dashboard answers its health check.
func (c *Client) Healthy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Password != "" {
		req.Header.Set("X-API-Password", c.Password)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %w", method, path, &StatusError{Code: resp.StatusCode, Message: e.Error})
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}
