// Package client talks to a PingSphere API node over REST and WebSocket.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/samirrijal/pingsphere/internal/core/domain"
)

// Client is a PingSphere API client.
type Client struct {
	base       string
	httpClient *http.Client
}

// New creates a client. If base is empty, PINGSPHERE_URL or
// http://localhost:8080 is used.
func New(base string) *Client {
	if base == "" {
		base = os.Getenv("PINGSPHERE_URL")
	}
	if base == "" {
		base = "http://localhost:8080"
	}
	return &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Error is an error envelope returned by the API.
type Error struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (e *Error) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Code == "" {
			apiErr.Code = "http_error"
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if result != nil && len(data) > 0 {
		if err := json.Unmarshal(data, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// Heartbeat records activity for id at lat/lon. An empty id asks the
// server to allocate one.
func (c *Client) Heartbeat(ctx context.Context, id string, lat, lon float64, online bool) (*domain.Presence, error) {
	body := map[string]any{"id": id, "lat": lat, "lon": lon, "online": online}
	var p domain.Presence
	if err := c.do(ctx, http.MethodPost, "/v1/presences/heartbeat", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Disconnect marks a presence offline.
func (c *Client) Disconnect(ctx context.Context, id string) (*domain.Presence, error) {
	var p domain.Presence
	if err := c.do(ctx, http.MethodPost, "/v1/presences/"+url.PathEscape(id)+"/offline", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SendPing creates a ping between two coordinates.
func (c *Client) SendPing(ctx context.Context, from, to domain.GeoPoint, involvesLocalActor bool) (*domain.Ping, error) {
	body := map[string]any{"from": from, "to": to, "involves_local_actor": involvesLocalActor}
	var p domain.Ping
	if err := c.do(ctx, http.MethodPost, "/v1/pings", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Scene fetches the current frame.
func (c *Client) Scene(ctx context.Context, paths bool) (*domain.Frame, error) {
	var f domain.Frame
	if err := c.do(ctx, http.MethodGet, "/v1/scene?paths="+strconv.FormatBool(paths), nil, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// Message is one envelope from the /ws stream.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WatchOptions selects what the stream carries.
type WatchOptions struct {
	Cues bool             // also receive phase cues
	At   *domain.GeoPoint // mark pings touching this coordinate as local
}

// wsURL turns the API base into the /ws endpoint.
func (c *Client) wsURL(at *domain.GeoPoint) (string, error) {
	u, err := url.Parse(c.base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	if at != nil {
		q := u.Query()
		q.Set("lat", strconv.FormatFloat(at.Lat, 'f', -1, 64))
		q.Set("lon", strconv.FormatFloat(at.Lon, 'f', -1, 64))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Watch streams frames, evictions and optionally cues to fn until ctx is
// cancelled, the server closes the stream, or fn returns an error.
// Status replies to control messages are skipped.
func (c *Client) Watch(ctx context.Context, opts WatchOptions, fn func(Message) error) error {
	target, err := c.wsURL(opts.At)
	if err != nil {
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if opts.Cues {
		sub := map[string]string{"action": "subscribe", "channel": "cues"}
		if err := conn.WriteJSON(sub); err != nil {
			return fmt.Errorf("subscribe cues: %w", err)
		}
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil || m.Type == "" {
			continue
		}
		if err := fn(m); err != nil {
			return err
		}
	}
}
