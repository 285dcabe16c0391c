package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/pingsphere/internal/adapters/nats"
	"github.com/samirrijal/pingsphere/internal/core/domain"
	"github.com/samirrijal/pingsphere/internal/pkg/metrics"
)

// wsMessage is sent from client to control its stream.
type wsMessage struct {
	Action  string   `json:"action"`  // "subscribe" | "unsubscribe" | "locate"
	Channel string   `json:"channel"` // "frames" | "cues"
	Lat     *float64 `json:"lat"`     // locate only
	Lon     *float64 `json:"lon"`     // locate only
}

// wsEnvelope wraps every message sent to the client.
type wsEnvelope struct {
	Type string      `json:"type"` // "frame" | "path" | "cue" | "evicted"
	Data interface{} `json:"data"`
}

type wsCue struct {
	domain.PhaseTransition
	Local bool `json:"local"`
}

// pathSource looks up the arc of a live ping.
type pathSource func(ctx context.Context, id string) (*domain.Path, error)

const pathLookupTimeout = 2 * time.Second

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// scene frames, ping paths, cues and evictions from NATS to the client.
// Frames carry no geometry: each ping's path is sent once, either as it is
// announced or, for pings that predate the connection, looked up in paths.
// Frames and evictions are streamed by default. Clients may send
// {"action":"subscribe","channel":"cues"} to receive phase cues and
// {"action":"locate","lat":43.26,"lon":-2.93} (or connect with ?lat=&lon=)
// to have pings touching their own coordinate flagged as local.
func WebSocketHandler(nc *nats.Conn, paths pathSource) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		if nc == nil {
			_ = c.WriteJSON(map[string]string{"error": "live stream unavailable"})
			return
		}

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		v := newViewer()
		if p, ok := c.Locals("locate").(domain.GeoPoint); ok {
			v.locate(p)
		}

		var mu sync.Mutex
		subs := make(map[string][]*nats.Subscription) // channel -> subscriptions

		// Helper: thread-safe write
		writeJSON := func(msg interface{}) error {
			data, err := json.Marshal(msg)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		send := func(typ string, data interface{}) {
			if err := writeJSON(wsEnvelope{Type: typ, Data: data}); err == nil {
				metrics.WSMessagesSent.WithLabelValues(typ).Inc()
			}
		}

		sendPath := func(pp *domain.PingPath) {
			if v.path(pp) {
				send("path", pp)
			}
		}

		lookup := func(ids []string) {
			if paths == nil || len(ids) == 0 {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), pathLookupTimeout)
			defer cancel()
			for _, id := range ids {
				p, err := paths(ctx, id)
				if err != nil {
					slog.Debug("ws path lookup failed", "ping_id", id, "error", err)
					continue
				}
				sendPath(&domain.PingPath{PingID: id, Path: *p})
			}
		}

		onPath := func(msg *nats.Msg) {
			var pp domain.PingPath
			if err := json.Unmarshal(msg.Data, &pp); err != nil {
				return
			}
			sendPath(&pp)
		}

		handlers := map[string]nats.MsgHandler{
			"frames": func(msg *nats.Msg) {
				var f domain.Frame
				if err := json.Unmarshal(msg.Data, &f); err != nil {
					return
				}
				out, missing := v.frame(&f)
				send("frame", out)
				lookup(missing)
			},
			"cues": func(msg *nats.Msg) {
				var tr domain.PhaseTransition
				if err := json.Unmarshal(msg.Data, &tr); err != nil {
					return
				}
				send("cue", wsCue{PhaseTransition: tr, Local: v.cue(&tr)})
			},
		}
		subjects := map[string]string{
			"frames": natsadapter.SubjectFrame,
			"cues":   natsadapter.SubjectCues,
		}

		evictSub, err := nc.Subscribe(natsadapter.SubjectEvicted, func(msg *nats.Msg) {
			var ev domain.Eviction
			if err := json.Unmarshal(msg.Data, &ev); err != nil {
				return
			}
			v.evict(&ev)
			send("evicted", ev)
		})
		if err != nil {
			slog.Warn("ws eviction subscribe failed", "error", err)
			return
		}
		defer func() { _ = evictSub.Unsubscribe() }()

		// Paths ride with frames, so the frames channel holds both subscriptions.
		subscribe := func(channel string) error {
			s, err := nc.Subscribe(subjects[channel], handlers[channel])
			if err != nil {
				return err
			}
			subs[channel] = []*nats.Subscription{s}
			if channel != "frames" {
				return nil
			}
			ps, err := nc.Subscribe(natsadapter.SubjectPath, onPath)
			if err != nil {
				_ = s.Unsubscribe()
				delete(subs, channel)
				return err
			}
			subs[channel] = append(subs[channel], ps)
			return nil
		}

		if err := subscribe("frames"); err != nil {
			slog.Warn("ws default subscribe failed", "error", err)
			return
		}

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			if m.Action == "locate" {
				if m.Lat == nil || m.Lon == nil {
					_ = writeJSON(map[string]string{"error": "locate needs lat and lon"})
					continue
				}
				p := domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon}
				if err := p.Validate(); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				v.locate(p)
				_ = writeJSON(map[string]string{"status": "located"})
				continue
			}

			if _, ok := subjects[m.Channel]; !ok {
				_ = writeJSON(map[string]string{"error": "unknown channel: " + m.Channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[m.Channel]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "channel": m.Channel})
					continue
				}
				if err := subscribe(m.Channel); err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "channel": m.Channel})

			case "unsubscribe":
				if list, exists := subs[m.Channel]; exists {
					for _, s := range list {
						_ = s.Unsubscribe()
					}
					delete(subs, m.Channel)
					if m.Channel == "frames" {
						v.reset()
					}
					_ = writeJSON(map[string]string{"status": "unsubscribed", "channel": m.Channel})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + m.Channel})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, list := range subs {
			for _, s := range list {
				_ = s.Unsubscribe()
			}
		}
		slog.Info("ws client disconnected", "remote", remoteAddr, "tracked_pings", v.size())
	}
}
