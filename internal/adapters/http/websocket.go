package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/geosampler/internal/adapters/nats"
	"github.com/samirrijal/geosampler/internal/pkg/metrics"
)

// wsMessage is sent from client to follow or stop following a session.
type wsMessage struct {
	Action    string `json:"action"` // "subscribe" | "unsubscribe"
	SessionID string `json:"session_id"`
}

// WebSocketHandler relays session events (grid generated, grid cleared,
// stats attached) from NATS to the map UI. A client may connect with
// ?session=<id> to follow one session right away, or send
// {"action":"subscribe","session_id":"<id>"} at any time.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		log := slog.Default().With("remote", c.RemoteAddr().String())
		log.Debug("ws client connected")

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // session id -> subscription

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		subscribe := func(id string) {
			if _, err := uuid.Parse(id); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid session_id"})
				return
			}
			if _, exists := subs[id]; exists {
				_ = writeJSON(map[string]string{"status": "already subscribed", "session_id": id})
				return
			}
			s, err := nc.Subscribe(natsadapter.SessionSubjects(id), func(msg *nats.Msg) {
				_ = writeJSON(json.RawMessage(msg.Data))
			})
			if err != nil {
				_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
				return
			}
			subs[id] = s
			_ = writeJSON(map[string]string{"status": "subscribed", "session_id": id})
		}

		if id := c.Query("session"); id != "" {
			subscribe(id)
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

			switch m.Action {
			case "subscribe":
				subscribe(m.SessionID)

			case "unsubscribe":
				if s, exists := subs[m.SessionID]; exists {
					_ = s.Unsubscribe()
					delete(subs, m.SessionID)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "session_id": m.SessionID})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + m.SessionID})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Debug("ws client disconnected", "sessions", len(subs))
	}
}
