// Package gateway connects display clients (smart glasses, browsers) over
// websockets: they stream transcripts in and receive renders back.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/loqalabs/loqa-karaoke/internal/config"
	"github.com/loqalabs/loqa-karaoke/internal/display"
	"github.com/loqalabs/loqa-karaoke/internal/karaoke"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Sessions is the session engine the gateway drives.
type Sessions interface {
	Open(sessionID string)
	Handle(u karaoke.Utterance) karaoke.Outcome
	End(sessionID string)
}

type inbound struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

type outbound struct {
	Type       string `json:"type"`
	Content    string `json:"content"`
	DurationMS int    `json:"duration_ms,omitempty"`
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub tracks one websocket per session and implements display.Surface.
type Hub struct {
	cfg     config.GatewayConfig
	log     *slog.Logger
	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub. A non-positive write timeout defaults to 2s.
func NewHub(cfg config.GatewayConfig, logger *slog.Logger) *Hub {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2000
	}
	return &Hub{
		cfg:     cfg,
		log:     logger.With(slog.String("component", "gateway")),
		clients: make(map[string]*client),
	}
}

// Show writes r to the session's websocket. It returns display.ErrUnavailable
// when no client is connected so a display.Chain can fall through.
func (h *Hub) Show(_ context.Context, sessionID string, r display.Render) error {
	h.mu.RLock()
	c := h.clients[sessionID]
	h.mu.RUnlock()
	if c == nil {
		return fmt.Errorf("gateway session %s: %w", sessionID, display.ErrUnavailable)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Duration(h.cfg.WriteTimeout) * time.Millisecond))
	return c.conn.WriteJSON(outbound{
		Type:       "display",
		Content:    r.Content,
		DurationMS: int(r.Duration / time.Millisecond),
	})
}

// Connected reports how many websocket clients are attached.
func (h *Hub) Connected() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler serves GET <path>?session=<id>.
func (h *Hub) Handler(sessions Sessions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sessionID := req.URL.Query().Get("session")
		if sessionID == "" {
			http.Error(w, "session query parameter required", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		c := &client{conn: conn}
		h.attach(sessionID, c)
		h.log.Info("display client connected", slog.String("session_id", sessionID))

		defer func() {
			if h.detach(sessionID, c) {
				sessions.End(sessionID)
			}
			conn.Close()
		}()

		sessions.Open(sessionID)
		h.readLoop(sessionID, c, sessions)
	})
}

func (h *Hub) readLoop(sessionID string, c *client, sessions Sessions) {
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Info("display client disconnected", slog.String("session_id", sessionID))
			} else {
				h.log.Warn("websocket read failed", slog.String("session_id", sessionID), slog.String("error", err.Error()))
			}
			return
		}
		var in inbound
		if err := json.Unmarshal(msg, &in); err != nil {
			h.log.Warn("failed to parse client frame", slog.String("session_id", sessionID), slog.String("error", err.Error()))
			continue
		}
		if in.Type != "transcript" {
			continue
		}
		sessions.Handle(karaoke.Utterance{
			SessionID: sessionID,
			Text:      in.Text,
			Final:     in.Final,
			At:        time.Now(),
		})
	}
}

// attach registers c for sessionID, closing any client it replaces.
func (h *Hub) attach(sessionID string, c *client) {
	h.mu.Lock()
	old := h.clients[sessionID]
	h.clients[sessionID] = c
	h.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		_ = old.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced"),
			time.Now().Add(time.Second))
		old.mu.Unlock()
		old.conn.Close()
	}
}

// detach removes c if it is still the session's client.
func (h *Hub) detach(sessionID string, c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[sessionID] != c {
		return false
	}
	delete(h.clients, sessionID)
	return true
}
