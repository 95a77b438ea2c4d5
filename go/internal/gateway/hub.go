package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/gamefloor/go/internal/floor"
	"github.com/rs/zerolog/log"
)

// HubConfig holds configuration for WebSocket connections
type HubConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultHubConfig returns default WebSocket configuration
func DefaultHubConfig() HubConfig {
	return HubConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// Floor displays run on the local network
			return true
		},
	}
}

// Hub pushes floor snapshots to every connected display.
type Hub struct {
	mu          sync.RWMutex
	connections map[*Connection]bool
	upgrader    websocket.Upgrader
	config      HubConfig
	broadcastCh chan floor.Snapshot
}

// Connection is one display client.
type Connection struct {
	ID          string
	Conn        *websocket.Conn
	Send        chan []byte
	hub         *Hub
	ConnectedAt time.Time
}

// NewHub creates a hub.
func NewHub(config HubConfig) *Hub {
	return &Hub{
		connections: make(map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan floor.Snapshot, 16),
	}
}

// Start delivers queued snapshots until ctx is done.
func (h *Hub) Start(ctx context.Context) error {
	log.Info().Msg("floor hub started")
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			log.Info().Msg("floor hub shutting down")
			return nil
		case snap := <-h.broadcastCh:
			h.deliver(snap)
		}
	}
}

// Broadcast queues a snapshot; when the queue is full the snapshot is
// dropped, the next tick supersedes it anyway.
func (h *Hub) Broadcast(snap floor.Snapshot) {
	select {
	case h.broadcastCh <- snap:
	default:
		log.Debug().Msg("broadcast queue full, dropping floor snapshot")
	}
}

// Count returns the number of connected displays.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// ServeWS upgrades the request and registers the display. It receives the
// current snapshot right away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, current floor.Snapshot) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, 32),
		hub:         h,
		ConnectedAt: time.Now(),
	}
	if data, err := json.Marshal(current); err == nil {
		c.Send <- data
	}
	h.register(c)

	go c.writePump()
	go c.readPump()

	log.Info().Str("connection_id", c.ID).Msg("display connected")
	return nil
}

func (h *Hub) register(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[c]; ok {
		delete(h.connections, c)
		close(c.Send)
		log.Info().Str("connection_id", c.ID).Msg("display disconnected")
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.connections {
		delete(h.connections, c)
		close(c.Send)
	}
}

func (h *Hub) deliver(snap floor.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal floor snapshot")
		return
	}

	// Sends are non-blocking and happen under the read lock so unregister
	// cannot close a channel mid-send.
	var slow []*Connection
	h.mu.RLock()
	for c := range h.connections {
		select {
		case c.Send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("connection_id", c.ID).Msg("display too slow, closing connection")
		h.unregister(c)
		c.Conn.Close()
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("failed to write to display")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection; displays only listen.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.hub.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close")
			}
			return
		}
	}
}
