// Package wsfeed broadcasts events to WebSocket clients such as a map
// overlay that highlights structures with recent traffic.
package wsfeed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blightveil/sclog/pkg/sclog/event"
)

var (
	// ErrTooManyClients rejects a connection when the hub is full.
	ErrTooManyClients = errors.New("too many websocket clients")
	// ErrHubClosed rejects a connection after Close.
	ErrHubClosed = errors.New("websocket hub closed")
)

// MessageType tags every frame sent to feed clients.
type MessageType string

const (
	// MsgSnapshot is sent once on connect with the latest alert per structure.
	MsgSnapshot MessageType = "snapshot"
	// MsgEvent carries one event.
	MsgEvent MessageType = "event"
)

// Message is the JSON frame written to clients.
type Message struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

const writeWait = 5 * time.Second

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn, buf int) *client {
	c := &client{
		conn: conn,
		send: make(chan []byte, buf),
	}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// Hub fans events out to connected clients. Clients that cannot keep up are
// disconnected rather than slowing the dispatcher.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*client]bool
	alerts     map[string]event.Event
	closed     bool
	maxClients int
	sendBuf    int
	logger     *slog.Logger
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxClients caps concurrent connections. Zero means unlimited.
func WithMaxClients(n int) Option {
	return func(h *Hub) { h.maxClients = n }
}

// WithSendBuffer sets the per-client queue length.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuf = n
		}
	}
}

// WithLogger sets the slog logger. If nil, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// NewHub returns an empty hub. Serve it with ServeHTTP and register it
// with a dispatcher to feed it events.
func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[*client]bool),
		alerts:  make(map[string]event.Event),
		sendBuf: 64,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.New(slog.DiscardHandler)
	}
	return h
}

// Name identifies the hub in dispatcher logs.
func (h *Hub) Name() string { return "wsfeed" }

// Consume broadcasts ev and remembers zone alerts for the connect snapshot.
func (h *Hub) Consume(_ context.Context, ev event.Event) error {
	if ev.Type == event.ZoneAlert && ev.StructureID != "" {
		h.mu.Lock()
		h.alerts[ev.StructureID] = ev
		h.mu.Unlock()
	}

	data, err := json.Marshal(Message{Type: MsgEvent, Payload: ev})
	if err != nil {
		return err
	}
	h.broadcast(data)
	return nil
}

// addClient registers conn and queues the snapshot for it.
func (h *Hub) addClient(conn *websocket.Conn) (*client, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	if h.maxClients > 0 && len(h.clients) >= h.maxClients {
		return nil, ErrTooManyClients
	}

	snapshot := make([]event.Event, 0, len(h.alerts))
	for _, ev := range h.alerts {
		snapshot = append(snapshot, ev)
	}
	data, err := json.Marshal(Message{Type: MsgSnapshot, Payload: snapshot})
	if err != nil {
		return nil, err
	}

	c := newClient(conn, h.sendBuf)
	h.clients[c] = true
	c.send <- data // fresh buffer, never blocks
	return c, nil
}

// removeClient unregisters c and stops its writer. Safe to call twice.
func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) broadcast(data []byte) {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.mu.RLock()
		_, ok := h.clients[c]
		if ok {
			select {
			case c.send <- data:
			default:
				ok = false
			}
		}
		h.mu.RUnlock()
		if !ok {
			h.logger.Warn("ws client too slow, disconnecting", "remote", c.conn.RemoteAddr().String())
			h.removeClient(c)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Later connections are refused.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects. Incoming messages are discarded.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("ws upgrade failed", "error", err)
		return
	}

	c, err := h.addClient(conn)
	if err != nil {
		h.logger.Warn("ws client rejected", "remote", r.RemoteAddr, "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	h.logger.Debug("ws client connected", "remote", r.RemoteAddr)

	go func() {
		defer func() {
			h.removeClient(c)
			h.logger.Debug("ws client disconnected", "remote", r.RemoteAddr)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// checkOrigin accepts same-host and loopback origins, and clients that send
// no Origin header at all.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if parsed.Host == r.Host {
		return true
	}
	switch strings.TrimSuffix(parsed.Hostname(), ".") {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
