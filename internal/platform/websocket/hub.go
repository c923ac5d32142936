// Package websocket pushes draft events to the browsers of a workspace. Each
// connection is subscribed to the workspace it was opened in.
package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/upo/upo/internal/platform/workspace"
)

const (
	EventDraftSaved   = "draft.saved"
	EventDraftCleared = "draft.cleared"

	sendBuffer = 32
	writeWait  = 10 * time.Second
)

// Event is one change to a stored draft.
type Event struct {
	Type      string    `json:"type"`
	Workspace string    `json:"workspace"`
	Group     string    `json:"group"`
	At        time.Time `json:"at"`
}

// Conn is the part of a websocket connection the pumps use.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Client struct {
	ID        string
	Workspace string
	Send      chan []byte
}

// Hub tracks the connected clients of every workspace.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		logger:  logger.With().Str("component", "draft_feed").Logger(),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.Workspace]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[c.Workspace] = set
	}
	set[c] = struct{}{}
}

// Unregister removes the client and closes its send channel. Unregistering
// twice is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.clients[c.Workspace]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.clients, c.Workspace)
	}
	close(c.Send)
}

// Publish sends the event to every client of its workspace. Clients whose
// buffer is full miss the event.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients[ev.Workspace] {
		select {
		case c.Send <- data:
		default:
			h.logger.Warn().Str("client", c.ID).Str("workspace", ev.Workspace).Msg("client too slow, event dropped")
		}
	}
	return nil
}

func (h *Hub) ClientCount(workspace string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[workspace])
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type Handler struct {
	hub *Hub
}

func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/drafts/events", h.Connect)
}

// Connect upgrades the request and streams the workspace's draft events
// until the client goes away.
func (h *Handler) Connect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	client := &Client{
		ID:        uuid.New().String(),
		Workspace: workspace.FromContext(c.Request().Context()),
		Send:      make(chan []byte, sendBuffer),
	}
	h.hub.Register(client)
	conn := &gorillaConn{ws}
	go h.hub.writePump(client, conn)
	go h.hub.readPump(client, conn)
	return nil
}

// readPump only drains the connection so close frames are noticed.
func (h *Hub) readPump(c *Client, conn Conn) {
	defer h.Unregister(c)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *Client, conn Conn) {
	defer conn.Close()
	for msg := range c.Send {
		if err := conn.WriteMessage(gorillawebsocket.TextMessage, msg); err != nil {
			return
		}
	}
}

type gorillaConn struct {
	conn *gorillawebsocket.Conn
}

func (g *gorillaConn) ReadMessage() (int, []byte, error) { return g.conn.ReadMessage() }

func (g *gorillaConn) WriteMessage(messageType int, data []byte) error {
	_ = g.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return g.conn.WriteMessage(messageType, data)
}

func (g *gorillaConn) Close() error { return g.conn.Close() }
