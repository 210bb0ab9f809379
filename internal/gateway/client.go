package gateway

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/agentrun/pkg/protocol"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Client is one WebSocket connection. It tracks which sessions it has
// subscribed to by sending a send_message/cancel frame for them; every
// frame emitted for a subscribed session is written back over this
// connection.
type Client struct {
	id   string
	conn *websocket.Conn

	mu       sync.Mutex
	sessions map[string]struct{}
	writeMu  sync.Mutex
	closed   bool
}

func newClient(id string, conn *websocket.Conn) *Client {
	return &Client{id: id, conn: conn, sessions: make(map[string]struct{})}
}

func (c *Client) subscribe(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = struct{}{}
}

func (c *Client) subscribedTo(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.sessions[sessionID]
	return ok
}

func (c *Client) send(frame protocol.ServerFrame) {
	data, err := frame.Encode()
	if err != nil {
		slog.Error("gateway: encode frame failed", "error", err)
		return
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Warn("gateway: write failed", "client", c.id, "error", err)
	}
}

func (c *Client) closeWithStatus(code int, reason string) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	deadline := time.Now().Add(writeWait)
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.conn.Close()
}

// readLoop pumps inbound frames to handle until the connection closes.
func (c *Client) readLoop(handle func(protocol.ClientFrame)) {
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		frame, err := protocol.DecodeClientFrame(data)
		if err != nil {
			slog.Warn("gateway: malformed frame", "client", c.id, "error", err)
			continue
		}
		handle(frame)
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		c.writeMu.Lock()
		if c.closed {
			c.writeMu.Unlock()
			return
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.conn.WriteMessage(websocket.PingMessage, nil)
		c.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}
