package chathub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/pkg/logx"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBuffer     = 64
	eventTimeout   = 10 * time.Second
)

// WebSocketClient реалізує інтерфейс chathub.Client
type WebSocketClient struct {
	*Session

	conn      *websocket.Conn
	hub       *Hub
	localizer *localization.Localizer

	mu     sync.Mutex
	send   chan models.Notification
	closed bool
}

func NewWebSocketClient(conn *websocket.Conn, hub *Hub, localizer *localization.Localizer, authenticatedID string) *WebSocketClient {
	return &WebSocketClient{
		Session:   NewSession(authenticatedID),
		conn:      conn,
		hub:       hub,
		localizer: localizer,
		send:      make(chan models.Notification, sendBuffer),
	}
}

// Run запускає 'pumps' для WebSocket
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Send queues n without blocking. A client that cannot keep up is disconnected.
func (c *WebSocketClient) Send(n models.Notification) {
	if n.Message == "" && c.localizer != nil {
		n.Message = c.localizer.Describe(c.Lang(), n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	select {
	case c.send <- n:
	default:
		logx.Warn("Send buffer full, closing slow client", "user_id", c.GetUserID(), "conn_id", c.ConnID())
		c.closed = true
		close(c.send)
	}
}

// Close закриває Send канал (що зупинить writePump)
func (c *WebSocketClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *WebSocketClient) readPump() {
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		c.hub.Disconnect(ctx, c)
		cancel()
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logx.Warn("Error reading message", "conn_id", c.ConnID(), "error", err.Error())
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		c.hub.HandleEvent(ctx, c, message)
		cancel()
	}
}

// writePump читає повідомлення з каналу send і записує їх у WebSocket.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case n, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			data, err := json.Marshal(n)
			if err != nil {
				logx.Error(err, "Error encoding notification", "conn_id", c.ConnID(), "type", n.Type)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
