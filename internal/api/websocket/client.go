package websocket

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/KevinKickass/OpenProfinetDevice/internal/auth"
	"github.com/KevinKickass/OpenProfinetDevice/internal/logging"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Time allowed for the auth message
	authWait = 10 * time.Second

	maxMessageSize = 4096
	sendBufferSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

var errInsufficientPermissions = errors.New("websocket: token does not grant live access")

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// Client is a single WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	logger     logging.Logger
	remoteAddr string
}

// readPump authenticates the client and then only drains control frames.
func (c *Client) readPump() {
	registered := false
	defer func() {
		if !registered {
			// the write pump flushes pending replies and closes the connection
			close(c.send)
			return
		}
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(authWait))

	// First message MUST be authentication
	var msg authMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.logger.Warn("WebSocket authentication timed out",
			zap.Error(err),
			zap.String("remote_addr", c.remoteAddr))
		return
	}
	if msg.Type != "auth" || msg.Token == "" {
		c.sendAuthFailed("First message must be authentication")
		return
	}

	permissions, err := c.hub.validator.ValidateToken(msg.Token)
	if err == nil && !slices.Contains(permissions, auth.PermLive) {
		err = errInsufficientPermissions
	}
	if err != nil {
		c.logger.Warn("WebSocket authentication failed",
			zap.Error(err),
			zap.String("remote_addr", c.remoteAddr))
		c.sendAuthFailed("Invalid or expired token")
		return
	}

	c.sendJSON(NewMessage(MessageTypeAuthSuccess, AuthSuccessData{Permissions: permissions}))
	if c.hub.snapshots != nil {
		c.sendJSON(NewMessage(MessageTypeSnapshot, c.hub.snapshots.Snapshot()))
	}

	select {
	case c.hub.register <- c:
		registered = true
	case <-c.hub.done:
		return
	}

	c.logger.Info("WebSocket client authenticated",
		zap.String("remote_addr", c.remoteAddr),
		zap.Any("permissions", permissions))

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("WebSocket read error",
					zap.Error(err),
					zap.String("remote_addr", c.remoteAddr))
			}
			return
		}
	}
}

func (c *Client) sendAuthFailed(reason string) {
	c.sendJSON(NewMessage(MessageTypeAuthFailed, AuthFailedData{Reason: reason}))
}

func (c *Client) sendJSON(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("Failed to marshal message", zap.Error(err))
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// writePump handles writing messages to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Coalesce queued messages into current websocket message
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
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

// ServeWs upgrades the request. The client joins the hub once it has
// authenticated.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("WebSocket upgrade error",
			zap.Error(err),
			zap.String("remote_addr", r.RemoteAddr))
		return
	}

	client := &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufferSize),
		logger:     hub.logger,
		remoteAddr: conn.RemoteAddr().String(),
	}

	go client.writePump()
	go client.readPump()
}
