package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"personalysis-collab/redis"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendQueueSize  = 64

	// minimum gap between typing indicators from one connection
	typingWindow = 2 * time.Second
)

// Client is one websocket connection bound to a session room. Outbound
// frames go through send and are drained by a single writer goroutine.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	send      chan []byte
	sessionID uint64
	userID    uint64
	username  string
	cache     *redis.Cache
	heartbeat HeartbeatFunc

	mu         sync.Mutex
	lastTyping time.Time
}

// HeartbeatFunc records presence activity for the connection's user.
type HeartbeatFunc func(ctx context.Context, sessionID, userID uint64, cursor *int) error

// inboundMessage is what clients may send over the socket. Everything
// else state-changing goes through the HTTP API.
type inboundMessage struct {
	Type      string `json:"type"` // "typing" or "cursor"
	ElementID string `json:"element_id,omitempty"`
	Cursor    *int   `json:"cursor,omitempty"`
}

func newClient(hub *Hub, conn *websocket.Conn, sessionID, userID uint64, username string, cache *redis.Cache, heartbeat HeartbeatFunc) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, sendQueueSize),
		sessionID: sessionID,
		userID:    userID,
		username:  username,
		cache:     cache,
		heartbeat: heartbeat,
	}
}

// readPump consumes inbound messages until the peer disconnects. It is
// the only reader on the connection.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Printf("realtime: read error user=%d session=%d: %v", c.userID, c.sessionID, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.handleInbound(msg)
	}
}

func (c *Client) handleInbound(msg inboundMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	switch msg.Type {
	case "typing":
		if !c.allowTyping(ctx) {
			return
		}
		c.hub.Broadcast(c.sessionID, "typing", map[string]any{
			"user_id":    c.userID,
			"user_name":  c.username,
			"element_id": msg.ElementID,
		})
	case "cursor":
		if c.heartbeat == nil {
			return
		}
		if err := c.heartbeat(ctx, c.sessionID, c.userID, msg.Cursor); err != nil {
			log.Printf("realtime: heartbeat user=%d session=%d: %v", c.userID, c.sessionID, err)
		}
	}
}

// allowTyping rate-limits typing indicators to one per window. Redis
// arbitrates across connections; the connection-local timestamp covers
// the no-Redis case.
func (c *Client) allowTyping(ctx context.Context) bool {
	c.mu.Lock()
	now := time.Now()
	if now.Sub(c.lastTyping) < typingWindow {
		c.mu.Unlock()
		return false
	}
	c.lastTyping = now
	c.mu.Unlock()

	key := fmt.Sprintf("typing:s:%d:u:%d", c.sessionID, c.userID)
	return c.cache.Throttle(ctx, key, typingWindow)
}

// writePump drains send and keeps the connection alive with pings. It
// is the only writer on the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
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
