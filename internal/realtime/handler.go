package realtime

import (
	"context"
	"log"
	"net/http"
	"time"

	"personalysis-collab/internal/session"
	"personalysis-collab/internal/utils"
	"personalysis-collab/redis"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests to websocket connections and
// ties the connection lifecycle to session presence: connecting joins
// the session, disconnecting marks the participant offline.
type Handler struct {
	hub      *Hub
	sessions session.Service
	cache    *redis.Cache
}

func NewHandler(hub *Hub, sessions session.Service, cache *redis.Cache) *Handler {
	return &Handler{hub: hub, sessions: sessions, cache: cache}
}

func (h *Handler) Serve(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")
	uid := userID.(uint64)
	name := username.(string)

	// join before upgrading so an archived or missing session is still
	// a plain HTTP error the client can read
	if _, err := h.sessions.Join(c.Request.Context(), sessionID, uid, name); err != nil {
		c.Error(err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("realtime: upgrade failed for user=%d session=%d: %v", uid, sessionID, err)
		return
	}

	client := newClient(h.hub, conn, sessionID, uid, name, h.cache, h.sessions.Heartbeat)
	h.hub.register(client)

	go client.writePump()
	go func() {
		client.readPump()
		// readPump returns once the peer is gone and the client is
		// unregistered; another open connection keeps the user present
		if h.hub.UserConnections(sessionID, uid) > 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.sessions.Leave(ctx, sessionID, uid, name); err != nil {
			log.Printf("realtime: leave failed for user=%d session=%d: %v", uid, sessionID, err)
		}
	}()
}
