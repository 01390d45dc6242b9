package realtime

import (
	"encoding/json"
	"log"
	"sync"
)

// Frame is the envelope written to every websocket client. Seq is a
// per-session monotonic counter assigned at broadcast time, so clients
// can detect dropped frames and resync over HTTP.
type Frame struct {
	Seq  uint64 `json:"seq"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub keeps one room per session and fans broadcasts out to every
// connected client. A client that cannot keep up with the broadcast
// rate gets disconnected rather than stalling the room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint64]map[*Client]struct{}
	seq   map[uint64]uint64
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[uint64]map[*Client]struct{}),
		seq:   make(map[uint64]uint64),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.sessionID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.sessionID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.sessionID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.sessionID)
		delete(h.seq, c.sessionID)
	}
}

// Broadcast pushes an event to every client in the session's room.
// Implements the dispatcher's Broadcaster.
func (h *Hub) Broadcast(sessionID uint64, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if !ok || len(room) == 0 {
		return
	}

	h.seq[sessionID]++
	frame := Frame{
		Seq:  h.seq[sessionID],
		Type: eventType,
		Data: payload,
	}
	data, err := json.Marshal(frame)
	if err != nil {
		log.Printf("realtime: marshal frame %s for session %d: %v", eventType, sessionID, err)
		return
	}

	for c := range room {
		select {
		case c.send <- data:
		default:
			// slow consumer, cut it loose
			delete(room, c)
			close(c.send)
		}
	}
}

// RoomSize reports how many clients are connected to a session.
func (h *Hub) RoomSize(sessionID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[sessionID])
}

// UserConnections reports how many of the session's clients belong to
// the user. A user with several tabs open stays present until the last
// one disconnects.
func (h *Hub) UserConnections(sessionID, userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.rooms[sessionID] {
		if c.userID == userID {
			n++
		}
	}
	return n
}
