package session

import (
	"time"
)

// Session statuses
const (
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Participant presence statuses
const (
	PresenceOnline  = "online"
	PresenceIdle    = "idle"
	PresenceOffline = "offline"
)

// Session is a bounded collaborative workspace around one survey document.
type Session struct {
	ID           uint64        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Status       string        `json:"status" gorm:"default:active"`
	CreatedByID  uint64        `json:"created_by_id"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	Participants []Participant `json:"participants,omitempty"`
}

// Participant tracks who has joined a session and their presence.
// Records are never deleted; leaving marks the row offline so the
// history of who participated is retained.
type Participant struct {
	ID                 uint64    `json:"-"`
	SessionID          uint64    `json:"session_id" gorm:"uniqueIndex:idx_session_user"`
	UserID             uint64    `json:"user_id" gorm:"uniqueIndex:idx_session_user"`
	Username           string    `json:"username"`
	Status             string    `json:"status"`
	LastCursorPosition int       `json:"last_cursor_position"`
	LastActiveAt       time.Time `json:"last_active_at"`
	JoinedAt           time.Time `json:"joined_at"`
}

func validPresence(status string) bool {
	switch status {
	case PresenceOnline, PresenceIdle, PresenceOffline:
		return true
	}
	return false
}
