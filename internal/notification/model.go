package notification

import (
	"time"
)

// Notification is one recipient's copy of a session event. Each
// recipient owns an independent read flag; the actor who caused the
// event never receives a copy.
type Notification struct {
	ID          uint64    `json:"id"`
	RecipientID uint64    `json:"-" gorm:"index"`
	SessionID   uint64    `json:"session_id" gorm:"index"`
	Type        string    `json:"type"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	SenderID    uint64    `json:"sender_id"`
	SenderName  string    `json:"sender_name"`
	ElementID   string    `json:"element_id,omitempty"`
	ActionURL   string    `json:"action_url,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"created_at"`
}
