package comment

import (
	"time"
)

// Comment is feedback anchored to a session's document, optionally at a
// position. Comments are never deleted; resolving flips a flag.
type Comment struct {
	ID             uint64    `json:"id"`
	SessionID      uint64    `json:"session_id" gorm:"index"`
	AuthorID       uint64    `json:"author_id"`
	AuthorName     string    `json:"author_name"`
	Text           string    `json:"text"`
	Position       *int      `json:"position"`
	Resolved       bool      `json:"resolved"`
	ResolvedByID   *uint64   `json:"resolved_by_id"`
	ResolvedByName string    `json:"resolved_by_name,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
