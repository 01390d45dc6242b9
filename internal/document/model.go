package document

import (
	"time"
)

// Document is the live, authoritative survey document of one session.
// Version increases monotonically with every accepted change; clients
// that present a different base version get a stale-write rejection.
type Document struct {
	ID               uint64    `json:"id"`
	SessionID        uint64    `json:"session_id" gorm:"uniqueIndex"`
	Version          uint64    `json:"version" gorm:"default:0"`
	LastModifiedByID uint64    `json:"last_modified_by_id"`
	LastModifiedAt   time.Time `json:"last_modified_at"`
	CreatedAt        time.Time `json:"created_at"`
	Elements         []Element `json:"elements"`
}

// Element is one named piece of the document (a question, a section,
// ...). Edits replace an element's content wholesale, but only while
// the editor holds that element's lock.
type Element struct {
	ID          uint64    `json:"-"`
	DocumentID  uint64    `json:"-" gorm:"uniqueIndex:idx_doc_element"`
	ElementID   string    `json:"element_id" gorm:"uniqueIndex:idx_doc_element"`
	ElementType string    `json:"element_type"`
	Content     string    `json:"content"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Change is the append-only audit record of accepted edits.
type Change struct {
	ID         uint64    `json:"id"`
	DocumentID uint64    `json:"document_id" gorm:"index"`
	ElementID  string    `json:"element_id"`
	UserID     uint64    `json:"user_id"`
	Version    uint64    `json:"version"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}
