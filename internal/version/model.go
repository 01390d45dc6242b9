package version

import (
	"time"
)

// Version is an immutable named snapshot of document content. The list
// per session is append-only and totally ordered by CreatedAt; exactly
// one version per session carries IsCurrent.
type Version struct {
	ID              uint64    `json:"id"`
	SessionID       uint64    `json:"session_id" gorm:"index"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	IsCurrent       bool      `json:"is_current"`
	Snapshot        []byte    `json:"-"`
	DocumentVersion uint64    `json:"document_version"`
	CreatedByID     uint64    `json:"created_by_id"`
	CreatedByName   string    `json:"created_by_name"`
	CreatedAt       time.Time `json:"created_at"`
}

// snapshotElement mirrors the wire format the document engine uses for
// snapshots; only the fields the diff needs are decoded.
type snapshotElement struct {
	ElementID   string `json:"element_id"`
	ElementType string `json:"element_type"`
	Content     string `json:"content"`
}
