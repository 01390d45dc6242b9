package review

import (
	"time"
)

// Review request / reviewer statuses.
const (
	StatusPending          = "pending"
	StatusInProgress       = "in_progress"
	StatusApproved         = "approved"
	StatusRejected         = "rejected"
	StatusChangesRequested = "changes_requested"
)

// ReviewRequest is a multi-reviewer approval workflow attached to a
// session, optionally pinned to a version. The overall status is a
// deterministic aggregate of the reviewer sub-statuses.
type ReviewRequest struct {
	ID              uint64          `json:"id"`
	SessionID       uint64          `json:"session_id" gorm:"index"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Status          string          `json:"status"`
	VersionID       *uint64         `json:"version_id"`
	RequestedByID   uint64          `json:"requested_by_id"`
	RequestedByName string          `json:"requested_by_name"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Reviewers       []Reviewer      `json:"reviewers"`
	Comments        []ReviewComment `json:"comments"`
}

type Reviewer struct {
	ID              uint64     `json:"-"`
	ReviewRequestID uint64     `json:"-" gorm:"uniqueIndex:idx_review_reviewer"`
	UserID          uint64     `json:"user_id" gorm:"uniqueIndex:idx_review_reviewer"`
	Username        string     `json:"username"`
	Status          string     `json:"status"`
	DecidedAt       *time.Time `json:"decided_at"`
}

type ReviewComment struct {
	ID              uint64    `json:"id"`
	ReviewRequestID uint64    `json:"-" gorm:"index"`
	AuthorID        uint64    `json:"author_id"`
	AuthorName      string    `json:"author_name"`
	Content         string    `json:"content"`
	ElementID       string    `json:"element_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Terminal reports whether the request can no longer change decision
// state. Terminal reviews still accept comments.
func Terminal(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// Aggregate derives the overall status from reviewer sub-statuses:
// any rejection wins, then any changes-requested, then unanimous
// approval; anything else is still in progress.
func Aggregate(reviewers []Reviewer) string {
	allApproved := len(reviewers) > 0
	anyChangesRequested := false

	for _, r := range reviewers {
		switch r.Status {
		case StatusRejected:
			return StatusRejected
		case StatusChangesRequested:
			anyChangesRequested = true
			allApproved = false
		case StatusApproved:
			// keeps allApproved
		default:
			allApproved = false
		}
	}

	if anyChangesRequested {
		return StatusChangesRequested
	}
	if allApproved {
		return StatusApproved
	}
	return StatusInProgress
}

func validDecision(status string) bool {
	switch status {
	case StatusApproved, StatusRejected, StatusChangesRequested:
		return true
	}
	return false
}
