package lock

import (
	"time"
)

// Element types that can be locked for exclusive editing.
const (
	ElementQuestion = "question"
	ElementSection  = "section"
	ElementPage     = "page"
	ElementOption   = "option"
	ElementLogic    = "logic"
	ElementSetting  = "setting"
)

// Lock is an exclusive, time-bounded editing claim on one named
// document element. Rows are never deleted: released or expired locks
// stay around as inactive history.
//
// The storage layer backs the single-holder invariant with a partial
// unique index on (session_id, element_id) WHERE active.
type Lock struct {
	ID           uint64    `json:"id"`
	SessionID    uint64    `json:"session_id" gorm:"index"`
	ElementID    string    `json:"element_id" gorm:"index"`
	ElementType  string    `json:"element_type"`
	Name         string    `json:"name"`
	LockedByID   uint64    `json:"locked_by_id"`
	LockedByName string    `json:"locked_by_name"`
	LockedAt     time.Time `json:"locked_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	Active       bool      `json:"active"`
}

// Expired reports whether the lock's TTL has elapsed. Expiry is
// evaluated lazily at read time; the sweep only exists to push events.
func (l *Lock) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

func validElementType(t string) bool {
	switch t {
	case ElementQuestion, ElementSection, ElementPage, ElementOption, ElementLogic, ElementSetting:
		return true
	}
	return false
}
