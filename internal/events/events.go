package events

import (
	"context"
	"time"
)

// Session event types. These are the closed set of notification types;
// anything else is broadcast on the realtime channel but never stored.
const (
	TypeUserJoined        = "user_joined"
	TypeUserLeft          = "user_left"
	TypeStatusChanged     = "status_changed"
	TypeElementLocked     = "element_locked"
	TypeElementUnlocked   = "element_unlocked"
	TypeDocumentChanged   = "document_changed"
	TypeCommentAdded      = "comment_added"
	TypeCommentResolved   = "comment_resolved"
	TypeVersionCreated    = "version_created"
	TypeVersionRestored   = "version_restored"
	TypeReviewRequested   = "review_requested"
	TypeReviewDecided     = "review_decided"
	TypeReviewResubmitted = "review_resubmitted"
	TypeTyping            = "typing"
)

// Event is a single state change inside a session. Every mutating
// operation funnels one of these through the Bus; the dispatcher fans
// it out as per-recipient notifications and a realtime broadcast.
type Event struct {
	Type      string         `json:"type"`
	SessionID uint64         `json:"session_id"`
	ActorID   uint64         `json:"actor_id"`
	ActorName string         `json:"actor_name"`
	ElementID string         `json:"element_id,omitempty"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	ActionURL string         `json:"action_url,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type Bus interface {
	Publish(ctx context.Context, e Event)
}

// NopBus discards every event. Used in tests and as a default.
type NopBus struct{}

func (NopBus) Publish(context.Context, Event) {}
