package notification

import (
	"context"
	"fmt"
	"time"

	"personalysis-collab/internal/events"
	"personalysis-collab/internal/worker"
)

// RecipientDirectory yields the user ids that should receive a copy of
// a session event. Satisfied by the session service.
type RecipientDirectory interface {
	ParticipantIDs(ctx context.Context, sessionID uint64) ([]uint64, error)
}

// Broadcaster pushes an event onto the realtime channel. Satisfied by
// the realtime hub.
type Broadcaster interface {
	Broadcast(sessionID uint64, eventType string, payload any)
}

// Dispatcher is the single funnel for session events: every state
// change is broadcast immediately and, for the persistent notification
// types, fanned out asynchronously as per-recipient records.
type Dispatcher struct {
	repository NotificationRepository
	recipients RecipientDirectory
	broadcast  Broadcaster
	runner     worker.Runner
}

func NewDispatcher(repository NotificationRepository, broadcast Broadcaster, runner worker.Runner) *Dispatcher {
	return &Dispatcher{
		repository: repository,
		broadcast:  broadcast,
		runner:     runner,
	}
}

// BindRecipients wires the participant lookup after construction. The
// session service both publishes events and resolves recipients, so one
// side of that loop has to bind late.
func (d *Dispatcher) BindRecipients(recipients RecipientDirectory) {
	d.recipients = recipients
}

// Publish implements events.Bus.
func (d *Dispatcher) Publish(ctx context.Context, e events.Event) {
	if d.broadcast != nil {
		d.broadcast.Broadcast(e.SessionID, e.Type, e)
	}

	if !persistable(e.Type) {
		return
	}

	// duplicate delivery is acceptable, lost delivery is not: the
	// fan-out retries once on failure before giving up loudly
	d.runner.Submit(func(taskCtx context.Context) error {
		if err := d.fanOut(taskCtx, e); err != nil {
			if retryErr := d.fanOut(taskCtx, e); retryErr != nil {
				return fmt.Errorf("notification fan-out for %s in session %d: %w", e.Type, e.SessionID, retryErr)
			}
		}
		return nil
	})
}

func (d *Dispatcher) fanOut(ctx context.Context, e events.Event) error {
	if d.recipients == nil {
		return fmt.Errorf("dispatcher has no recipient directory bound")
	}
	ids, err := d.recipients.ParticipantIDs(ctx, e.SessionID)
	if err != nil {
		return err
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	batch := make([]Notification, 0, len(ids))
	for _, id := range ids {
		if id == e.ActorID {
			continue // the actor never notifies themselves
		}
		batch = append(batch, Notification{
			RecipientID: id,
			SessionID:   e.SessionID,
			Type:        e.Type,
			Title:       e.Title,
			Message:     e.Message,
			SenderID:    e.ActorID,
			SenderName:  e.ActorName,
			ElementID:   e.ElementID,
			ActionURL:   e.ActionURL,
			CreatedAt:   createdAt,
		})
	}

	return d.repository.CreateBatch(ctx, batch)
}

// persistable is the closed set of notification types. Ephemeral
// events (presence status, typing) are broadcast-only.
func persistable(eventType string) bool {
	switch eventType {
	case events.TypeUserJoined,
		events.TypeUserLeft,
		events.TypeElementLocked,
		events.TypeElementUnlocked,
		events.TypeDocumentChanged,
		events.TypeCommentAdded,
		events.TypeCommentResolved,
		events.TypeVersionCreated,
		events.TypeVersionRestored,
		events.TypeReviewRequested,
		events.TypeReviewDecided,
		events.TypeReviewResubmitted:
		return true
	}
	return false
}
