package comment

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/events"

	"gorm.io/gorm"
)

type SessionDirectory interface {
	EnsureExists(ctx context.Context, sessionID uint64) error
}

type Service interface {
	Add(ctx context.Context, sessionID, authorID uint64, authorName, text string, position *int) (*Comment, error)
	// Resolve flips the resolved flag. Resolving an already-resolved
	// comment is a no-op, not an error.
	Resolve(ctx context.Context, sessionID, commentID, userID uint64, username string) (*Comment, error)
	List(ctx context.Context, sessionID uint64) ([]Comment, error)
}

type DefaultService struct {
	repository CommentRepository
	sessions   SessionDirectory
	bus        events.Bus
}

func NewService(repository CommentRepository, sessions SessionDirectory, bus events.Bus) Service {
	return &DefaultService{
		repository: repository,
		sessions:   sessions,
		bus:        bus,
	}
}

func (s *DefaultService) Add(ctx context.Context, sessionID, authorID uint64, authorName, text string, position *int) (*Comment, error) {
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}

	comment := &Comment{
		SessionID:  sessionID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Text:       text,
		Position:   position,
	}
	if err := s.repository.Create(ctx, comment); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeCommentAdded,
		SessionID: sessionID,
		ActorID:   authorID,
		ActorName: authorName,
		Title:     "New comment",
		Message:   fmt.Sprintf("%s commented: %s", authorName, truncate(text, 80)),
		Payload:   map[string]any{"comment_id": comment.ID},
		CreatedAt: time.Now().UTC(),
	})

	return comment, nil
}

func (s *DefaultService) Resolve(ctx context.Context, sessionID, commentID, userID uint64, username string) (*Comment, error) {
	comment, err := s.repository.FindByID(ctx, commentID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Comment not found", err)
	}
	if err != nil {
		return nil, err
	}
	if comment.SessionID != sessionID {
		return nil, errors.NotFound("Comment not found in this session", nil)
	}
	if comment.Resolved {
		return comment, nil
	}

	if err := s.repository.MarkResolved(ctx, commentID, userID, username); err != nil {
		return nil, err
	}
	comment.Resolved = true
	comment.ResolvedByID = &userID
	comment.ResolvedByName = username

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeCommentResolved,
		SessionID: sessionID,
		ActorID:   userID,
		ActorName: username,
		Title:     "Comment resolved",
		Message:   fmt.Sprintf("%s resolved a comment", username),
		Payload:   map[string]any{"comment_id": comment.ID},
		CreatedAt: time.Now().UTC(),
	})

	return comment, nil
}

func (s *DefaultService) List(ctx context.Context, sessionID uint64) ([]Comment, error) {
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repository.ListBySession(ctx, sessionID)
}

// truncate shortens s to at most max runes, keeping multi-byte
// characters intact.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
