package session

import (
	"context"
	defError "errors"
	"fmt"
	"time"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/events"
	"personalysis-collab/internal/utils"
	"personalysis-collab/redis"

	"gorm.io/gorm"
)

type Service interface {
	CreateSession(ctx context.Context, userID uint64, username string, session *Session) error
	GetSession(ctx context.Context, sessionID uint64) (*Session, error)
	ListSessions(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedSessions, error)
	ArchiveSession(ctx context.Context, sessionID, requesterID uint64) error

	// EnsureExists is the lookup the other collaboration services use
	// before touching session-owned state.
	EnsureExists(ctx context.Context, sessionID uint64) error

	Join(ctx context.Context, sessionID, userID uint64, username string) (*Participant, error)
	Heartbeat(ctx context.Context, sessionID, userID uint64, cursor *int) error
	SetStatus(ctx context.Context, sessionID, userID uint64, status string) error
	Leave(ctx context.Context, sessionID, userID uint64, username string) error
	ListParticipants(ctx context.Context, sessionID uint64) ([]Participant, error)
	ParticipantIDs(ctx context.Context, sessionID uint64) ([]uint64, error)
}

type DefaultService struct {
	repository SessionRepository
	cache      *redis.Cache
	bus        events.Bus
}

func NewService(repository SessionRepository, cache *redis.Cache, bus events.Bus) Service {
	return &DefaultService{
		repository: repository,
		cache:      cache,
		bus:        bus,
	}
}

type PaginatedSessions struct {
	Data []Session      `json:"data"`
	Meta utils.PageMeta `json:"meta"`
}

func (s *DefaultService) CreateSession(ctx context.Context, userID uint64, username string, session *Session) error {
	session.CreatedByID = userID
	if err := s.repository.Create(ctx, session); err != nil {
		return err
	}

	// the creator is the first participant
	if _, err := s.repository.UpsertParticipant(ctx, &Participant{
		SessionID: session.ID,
		UserID:    userID,
		Username:  username,
	}); err != nil {
		return err
	}

	s.cache.IncrementVersion(ctx, listVersionKey(userID))
	return nil
}

func (s *DefaultService) GetSession(ctx context.Context, sessionID uint64) (*Session, error) {
	session, err := s.repository.FindByID(ctx, sessionID)
	if err != nil {
		if defError.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.NotFound("Session not found", err)
		}
		return nil, err
	}
	return session, nil
}

func (s *DefaultService) ListSessions(ctx context.Context, userID uint64, page, pageSize int) (*PaginatedSessions, error) {
	// Versioned cache: the key embeds a counter that bumps on every
	// mutation, so stale pages are simply never requested again.
	versionKey := listVersionKey(userID)
	v := s.cache.GetVersion(ctx, versionKey)
	cacheKey := fmt.Sprintf("sessions:u:%d:v:%d:p:%d:ps:%d", userID, v, page, pageSize)

	var result PaginatedSessions
	found, _ := s.cache.Get(ctx, cacheKey, &result)
	if found {
		return &result, nil
	}

	sessions, meta, err := s.repository.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, err
	}
	result = PaginatedSessions{Data: sessions, Meta: meta}

	go s.cache.Set(context.Background(), cacheKey, result, 24*time.Hour)

	return &result, nil
}

func (s *DefaultService) ArchiveSession(ctx context.Context, sessionID, requesterID uint64) error {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.CreatedByID != requesterID {
		return errors.Forbidden("Only the session creator can archive it", nil)
	}
	if session.Status == StatusArchived {
		return nil // archiving twice is a no-op
	}

	if err := s.repository.SetStatus(ctx, sessionID, StatusArchived); err != nil {
		return err
	}
	s.cache.IncrementVersion(ctx, listVersionKey(requesterID))
	return nil
}

func (s *DefaultService) EnsureExists(ctx context.Context, sessionID uint64) error {
	_, err := s.GetSession(ctx, sessionID)
	return err
}

// Join admits a user into a session. Re-joining is idempotent: the
// existing participant flips back to online with a fresh activity time.
func (s *DefaultService) Join(ctx context.Context, sessionID, userID uint64, username string) (*Participant, error) {
	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == StatusArchived {
		return nil, errors.Conflict("Session is archived", nil)
	}

	participant := &Participant{
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
	}
	created, err := s.repository.UpsertParticipant(ctx, participant)
	if err != nil {
		return nil, err
	}

	if created {
		s.cache.IncrementVersion(ctx, listVersionKey(userID))
		s.bus.Publish(ctx, events.Event{
			Type:      events.TypeUserJoined,
			SessionID: sessionID,
			ActorID:   userID,
			ActorName: username,
			Title:     "Participant joined",
			Message:   fmt.Sprintf("%s joined the session", username),
			CreatedAt: time.Now().UTC(),
		})
	}

	return s.repository.GetParticipant(ctx, sessionID, userID)
}

func (s *DefaultService) Heartbeat(ctx context.Context, sessionID, userID uint64, cursor *int) error {
	err := s.repository.UpdateParticipant(ctx, sessionID, userID, PresenceOnline, cursor)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("Not a participant of this session", err)
	}
	return err
}

func (s *DefaultService) SetStatus(ctx context.Context, sessionID, userID uint64, status string) error {
	if !validPresence(status) {
		return errors.BadRequest("Unknown presence status", nil)
	}

	err := s.repository.UpdateParticipant(ctx, sessionID, userID, status, nil)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("Not a participant of this session", err)
	}
	if err != nil {
		return err
	}

	// status changes are broadcast-only, never persisted as notifications
	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeStatusChanged,
		SessionID: sessionID,
		ActorID:   userID,
		Payload:   map[string]any{"status": status},
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Leave marks the participant offline. The record is retained.
func (s *DefaultService) Leave(ctx context.Context, sessionID, userID uint64, username string) error {
	err := s.repository.UpdateParticipant(ctx, sessionID, userID, PresenceOffline, nil)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("Not a participant of this session", err)
	}
	if err != nil {
		return err
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeUserLeft,
		SessionID: sessionID,
		ActorID:   userID,
		ActorName: username,
		Title:     "Participant left",
		Message:   fmt.Sprintf("%s left the session", username),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *DefaultService) ListParticipants(ctx context.Context, sessionID uint64) ([]Participant, error) {
	if err := s.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repository.ListParticipants(ctx, sessionID)
}

// ParticipantIDs returns the user ids of everyone in the session. Used
// by the notification fan-out, so it skips the existence check that the
// public listing performs.
func (s *DefaultService) ParticipantIDs(ctx context.Context, sessionID uint64) ([]uint64, error) {
	participants, err := s.repository.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func listVersionKey(userID uint64) string {
	return fmt.Sprintf("user:%d:sessions:version", userID)
}
