package document

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/events"
)

// LockChecker is the slice of the lock manager the engine depends on:
// every edit must be covered by the editor's active element lock.
type LockChecker interface {
	HoldsLock(ctx context.Context, sessionID uint64, elementID string, userID uint64) (bool, error)
}

type SessionDirectory interface {
	EnsureExists(ctx context.Context, sessionID uint64) error
}

type ChangeRequest struct {
	ElementID   string
	ElementType string
	Content     string
	BaseVersion uint64
}

type ChangeResult struct {
	ElementID string    `json:"element_id"`
	Version   uint64    `json:"version"`
	AppliedAt time.Time `json:"applied_at"`
}

type StateResponse struct {
	SessionID        uint64    `json:"session_id"`
	Version          uint64    `json:"version"`
	Elements         []Element `json:"elements"`
	LastModifiedByID uint64    `json:"last_modified_by_id"`
	LastModifiedAt   time.Time `json:"last_modified_at"`
}

type Service interface {
	ApplyChange(ctx context.Context, sessionID, userID uint64, username string, req ChangeRequest) (*ChangeResult, error)
	GetState(ctx context.Context, sessionID uint64) (*StateResponse, error)

	// Snapshot and Restore are the version store's window into the
	// engine. The snapshot format is a JSON array of elements.
	Snapshot(ctx context.Context, sessionID uint64) ([]byte, uint64, error)
	Restore(ctx context.Context, sessionID, userID uint64, snapshot []byte) (uint64, error)
}

type DefaultService struct {
	repository DocumentRepository
	locks      LockChecker
	sessions   SessionDirectory
	bus        events.Bus

	// one mutex per session serializes mutations so the version check
	// and the write are a single step
	mu       sync.Mutex
	sessLock map[uint64]*sync.Mutex
}

func NewService(repository DocumentRepository, locks LockChecker, sessions SessionDirectory, bus events.Bus) *DefaultService {
	return &DefaultService{
		repository: repository,
		locks:      locks,
		sessions:   sessions,
		bus:        bus,
		sessLock:   make(map[uint64]*sync.Mutex),
	}
}

func (s *DefaultService) sessionMutex(sessionID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.sessLock[sessionID]
	if !ok {
		m = &sync.Mutex{}
		s.sessLock[sessionID] = m
	}
	return m
}

// ApplyChange validates the edit against the element lock and the
// document version, then commits and broadcasts it. Concurrent edit
// safety comes from lock gating, not from merging: an edit without the
// element's lock is Forbidden, an edit on a stale base is StaleWrite.
func (s *DefaultService) ApplyChange(ctx context.Context, sessionID, userID uint64, username string, req ChangeRequest) (*ChangeResult, error) {
	if req.ElementID == "" {
		return nil, errors.BadRequest("element_id is required", nil)
	}
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}

	holds, err := s.locks.HoldsLock(ctx, sessionID, req.ElementID, userID)
	if err != nil {
		return nil, err
	}
	if !holds {
		return nil, errors.Forbidden("Editing requires holding the element's lock", nil)
	}

	sm := s.sessionMutex(sessionID)
	sm.Lock()
	defer sm.Unlock()

	doc, err := s.repository.FindOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if req.BaseVersion != doc.Version {
		return nil, errors.StaleWrite(
			fmt.Sprintf("Edit based on version %d, document is at %d", req.BaseVersion, doc.Version),
			doc.Version,
		)
	}

	version, err := s.repository.ApplyChange(ctx, doc.ID, userID, req.ElementID, req.ElementType, req.Content)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeDocumentChanged,
		SessionID: sessionID,
		ActorID:   userID,
		ActorName: username,
		ElementID: req.ElementID,
		Title:     "Document changed",
		Message:   fmt.Sprintf("%s edited %s", username, req.ElementID),
		Payload: map[string]any{
			"version":    version,
			"element_id": req.ElementID,
			"content":    req.Content,
		},
		CreatedAt: now,
	})

	return &ChangeResult{ElementID: req.ElementID, Version: version, AppliedAt: now}, nil
}

func (s *DefaultService) GetState(ctx context.Context, sessionID uint64) (*StateResponse, error) {
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}

	doc, err := s.repository.FindOrCreate(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return &StateResponse{
		SessionID:        sessionID,
		Version:          doc.Version,
		Elements:         doc.Elements,
		LastModifiedByID: doc.LastModifiedByID,
		LastModifiedAt:   doc.LastModifiedAt,
	}, nil
}

func (s *DefaultService) Snapshot(ctx context.Context, sessionID uint64) ([]byte, uint64, error) {
	doc, err := s.repository.FindOrCreate(ctx, sessionID)
	if err != nil {
		return nil, 0, err
	}

	data, err := json.Marshal(doc.Elements)
	if err != nil {
		return nil, 0, err
	}
	return data, doc.Version, nil
}

// Restore copies a historical snapshot back into the live document.
// It runs under the session mutex like any other mutation.
func (s *DefaultService) Restore(ctx context.Context, sessionID, userID uint64, snapshot []byte) (uint64, error) {
	var elements []Element
	if err := json.Unmarshal(snapshot, &elements); err != nil {
		return 0, errors.UnprocessableEntity("Corrupt snapshot payload", err)
	}

	sm := s.sessionMutex(sessionID)
	sm.Lock()
	defer sm.Unlock()

	doc, err := s.repository.FindOrCreate(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	return s.repository.ReplaceContent(ctx, doc.ID, userID, elements)
}
