package lock

import (
	"context"
	defError "errors"
	"fmt"
	"log"
	"sync"
	"time"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/events"

	"gorm.io/gorm"
)

// SessionDirectory is the slice of the session service the lock
// manager needs: existence checks that yield NotFound.
type SessionDirectory interface {
	EnsureExists(ctx context.Context, sessionID uint64) error
}

type AcquireRequest struct {
	ElementID   string
	ElementType string
	Name        string
}

type Service interface {
	// Acquire grants the element lock or, when another party holds it,
	// returns their lock with acquired=false. Conflict is a valid
	// negative result, not an error.
	Acquire(ctx context.Context, sessionID uint64, req AcquireRequest, requesterID uint64, requesterName string) (*Lock, bool, error)
	Release(ctx context.Context, sessionID uint64, elementID string, requesterID uint64) error
	Refresh(ctx context.Context, sessionID uint64, elementID string, requesterID uint64) (*Lock, error)
	// Holder returns the active unexpired lock on the element, or nil.
	Holder(ctx context.Context, sessionID uint64, elementID string) (*Lock, error)
	List(ctx context.Context, sessionID uint64, activeOnly bool) ([]Lock, error)
	// HoldsLock reports whether the user currently owns the element's
	// active lock. The document engine gates edits on this.
	HoldsLock(ctx context.Context, sessionID uint64, elementID string, userID uint64) (bool, error)
	// SweepExpired proactively deactivates timed-out locks and emits
	// element_unlocked events. Lazy expiry stays correct without it.
	SweepExpired(ctx context.Context) error
}

type DefaultService struct {
	repository LockRepository
	sessions   SessionDirectory
	bus        events.Bus
	ttl        time.Duration

	// per-element mutexes serialize concurrent acquisitions so two
	// requesters can never both read "unlocked" before writing
	mu    sync.Mutex
	elems map[string]*sync.Mutex
}

func NewService(repository LockRepository, sessions SessionDirectory, bus events.Bus, ttl time.Duration) *DefaultService {
	return &DefaultService{
		repository: repository,
		sessions:   sessions,
		bus:        bus,
		ttl:        ttl,
		elems:      make(map[string]*sync.Mutex),
	}
}

func (s *DefaultService) elementMutex(sessionID uint64, elementID string) *sync.Mutex {
	key := fmt.Sprintf("%d/%s", sessionID, elementID)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.elems[key]
	if !ok {
		m = &sync.Mutex{}
		s.elems[key] = m
	}
	return m
}

func (s *DefaultService) Acquire(ctx context.Context, sessionID uint64, req AcquireRequest, requesterID uint64, requesterName string) (*Lock, bool, error) {
	if req.ElementID == "" {
		return nil, false, errors.BadRequest("element_id is required", nil)
	}
	if !validElementType(req.ElementType) {
		return nil, false, errors.BadRequest("Unknown element type", nil)
	}
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, false, err
	}

	em := s.elementMutex(sessionID, req.ElementID)
	em.Lock()
	defer em.Unlock()

	now := time.Now().UTC()

	current, err := s.repository.FindActive(ctx, sessionID, req.ElementID)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	if current != nil {
		if !current.Expired(now) {
			if current.LockedByID == requesterID {
				// re-acquire by the holder extends the claim
				expiresAt := now.Add(s.ttl)
				if err := s.repository.ExtendExpiry(ctx, current.ID, expiresAt); err != nil {
					return nil, false, err
				}
				current.ExpiresAt = expiresAt
				return current, true, nil
			}
			// held by someone else: negative result with the holder
			return current, false, nil
		}

		// expired lock found lazily; retire it before granting
		if err := s.repository.Deactivate(ctx, current.ID); err != nil {
			return nil, false, err
		}
	}

	granted := &Lock{
		SessionID:    sessionID,
		ElementID:    req.ElementID,
		ElementType:  req.ElementType,
		Name:         req.Name,
		LockedByID:   requesterID,
		LockedByName: requesterName,
		LockedAt:     now,
		ExpiresAt:    now.Add(s.ttl),
		Active:       true,
	}
	if err := s.repository.Create(ctx, granted); err != nil {
		// the partial unique index caught a race the mutex could not
		// see (e.g. a second server instance); surface the holder
		if defError.Is(err, gorm.ErrDuplicatedKey) {
			holder, findErr := s.repository.FindActive(ctx, sessionID, req.ElementID)
			if findErr == nil {
				return holder, false, nil
			}
		}
		return nil, false, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeElementLocked,
		SessionID: sessionID,
		ActorID:   requesterID,
		ActorName: requesterName,
		ElementID: req.ElementID,
		Title:     "Element locked",
		Message:   fmt.Sprintf("%s is editing %s", requesterName, displayName(granted)),
		Payload:   map[string]any{"element_type": req.ElementType, "expires_at": granted.ExpiresAt},
		CreatedAt: now,
	})

	return granted, true, nil
}

func (s *DefaultService) Release(ctx context.Context, sessionID uint64, elementID string, requesterID uint64) error {
	em := s.elementMutex(sessionID, elementID)
	em.Lock()
	defer em.Unlock()

	current, err := s.repository.FindActive(ctx, sessionID, elementID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("No active lock on this element", err)
	}
	if err != nil {
		return err
	}
	if current.LockedByID != requesterID {
		return errors.Forbidden("Only the lock holder can release it", nil)
	}

	if err := s.repository.Deactivate(ctx, current.ID); err != nil {
		return err
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeElementUnlocked,
		SessionID: sessionID,
		ActorID:   requesterID,
		ActorName: current.LockedByName,
		ElementID: elementID,
		Title:     "Element unlocked",
		Message:   fmt.Sprintf("%s finished editing %s", current.LockedByName, displayName(current)),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

func (s *DefaultService) Refresh(ctx context.Context, sessionID uint64, elementID string, requesterID uint64) (*Lock, error) {
	em := s.elementMutex(sessionID, elementID)
	em.Lock()
	defer em.Unlock()

	now := time.Now().UTC()

	current, err := s.repository.FindActive(ctx, sessionID, elementID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("No active lock on this element", err)
	}
	if err != nil {
		return nil, err
	}
	if current.Expired(now) {
		// a timed-out lock can't be refreshed, only re-acquired
		return nil, errors.NotFound("Lock has expired", nil)
	}
	if current.LockedByID != requesterID {
		return nil, errors.Forbidden("Only the lock holder can refresh it", nil)
	}

	expiresAt := now.Add(s.ttl)
	if err := s.repository.ExtendExpiry(ctx, current.ID, expiresAt); err != nil {
		return nil, err
	}
	current.ExpiresAt = expiresAt
	return current, nil
}

func (s *DefaultService) Holder(ctx context.Context, sessionID uint64, elementID string) (*Lock, error) {
	current, err := s.repository.FindActive(ctx, sessionID, elementID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if current.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return current, nil
}

func (s *DefaultService) List(ctx context.Context, sessionID uint64, activeOnly bool) ([]Lock, error) {
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}

	locks, err := s.repository.ListBySession(ctx, sessionID, activeOnly)
	if err != nil {
		return nil, err
	}

	if activeOnly {
		// filter locks the sweep hasn't caught up with yet
		now := time.Now().UTC()
		live := locks[:0]
		for _, l := range locks {
			if !l.Expired(now) {
				live = append(live, l)
			}
		}
		locks = live
	}
	return locks, nil
}

func (s *DefaultService) HoldsLock(ctx context.Context, sessionID uint64, elementID string, userID uint64) (bool, error) {
	holder, err := s.Holder(ctx, sessionID, elementID)
	if err != nil {
		return false, err
	}
	return holder != nil && holder.LockedByID == userID, nil
}

func (s *DefaultService) SweepExpired(ctx context.Context) error {
	expired, err := s.repository.DeactivateExpired(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	for _, l := range expired {
		log.Printf("lock sweep: expired lock on element %s (session %d, holder %s)", l.ElementID, l.SessionID, l.LockedByName)
		s.bus.Publish(ctx, events.Event{
			Type:      events.TypeElementUnlocked,
			SessionID: l.SessionID,
			ActorID:   l.LockedByID,
			ActorName: l.LockedByName,
			ElementID: l.ElementID,
			Title:     "Lock expired",
			Message:   fmt.Sprintf("The lock held by %s on %s expired", l.LockedByName, displayName(&l)),
			CreatedAt: time.Now().UTC(),
		})
	}
	return nil
}

func displayName(l *Lock) string {
	if l.Name != "" {
		return l.Name
	}
	return l.ElementID
}
