package lock

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type LockRepository interface {
	Create(ctx context.Context, lock *Lock) error
	FindActive(ctx context.Context, sessionID uint64, elementID string) (*Lock, error)
	Deactivate(ctx context.Context, lockID uint64) error
	ExtendExpiry(ctx context.Context, lockID uint64, expiresAt time.Time) error
	// ListBySession returns the session's locks newest first. With
	// activeOnly=false the result is capped at historyLimit rows.
	ListBySession(ctx context.Context, sessionID uint64, activeOnly bool) ([]Lock, error)
	DeactivateExpired(ctx context.Context, now time.Time) ([]Lock, error)
}

type LockRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new lock repository
func NewRepository(db *gorm.DB) LockRepository {
	return &LockRepositoryImpl{db: db}
}

func (r *LockRepositoryImpl) Create(ctx context.Context, lock *Lock) error {
	return r.db.WithContext(ctx).Create(lock).Error
}

func (r *LockRepositoryImpl) FindActive(ctx context.Context, sessionID uint64, elementID string) (*Lock, error) {
	var lock Lock
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND element_id = ? AND active", sessionID, elementID).
		First(&lock).Error
	if err != nil {
		return nil, err
	}
	return &lock, nil
}

func (r *LockRepositoryImpl) Deactivate(ctx context.Context, lockID uint64) error {
	return r.db.WithContext(ctx).Model(&Lock{}).
		Where("id = ?", lockID).
		Update("active", false).Error
}

func (r *LockRepositoryImpl) ExtendExpiry(ctx context.Context, lockID uint64, expiresAt time.Time) error {
	return r.db.WithContext(ctx).Model(&Lock{}).
		Where("id = ? AND active", lockID).
		Update("expires_at", expiresAt).Error
}

// historyLimit caps full-history listings. Active locks are bounded by
// the number of elements and are always returned in full; retired locks
// accumulate forever, so the history view keeps only the newest rows.
const historyLimit = 200

func (r *LockRepositoryImpl) ListBySession(ctx context.Context, sessionID uint64, activeOnly bool) ([]Lock, error) {
	var locks []Lock
	q := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if activeOnly {
		q = q.Where("active")
	} else {
		q = q.Limit(historyLimit)
	}
	err := q.Order("locked_at DESC").Find(&locks).Error
	return locks, err
}

// DeactivateExpired flips every timed-out lock inactive and returns the
// affected rows so the caller can emit unlock events for each.
func (r *LockRepositoryImpl) DeactivateExpired(ctx context.Context, now time.Time) ([]Lock, error) {
	var expired []Lock
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("active AND expires_at < ?", now).
			Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]uint64, 0, len(expired))
		for _, l := range expired {
			ids = append(ids, l.ID)
		}
		return tx.Model(&Lock{}).
			Where("id IN ?", ids).
			Update("active", false).Error
	})
	return expired, err
}
