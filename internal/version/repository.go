package version

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type VersionRepository interface {
	// CreateAndSetCurrent appends the version and atomically moves the
	// current pointer to it.
	CreateAndSetCurrent(ctx context.Context, version *Version) error
	// SetCurrent moves the pointer to an existing version.
	SetCurrent(ctx context.Context, sessionID, versionID uint64) error
	FindByID(ctx context.Context, sessionID, versionID uint64) (*Version, error)
	ListBySession(ctx context.Context, sessionID uint64) ([]Version, error)
}

type VersionRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new version repository
func NewRepository(db *gorm.DB) VersionRepository {
	return &VersionRepositoryImpl{db: db}
}

func (r *VersionRepositoryImpl) CreateAndSetCurrent(ctx context.Context, version *Version) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Version{}).
			Where("session_id = ? AND is_current", version.SessionID).
			Update("is_current", false).Error; err != nil {
			return err
		}

		version.IsCurrent = true
		version.CreatedAt = time.Now().UTC()
		return tx.Create(version).Error
	})
}

func (r *VersionRepositoryImpl) SetCurrent(ctx context.Context, sessionID, versionID uint64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// verify the target exists inside the transaction so the
		// pointer can never land on a missing version
		var target Version
		if err := tx.Where("id = ? AND session_id = ?", versionID, sessionID).
			First(&target).Error; err != nil {
			return err
		}

		if err := tx.Model(&Version{}).
			Where("session_id = ? AND is_current", sessionID).
			Update("is_current", false).Error; err != nil {
			return err
		}

		return tx.Model(&Version{}).
			Where("id = ?", versionID).
			Update("is_current", true).Error
	})
}

func (r *VersionRepositoryImpl) FindByID(ctx context.Context, sessionID, versionID uint64) (*Version, error) {
	var version Version
	err := r.db.WithContext(ctx).
		Where("id = ? AND session_id = ?", versionID, sessionID).
		First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *VersionRepositoryImpl) ListBySession(ctx context.Context, sessionID uint64) ([]Version, error) {
	var versions []Version
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&versions).Error
	return versions, err
}
