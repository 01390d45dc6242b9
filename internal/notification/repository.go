package notification

import (
	"context"
	"time"

	"personalysis-collab/internal/utils"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []Notification) error
	ListByRecipient(ctx context.Context, recipientID uint64, sessionID uint64, page, pageSize int) ([]Notification, utils.PageMeta, error)
	CountUnread(ctx context.Context, recipientID uint64) (int64, error)
	MarkRead(ctx context.Context, id, recipientID uint64) error
	MarkAllRead(ctx context.Context, recipientID uint64, sessionID uint64) error
	Delete(ctx context.Context, id, recipientID uint64) error
}

type NotificationRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new notification repository
func NewRepository(db *gorm.DB) NotificationRepository {
	return &NotificationRepositoryImpl{db: db}
}

func (r *NotificationRepositoryImpl) CreateBatch(ctx context.Context, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for i := range notifications {
		if notifications[i].CreatedAt.IsZero() {
			notifications[i].CreatedAt = now
		}
	}
	return r.db.WithContext(ctx).Create(&notifications).Error
}

// ListByRecipient returns the recipient's notifications newest first,
// optionally scoped to one session (sessionID 0 means all).
func (r *NotificationRepositoryImpl) ListByRecipient(ctx context.Context, recipientID uint64, sessionID uint64, page, pageSize int) ([]Notification, utils.PageMeta, error) {
	var notifications []Notification
	var total int64

	q := r.db.WithContext(ctx).Model(&Notification{}).Where("recipient_id = ?", recipientID)
	if sessionID != 0 {
		q = q.Where("session_id = ?", sessionID)
	}

	if err := q.Count(&total).Error; err != nil {
		return notifications, utils.PageMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := q.Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&notifications).Error

	return notifications, utils.NewPageMeta(total, page, pageSize), err
}

func (r *NotificationRepositoryImpl) CountUnread(ctx context.Context, recipientID uint64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND NOT read", recipientID).
		Count(&count).Error
	return count, err
}

// MarkRead is idempotent: marking an already-read notification succeeds
// without side effects.
func (r *NotificationRepositoryImpl) MarkRead(ctx context.Context, id, recipientID uint64) error {
	result := r.db.WithContext(ctx).Model(&Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// distinguish "already read" (fine) from "not yours/missing"
		var exists bool
		if err := r.db.WithContext(ctx).Model(&Notification{}).
			Select("count(1) > 0").
			Where("id = ? AND recipient_id = ?", id, recipientID).
			Find(&exists).Error; err != nil {
			return err
		}
		if !exists {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

func (r *NotificationRepositoryImpl) MarkAllRead(ctx context.Context, recipientID uint64, sessionID uint64) error {
	q := r.db.WithContext(ctx).Model(&Notification{}).
		Where("recipient_id = ? AND NOT read", recipientID)
	if sessionID != 0 {
		q = q.Where("session_id = ?", sessionID)
	}
	return q.Update("read", true).Error
}

func (r *NotificationRepositoryImpl) Delete(ctx context.Context, id, recipientID uint64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
