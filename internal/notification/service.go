package notification

import (
	"context"
	"errors"

	apperrors "personalysis-collab/internal/errors"
	"personalysis-collab/internal/utils"

	"gorm.io/gorm"
)

type Service interface {
	List(ctx context.Context, recipientID uint64, sessionID uint64, page, pageSize int) ([]Notification, int64, utils.PageMeta, error)
	MarkRead(ctx context.Context, id, recipientID uint64) error
	MarkAllRead(ctx context.Context, recipientID uint64, sessionID uint64) error
	Delete(ctx context.Context, id, recipientID uint64) error
}

type DefaultService struct {
	repository NotificationRepository
}

func NewService(repository NotificationRepository) *DefaultService {
	return &DefaultService{repository: repository}
}

// List returns the recipient's notifications newest first, along with
// their unread count. sessionID of 0 means all sessions.
func (s *DefaultService) List(ctx context.Context, recipientID uint64, sessionID uint64, page, pageSize int) ([]Notification, int64, utils.PageMeta, error) {
	notifications, meta, err := s.repository.ListByRecipient(ctx, recipientID, sessionID, page, pageSize)
	if err != nil {
		return nil, 0, utils.PageMeta{}, err
	}
	unread, err := s.repository.CountUnread(ctx, recipientID)
	if err != nil {
		return nil, 0, utils.PageMeta{}, err
	}
	return notifications, unread, meta, nil
}

// MarkRead is idempotent: marking an already-read notification succeeds.
func (s *DefaultService) MarkRead(ctx context.Context, id, recipientID uint64) error {
	if err := s.repository.MarkRead(ctx, id, recipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Notification not found", err)
		}
		return err
	}
	return nil
}

func (s *DefaultService) MarkAllRead(ctx context.Context, recipientID uint64, sessionID uint64) error {
	return s.repository.MarkAllRead(ctx, recipientID, sessionID)
}

func (s *DefaultService) Delete(ctx context.Context, id, recipientID uint64) error {
	if err := s.repository.Delete(ctx, id, recipientID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.NotFound("Notification not found", err)
		}
		return err
	}
	return nil
}
