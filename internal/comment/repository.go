package comment

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *Comment) error
	FindByID(ctx context.Context, id uint64) (*Comment, error)
	MarkResolved(ctx context.Context, id uint64, byID uint64, byName string) error
	ListBySession(ctx context.Context, sessionID uint64) ([]Comment, error)
}

type CommentRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new comment repository
func NewRepository(db *gorm.DB) CommentRepository {
	return &CommentRepositoryImpl{db: db}
}

func (r *CommentRepositoryImpl) Create(ctx context.Context, comment *Comment) error {
	comment.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *CommentRepositoryImpl) FindByID(ctx context.Context, id uint64) (*Comment, error) {
	var comment Comment
	err := r.db.WithContext(ctx).First(&comment, id).Error
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *CommentRepositoryImpl) MarkResolved(ctx context.Context, id uint64, byID uint64, byName string) error {
	return r.db.WithContext(ctx).Model(&Comment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"resolved":         true,
			"resolved_by_id":   byID,
			"resolved_by_name": byName,
		}).Error
}

func (r *CommentRepositoryImpl) ListBySession(ctx context.Context, sessionID uint64) ([]Comment, error) {
	var comments []Comment
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&comments).Error
	return comments, err
}
