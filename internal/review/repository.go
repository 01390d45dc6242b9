package review

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type ReviewRepository interface {
	Create(ctx context.Context, review *ReviewRequest) error
	FindByID(ctx context.Context, sessionID, reviewID uint64) (*ReviewRequest, error)
	ListBySession(ctx context.Context, sessionID uint64) ([]ReviewRequest, error)
	UpdateReviewerStatus(ctx context.Context, reviewID, reviewerUserID uint64, status string) error
	UpdateStatus(ctx context.Context, reviewID uint64, status string) error
	ResetReviewers(ctx context.Context, reviewID uint64) error
	AddComment(ctx context.Context, comment *ReviewComment) error
}

type ReviewRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new review repository
func NewRepository(db *gorm.DB) ReviewRepository {
	return &ReviewRepositoryImpl{db: db}
}

func (r *ReviewRepositoryImpl) Create(ctx context.Context, review *ReviewRequest) error {
	now := time.Now().UTC()
	review.CreatedAt = now
	review.UpdatedAt = now
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *ReviewRepositoryImpl) FindByID(ctx context.Context, sessionID, reviewID uint64) (*ReviewRequest, error) {
	var review ReviewRequest
	err := r.db.WithContext(ctx).
		Preload("Reviewers").
		Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("review_comments.created_at ASC")
		}).
		Where("id = ? AND session_id = ?", reviewID, sessionID).
		First(&review).Error
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (r *ReviewRepositoryImpl) ListBySession(ctx context.Context, sessionID uint64) ([]ReviewRequest, error) {
	var reviews []ReviewRequest
	err := r.db.WithContext(ctx).
		Preload("Reviewers").
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		Find(&reviews).Error
	return reviews, err
}

func (r *ReviewRepositoryImpl) UpdateReviewerStatus(ctx context.Context, reviewID, reviewerUserID uint64, status string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Model(&Reviewer{}).
		Where("review_request_id = ? AND user_id = ?", reviewID, reviewerUserID).
		Updates(map[string]any{"status": status, "decided_at": &now}).Error
}

func (r *ReviewRepositoryImpl) UpdateStatus(ctx context.Context, reviewID uint64, status string) error {
	return r.db.WithContext(ctx).Model(&ReviewRequest{}).
		Where("id = ?", reviewID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

func (r *ReviewRepositoryImpl) ResetReviewers(ctx context.Context, reviewID uint64) error {
	return r.db.WithContext(ctx).Model(&Reviewer{}).
		Where("review_request_id = ?", reviewID).
		Updates(map[string]any{"status": StatusPending, "decided_at": nil}).Error
}

func (r *ReviewRepositoryImpl) AddComment(ctx context.Context, comment *ReviewComment) error {
	comment.CreatedAt = time.Now().UTC()
	return r.db.WithContext(ctx).Create(comment).Error
}
