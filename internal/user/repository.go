package user

import (
	"context"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uint64) (*User, error)
	Search(ctx context.Context, query string, limit int) ([]User, error)
	IncrementTokenVersion(ctx context.Context, id uint64) error
	Deactivate(ctx context.Context, id uint64) error
}

type UserRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new user repository
func NewRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{db: db}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, user *User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepositoryImpl) FindByID(ctx context.Context, id uint64) (*User, error) {
	var user User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Search matches active users by name or email prefix
func (r *UserRepositoryImpl) Search(ctx context.Context, query string, limit int) ([]User, error) {
	var users []User
	pattern := query + "%"
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("name ILIKE ? OR email ILIKE ?", pattern, pattern).
		Limit(limit).
		Find(&users).Error
	return users, err
}

func (r *UserRepositoryImpl) IncrementTokenVersion(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		UpdateColumn("token_version", gorm.Expr("token_version + 1")).Error
}

func (r *UserRepositoryImpl) Deactivate(ctx context.Context, id uint64) error {
	return r.db.WithContext(ctx).Model(&User{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}
