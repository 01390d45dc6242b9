package user

import (
	"context"
	defError "errors"

	"personalysis-collab/internal/errors"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Service defines the interface for user business logic
type Service interface {
	Register(ctx context.Context, user *User) error
	Login(ctx context.Context, email, password string) (*User, error)
	GetUserByID(ctx context.Context, id uint64) (*User, error)
	GetAuthInfo(ctx context.Context, id uint64) (string, uint64, error)
	SearchUsers(ctx context.Context, query string) ([]SafeUser, error)
	IncreaseTokenVersion(ctx context.Context, id uint64) error
	DeactivateUser(ctx context.Context, id uint64) error
}

// DefaultService implements Service
type DefaultService struct {
	repository UserRepository
}

// NewService creates a new user service
func NewService(repository UserRepository) Service {
	return &DefaultService{repository: repository}
}

// Register registers a new user
func (s *DefaultService) Register(ctx context.Context, user *User) error {
	// Check if user with email already exists
	_, err := s.repository.FindByEmail(ctx, user.Email)
	if err != nil && !defError.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if err == nil {
		return errors.UnprocessableEntity("User already registered", nil)
	}

	// Hash the password before saving
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
	if err != nil {
		return errors.UnprocessableEntity("Can't hash password", err)
	}
	user.PasswordHash = string(hashedPassword)
	user.IsActive = true

	// Create user
	return s.repository.Create(ctx, user)
}

// Login authenticates a user
func (s *DefaultService) Login(ctx context.Context, email, password string) (*User, error) {
	// Find user by email
	user, err := s.repository.FindByEmail(ctx, email)
	if err != nil {
		return nil, errors.Unauthorized("User not found", err)
	}

	// Check if user is active
	if !user.IsActive {
		return nil, errors.Unauthorized("User is not active", nil)
	}

	// Check password
	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password))
	if err != nil {
		return nil, errors.Unauthorized("Wrong password", err)
	}

	return user, nil
}

// GetUserByID gets a user by ID
func (s *DefaultService) GetUserByID(ctx context.Context, id uint64) (*User, error) {
	return s.repository.FindByID(ctx, id)
}

// GetAuthInfo satisfies auth.UserProvider
func (s *DefaultService) GetAuthInfo(ctx context.Context, id uint64) (string, uint64, error) {
	user, err := s.repository.FindByID(ctx, id)
	if err != nil {
		return "", 0, err
	}
	if !user.IsActive {
		return "", 0, errors.Unauthorized("User is not active", nil)
	}
	return user.Name, user.TokenVersion, nil
}

// SearchUsers finds users for reviewer/collaborator pickers
func (s *DefaultService) SearchUsers(ctx context.Context, query string) ([]SafeUser, error) {
	if len(query) < 2 {
		return []SafeUser{}, nil
	}

	users, err := s.repository.Search(ctx, query, 20)
	if err != nil {
		return nil, err
	}

	result := make([]SafeUser, 0, len(users))
	for _, u := range users {
		result = append(result, u.ToSafeUser())
	}
	return result, nil
}

// IncreaseTokenVersion invalidates every outstanding token for the user
func (s *DefaultService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	return s.repository.IncrementTokenVersion(ctx, id)
}

// DeactivateUser deactivates a user
func (s *DefaultService) DeactivateUser(ctx context.Context, id uint64) error {
	return s.repository.Deactivate(ctx, id)
}
