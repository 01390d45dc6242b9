package db

import (
	"context"
	"log"

	"personalysis-collab/internal/comment"
	"personalysis-collab/internal/document"
	"personalysis-collab/internal/lock"
	"personalysis-collab/internal/notification"
	"personalysis-collab/internal/review"
	"personalysis-collab/internal/session"
	"personalysis-collab/internal/user"
	"personalysis-collab/internal/version"
)

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&user.User{},
		&session.Session{},
		&session.Participant{},
		&lock.Lock{},
		&document.Document{},
		&document.Element{},
		&document.Change{},
		&comment.Comment{},
		&version.Version{},
		&review.ReviewRequest{},
		&review.Reviewer{},
		&review.ReviewComment{},
		&notification.Notification{},
	)

	if err != nil {
		log.Fatal(err)
	}

	// only one active lock may exist per element; AutoMigrate cannot
	// express a partial index so it is created directly
	err = AppDb.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_locks_active_element
		 ON locks (session_id, element_id) WHERE active`,
	).Error
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}

// SeedData seeds the database with initial data (for development only)
func SeedData() {
	ctx := context.Background()
	userRepo := user.NewRepository(AppDb)
	userService := user.NewService(userRepo)

	seedUsers := []*user.User{
		{Name: "Ana Facilitator", Email: "ana@example.com", Password: "password123", IsActive: true},
		{Name: "Ben Reviewer", Email: "ben@example.com", Password: "password123", IsActive: true},
	}

	for _, u := range seedUsers {
		if _, err := userRepo.FindByEmail(ctx, u.Email); err == nil {
			log.Printf("Seed user already exists: %s", u.Email)
			continue
		}
		if err := userService.Register(ctx, u); err != nil {
			log.Printf("Error creating seed user %s: %v", u.Email, err)
		} else {
			log.Printf("Created seed user: %s", u.Email)
		}
	}
}
