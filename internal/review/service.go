package review

import (
	"context"
	defError "errors"
	"fmt"
	"sync"
	"time"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/events"

	"gorm.io/gorm"
)

type SessionDirectory interface {
	EnsureExists(ctx context.Context, sessionID uint64) error
}

// UserDirectory resolves reviewer display names at creation time.
type UserDirectory interface {
	GetAuthInfo(ctx context.Context, userID uint64) (username string, tokenVersion uint64, err error)
}

type CreateRequest struct {
	Title       string
	Description string
	ReviewerIDs []uint64
	VersionID   *uint64
}

type Service interface {
	Create(ctx context.Context, sessionID uint64, req CreateRequest, requesterID uint64, requesterName string) (*ReviewRequest, error)
	// Decide records one reviewer's verdict and recomputes the
	// aggregate. Re-deciding overwrites the earlier verdict.
	Decide(ctx context.Context, sessionID, reviewID, reviewerID uint64, reviewerName, decision, comment string) (*ReviewRequest, error)
	AddComment(ctx context.Context, sessionID, reviewID, authorID uint64, authorName, content, elementID string) (*ReviewComment, error)
	// Resubmit returns a changes_requested review to in_progress with
	// every reviewer reset to pending. Requester only.
	Resubmit(ctx context.Context, sessionID, reviewID, requesterID uint64, requesterName string) (*ReviewRequest, error)
	Get(ctx context.Context, sessionID, reviewID uint64) (*ReviewRequest, error)
	List(ctx context.Context, sessionID uint64) ([]ReviewRequest, error)
}

type DefaultService struct {
	repository ReviewRepository
	sessions   SessionDirectory
	users      UserDirectory
	bus        events.Bus

	// serializes decision handling per review so two concurrent
	// verdicts can't both aggregate against stale reviewer state
	mu      sync.Mutex
	reviews map[uint64]*sync.Mutex
}

func NewService(repository ReviewRepository, sessions SessionDirectory, users UserDirectory, bus events.Bus) Service {
	return &DefaultService{
		repository: repository,
		sessions:   sessions,
		users:      users,
		bus:        bus,
		reviews:    make(map[uint64]*sync.Mutex),
	}
}

func (s *DefaultService) reviewMutex(reviewID uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.reviews[reviewID]
	if !ok {
		m = &sync.Mutex{}
		s.reviews[reviewID] = m
	}
	return m
}

func (s *DefaultService) Create(ctx context.Context, sessionID uint64, req CreateRequest, requesterID uint64, requesterName string) (*ReviewRequest, error) {
	if len(req.ReviewerIDs) == 0 {
		return nil, errors.UnprocessableEntity("At least one reviewer is required", nil)
	}
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}

	reviewers := make([]Reviewer, 0, len(req.ReviewerIDs))
	seen := make(map[uint64]bool, len(req.ReviewerIDs))
	for _, id := range req.ReviewerIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		username, _, err := s.users.GetAuthInfo(ctx, id)
		if err != nil {
			return nil, errors.UnprocessableEntity(fmt.Sprintf("Reviewer %d not found", id), err)
		}
		reviewers = append(reviewers, Reviewer{
			UserID:   id,
			Username: username,
			Status:   StatusPending,
		})
	}

	review := &ReviewRequest{
		SessionID:       sessionID,
		Title:           req.Title,
		Description:     req.Description,
		Status:          StatusPending,
		VersionID:       req.VersionID,
		RequestedByID:   requesterID,
		RequestedByName: requesterName,
		Reviewers:       reviewers,
	}
	if err := s.repository.Create(ctx, review); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeReviewRequested,
		SessionID: sessionID,
		ActorID:   requesterID,
		ActorName: requesterName,
		Title:     "Review requested",
		Message:   fmt.Sprintf("%s requested a review: %s", requesterName, req.Title),
		Payload:   map[string]any{"review_id": review.ID},
		CreatedAt: time.Now().UTC(),
	})

	return review, nil
}

func (s *DefaultService) Decide(ctx context.Context, sessionID, reviewID, reviewerID uint64, reviewerName, decision, comment string) (*ReviewRequest, error) {
	if !validDecision(decision) {
		return nil, errors.BadRequest("Unknown decision", nil)
	}

	rm := s.reviewMutex(reviewID)
	rm.Lock()
	defer rm.Unlock()

	review, err := s.Get(ctx, sessionID, reviewID)
	if err != nil {
		return nil, err
	}

	if Terminal(review.Status) {
		return nil, errors.Conflict("Review is finalized", nil)
	}

	listed := false
	for _, r := range review.Reviewers {
		if r.UserID == reviewerID {
			listed = true
			break
		}
	}
	if !listed {
		return nil, errors.Forbidden("Only listed reviewers can decide", nil)
	}

	if err := s.repository.UpdateReviewerStatus(ctx, reviewID, reviewerID, decision); err != nil {
		return nil, err
	}

	if comment != "" {
		if err := s.repository.AddComment(ctx, &ReviewComment{
			ReviewRequestID: reviewID,
			AuthorID:        reviewerID,
			AuthorName:      reviewerName,
			Content:         comment,
		}); err != nil {
			return nil, err
		}
	}

	// recompute the aggregate from fresh reviewer state
	review, err = s.Get(ctx, sessionID, reviewID)
	if err != nil {
		return nil, err
	}
	aggregate := Aggregate(review.Reviewers)
	if aggregate != review.Status {
		if err := s.repository.UpdateStatus(ctx, reviewID, aggregate); err != nil {
			return nil, err
		}
		review.Status = aggregate
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeReviewDecided,
		SessionID: sessionID,
		ActorID:   reviewerID,
		ActorName: reviewerName,
		Title:     "Review decision",
		Message:   fmt.Sprintf("%s marked %q as %s", reviewerName, review.Title, decision),
		Payload:   map[string]any{"review_id": reviewID, "decision": decision, "status": review.Status},
		CreatedAt: time.Now().UTC(),
	})

	return review, nil
}

// AddComment is always permitted, even on finalized reviews.
func (s *DefaultService) AddComment(ctx context.Context, sessionID, reviewID, authorID uint64, authorName, content, elementID string) (*ReviewComment, error) {
	if _, err := s.Get(ctx, sessionID, reviewID); err != nil {
		return nil, err
	}

	comment := &ReviewComment{
		ReviewRequestID: reviewID,
		AuthorID:        authorID,
		AuthorName:      authorName,
		Content:         content,
		ElementID:       elementID,
	}
	if err := s.repository.AddComment(ctx, comment); err != nil {
		return nil, err
	}
	return comment, nil
}

func (s *DefaultService) Resubmit(ctx context.Context, sessionID, reviewID, requesterID uint64, requesterName string) (*ReviewRequest, error) {
	rm := s.reviewMutex(reviewID)
	rm.Lock()
	defer rm.Unlock()

	review, err := s.Get(ctx, sessionID, reviewID)
	if err != nil {
		return nil, err
	}
	if review.RequestedByID != requesterID {
		return nil, errors.Forbidden("Only the requester can resubmit", nil)
	}
	if review.Status != StatusChangesRequested {
		return nil, errors.Conflict("Only reviews with requested changes can be resubmitted", nil)
	}

	if err := s.repository.ResetReviewers(ctx, reviewID); err != nil {
		return nil, err
	}
	if err := s.repository.UpdateStatus(ctx, reviewID, StatusInProgress); err != nil {
		return nil, err
	}
	if err := s.repository.AddComment(ctx, &ReviewComment{
		ReviewRequestID: reviewID,
		AuthorID:        requesterID,
		AuthorName:      requesterName,
		Content:         "Requested changes addressed; review resubmitted.",
	}); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeReviewResubmitted,
		SessionID: sessionID,
		ActorID:   requesterID,
		ActorName: requesterName,
		Title:     "Review resubmitted",
		Message:   fmt.Sprintf("%s resubmitted %q for review", requesterName, review.Title),
		Payload:   map[string]any{"review_id": reviewID},
		CreatedAt: time.Now().UTC(),
	})

	return s.Get(ctx, sessionID, reviewID)
}

func (s *DefaultService) Get(ctx context.Context, sessionID, reviewID uint64) (*ReviewRequest, error) {
	review, err := s.repository.FindByID(ctx, sessionID, reviewID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Review not found", err)
	}
	if err != nil {
		return nil, err
	}
	return review, nil
}

func (s *DefaultService) List(ctx context.Context, sessionID uint64) ([]ReviewRequest, error) {
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repository.ListBySession(ctx, sessionID)
}
