package session

import (
	"context"
	"time"

	"personalysis-collab/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SessionRepository interface {
	Create(ctx context.Context, session *Session) error
	FindByID(ctx context.Context, id uint64) (*Session, error)
	ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]Session, utils.PageMeta, error)
	SetStatus(ctx context.Context, id uint64, status string) error

	UpsertParticipant(ctx context.Context, p *Participant) (created bool, err error)
	GetParticipant(ctx context.Context, sessionID, userID uint64) (*Participant, error)
	UpdateParticipant(ctx context.Context, sessionID, userID uint64, status string, cursor *int) error
	ListParticipants(ctx context.Context, sessionID uint64) ([]Participant, error)
}

type SessionRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new session repository
func NewRepository(db *gorm.DB) SessionRepository {
	return &SessionRepositoryImpl{db: db}
}

func (r *SessionRepositoryImpl) Create(ctx context.Context, session *Session) error {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now
	session.Status = StatusActive
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *SessionRepositoryImpl) FindByID(ctx context.Context, id uint64) (*Session, error) {
	var session Session
	err := r.db.WithContext(ctx).
		Preload("Participants").
		First(&session, id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// ListForUser returns sessions the user created or participates in,
// newest first.
func (r *SessionRepositoryImpl) ListForUser(ctx context.Context, userID uint64, page, pageSize int) ([]Session, utils.PageMeta, error) {
	var sessions []Session
	var total int64

	base := r.db.WithContext(ctx).Model(&Session{}).
		Where("created_by_id = ? OR id IN (?)",
			userID,
			r.db.Model(&Participant{}).Select("session_id").Where("user_id = ?", userID),
		)

	if err := base.Count(&total).Error; err != nil {
		return sessions, utils.PageMeta{}, err
	}

	offset := (page - 1) * pageSize
	err := base.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&sessions).Error

	return sessions, utils.NewPageMeta(total, page, pageSize), err
}

func (r *SessionRepositoryImpl) SetStatus(ctx context.Context, id uint64, status string) error {
	return r.db.WithContext(ctx).Model(&Session{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()}).Error
}

// UpsertParticipant inserts a participant row or, on re-join, refreshes
// presence on the existing one. Reports whether a new row was created.
func (r *SessionRepositoryImpl) UpsertParticipant(ctx context.Context, p *Participant) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Participant
		err := tx.Where("session_id = ? AND user_id = ?", p.SessionID, p.UserID).
			First(&existing).Error
		if err == nil {
			return tx.Model(&existing).Updates(map[string]any{
				"status":         PresenceOnline,
				"username":       p.Username,
				"last_active_at": time.Now().UTC(),
			}).Error
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		created = true
		now := time.Now().UTC()
		p.Status = PresenceOnline
		p.JoinedAt = now
		p.LastActiveAt = now
		// concurrent first joins race on the unique index; the loser
		// degrades to an update
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "session_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status":         PresenceOnline,
				"last_active_at": now,
			}),
		}).Create(p).Error
	})
	return created, err
}

func (r *SessionRepositoryImpl) GetParticipant(ctx context.Context, sessionID, userID uint64) (*Participant, error) {
	var p Participant
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *SessionRepositoryImpl) UpdateParticipant(ctx context.Context, sessionID, userID uint64, status string, cursor *int) error {
	updates := map[string]any{
		"last_active_at": time.Now().UTC(),
	}
	if status != "" {
		updates["status"] = status
	}
	if cursor != nil {
		updates["last_cursor_position"] = *cursor
	}

	result := r.db.WithContext(ctx).Model(&Participant{}).
		Where("session_id = ? AND user_id = ?", sessionID, userID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SessionRepositoryImpl) ListParticipants(ctx context.Context, sessionID uint64) ([]Participant, error) {
	var participants []Participant
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC").
		Find(&participants).Error
	return participants, err
}
