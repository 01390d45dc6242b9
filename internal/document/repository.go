package document

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DocumentRepository interface {
	FindOrCreate(ctx context.Context, sessionID uint64) (*Document, error)
	FindBySession(ctx context.Context, sessionID uint64) (*Document, error)
	// ApplyChange bumps the version and upserts the element in one
	// transaction, returning the new version.
	ApplyChange(ctx context.Context, docID uint64, userID uint64, elementID, elementType, content string) (uint64, error)
	// ReplaceContent swaps the whole element set (version restore).
	ReplaceContent(ctx context.Context, docID uint64, userID uint64, elements []Element) (uint64, error)
}

type DocumentRepositoryImpl struct {
	db *gorm.DB
}

// NewRepository creates a new document repository
func NewRepository(db *gorm.DB) DocumentRepository {
	return &DocumentRepositoryImpl{db: db}
}

// FindOrCreate returns the session's document, creating an empty one on
// first access. Concurrent first accesses race on the unique index; the
// loser re-reads.
func (r *DocumentRepositoryImpl) FindOrCreate(ctx context.Context, sessionID uint64) (*Document, error) {
	doc, err := r.FindBySession(ctx, sessionID)
	if err == nil {
		return doc, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	fresh := &Document{
		SessionID: sessionID,
		CreatedAt: time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(fresh).Error; err != nil {
		return nil, err
	}
	return r.FindBySession(ctx, sessionID)
}

func (r *DocumentRepositoryImpl) FindBySession(ctx context.Context, sessionID uint64) (*Document, error) {
	var doc Document
	err := r.db.WithContext(ctx).
		Preload("Elements", func(db *gorm.DB) *gorm.DB {
			return db.Order("elements.element_id ASC")
		}).
		Where("session_id = ?", sessionID).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepositoryImpl) ApplyChange(ctx context.Context, docID uint64, userID uint64, elementID, elementType, content string) (uint64, error) {
	var version uint64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		// 1. increment the document version atomically
		if err := tx.Raw(`
			UPDATE documents
			SET version = version + 1,
			    last_modified_by_id = ?,
			    last_modified_at = ?
			WHERE id = ?
			RETURNING version
		`, userID, now, docID).Scan(&version).Error; err != nil {
			return err
		}

		// 2. upsert the element content
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "document_id"}, {Name: "element_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"content":      content,
				"element_type": elementType,
				"updated_at":   now,
			}),
		}).Create(&Element{
			DocumentID:  docID,
			ElementID:   elementID,
			ElementType: elementType,
			Content:     content,
			UpdatedAt:   now,
		}).Error; err != nil {
			return err
		}

		// 3. append the audit record
		return tx.Create(&Change{
			DocumentID: docID,
			ElementID:  elementID,
			UserID:     userID,
			Version:    version,
			Content:    content,
			CreatedAt:  now,
		}).Error
	})

	return version, err
}

func (r *DocumentRepositoryImpl) ReplaceContent(ctx context.Context, docID uint64, userID uint64, elements []Element) (uint64, error) {
	var version uint64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		if err := tx.Raw(`
			UPDATE documents
			SET version = version + 1,
			    last_modified_by_id = ?,
			    last_modified_at = ?
			WHERE id = ?
			RETURNING version
		`, userID, now, docID).Scan(&version).Error; err != nil {
			return err
		}

		if err := tx.Where("document_id = ?", docID).Delete(&Element{}).Error; err != nil {
			return err
		}

		for i := range elements {
			elements[i].ID = 0
			elements[i].DocumentID = docID
			elements[i].UpdatedAt = now
		}
		if len(elements) == 0 {
			return nil
		}
		return tx.Create(&elements).Error
	})

	return version, err
}
