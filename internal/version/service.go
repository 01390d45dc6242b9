package version

import (
	"context"
	"encoding/json"
	defError "errors"
	"fmt"
	"time"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/events"

	"github.com/pmezard/go-difflib/difflib"
	"gorm.io/gorm"
)

// DocumentStore is the engine surface the version store snapshots from
// and restores into.
type DocumentStore interface {
	Snapshot(ctx context.Context, sessionID uint64) ([]byte, uint64, error)
	Restore(ctx context.Context, sessionID, userID uint64, snapshot []byte) (uint64, error)
}

type SessionDirectory interface {
	EnsureExists(ctx context.Context, sessionID uint64) error
}

type DiffResponse struct {
	FromID uint64 `json:"from_id"`
	ToID   uint64 `json:"to_id"`
	Diff   string `json:"diff"`
}

type Service interface {
	Create(ctx context.Context, sessionID uint64, name, description string, userID uint64, username string) (*Version, error)
	// Switch moves the current pointer only; document content is
	// untouched until an explicit Restore.
	Switch(ctx context.Context, sessionID, versionID uint64) error
	// Restore creates a NEW version carrying the historical snapshot,
	// makes it current and copies the content back into the live
	// document. History is never rewritten.
	Restore(ctx context.Context, sessionID, versionID, userID uint64, username string) (*Version, error)
	Compare(ctx context.Context, sessionID, fromID, toID uint64) (*DiffResponse, error)
	List(ctx context.Context, sessionID uint64) ([]Version, error)
}

type DefaultService struct {
	repository VersionRepository
	documents  DocumentStore
	sessions   SessionDirectory
	bus        events.Bus
}

func NewService(repository VersionRepository, documents DocumentStore, sessions SessionDirectory, bus events.Bus) Service {
	return &DefaultService{
		repository: repository,
		documents:  documents,
		sessions:   sessions,
		bus:        bus,
	}
}

func (s *DefaultService) Create(ctx context.Context, sessionID uint64, name, description string, userID uint64, username string) (*Version, error) {
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}

	snapshot, docVersion, err := s.documents.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	version := &Version{
		SessionID:       sessionID,
		Name:            name,
		Description:     description,
		Snapshot:        snapshot,
		DocumentVersion: docVersion,
		CreatedByID:     userID,
		CreatedByName:   username,
	}
	if err := s.repository.CreateAndSetCurrent(ctx, version); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeVersionCreated,
		SessionID: sessionID,
		ActorID:   userID,
		ActorName: username,
		Title:     "Version created",
		Message:   fmt.Sprintf("%s saved version %q", username, name),
		Payload:   map[string]any{"version_id": version.ID},
		CreatedAt: time.Now().UTC(),
	})

	return version, nil
}

func (s *DefaultService) Switch(ctx context.Context, sessionID, versionID uint64) error {
	err := s.repository.SetCurrent(ctx, sessionID, versionID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return errors.NotFound("Version not found", err)
	}
	return err
}

func (s *DefaultService) Restore(ctx context.Context, sessionID, versionID, userID uint64, username string) (*Version, error) {
	historical, err := s.repository.FindByID(ctx, sessionID, versionID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Version not found", err)
	}
	if err != nil {
		return nil, err
	}

	docVersion, err := s.documents.Restore(ctx, sessionID, userID, historical.Snapshot)
	if err != nil {
		return nil, err
	}

	restored := &Version{
		SessionID:       sessionID,
		Name:            fmt.Sprintf("Restore of %s", historical.Name),
		Description:     fmt.Sprintf("Restored from version %d", historical.ID),
		Snapshot:        historical.Snapshot,
		DocumentVersion: docVersion,
		CreatedByID:     userID,
		CreatedByName:   username,
	}
	if err := s.repository.CreateAndSetCurrent(ctx, restored); err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.Event{
		Type:      events.TypeVersionRestored,
		SessionID: sessionID,
		ActorID:   userID,
		ActorName: username,
		Title:     "Version restored",
		Message:   fmt.Sprintf("%s restored version %q", username, historical.Name),
		Payload:   map[string]any{"version_id": restored.ID, "restored_from": historical.ID},
		CreatedAt: time.Now().UTC(),
	})

	return restored, nil
}

// Compare renders both snapshots as element lines and unified-diffs
// them. Read-only, no side effects.
func (s *DefaultService) Compare(ctx context.Context, sessionID, fromID, toID uint64) (*DiffResponse, error) {
	from, err := s.repository.FindByID(ctx, sessionID, fromID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Version not found", err)
	}
	if err != nil {
		return nil, err
	}
	to, err := s.repository.FindByID(ctx, sessionID, toID)
	if defError.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.NotFound("Version not found", err)
	}
	if err != nil {
		return nil, err
	}

	fromLines, err := snapshotLines(from.Snapshot)
	if err != nil {
		return nil, err
	}
	toLines, err := snapshotLines(to.Snapshot)
	if err != nil {
		return nil, err
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        fromLines,
		B:        toLines,
		FromFile: from.Name,
		ToFile:   to.Name,
		Context:  3,
	})
	if err != nil {
		return nil, err
	}

	return &DiffResponse{FromID: fromID, ToID: toID, Diff: diff}, nil
}

func (s *DefaultService) List(ctx context.Context, sessionID uint64) ([]Version, error) {
	if err := s.sessions.EnsureExists(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.repository.ListBySession(ctx, sessionID)
}

func snapshotLines(snapshot []byte) ([]string, error) {
	if len(snapshot) == 0 {
		return nil, nil
	}

	var elements []snapshotElement
	if err := json.Unmarshal(snapshot, &elements); err != nil {
		return nil, errors.UnprocessableEntity("Corrupt snapshot payload", err)
	}

	lines := make([]string, 0, len(elements))
	for _, el := range elements {
		lines = append(lines, fmt.Sprintf("%s [%s]: %s\n", el.ElementID, el.ElementType, el.Content))
	}
	return lines, nil
}
