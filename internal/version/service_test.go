package version

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/events"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

// fakeVersionRepo enforces the one-current-version rule in memory.
type fakeVersionRepo struct {
	mu       sync.Mutex
	nextID   uint64
	versions []*Version
}

func (r *fakeVersionRepo) CreateAndSetCurrent(ctx context.Context, version *Version) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions {
		if v.SessionID == version.SessionID {
			v.IsCurrent = false
		}
	}
	r.nextID++
	version.ID = r.nextID
	version.IsCurrent = true
	stored := *version
	r.versions = append(r.versions, &stored)
	return nil
}

func (r *fakeVersionRepo) SetCurrent(ctx context.Context, sessionID, versionID uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var target *Version
	for _, v := range r.versions {
		if v.SessionID == sessionID && v.ID == versionID {
			target = v
		}
	}
	if target == nil {
		return gorm.ErrRecordNotFound
	}
	for _, v := range r.versions {
		if v.SessionID == sessionID {
			v.IsCurrent = false
		}
	}
	target.IsCurrent = true
	return nil
}

func (r *fakeVersionRepo) FindByID(ctx context.Context, sessionID, versionID uint64) (*Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions {
		if v.SessionID == sessionID && v.ID == versionID {
			found := *v
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeVersionRepo) ListBySession(ctx context.Context, sessionID uint64) ([]Version, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Version
	for i := len(r.versions) - 1; i >= 0; i-- {
		if r.versions[i].SessionID == sessionID {
			out = append(out, *r.versions[i])
		}
	}
	return out, nil
}

func (r *fakeVersionRepo) currentCount(sessionID uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, v := range r.versions {
		if v.SessionID == sessionID && v.IsCurrent {
			n++
		}
	}
	return n
}

// fakeDocs serves a mutable element list as the live document.
type fakeDocs struct {
	mu       sync.Mutex
	version  uint64
	elements []snapshotElement
	restores int
}

func (d *fakeDocs) Snapshot(ctx context.Context, sessionID uint64) ([]byte, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	data, err := json.Marshal(d.elements)
	return data, d.version, err
}

func (d *fakeDocs) Restore(ctx context.Context, sessionID, userID uint64, snapshot []byte) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := json.Unmarshal(snapshot, &d.elements); err != nil {
		return 0, err
	}
	d.version++
	d.restores++
	return d.version, nil
}

func (d *fakeDocs) set(version uint64, elements ...snapshotElement) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.elements = elements
}

type existingSessions struct{}

func (existingSessions) EnsureExists(context.Context, uint64) error { return nil }

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(_ context.Context, e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func newTestService() (Service, *fakeVersionRepo, *fakeDocs, *recordingBus) {
	repo := &fakeVersionRepo{}
	docs := &fakeDocs{}
	bus := &recordingBus{}
	return NewService(repo, docs, existingSessions{}, bus), repo, docs, bus
}

func TestCreate_NewVersionBecomesCurrent(t *testing.T) {
	service, repo, docs, bus := newTestService()
	ctx := context.Background()
	docs.set(3, snapshotElement{ElementID: "q-1", ElementType: "question", Content: "alpha"})

	v1, err := service.Create(ctx, 1, "Draft A", "", 42, "Ana")
	assert.NoError(t, err)
	assert.True(t, v1.IsCurrent)
	assert.Equal(t, uint64(3), v1.DocumentVersion)

	v2, err := service.Create(ctx, 1, "Draft B", "", 42, "Ana")
	assert.NoError(t, err)
	assert.True(t, v2.IsCurrent)

	// exactly one current version at any time
	assert.Equal(t, 1, repo.currentCount(1))

	list, err := service.List(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Len(t, bus.events, 2)
}

func TestSwitch_MovesPointerWithoutTouchingDocument(t *testing.T) {
	service, repo, docs, _ := newTestService()
	ctx := context.Background()
	docs.set(1, snapshotElement{ElementID: "q-1", ElementType: "question", Content: "alpha"})

	v1, err := service.Create(ctx, 1, "Draft A", "", 42, "Ana")
	assert.NoError(t, err)
	_, err = service.Create(ctx, 1, "Draft B", "", 42, "Ana")
	assert.NoError(t, err)

	assert.NoError(t, service.Switch(ctx, 1, v1.ID))

	switched, err := repo.FindByID(ctx, 1, v1.ID)
	assert.NoError(t, err)
	assert.True(t, switched.IsCurrent)
	assert.Equal(t, 1, repo.currentCount(1))

	// switching never writes into the live document
	assert.Equal(t, 0, docs.restores)
}

func TestSwitch_UnknownVersion(t *testing.T) {
	service, _, _, _ := newTestService()

	err := service.Switch(context.Background(), 1, 99)
	apiErr, ok := err.(*errors.APIError)
	assert.True(t, ok)
	assert.Equal(t, 404, apiErr.Status)
}

func TestRestore_CreatesNewVersionAndKeepsHistory(t *testing.T) {
	service, repo, docs, bus := newTestService()
	ctx := context.Background()

	docs.set(1, snapshotElement{ElementID: "q-1", ElementType: "question", Content: "alpha"})
	v1, err := service.Create(ctx, 1, "Draft A", "", 42, "Ana")
	assert.NoError(t, err)

	docs.set(2, snapshotElement{ElementID: "q-1", ElementType: "question", Content: "beta"})
	_, err = service.Create(ctx, 1, "Draft B", "", 42, "Ana")
	assert.NoError(t, err)

	restored, err := service.Restore(ctx, 1, v1.ID, 7, "Ben")
	assert.NoError(t, err)
	assert.True(t, restored.IsCurrent)
	assert.Equal(t, "Restore of Draft A", restored.Name)
	assert.NotEqual(t, v1.ID, restored.ID)

	// history has grown, not been rewritten
	list, err := service.List(ctx, 1)
	assert.NoError(t, err)
	assert.Len(t, list, 3)
	assert.Equal(t, 1, repo.currentCount(1))

	// the live document got the historical content back
	assert.Equal(t, 1, docs.restores)
	data, _, err := docs.Snapshot(ctx, 1)
	assert.NoError(t, err)
	assert.Contains(t, string(data), "alpha")

	last := bus.events[len(bus.events)-1]
	assert.Equal(t, events.TypeVersionRestored, last.Type)
}

func TestCompare_ProducesUnifiedDiff(t *testing.T) {
	service, _, docs, _ := newTestService()
	ctx := context.Background()

	docs.set(1, snapshotElement{ElementID: "q-1", ElementType: "question", Content: "alpha"})
	v1, err := service.Create(ctx, 1, "Draft A", "", 42, "Ana")
	assert.NoError(t, err)

	docs.set(2, snapshotElement{ElementID: "q-1", ElementType: "question", Content: "beta"})
	v2, err := service.Create(ctx, 1, "Draft B", "", 42, "Ana")
	assert.NoError(t, err)

	diff, err := service.Compare(ctx, 1, v1.ID, v2.ID)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(diff.Diff, "-q-1 [question]: alpha"))
	assert.True(t, strings.Contains(diff.Diff, "+q-1 [question]: beta"))
}

func TestCompare_IdenticalSnapshotsEmptyDiff(t *testing.T) {
	service, _, docs, _ := newTestService()
	ctx := context.Background()

	docs.set(1, snapshotElement{ElementID: "q-1", ElementType: "question", Content: "alpha"})
	v1, err := service.Create(ctx, 1, "Draft A", "", 42, "Ana")
	assert.NoError(t, err)
	v2, err := service.Create(ctx, 1, "Draft A again", "", 42, "Ana")
	assert.NoError(t, err)

	diff, err := service.Compare(ctx, 1, v1.ID, v2.ID)
	assert.NoError(t, err)
	assert.Empty(t, diff.Diff)
}

func TestCompare_UnknownVersion(t *testing.T) {
	service, _, docs, _ := newTestService()
	ctx := context.Background()
	docs.set(1)

	v1, err := service.Create(ctx, 1, "Draft A", "", 42, "Ana")
	assert.NoError(t, err)

	_, err = service.Compare(ctx, 1, v1.ID, 99)
	apiErr, ok := err.(*errors.APIError)
	assert.True(t, ok)
	assert.Equal(t, 404, apiErr.Status)
}
