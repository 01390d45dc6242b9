package lock

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockService is a mock implementation of the Service interface
type MockService struct {
	mock.Mock
}

func (m *MockService) Acquire(ctx context.Context, sessionID uint64, req AcquireRequest, requesterID uint64, requesterName string) (*Lock, bool, error) {
	args := m.Called(ctx, sessionID, req, requesterID, requesterName)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*Lock), args.Bool(1), args.Error(2)
}

func (m *MockService) Release(ctx context.Context, sessionID uint64, elementID string, requesterID uint64) error {
	args := m.Called(ctx, sessionID, elementID, requesterID)
	return args.Error(0)
}

func (m *MockService) Refresh(ctx context.Context, sessionID uint64, elementID string, requesterID uint64) (*Lock, error) {
	args := m.Called(ctx, sessionID, elementID, requesterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Lock), args.Error(1)
}

func (m *MockService) Holder(ctx context.Context, sessionID uint64, elementID string) (*Lock, error) {
	args := m.Called(ctx, sessionID, elementID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Lock), args.Error(1)
}

func (m *MockService) List(ctx context.Context, sessionID uint64, activeOnly bool) ([]Lock, error) {
	args := m.Called(ctx, sessionID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Lock), args.Error(1)
}

func (m *MockService) HoldsLock(ctx context.Context, sessionID uint64, elementID string, userID uint64) (bool, error) {
	args := m.Called(ctx, sessionID, elementID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockService) SweepExpired(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint64(42))
		c.Set("user_name", "Ana")
	})

	router.POST("/api/collaboration/:id/locks", handler.Acquire)
	router.GET("/api/collaboration/:id/locks/:elementId", handler.Show)
	router.DELETE("/api/collaboration/:id/locks/:elementId", handler.Release)
	router.PUT("/api/collaboration/:id/locks/:elementId", handler.Refresh)
	return router
}

func TestAcquireHandler_Granted(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	granted := &Lock{ID: 1, SessionID: 5, ElementID: "q-17", ElementType: ElementQuestion, LockedByID: 42, LockedByName: "Ana", Active: true, ExpiresAt: time.Now().Add(30 * time.Minute)}
	mockService.On("Acquire", mock.Anything, uint64(5), AcquireRequest{ElementID: "q-17", ElementType: "question", Name: "Question 17"}, uint64(42), "Ana").
		Return(granted, true, nil)

	payload := AcquireLockRequest{ElementID: "q-17", ElementType: "question", Name: "Question 17"}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/collaboration/5/locks", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Acquired bool `json:"acquired"`
		Lock     Lock `json:"lock"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Acquired)
	assert.Equal(t, "q-17", resp.Lock.ElementID)
	mockService.AssertExpectations(t)
}

func TestAcquireHandler_ConflictShowsHolder(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	holder := &Lock{ID: 1, SessionID: 5, ElementID: "q-17", ElementType: ElementQuestion, LockedByID: 7, LockedByName: "Ben", Active: true}
	mockService.On("Acquire", mock.Anything, uint64(5), mock.Anything, uint64(42), "Ana").
		Return(holder, false, nil)

	body, _ := json.Marshal(AcquireLockRequest{ElementID: "q-17", ElementType: "question"})
	req := httptest.NewRequest(http.MethodPost, "/api/collaboration/5/locks", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Acquired bool `json:"acquired"`
		Lock     Lock `json:"lock"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Acquired)
	assert.Equal(t, "Ben", resp.Lock.LockedByName)
}

func TestAcquireHandler_ValidationError(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	// element_type outside the allowed set
	body := []byte(`{"element_id": "q-17", "element_type": "banner"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/collaboration/5/locks", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertNotCalled(t, "Acquire")
}

func TestAcquireHandler_InvalidSessionID(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	body, _ := json.Marshal(AcquireLockRequest{ElementID: "q-17", ElementType: "question"})
	req := httptest.NewRequest(http.MethodPost, "/api/collaboration/abc/locks", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReleaseHandler_NoContent(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	mockService.On("Release", mock.Anything, uint64(5), "q-17", uint64(42)).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/collaboration/5/locks/q-17", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestReleaseHandler_Forbidden(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	mockService.On("Release", mock.Anything, uint64(5), "q-17", uint64(42)).
		Return(errors.Forbidden("Only the lock holder can release it", nil))

	req := httptest.NewRequest(http.MethodDelete, "/api/collaboration/5/locks/q-17", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestShowHandler_Unlocked(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	mockService.On("Holder", mock.Anything, uint64(5), "q-17").Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/collaboration/5/locks/q-17", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]any
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["locked"])
}

func TestRefreshHandler_ReturnsLock(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	refreshed := &Lock{ID: 1, SessionID: 5, ElementID: "q-17", LockedByID: 42, Active: true, ExpiresAt: time.Now().Add(30 * time.Minute)}
	mockService.On("Refresh", mock.Anything, uint64(5), "q-17", uint64(42)).Return(refreshed, nil)

	req := httptest.NewRequest(http.MethodPut, "/api/collaboration/5/locks/q-17", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp Lock
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(42), resp.LockedByID)
}
