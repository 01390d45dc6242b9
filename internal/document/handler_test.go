package document

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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

func (m *MockService) ApplyChange(ctx context.Context, sessionID, userID uint64, username string, req ChangeRequest) (*ChangeResult, error) {
	args := m.Called(ctx, sessionID, userID, username, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ChangeResult), args.Error(1)
}

func (m *MockService) GetState(ctx context.Context, sessionID uint64) (*StateResponse, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*StateResponse), args.Error(1)
}

func (m *MockService) Snapshot(ctx context.Context, sessionID uint64) ([]byte, uint64, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Get(1).(uint64), args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).(uint64), args.Error(2)
}

func (m *MockService) Restore(ctx context.Context, sessionID, userID uint64, snapshot []byte) (uint64, error) {
	args := m.Called(ctx, sessionID, userID, snapshot)
	return args.Get(0).(uint64), args.Error(1)
}

func setupRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	router.Use(func(c *gin.Context) {
		c.Set("user_id", uint64(42))
		c.Set("user_name", "Ana")
	})

	router.GET("/api/collaboration/:id/document", handler.ShowState)
	router.POST("/api/collaboration/:id/document/changes", handler.ApplyChange)
	return router
}

func applyChangeBody(t *testing.T, baseVersion uint64) []byte {
	t.Helper()
	body, err := json.Marshal(ApplyChangeRequest{
		ElementID:   "q-17",
		ElementType: "question",
		Content:     "What motivates you?",
		BaseVersion: &baseVersion,
	})
	assert.NoError(t, err)
	return body
}

func TestApplyChangeHandler_Applied(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	mockService.On("ApplyChange", mock.Anything, uint64(5), uint64(42), "Ana", ChangeRequest{
		ElementID:   "q-17",
		ElementType: "question",
		Content:     "What motivates you?",
		BaseVersion: 3,
	}).Return(&ChangeResult{ElementID: "q-17", Version: 4}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/collaboration/5/document/changes", bytes.NewBuffer(applyChangeBody(t, 3)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp ChangeResult
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(4), resp.Version)
	mockService.AssertExpectations(t)
}

func TestApplyChangeHandler_StaleWrite(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	mockService.On("ApplyChange", mock.Anything, uint64(5), uint64(42), "Ana", mock.Anything).
		Return(nil, errors.StaleWrite("Edit based on version 3, document is at 7", 7))

	req := httptest.NewRequest(http.MethodPost, "/api/collaboration/5/document/changes", bytes.NewBuffer(applyChangeBody(t, 3)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "stale_write", resp.Code)
	assert.Equal(t, "7", resp.Fields["current_version"])
}

func TestApplyChangeHandler_LockRequired(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	mockService.On("ApplyChange", mock.Anything, uint64(5), uint64(42), "Ana", mock.Anything).
		Return(nil, errors.Forbidden("Editing requires holding the element's lock", nil))

	req := httptest.NewRequest(http.MethodPost, "/api/collaboration/5/document/changes", bytes.NewBuffer(applyChangeBody(t, 0)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestApplyChangeHandler_MissingBaseVersion(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	body := []byte(`{"element_id": "q-17", "element_type": "question", "content": "x"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/collaboration/5/document/changes", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertNotCalled(t, "ApplyChange")
}

func TestShowStateHandler(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter(handler)

	mockService.On("GetState", mock.Anything, uint64(5)).Return(&StateResponse{
		SessionID: 5,
		Version:   7,
		Elements:  []Element{{ElementID: "q-17", ElementType: "question", Content: "x"}},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/collaboration/5/document", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp StateResponse
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(7), resp.Version)
	assert.Len(t, resp.Elements, 1)
}
