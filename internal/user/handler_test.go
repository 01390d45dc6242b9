package user

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"personalysis-collab/auth"
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

func (m *MockService) Register(ctx context.Context, user *User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockService) Login(ctx context.Context, email, password string) (*User, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockService) GetUserByID(ctx context.Context, id uint64) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockService) GetAuthInfo(ctx context.Context, id uint64) (string, uint64, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Get(1).(uint64), args.Error(2)
}

func (m *MockService) SearchUsers(ctx context.Context, query string) ([]SafeUser, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return []SafeUser{}, args.Error(1)
	}
	return args.Get(0).([]SafeUser), args.Error(1)
}

func (m *MockService) IncreaseTokenVersion(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockService) DeactivateUser(ctx context.Context, id uint64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func setupRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	auth.Init("test-secret")
	router := gin.New()
	router.Use(middleware.ErrorHandler())
	return router
}

func TestRegister_Success(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter()

	mockService.On("Register", mock.Anything, mock.MatchedBy(func(user *User) bool {
		return user.Name == "John Doe" &&
			user.Email == "john@example.com" &&
			user.Password == "password123"
	})).Return(nil).Run(func(args mock.Arguments) {
		user := args.Get(1).(*User)
		user.ID = 1
		user.IsActive = true
		user.CreatedAt = time.Now()
	})

	router.POST("/register", handler.Register)

	payload := FormRegister{
		Name:     "John Doe",
		Email:    "john@example.com",
		Password: "password123",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		User SafeUser `json:"user"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, uint64(1), resp.User.ID)
	assert.Equal(t, "john@example.com", resp.User.Email)
	mockService.AssertExpectations(t)
}

func TestRegister_ValidationError(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter()
	router.POST("/register", handler.Register)

	// too-short password and malformed email
	body := []byte(`{"name": "John", "email": "nope", "password": "123"}`)
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockService.AssertNotCalled(t, "Register")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter()
	router.POST("/register", handler.Register)

	mockService.On("Register", mock.Anything, mock.Anything).
		Return(errors.UnprocessableEntity("User already registered", nil))

	body := []byte(`{"name": "John", "email": "john@example.com", "password": "password123"}`)
	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLogin_ReturnsToken(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter()
	router.POST("/login", handler.Login)

	mockService.On("Login", mock.Anything, "john@example.com", "password123").
		Return(&User{ID: 1, Name: "John Doe", Email: "john@example.com", IsActive: true}, nil)

	body := []byte(`{"email": "john@example.com", "password": "password123"}`)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		AccessToken string   `json:"access_token"`
		User        SafeUser `json:"user"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "John Doe", resp.User.Name)

	// the issued token verifies and carries the user id
	token, err := auth.VerifyJWT(resp.AccessToken)
	assert.NoError(t, err)
	userID, _, err := auth.GetDataFromToken(token)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), userID)
}

func TestLogin_BadCredentials(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter()
	router.POST("/login", handler.Login)

	mockService.On("Login", mock.Anything, "john@example.com", "wrong").
		Return(nil, errors.Unauthorized("Invalid email or password", nil))

	body := []byte(`{"email": "john@example.com", "password": "wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_BumpsTokenVersion(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter()

	mockService.On("IncreaseTokenVersion", mock.Anything, uint64(1)).Return(nil)

	router.DELETE("/logout", func(c *gin.Context) {
		c.Set("user_id", uint64(1))
		handler.Logout(c)
	})

	req := httptest.NewRequest(http.MethodDelete, "/logout", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockService.AssertExpectations(t)
}

func TestSearchUsers(t *testing.T) {
	mockService := new(MockService)
	handler := NewHandler(mockService)
	router := setupRouter()
	router.GET("/users", handler.SearchUsers)

	mockService.On("SearchUsers", mock.Anything, "jo").
		Return([]SafeUser{{ID: 1, Name: "John Doe", Email: "john@example.com"}}, nil)

	req := httptest.NewRequest(http.MethodGet, "/users?q=jo", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp []SafeUser
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp, 1)
}
