package session

import (
	"net/http"

	"personalysis-collab/internal/errors"
	"personalysis-collab/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type CreateSessionRequest struct {
	Title       string `json:"title" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"max=2000"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateSessionRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	session := &Session{
		Title:       form.Title,
		Description: form.Description,
	}

	if err := h.service.CreateSession(c.Request.Context(), userID.(uint64), username.(string), session); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": session})
}

func (h *Handler) List(c *gin.Context) {
	userID, _ := c.Get("user_id")

	page, pageSize := utils.GetPaginationParams(c)
	result, err := h.service.ListSessions(c.Request.Context(), userID.(uint64), page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Show(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, session)
}

func (h *Handler) Archive(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.ArchiveSession(c.Request.Context(), sessionID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Join(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	participant, err := h.service.Join(c.Request.Context(), sessionID, userID.(uint64), username.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, participant)
}

type HeartbeatRequest struct {
	CursorPosition *int `json:"cursor_position"`
}

func (h *Handler) Heartbeat(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	// body is optional; a bare heartbeat just refreshes activity
	var form HeartbeatRequest
	_ = c.ShouldBindJSON(&form)

	userID, _ := c.Get("user_id")

	if err := h.service.Heartbeat(c.Request.Context(), sessionID, userID.(uint64), form.CursorPosition); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=online idle offline"`
}

func (h *Handler) SetStatus(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form SetStatusRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.SetStatus(c.Request.Context(), sessionID, userID.(uint64), form.Status); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Leave(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	if err := h.service.Leave(c.Request.Context(), sessionID, userID.(uint64), username.(string)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
