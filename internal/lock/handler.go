package lock

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

type AcquireLockRequest struct {
	ElementID   string `json:"element_id" binding:"required,max=255"`
	ElementType string `json:"element_type" binding:"required,oneof=question section page option logic setting"`
	Name        string `json:"name" binding:"max=255"`
}

// Acquire returns 201 with the granted lock, or 409 with the current
// holder's lock so the UI can show who's editing.
func (h *Handler) Acquire(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form AcquireLockRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	lock, acquired, err := h.service.Acquire(
		c.Request.Context(),
		sessionID,
		AcquireRequest{ElementID: form.ElementID, ElementType: form.ElementType, Name: form.Name},
		userID.(uint64),
		username.(string),
	)
	if err != nil {
		c.Error(err)
		return
	}

	if !acquired {
		c.JSON(http.StatusConflict, gin.H{"acquired": false, "lock": lock})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"acquired": true, "lock": lock})
}

func (h *Handler) Release(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.Release(c.Request.Context(), sessionID, c.Param("elementId"), userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Refresh(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	lock, err := h.service.Refresh(c.Request.Context(), sessionID, c.Param("elementId"), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, lock)
}

// Show reports the element's current holder; an expired or absent lock
// renders as locked=false.
func (h *Handler) Show(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	lock, err := h.service.Holder(c.Request.Context(), sessionID, c.Param("elementId"))
	if err != nil {
		c.Error(err)
		return
	}

	if lock == nil {
		c.JSON(http.StatusOK, gin.H{"locked": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{"locked": true, "lock": lock})
}

func (h *Handler) List(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	activeOnly := c.DefaultQuery("active", "true") != "false"

	locks, err := h.service.List(c.Request.Context(), sessionID, activeOnly)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, locks)
}
