package notification

import (
	"net/http"
	"strconv"

	"personalysis-collab/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(c *gin.Context) {
	userID, _ := c.Get("user_id")
	page, pageSize := utils.GetPaginationParams(c)

	// optional scope to one session; 0 means all
	sessionID, _ := strconv.ParseUint(c.Query("session_id"), 10, 64)

	notifications, unread, meta, err := h.service.List(c.Request.Context(), userID.(uint64), sessionID, page, pageSize)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unread,
		"meta":          meta,
	})
}

func (h *Handler) MarkRead(c *gin.Context) {
	notificationID, err := utils.ParseIDParam(c, "notificationId")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.MarkRead(c.Request.Context(), notificationID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) MarkAllRead(c *gin.Context) {
	userID, _ := c.Get("user_id")
	sessionID, _ := strconv.ParseUint(c.Query("session_id"), 10, 64)

	if err := h.service.MarkAllRead(c.Request.Context(), userID.(uint64), sessionID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Delete(c *gin.Context) {
	notificationID, err := utils.ParseIDParam(c, "notificationId")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")

	if err := h.service.Delete(c.Request.Context(), notificationID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
