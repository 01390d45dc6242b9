package document

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

func (h *Handler) ShowState(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	state, err := h.service.GetState(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, state)
}

type ApplyChangeRequest struct {
	ElementID   string  `json:"element_id" binding:"required,max=255"`
	ElementType string  `json:"element_type" binding:"required,oneof=question section page option logic setting"`
	Content     string  `json:"content"`
	BaseVersion *uint64 `json:"base_version" binding:"required"`
}

func (h *Handler) ApplyChange(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form ApplyChangeRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	result, err := h.service.ApplyChange(
		c.Request.Context(),
		sessionID,
		userID.(uint64),
		username.(string),
		ChangeRequest{
			ElementID:   form.ElementID,
			ElementType: form.ElementType,
			Content:     form.Content,
			BaseVersion: *form.BaseVersion,
		},
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}
