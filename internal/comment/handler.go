package comment

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

type AddCommentRequest struct {
	Text     string `json:"text" binding:"required,min=1,max=5000"`
	Position *int   `json:"position"`
}

func (h *Handler) Add(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form AddCommentRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	comment, err := h.service.Add(c.Request.Context(), sessionID, userID.(uint64), username.(string), form.Text, form.Position)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) Resolve(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	commentID, err := utils.ParseIDParam(c, "commentId")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	comment, err := h.service.Resolve(c.Request.Context(), sessionID, commentID, userID.(uint64), username.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, comment)
}

func (h *Handler) List(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	comments, err := h.service.List(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, comments)
}
