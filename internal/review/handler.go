package review

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

type CreateReviewRequest struct {
	Title       string   `json:"title" binding:"required,min=1,max=255"`
	Description string   `json:"description" binding:"max=2000"`
	ReviewerIDs []uint64 `json:"reviewer_ids" binding:"required,min=1"`
	VersionID   *uint64  `json:"version_id"`
}

func (h *Handler) Create(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form CreateReviewRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	review, err := h.service.Create(
		c.Request.Context(),
		sessionID,
		CreateRequest{
			Title:       form.Title,
			Description: form.Description,
			ReviewerIDs: form.ReviewerIDs,
			VersionID:   form.VersionID,
		},
		userID.(uint64),
		username.(string),
	)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, review)
}

func (h *Handler) List(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	reviews, err := h.service.List(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, reviews)
}

func (h *Handler) Show(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	reviewID, err := utils.ParseIDParam(c, "reviewId")
	if err != nil {
		c.Error(err)
		return
	}

	review, err := h.service.Get(c.Request.Context(), sessionID, reviewID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, review)
}

type DecideRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approved rejected changes_requested"`
	Comment  string `json:"comment" binding:"max=5000"`
}

func (h *Handler) Decide(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	reviewID, err := utils.ParseIDParam(c, "reviewId")
	if err != nil {
		c.Error(err)
		return
	}

	var form DecideRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	review, err := h.service.Decide(c.Request.Context(), sessionID, reviewID, userID.(uint64), username.(string), form.Decision, form.Comment)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, review)
}

type ReviewCommentRequest struct {
	Content   string `json:"content" binding:"required,min=1,max=5000"`
	ElementID string `json:"element_id" binding:"max=255"`
}

func (h *Handler) AddComment(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	reviewID, err := utils.ParseIDParam(c, "reviewId")
	if err != nil {
		c.Error(err)
		return
	}

	var form ReviewCommentRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	comment, err := h.service.AddComment(c.Request.Context(), sessionID, reviewID, userID.(uint64), username.(string), form.Content, form.ElementID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, comment)
}

func (h *Handler) Resubmit(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	reviewID, err := utils.ParseIDParam(c, "reviewId")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	review, err := h.service.Resubmit(c.Request.Context(), sessionID, reviewID, userID.(uint64), username.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, review)
}
