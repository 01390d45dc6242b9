package version

import (
	"net/http"
	"strconv"

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

type CreateVersionRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Description string `json:"description" binding:"max=2000"`
}

func (h *Handler) Create(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	var form CreateVersionRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	version, err := h.service.Create(c.Request.Context(), sessionID, form.Name, form.Description, userID.(uint64), username.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, version)
}

func (h *Handler) List(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	versions, err := h.service.List(c.Request.Context(), sessionID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, versions)
}

func (h *Handler) Switch(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	versionID, err := utils.ParseIDParam(c, "versionId")
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.service.Switch(c.Request.Context(), sessionID, versionID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Restore(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	versionID, err := utils.ParseIDParam(c, "versionId")
	if err != nil {
		c.Error(err)
		return
	}

	userID, _ := c.Get("user_id")
	username, _ := c.Get("user_name")

	restored, err := h.service.Restore(c.Request.Context(), sessionID, versionID, userID.(uint64), username.(string))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, restored)
}

func (h *Handler) Compare(c *gin.Context) {
	sessionID, err := utils.ParseIDParam(c, "id")
	if err != nil {
		c.Error(err)
		return
	}

	fromID, err := strconv.ParseUint(c.Query("from"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("from must be a version id", err))
		return
	}
	toID, err := strconv.ParseUint(c.Query("to"), 10, 64)
	if err != nil {
		c.Error(errors.BadRequest("to must be a version id", err))
		return
	}

	diff, err := h.service.Compare(c.Request.Context(), sessionID, fromID, toID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, diff)
}
