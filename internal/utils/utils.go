package utils

import (
	"strconv"

	apiError "personalysis-collab/internal/errors"

	"github.com/gin-gonic/gin"
)

func GetPaginationParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	return page, pageSize
}

// ParseIDParam reads a numeric path parameter, wrapping parse failures
// as NotFound since a non-numeric id can never reference a resource.
func ParseIDParam(c *gin.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, apiError.NotFound("Resource not found", err)
	}
	return id, nil
}

// PageMeta describes one page of a listing response.
type PageMeta struct {
	Total       int64 `json:"total"`
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	TotalPage   int   `json:"total_page"`
}

func NewPageMeta(total int64, page, pageSize int) PageMeta {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return PageMeta{
		Total:       total,
		CurrentPage: page,
		PerPage:     pageSize,
		TotalPage:   totalPages,
	}
}
