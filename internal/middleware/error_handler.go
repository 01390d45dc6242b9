package middleware

import (
	"errors"
	"log"

	apiError "personalysis-collab/internal/errors"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next() // Execute the handler first

		// detect any errors
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			var apiErr *apiError.APIError

			// if it's not our custom APIError
			if !errors.As(err, &apiErr) {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					apiErr = apiError.NotFound("Resource not found", err)
				} else {
					// If it's a raw error we didn't wrap, treat as Internal
					apiErr = apiError.Internal(err)
				}
			}

			// LOGGING
			if apiErr.Status >= 500 {
				log.Printf("[ERROR] %v\n", apiErr.Internal)
			} else {
				log.Printf("[INFO] %s: %v\n", apiErr.Message, apiErr.Internal)
			}

			// Respond with JSON
			c.AbortWithStatusJSON(apiErr.Status, apiErr)
		}
	}
}
