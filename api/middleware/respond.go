package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/use-agent/scrapedeck/models"
)

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Success: false,
		Error:   &models.ErrorDetail{Code: code, Message: msg},
	})
}
