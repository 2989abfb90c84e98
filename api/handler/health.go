package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/scrapedeck/models"
	"github.com/use-agent/scrapedeck/scraper"
)

// Health returns a handler for GET /api/v1/health.
func Health(board *scraper.Board, engineName string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{
			Status:   "healthy",
			Uptime:   time.Since(startTime).Round(time.Second).String(),
			Entities: board.Len(),
			Engine:   engineName,
			Version:  models.Version,
		})
	}
}
