package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/scrapedeck/models"
	"github.com/use-agent/scrapedeck/scraper"
)

// RemoveAll returns a handler for DELETE /api/v1/entities.
func RemoveAll(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		n := board.RemoveAll()
		c.JSON(http.StatusOK, models.StatusResponse{Success: true, Status: board.Status(), Count: n})
	}
}

// RemoveLast returns a handler for DELETE /api/v1/entities/last.
func RemoveLast(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !board.RemoveLast() {
			c.JSON(http.StatusNotFound, models.StatusResponse{
				Success: false,
				Status:  board.Status(),
				Error:   &models.ErrorDetail{Code: models.ErrCodeNotFound, Message: "board is empty"},
			})
			return
		}
		c.JSON(http.StatusOK, models.StatusResponse{Success: true, Status: board.Status(), Count: 1})
	}
}

// FetchAll returns a handler for POST /api/v1/fetch-all.
//
// Per-entity failures are reported in the results; the call itself succeeds.
func FetchAll(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		results := board.FetchAll(c.Request.Context())
		c.JSON(http.StatusOK, models.FetchAllResponse{
			Success: true,
			Results: results,
			Status:  board.Status(),
		})
	}
}

// bindConfigFile reads the optional {path} body and resolves the board file.
func bindConfigFile(c *gin.Context, defaultPath string) (string, bool) {
	var req models.ConfigFileRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return "", false
	}
	path, err := req.Resolve(defaultPath)
	if err != nil {
		respondError(c, err)
		return "", false
	}
	return path, true
}

// SaveConfig returns a handler for POST /api/v1/config/save.
func SaveConfig(board *scraper.Board, defaultPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := bindConfigFile(c, defaultPath)
		if !ok {
			return
		}
		if err := board.Save(path); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.StatusResponse{Success: true, Status: board.Status(), Count: board.Len()})
	}
}

// LoadConfig returns a handler for POST /api/v1/config/load.
func LoadConfig(board *scraper.Board, defaultPath string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path, ok := bindConfigFile(c, defaultPath)
		if !ok {
			return
		}
		if err := board.Load(c.Request.Context(), path); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.StatusResponse{Success: true, Status: board.Status(), Count: board.Len()})
	}
}
