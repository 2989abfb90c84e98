package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/scrapedeck/models"
	"github.com/use-agent/scrapedeck/scraper"
)

// lookup resolves the :id path parameter, writing a 404 when it is unknown.
func lookup(c *gin.Context, board *scraper.Board) (*scraper.Entity, bool) {
	id := c.Param("id")
	e, ok := board.Get(id)
	if !ok {
		respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "no entity with id "+id, nil))
		return nil, false
	}
	return e, true
}

func respondEntity(c *gin.Context, status int, e *scraper.Entity) {
	view := e.Snapshot()
	c.JSON(status, models.EntityResponse{Success: true, Entity: &view})
}

// applySource configures e from req. It returns false after writing a 400
// when the filter mode is unknown.
func applySource(c *gin.Context, e *scraper.Entity, req *models.SourceRequest) bool {
	mode := models.FilterByClass
	if req.FilterMode != "" {
		m, err := models.ParseFilterMode(req.FilterMode)
		if err != nil {
			badRequest(c, err.Error())
			return false
		}
		mode = m
	}
	e.SetSource(req.URL, req.Filter, mode)
	return true
}

// ListEntities returns a handler for GET /api/v1/entities.
func ListEntities(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.EntityListResponse{
			Success:  true,
			Entities: board.Snapshots(),
			Status:   board.Status(),
		})
	}
}

// CreateEntity returns a handler for POST /api/v1/entities.
//
// The body is optional: without one an empty entity is appended.
func CreateEntity(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SourceRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, err.Error())
			return
		}
		if _, err := models.ParseFilterMode(req.FilterMode); req.FilterMode != "" && err != nil {
			badRequest(c, err.Error())
			return
		}

		e := board.Add()
		applySource(c, e, &req)
		if req.Fetch {
			board.Fetch(c.Request.Context(), e)
		}
		respondEntity(c, http.StatusCreated, e)
	}
}

// GetEntity returns a handler for GET /api/v1/entities/:id.
func GetEntity(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := lookup(c, board)
		if !ok {
			return
		}
		respondEntity(c, http.StatusOK, e)
	}
}

// DeleteEntity returns a handler for DELETE /api/v1/entities/:id.
func DeleteEntity(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !board.Remove(id) {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, "no entity with id "+id, nil))
			return
		}
		c.JSON(http.StatusOK, models.StatusResponse{Success: true, Status: board.Status(), Count: 1})
	}
}

// UpdateSource returns a handler for PUT /api/v1/entities/:id/source.
func UpdateSource(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := lookup(c, board)
		if !ok {
			return
		}
		var req models.SourceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if !applySource(c, e, &req) {
			return
		}
		if req.Fetch {
			board.Fetch(c.Request.Context(), e)
		}
		respondEntity(c, http.StatusOK, e)
	}
}

// UpdateOutput returns a handler for PUT /api/v1/entities/:id/output.
func UpdateOutput(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := lookup(c, board)
		if !ok {
			return
		}
		var req models.OutputRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		mode, err := models.ParseOutputMode(req.Mode)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		e.SetOutputMode(mode)
		respondEntity(c, http.StatusOK, e)
	}
}

// UpdateTransform returns a handler for PUT /api/v1/entities/:id/transform.
//
// A transform that does not compile is still installed, so the entity's text
// shows the compile error, but the call answers 422.
func UpdateTransform(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := lookup(c, board)
		if !ok {
			return
		}
		var req models.TransformRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if err := e.SetTransform(req.Source, req.Enabled); err != nil {
			respondError(c, err)
			return
		}
		respondEntity(c, http.StatusOK, e)
	}
}

// FetchEntity returns a handler for POST /api/v1/entities/:id/fetch.
func FetchEntity(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := lookup(c, board)
		if !ok {
			return
		}
		report := board.Fetch(c.Request.Context(), e)
		status := http.StatusOK
		if report.Error != nil {
			status = mapErrorToStatus(&models.ScrapeError{Code: report.Error.Code})
		}
		c.JSON(status, models.FetchResponse{Success: report.Error == nil, FetchReport: report})
	}
}

// GetText returns a handler for GET /api/v1/entities/:id/text.
//
// A ?mode= query switches the entity's output mode before rendering.
func GetText(board *scraper.Board) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, ok := lookup(c, board)
		if !ok {
			return
		}

		var text string
		if q := c.Query("mode"); q != "" {
			mode, err := models.ParseOutputMode(q)
			if err != nil {
				badRequest(c, err.Error())
				return
			}
			text = e.RenderedText(mode)
		} else {
			text = e.Text()
		}

		c.JSON(http.StatusOK, models.TextResponse{
			Success: true,
			ID:      e.ID(),
			Mode:    e.Snapshot().OutputMode,
			Text:    text,
		})
	}
}
