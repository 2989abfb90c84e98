package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/scrapedeck/api/handler"
	"github.com/use-agent/scrapedeck/api/middleware"
	"github.com/use-agent/scrapedeck/config"
	"github.com/use-agent/scrapedeck/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(board *scraper.Board, cfg *config.Config, startTime time.Time, engineName string) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(board, engineName, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Entities
	protected.GET("/entities", handler.ListEntities(board))
	protected.POST("/entities", handler.CreateEntity(board))
	protected.DELETE("/entities", handler.RemoveAll(board))
	protected.DELETE("/entities/last", handler.RemoveLast(board))
	protected.GET("/entities/:id", handler.GetEntity(board))
	protected.DELETE("/entities/:id", handler.DeleteEntity(board))
	protected.PUT("/entities/:id/source", handler.UpdateSource(board))
	protected.PUT("/entities/:id/output", handler.UpdateOutput(board))
	protected.PUT("/entities/:id/transform", handler.UpdateTransform(board))
	protected.POST("/entities/:id/fetch", handler.FetchEntity(board))
	protected.GET("/entities/:id/text", handler.GetText(board))

	// Board
	protected.POST("/fetch-all", handler.FetchAll(board))
	protected.POST("/config/save", handler.SaveConfig(board, cfg.Board.ConfigPath))
	protected.POST("/config/load", handler.LoadConfig(board, cfg.Board.ConfigPath))

	return r
}
