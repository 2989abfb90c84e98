package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/use-agent/scrapedeck/config"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http", "browser" or "auto").
	Name() string

	// Fetch retrieves the resource for the given request. Any HTTP status is
	// returned as a value; only transport-level failures are errors.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
}

// FetchResult is the output of a completed engine fetch.
type FetchResult struct {
	Body        string
	StatusCode  int
	Status      string // e.g. "404 Not Found"
	ContentType string
	FinalURL    string
	EngineName  string
}

// New builds the engine named by cfg.Kind.
func New(cfg config.EngineConfig, browser config.BrowserConfig) (Engine, error) {
	switch cfg.Kind {
	case "", "http":
		return NewHTTPEngine(cfg), nil
	case "browser":
		return NewRodEngine(browser, cfg.UserAgent), nil
	case "auto":
		return NewDispatcher(
			[]Engine{NewHTTPEngine(cfg), NewRodEngine(browser, cfg.UserAgent)},
			[]time.Duration{0, cfg.EscalationDelay},
			NewDomainMemory(cfg.DomainMemoryTTL),
		), nil
	default:
		return nil, fmt.Errorf("engine: unknown kind %q (want http, browser or auto)", cfg.Kind)
	}
}
