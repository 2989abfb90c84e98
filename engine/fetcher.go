package engine

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/use-agent/scrapedeck/models"
)

// urlShape accepts http, https and ftp URLs with optional credentials, port
// and path. It is anchored at the start only, so trailing text is tolerated.
var urlShape = regexp.MustCompile(`^(ftp|http|https)://(\w+:?\w*@)?(\S+)(:\d+)?(/|/([\w#!:.?+=&%@!\-/]))?`)

// ValidateURL reports an INVALID_URL error when rawURL does not look like a URL.
func ValidateURL(rawURL string) error {
	if !urlShape.MatchString(rawURL) {
		return models.NewScrapeError(models.ErrCodeInvalidURL, "invalid URL: "+rawURL, nil)
	}
	return nil
}

// Fetcher performs one blocking retrieval per call through an Engine.
type Fetcher struct {
	engine Engine
}

// NewFetcher wraps an engine.
func NewFetcher(e Engine) *Fetcher {
	return &Fetcher{engine: e}
}

// EngineName returns the name of the underlying engine.
func (f *Fetcher) EngineName() string {
	return f.engine.Name()
}

type fetchOutcome struct {
	result *FetchResult
	err    error
}

// Fetch validates rawURL, then runs the engine call on its own goroutine and
// waits for it. Non-200 statuses come back in the result; only transport
// failures are returned as FETCH_FAILED errors. If ctx is done first the
// wait is abandoned and ctx.Err() is wrapped as FETCH_FAILED.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if err := ValidateURL(rawURL); err != nil {
		return nil, err
	}

	done := make(chan fetchOutcome, 1)
	go func() {
		res, err := f.engine.Fetch(ctx, &FetchRequest{URL: rawURL})
		done <- fetchOutcome{result: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			slog.Warn("fetch failed", "url", rawURL, "engine", f.engine.Name(), "error", out.err)
			return nil, models.NewScrapeError(models.ErrCodeFetchFailed, "fetch failed", out.err)
		}
		slog.Debug("fetched", "url", rawURL, "status", out.result.StatusCode, "bytes", len(out.result.Body))
		return out.result, nil
	case <-ctx.Done():
		return nil, models.NewScrapeError(models.ErrCodeFetchFailed, "fetch abandoned", ctx.Err())
	}
}
