package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/net/html"

	"github.com/use-agent/scrapedeck/cleaner"
	"github.com/use-agent/scrapedeck/engine"
	"github.com/use-agent/scrapedeck/models"
	"github.com/use-agent/scrapedeck/simhash"
	"github.com/use-agent/scrapedeck/transform"
)

// Fetcher retrieves a URL. *engine.Fetcher satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*engine.FetchResult, error)
}

// State is the fetch lifecycle state of an entity.
type State int

const (
	StateEmpty State = iota
	StateFetching
	StateFetchedOK
	StateFetchFailed
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateFetching:
		return "fetching"
	case StateFetchedOK:
		return "fetched"
	case StateFetchFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FetchOutcome is the result of one RunFetch. StatusCode is 0 when no
// response was received.
type FetchOutcome struct {
	StatusCode int
	Err        error
}

// Status messages reported after entity operations.
const (
	MsgFetchSucceeded    = "URL Fetch succeeded."
	MsgInvalidURL        = "The provided URL is invalid. It must start with http://, https:// or ftp://."
	MsgTransformEnabled  = "Transform enabled."
	MsgTransformDisabled = "Transform disabled."
	MsgTransformReady    = "Transform set and ready."
)

// Entity is one independent fetch → parse → filter → render → transform
// pipeline. Every stage caches its output; configuration setters drop only
// the caches downstream of what they change, and later reads recompute from
// the earliest dropped stage.
//
// All methods are safe for concurrent use. Fetches on one entity are
// serialized, and the state mutex is released while the network request is
// in flight, so reads and setters never wait on a slow page. The previous
// successful text stays readable until the new response is applied.
type Entity struct {
	fetchMu sync.Mutex
	mu      sync.Mutex

	id      string
	fetcher Fetcher
	cleaner *cleaner.Cleaner

	// configuration
	url              string
	pattern          string
	filterMode       models.FilterMode
	outputMode       models.OutputMode
	transformEnabled bool
	transformSource  string
	compiled         *transform.Transform

	// fetch results
	state      State
	statusCode int
	raw        string
	doc        *html.Node
	parseErr   error
	finalURL   string
	metadata   models.PageMetadata
	fetchedAt  time.Time
	lastErr    error
	message    string

	// derived caches; nil means "recompute"
	fragment *string
	rendered *string

	// change detection baseline, set by Fetch and ApplyRecord and cleared
	// whenever the filter, output or transform changes
	signature simhash.Signature
	layout    uint64
}

// NewEntity creates an empty entity filtering by class and rendering markup.
func NewEntity(id string, f Fetcher, c *cleaner.Cleaner) *Entity {
	return &Entity{
		id:         id,
		fetcher:    f,
		cleaner:    c,
		filterMode: models.FilterByClass,
		outputMode: models.OutputMarkup,
	}
}

// ID returns the entity's board identifier.
func (e *Entity) ID() string { return e.id }

// SetSource updates the URL, filter pattern and filter mode. It does not
// fetch; a new URL takes effect on the next RunFetch.
func (e *Entity) SetSource(url, pattern string, mode models.FilterMode) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.url = url
	e.setFilterLocked(pattern, mode)
}

// SetFilter changes only the filter pattern.
func (e *Entity) SetFilter(pattern string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setFilterLocked(pattern, e.filterMode)
}

// SetFilterMode changes only the filter mode.
func (e *Entity) SetFilterMode(mode models.FilterMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setFilterLocked(e.pattern, mode)
}

func (e *Entity) setFilterLocked(pattern string, mode models.FilterMode) {
	if pattern == e.pattern && mode == e.filterMode {
		return
	}
	e.pattern = pattern
	e.filterMode = mode
	e.invalidateFragment()
	e.resetBaseline()
}

// SetOutputMode changes the render mode.
func (e *Entity) SetOutputMode(mode models.OutputMode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setOutputLocked(mode)
}

func (e *Entity) setOutputLocked(mode models.OutputMode) {
	if mode == e.outputMode {
		return
	}
	e.outputMode = mode
	e.invalidateRendered()
	e.resetBaseline()
}

// SetTransform recompiles the transform when source changed and turns its
// application on or off. A source that fails to compile is installed as a
// fallback that renders the compile error; that error is also returned.
func (e *Entity) SetTransform(source string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setTransformLocked(source, enabled)
}

func (e *Entity) setTransformLocked(source string, enabled bool) error {
	changed := e.compiled == nil || source != e.transformSource
	if changed {
		e.transformSource = source
		e.compiled = transform.CompileOrFallback(source)
	}
	if changed || enabled != e.transformEnabled {
		e.resetBaseline()
	}
	e.transformEnabled = enabled
	e.invalidateRendered()

	if !enabled {
		e.message = MsgTransformDisabled
		return nil
	}
	if err := e.compiled.Err(); err != nil {
		e.message = err.Error()
		slog.Info("transform compile failed", "entity", e.id, "error", err)
		return err
	}
	if changed {
		e.message = MsgTransformReady
	} else {
		e.message = MsgTransformEnabled
	}
	return nil
}

// RunFetch retrieves the configured URL and blocks until done.
//
// On status 200 the document is parsed and the downstream caches are
// dropped, to be recomputed on the next read. An invalid URL, a transport
// failure or any other status resets all derived state and moves the entity
// to StateFetchFailed; its configuration is kept.
func (e *Entity) RunFetch(ctx context.Context) FetchOutcome {
	e.fetchMu.Lock()
	defer e.fetchMu.Unlock()

	url, res, err := e.download(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyFetchLocked(url, res, err)
}

// download runs the network request without holding e.mu. The caller holds
// e.fetchMu.
func (e *Entity) download(ctx context.Context) (string, *engine.FetchResult, error) {
	e.mu.Lock()
	e.state = StateFetching
	url := e.url
	e.mu.Unlock()

	res, err := e.fetcher.Fetch(ctx, url)
	return url, res, err
}

func (e *Entity) applyFetchLocked(url string, res *engine.FetchResult, err error) FetchOutcome {
	if err != nil {
		e.fail(0, err)
		if models.CodeOf(err) == models.ErrCodeInvalidURL {
			e.message = MsgInvalidURL
		}
		return FetchOutcome{Err: err}
	}

	if res.StatusCode != 200 {
		err := models.NewScrapeError(models.ErrCodeNonSuccessStatus, "fetch returned "+res.Status, nil)
		e.fail(res.StatusCode, err)
		return FetchOutcome{StatusCode: res.StatusCode, Err: err}
	}

	e.raw = res.Body
	e.doc, e.parseErr = cleaner.Parse(res.Body)
	e.finalURL = res.FinalURL
	if e.finalURL == "" {
		e.finalURL = url
	}
	e.metadata = cleaner.Metadata(res.Body, e.finalURL)
	e.statusCode = res.StatusCode
	e.state = StateFetchedOK
	e.fetchedAt = time.Now()
	e.lastErr = nil
	e.message = MsgFetchSucceeded
	e.invalidateFragment()

	slog.Info("entity fetched", "entity", e.id, "url", url, "bytes", len(res.Body))
	return FetchOutcome{StatusCode: res.StatusCode}
}

func (e *Entity) fail(status int, err error) {
	e.state = StateFetchFailed
	e.statusCode = status
	e.raw = ""
	e.doc = nil
	e.parseErr = nil
	e.finalURL = ""
	e.metadata = models.PageMetadata{}
	e.lastErr = err
	e.message = err.Error()
	e.invalidateFragment()

	slog.Warn("entity fetch failed", "entity", e.id, "url", e.url, "status", status, "error", err)
}

// Fetch runs RunFetch and reports whether the entity's text changed since the
// previous Fetch. threshold is the SimHash distance passed to
// simhash.Changed.
func (e *Entity) Fetch(ctx context.Context, threshold int) models.FetchReport {
	e.fetchMu.Lock()
	defer e.fetchMu.Unlock()

	url, res, err := e.download(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.applyFetchLocked(url, res, err)
	report := models.FetchReport{ID: e.id, URL: url, StatusCode: out.StatusCode}
	if out.Err != nil {
		report.Error = errorDetail(out.Err)
		return report
	}

	text := e.textLocked()
	sig := simhash.Sign(text)
	layout := simhash.Layout(e.raw)
	report.Text = text
	report.Changed = simhash.Changed(e.signature, sig, threshold)
	report.LayoutDrifted = simhash.LayoutDrifted(e.layout, layout)
	e.signature = sig
	e.layout = layout
	return report
}

// RenderedText switches the output mode to mode and returns the current
// rendered and transformed text, or "" when there is no successful fetch.
func (e *Entity) RenderedText(mode models.OutputMode) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setOutputLocked(mode)
	return e.textLocked()
}

// Text returns the current text in the configured output mode.
func (e *Entity) Text() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.textLocked()
}

func (e *Entity) fragmentLocked() string {
	if e.fragment != nil {
		return *e.fragment
	}
	var frag string
	if e.parseErr != nil {
		frag = models.NewScrapeError(models.ErrCodeExtraction, "parse document", e.parseErr).Error()
	} else {
		frag = cleaner.ExtractOrDescribe(e.doc, e.pattern, e.filterMode)
	}
	e.fragment = &frag
	return frag
}

func (e *Entity) textLocked() string {
	if e.doc == nil && e.parseErr == nil {
		return ""
	}
	if e.rendered != nil {
		return *e.rendered
	}

	out, err := e.cleaner.Render(e.fragmentLocked(), e.outputMode, e.finalURL)
	if err != nil {
		out = models.NewScrapeError(models.ErrCodeExtraction, "render "+e.outputMode.String(), err).Error()
	}
	if e.transformEnabled {
		out = transform.Apply(out, e.compiled)
	}
	e.rendered = &out
	return out
}

func (e *Entity) invalidateFragment() {
	e.fragment = nil
	e.invalidateRendered()
}

func (e *Entity) invalidateRendered() {
	e.rendered = nil
}

// resetBaseline makes the next Fetch a new baseline. A text rendered under a
// different configuration is not comparable.
func (e *Entity) resetBaseline() {
	e.signature = simhash.Signature{}
	e.layout = 0
}

// rebaselineLocked records the current text and layout as the baseline.
func (e *Entity) rebaselineLocked() {
	if e.state != StateFetchedOK {
		e.resetBaseline()
		return
	}
	e.signature = simhash.Sign(e.textLocked())
	e.layout = simhash.Layout(e.raw)
}

// Message returns the status line of the last operation.
func (e *Entity) Message() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.message
}

// Err returns the error of the last fetch, or nil after a successful one.
func (e *Entity) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// State returns the fetch lifecycle state.
func (e *Entity) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Record exports the entity's configuration. Fetched data is never exported.
func (e *Entity) Record() models.Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec := models.Record{
		URL:             e.url,
		Filter:          e.pattern,
		IsWithCSS:       e.filterMode != models.FilterByText,
		OutputOption:    int(e.outputMode),
		IsWithTransform: e.transformEnabled,
		Transform:       e.transformSource,
	}
	if e.filterMode == models.FilterBySelector {
		rec.FilterMode = e.filterMode.String()
	}
	return rec
}

// ApplyRecord configures the entity from rec, fetches, and then restores the
// transform. The fetched text becomes the change detection baseline, so the
// first Fetch after a load reports a change only if the page moved. It
// returns the fetch outcome.
func (e *Entity) ApplyRecord(ctx context.Context, rec models.Record) FetchOutcome {
	e.fetchMu.Lock()
	defer e.fetchMu.Unlock()

	e.mu.Lock()
	e.url = rec.URL
	e.setFilterLocked(rec.Filter, rec.Mode())
	e.setOutputLocked(rec.Output())
	e.transformSource = rec.Transform
	e.compiled = nil
	e.transformEnabled = false
	e.invalidateRendered()
	e.mu.Unlock()

	url, res, err := e.download(ctx)
	e.mu.Lock()
	defer e.mu.Unlock()

	out := e.applyFetchLocked(url, res, err)
	if rec.IsWithTransform {
		_ = e.setTransformLocked(rec.Transform, true)
	}
	e.rebaselineLocked()
	return out
}

// NewEntityFromRecord creates an entity from a persisted record and fetches it.
func NewEntityFromRecord(ctx context.Context, id string, rec models.Record, f Fetcher, c *cleaner.Cleaner) (*Entity, FetchOutcome) {
	e := NewEntity(id, f, c)
	out := e.ApplyRecord(ctx, rec)
	return e, out
}

// Snapshot returns a read-only view of the entity, computing its text if
// needed.
func (e *Entity) Snapshot() models.EntityView {
	e.mu.Lock()
	defer e.mu.Unlock()

	view := models.EntityView{
		ID:               e.id,
		URL:              e.url,
		Filter:           e.pattern,
		FilterMode:       e.filterMode.String(),
		OutputMode:       e.outputMode.String(),
		TransformEnabled: e.transformEnabled,
		TransformSource:  e.transformSource,
		State:            e.state.String(),
		StatusCode:       e.statusCode,
		Message:          e.message,
		Metadata:         e.metadata,
		Text:             e.textLocked(),
	}
	if !e.fetchedAt.IsZero() && e.state == StateFetchedOK {
		t := e.fetchedAt
		view.FetchedAt = &t
	}
	return view
}

func errorDetail(err error) *models.ErrorDetail {
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se.ToDetail()
	}
	return &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
}
