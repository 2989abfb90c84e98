package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/scrapedeck/config"
)

// RodEngine renders pages in a headless Chromium. The browser is launched
// lazily on the first fetch and shared by every later fetch; each fetch gets
// its own tab.
type RodEngine struct {
	cfg       config.BrowserConfig
	userAgent string

	mu      sync.Mutex
	browser *rod.Browser
}

// NewRodEngine creates a RodEngine. No browser is started until Fetch.
func NewRodEngine(cfg config.BrowserConfig, userAgent string) *RodEngine {
	return &RodEngine{cfg: cfg, userAgent: userAgent}
}

func (e *RodEngine) Name() string { return "browser" }

// connect launches and connects the browser if it is not running yet.
func (e *RodEngine) connect() (*rod.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.browser != nil {
		return e.browser, nil
	}

	l := launcher.New().
		Headless(e.cfg.Headless).
		NoSandbox(e.cfg.NoSandbox)
	if e.cfg.BrowserBin != "" {
		l = l.Bin(e.cfg.BrowserBin)
	}
	if e.cfg.Proxy != "" {
		l = l.Proxy(e.cfg.Proxy)
	}
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	e.browser = browser
	return browser, nil
}

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	browser, err := e.connect()
	if err != nil {
		return nil, err
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("browser: open page: %w", err)
	}
	defer func() {
		if closeErr := page.Close(); closeErr != nil {
			slog.Debug("browser: close page failed", "error", closeErr)
		}
	}()

	if e.cfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", evalErr,
			)
		}
	}
	if e.userAgent != "" {
		_ = proto.NetworkSetUserAgentOverride{UserAgent: e.userAgent}.Call(page)
	}
	if len(req.Headers) > 0 {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(req.Headers),
		}.Call(page)
	}

	p := page.Context(ctx)
	if err := p.Navigate(req.URL); err != nil {
		return nil, fmt.Errorf("browser: navigate: %w", err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM",
			"error", err,
		)
	}

	statusCode := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}
	// Pages served from file:// or cache report 0; treat a rendered page as OK.
	if statusCode == 0 {
		statusCode = 200
	}

	rawHTML, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("browser: read html: %w", err)
	}

	finalURL := req.URL
	if res, err := p.Eval(`() => window.location.href`); err == nil && res.Value.Str() != "" {
		finalURL = res.Value.Str()
	}

	return &FetchResult{
		Body:        rawHTML,
		StatusCode:  statusCode,
		Status:      fmt.Sprintf("%d", statusCode),
		ContentType: "text/html",
		FinalURL:    finalURL,
		EngineName:  e.Name(),
	}, nil
}

// Close kills the browser process if one was started.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.browser == nil {
		return nil
	}
	err := e.browser.Close()
	e.browser = nil
	return err
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
