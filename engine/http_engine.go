package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	tls "github.com/refraction-networking/utls"
	"golang.org/x/net/html/charset"

	"github.com/use-agent/scrapedeck/config"
)

// HTTPEngine fetches with plain net/http and a Chrome-like TLS fingerprint.
// It does no retries and sets no deadline of its own.
type HTTPEngine struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates an HTTPEngine from the engine configuration.
func NewHTTPEngine(cfg config.EngineConfig) *HTTPEngine {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			var dialer net.Dialer
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}

	return &HTTPEngine{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: cfg.UserAgent,
		maxBody:   maxBody,
	}
}

// newHTTPEngineWithClient is used by tests to talk to httptest servers
// without the utls dialer.
func newHTTPEngineWithClient(client *http.Client, userAgent string) *HTTPEngine {
	return &HTTPEngine{client: client, userAgent: userAgent, maxBody: 10 << 20}
}

func (e *HTTPEngine) Name() string { return "http" }

func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("http_engine: build request: %w", err)
	}

	if e.userAgent != "" {
		httpReq.Header.Set("User-Agent", e.userAgent)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Language", "en-US,en;q=0.9")
	httpReq.Header.Set("Accept-Encoding", "identity")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http_engine: do request: %w", err)
	}
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")

	// Decode to UTF-8 using the declared or sniffed charset.
	var body io.Reader = io.LimitReader(resp.Body, e.maxBody)
	if decoded, err := charset.NewReader(body, ct); err == nil {
		body = decoded
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("http_engine: read body: %w", err)
	}

	return &FetchResult{
		Body:        string(raw),
		StatusCode:  resp.StatusCode,
		Status:      resp.Status,
		ContentType: ct,
		FinalURL:    resp.Request.URL.String(),
		EngineName:  e.Name(),
	}, nil
}
