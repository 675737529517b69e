package chat

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultHost is the apex domain sites hang off of; the per-site API base is
// https://{site}.{host}/api/v1/.
const DefaultHost = "example-chat-host"

const defaultUserAgent = "chatwatch/1"

// Site identifies one watched account. Immutable once loaded; shared
// read-only by exactly one watcher/queue-client pair.
type Site struct {
	Name  string
	User  string
	Token string

	// Host overrides DefaultHost when set.
	Host string
}

func (s Site) apiURL(path string) string {
	host := s.Host
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	return "https://" + s.Name + "." + host + "/api/v1/" + path
}

// Transport sends authenticated API requests for one site.
//
// path carries the API endpoint plus its query string; implementations return
// the raw response body. Server-level API errors still arrive as a body (the
// server encodes them as {"result":"error",...}), so a non-2xx status is not
// a transport failure by itself.
type Transport interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Post(ctx context.Context, path string) ([]byte, error)
}

// TransportConfig tunes the HTTP transport.
type TransportConfig struct {
	// UserAgent defaults to defaultUserAgent.
	UserAgent string
	// Timeout bounds a single request. Zero means unbounded, which is what
	// the long-poll endpoint needs (the server may hold the connection open
	// for minutes). Cancellation comes from the request context.
	Timeout time.Duration
}

// HTTPTransport is the production Transport: basic auth against the site's
// API base URL.
type HTTPTransport struct {
	site   Site
	client *http.Client
	ua     string
}

func NewHTTPTransport(site Site, cfg TransportConfig) *HTTPTransport {
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = defaultUserAgent
	}
	return &HTTPTransport{
		site:   site,
		client: &http.Client{Timeout: cfg.Timeout},
		ua:     ua,
	}
}

func (t *HTTPTransport) Get(ctx context.Context, path string) ([]byte, error) {
	return t.do(ctx, http.MethodGet, path)
}

func (t *HTTPTransport) Post(ctx context.Context, path string) ([]byte, error) {
	return t.do(ctx, http.MethodPost, path)
}

func (t *HTTPTransport) do(ctx context.Context, method, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.site.apiURL(path), nil)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	req.SetBasicAuth(t.site.User, t.site.Token)
	req.Header.Set("User-Agent", t.ua)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}
	return body, nil
}
