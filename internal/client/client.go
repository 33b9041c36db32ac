// Package client talks to the persistence collaborator over HTTP and decodes
// the schedule surface it answers with.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"weekplan/internal/dispatch"
	appLog "weekplan/internal/log"
	"weekplan/internal/model"
	"weekplan/internal/snapshot"
)

// ErrConflict is dispatch.ErrConflict, re-exported for callers that only
// import the client.
var ErrConflict = dispatch.ErrConflict

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

// StatusError is a non-2xx response.
type StatusError struct {
	Code   int
	Status string
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("collaborator returned %s: %s", e.Status, e.Detail)
	}
	return "collaborator returned " + e.Status
}

// Unwrap lets errors.Is(err, ErrConflict) match 409 responses.
func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusConflict {
		return dispatch.ErrConflict
	}
	return nil
}

// Options configure a Client.
type Options struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	HTTPClient    *http.Client
}

// cacheEntry holds the validators and body of the last schedule GET per URL.
type cacheEntry struct {
	etag         string
	lastModified string
	contentType  string
	body         []byte
}

// Client sends dispatch.Requests to one base URL.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter

	mu    sync.Mutex
	cache map[string]cacheEntry
}

// New creates a Client for baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		base:    u,
		http:    hc,
		limiter: rate.NewLimiter(limit, burst),
		cache:   make(map[string]cacheEntry),
	}, nil
}

// Fetch loads the schedule surface of week.
func (c *Client) Fetch(ctx context.Context, week time.Time) (model.Snapshot, error) {
	return c.Send(ctx, dispatch.FetchSchedule(week))
}

// Send performs req and decodes the schedule surface from the response.
// Palette requests return a Snapshot holding only Blocks.
// Form fields are sent url-encoded. GETs honor ETag and Last-Modified.
func (c *Client) Send(ctx context.Context, req dispatch.Request) (model.Snapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.Snapshot{}, fmt.Errorf("rate limit: %w", err)
	}

	target := c.resolve(req)
	var body io.Reader
	if len(req.Form) > 0 {
		body = strings.NewReader(req.Form.Encode())
	}
	hreq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return model.Snapshot{}, err
	}
	if body != nil {
		hreq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	// The collaborator answers with the schedule fragment only for partial
	// requests.
	hreq.Header.Set("HX-Request", "true")
	hreq.Header.Set("Accept", snapshot.ContentTypeHTML+", "+snapshot.ContentTypeCalendar+";q=0.9")

	cached, haveCache := c.cached(req, target)
	if haveCache {
		if cached.etag != "" {
			hreq.Header.Set("If-None-Match", cached.etag)
		}
		if cached.lastModified != "" {
			hreq.Header.Set("If-Modified-Since", cached.lastModified)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(hreq)
	if err != nil {
		appLog.Error("collaborator request failed", err, "request", req.String())
		return model.Snapshot{}, fmt.Errorf("%s: %w", req, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("%s: read body: %w", req, err)
	}
	appLog.Debug("collaborator responded", "request", req.String(), "status", resp.StatusCode, "bytes", len(data), "took", time.Since(start).String())

	switch {
	case resp.StatusCode == http.StatusNotModified && haveCache:
		return snapshot.Decode(cached.contentType, cached.body)

	case resp.StatusCode >= 200 && resp.StatusCode < 300 && req.Surface == dispatch.SurfacePalette:
		blocks, err := snapshot.DecodePalette(bytes.NewReader(data))
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("%s: %w", req, err)
		}
		return model.Snapshot{Blocks: blocks}, nil

	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		ct := resp.Header.Get("Content-Type")
		snap, err := snapshot.Decode(ct, data)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("%s: %w", req, err)
		}
		if req.Method == http.MethodGet {
			c.store(target, cacheEntry{
				etag:         resp.Header.Get("ETag"),
				lastModified: resp.Header.Get("Last-Modified"),
				contentType:  ct,
				body:         data,
			})
		}
		return snap, nil

	default:
		serr := &StatusError{Code: resp.StatusCode, Status: resp.Status, Detail: detail(data)}
		if resp.StatusCode != http.StatusConflict {
			appLog.Error("collaborator rejected request", serr, "request", req.String(), "status", resp.StatusCode)
		}
		return model.Snapshot{}, serr
	}
}

func (c *Client) resolve(req dispatch.Request) string {
	u := *c.base
	// req.Path is already escaped.
	escaped := c.base.EscapedPath() + req.Path
	if p, err := url.PathUnescape(escaped); err == nil {
		u.Path = p
		u.RawPath = escaped
	} else {
		u.Path = escaped
		u.RawPath = ""
	}
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String()
}

func (c *Client) cached(req dispatch.Request, target string) (cacheEntry, bool) {
	if req.Method != http.MethodGet {
		return cacheEntry{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache[target]
	return e, ok
}

func (c *Client) store(target string, e cacheEntry) {
	if e.etag == "" && e.lastModified == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[target] = e
}

// detail pulls a message out of an error body: FastAPI style
// {"detail": "..."} JSON, or the trimmed text itself.
func detail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			return s
		}
		return string(payload.Detail)
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 200 {
		text = text[:200]
	}
	if strings.HasPrefix(text, "<") {
		return ""
	}
	return text
}

// IsConflict reports whether err is a 409 from the collaborator.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
