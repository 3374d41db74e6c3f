// Package renderclient fetches rendered tiles from the remote render service.
package renderclient

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	_ "golang.org/x/image/webp"

	"sunrise-desktop/internal/observability"
	"sunrise-desktop/internal/ratelimit"
	"sunrise-desktop/internal/render"
)

const (
	// ViewPath is the render endpoint relative to the server base URL.
	ViewPath = "/api/v1/view/"

	// UserAgent identifies the desktop client to the render service.
	UserAgent = "SunriseDesktop/1.0"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("render request failed with status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("render request failed with status %d", e.Code)
}

// Reason classifies the failure for metrics.
func (e *StatusError) Reason() string {
	if ratelimit.IsRateLimitStatus(e.Code) {
		return "rate_limited"
	}
	return fmt.Sprintf("http_%d", e.Code)
}

// Client handles communication with the render service
type Client struct {
	httpClient *http.Client
	base       *url.URL
	host       string
	limiter    *ratelimit.Handler
	metrics    *observability.RenderCollector
	tracer     trace.Tracer
	sleep      func(ctx context.Context, d time.Duration) error
	verbose    bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimiter sets the handler that decides retries.
func WithRateLimiter(h *ratelimit.Handler) Option {
	return func(c *Client) { c.limiter = h }
}

// WithMetrics records retries on m.
func WithMetrics(m *observability.RenderCollector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithVerbose logs every tile request.
func WithVerbose(v bool) Option {
	return func(c *Client) { c.verbose = v }
}

// NewClient creates a client for the service at baseURL with system proxy
// support.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server URL scheme %q", base.Scheme)
	}

	// Use http.ProxyFromEnvironment to respect system proxy settings
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		base:    base,
		host:    base.Host,
		limiter: ratelimit.NewHandler(nil),
		tracer:  otel.Tracer("sunrise-desktop/internal/renderclient"),
		sleep:   sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Host returns the host rate-limit state is tracked under.
func (c *Client) Host() string { return c.host }

// RateLimiter returns the handler deciding retries.
func (c *Client) RateLimiter() *ratelimit.Handler { return c.limiter }

// TileURL returns the request URL for req.
func (c *Client) TileURL(req render.RenderRequest) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + ViewPath
	u.RawQuery = req.Query().Encode()
	return u.String()
}

// FetchTile downloads and decodes a single tile. Rate-limit statuses and
// transport errors are retried per the rate-limit strategy.
func (c *Client) FetchTile(ctx context.Context, req render.RenderRequest) (image.Image, error) {
	ctx, span := c.tracer.Start(ctx, "render.tile", trace.WithAttributes(
		attribute.String("render.tile", req.Tile.Param()),
		attribute.Int("render.width", req.Tile.PixelWidth),
		attribute.Int("render.height", req.Tile.PixelHeight),
	))
	defer span.End()

	tileURL := c.TileURL(req)
	for attempt := 0; ; attempt++ {
		img, err := c.fetchOnce(ctx, tileURL)
		if err == nil {
			span.SetAttributes(attribute.Int("render.attempts", attempt+1))
			return img, nil
		}
		if !retryable(err) || ctx.Err() != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		wait, ok := c.limiter.NextRetry(attempt)
		if !ok {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to fetch tile %s after %d attempts: %w", req.Tile.Param(), attempt+1, err)
		}
		c.metrics.TileRetried()
		log.Printf("[RenderClient] tile %s attempt %d failed (%v), retrying in %v", req.Tile.Param(), attempt+1, err, wait)
		if err := c.sleep(ctx, wait); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}
}

func (c *Client) fetchOnce(ctx context.Context, tileURL string) (image.Image, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, tileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("User-Agent", UserAgent)
	httpReq.Header.Set("Accept", "image/png, image/jpeg, image/webp")

	if c.verbose {
		log.Printf("[RenderClient] GET %s", tileURL)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	c.limiter.CheckResponse(c.host, resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("failed to read tile: %w", err)}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &decodeError{err: err}
	}
	if c.verbose {
		log.Printf("[RenderClient] decoded %s tile %dx%d", format, img.Bounds().Dx(), img.Bounds().Dy())
	}
	return img, nil
}

type transportError struct{ err error }

func (e *transportError) Error() string  { return "failed to fetch tile: " + e.err.Error() }
func (e *transportError) Unwrap() error  { return e.err }
func (e *transportError) Reason() string { return "transport" }

type decodeError struct{ err error }

func (e *decodeError) Error() string  { return "failed to decode tile: " + e.err.Error() }
func (e *decodeError) Unwrap() error  { return e.err }
func (e *decodeError) Reason() string { return "decode" }

func retryable(err error) bool {
	switch e := err.(type) {
	case *StatusError:
		return ratelimit.IsRateLimitStatus(e.Code)
	case *transportError:
		return true
	}
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
