package renderclient

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"sunrise-desktop/internal/observability"
	"sunrise-desktop/internal/ratelimit"
	"sunrise-desktop/internal/render"
)

func pngTile(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.RGBA{R: 1, G: 2, B: 3, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testRequest() render.RenderRequest {
	return render.RenderRequest{
		Tile:      render.TileDescriptor{Row: 1, Col: 0, Rows: 2, Cols: 2, PixelWidth: 8, PixelHeight: 4},
		Position:  [3]float64{1, 2, 3},
		Direction: [3]float64{0, 0, -1},
		Up:        [3]float64{0, 1, 0},
		Samples:   30,
		Hour:      7.5,
		Light:     render.LightSunSky,
	}
}

func noSleep(c *Client) {
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
}

func TestFetchTileDecodesPNG(t *testing.T) {
	body := pngTile(t, 8, 4)
	var gotPath, gotTile, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTile = r.URL.Query().Get("tile")
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	img, err := c.FetchTile(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("FetchTile: %v", err)
	}
	if img.Bounds().Dx() != 8 || img.Bounds().Dy() != 4 {
		t.Fatalf("tile size = %v", img.Bounds())
	}
	if gotPath != ViewPath {
		t.Fatalf("path = %q, want %q", gotPath, ViewPath)
	}
	if gotTile != "1of2,0of2" {
		t.Fatalf("tile = %q", gotTile)
	}
	if gotUA != UserAgent {
		t.Fatalf("user agent = %q", gotUA)
	}
}

func TestTileURLKeepsBasePath(t *testing.T) {
	c, err := NewClient("https://render.example.com/park")
	if err != nil {
		t.Fatal(err)
	}
	u := c.TileURL(testRequest())
	want := "https://render.example.com/park/api/v1/view/?"
	if len(u) < len(want) || u[:len(want)] != want {
		t.Fatalf("url = %q, want prefix %q", u, want)
	}
	if c.Host() != "render.example.com" {
		t.Fatalf("host = %q", c.Host())
	}
}

func TestNewClientRejectsBadURL(t *testing.T) {
	if _, err := NewClient("ftp://example.com"); err == nil {
		t.Fatal("ftp scheme accepted")
	}
	if _, err := NewClient("://"); err == nil {
		t.Fatal("unparseable URL accepted")
	}
}

func TestFetchTileStatusErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad camera", http.StatusBadRequest)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, noSleep)
	_, err := c.FetchTile(context.Background(), testRequest())
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest {
		t.Fatalf("err = %v, want StatusError 400", err)
	}
	if se.Reason() != "http_400" {
		t.Fatalf("reason = %q", se.Reason())
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchTileRetriesRateLimit(t *testing.T) {
	body := pngTile(t, 8, 4)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewRenderCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	limiter := ratelimit.NewHandler(nil)
	c, _ := NewClient(srv.URL, noSleep, WithRateLimiter(limiter), WithMetrics(metrics))

	if _, err := c.FetchTile(context.Background(), testRequest()); err != nil {
		t.Fatalf("FetchTile: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
	if got := testutil.ToFloat64(metrics.TileRetries); got != 2 {
		t.Fatalf("retries = %v, want 2", got)
	}
	if limiter.IsRateLimited(c.Host()) {
		t.Fatal("host still rate limited after success")
	}
}

func TestFetchTileRetryBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, noSleep)
	_, err := c.FetchTile(context.Background(), testRequest())
	var se *StatusError
	if !errors.As(err, &se) || se.Reason() != "rate_limited" {
		t.Fatalf("err = %v, want rate limited StatusError", err)
	}
	// One attempt plus the default three retries.
	if calls.Load() != 4 {
		t.Fatalf("calls = %d, want 4", calls.Load())
	}
	if !c.RateLimiter().IsRateLimited(c.Host()) {
		t.Fatal("host not recorded as rate limited")
	}
}

func TestFetchTileAutoRetryDisabled(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	limiter := ratelimit.NewHandler(nil)
	limiter.SetAutoRetry(false)
	c, _ := NewClient(srv.URL, noSleep, WithRateLimiter(limiter))
	if _, err := c.FetchTile(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestFetchTileDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, noSleep)
	_, err := c.FetchTile(context.Background(), testRequest())
	var reasoned render.ReasonedError
	if !errors.As(err, &reasoned) || reasoned.Reason() != "decode" {
		t.Fatalf("err = %v, want decode failure", err)
	}
}

func TestFetchTileCancelledDuringRetrySleep(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, _ := NewClient(srv.URL)
	c.tracer = tp.Tracer("test")
	c.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	if _, err := c.FetchTile(ctx, testRequest()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want canceled", err)
	}
	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("span status = %v, want error", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatal("span has no recorded error")
	}
}

func TestFetchTileHonoursContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, _ := NewClient(srv.URL, noSleep)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.FetchTile(ctx, testRequest())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}
