package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRenderCollectorRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRenderCollector(reg)
	if err != nil {
		t.Fatalf("NewRenderCollector: %v", err)
	}

	c.TileRequested("high")
	c.TileRequested("high")
	c.TileFailed("high", "status")
	c.TileRetried()
	c.TileSettled("high", 30*time.Millisecond)
	c.FramePresented("low", 120*time.Millisecond)
	c.FrameSuperseded()
	c.RenderCoalesced()

	if got := testutil.ToFloat64(c.TileRequests.WithLabelValues("high")); got != 2 {
		t.Fatalf("render_tile_requests_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.TileFailures.WithLabelValues("high", "status")); got != 1 {
		t.Fatalf("render_tile_failures_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.FramesPresented.WithLabelValues("low")); got != 1 {
		t.Fatalf("render_frames_presented_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.FramesSuperseded); got != 1 {
		t.Fatalf("render_frames_superseded_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.RendersCoalesced); got != 1 {
		t.Fatalf("render_requests_coalesced_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.TileRetries); got != 1 {
		t.Fatalf("render_tile_retries_total = %v, want 1", got)
	}
}

func TestRenderCollectorReRegistersIdempotently(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRenderCollector(reg)
	if err != nil {
		t.Fatalf("first NewRenderCollector: %v", err)
	}
	second, err := NewRenderCollector(reg)
	if err != nil {
		t.Fatalf("second NewRenderCollector: %v", err)
	}
	first.FrameSuperseded()
	if got := testutil.ToFloat64(second.FramesSuperseded); got != 1 {
		t.Fatalf("collectors do not share counters: %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *RenderCollector
	c.TileRequested("low")
	c.TileFailed("low", "decode")
	c.TileRetried()
	c.TileSettled("low", time.Millisecond)
	c.FramePresented("low", time.Millisecond)
	c.FrameSuperseded()
	c.RenderCoalesced()
	if c.Handler() == nil {
		t.Fatal("nil collector should still expose a handler")
	}
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewRenderCollector(reg)
	if err != nil {
		t.Fatalf("NewRenderCollector: %v", err)
	}
	c.FramePresented("high", time.Second)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `render_frames_presented_total{quality="high"} 1`) {
		t.Fatalf("metrics output missing frame counter:\n%s", body)
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), TracingConfig{Enabled: false})
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestTracingConfigFromEnv(t *testing.T) {
	t.Setenv("SUNRISE_TRACING_ENABLED", "TRUE")
	t.Setenv("SUNRISE_TRACING_SAMPLE_RATIO", "0.25")
	t.Setenv("SUNRISE_TRACING_SERVICE_NAME", "")

	cfg := TracingConfigFromEnv()
	if !cfg.Enabled || cfg.SampleRatio != 0.25 || cfg.ServiceName != "sunrise-desktop" {
		t.Fatalf("cfg = %+v", cfg)
	}

	t.Setenv("SUNRISE_TRACING_SAMPLE_RATIO", "7")
	if cfg := TracingConfigFromEnv(); cfg.SampleRatio != 1 {
		t.Fatalf("out-of-range ratio accepted: %v", cfg.SampleRatio)
	}
}
