package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RenderCollector bundles Prometheus metrics for the tile renderer and the
// render-service client. A nil *RenderCollector is valid and records nothing.
type RenderCollector struct {
	gatherer prometheus.Gatherer

	TileRequests  *prometheus.CounterVec
	TileFailures  *prometheus.CounterVec
	TileRetries   prometheus.Counter
	TileDurations *prometheus.HistogramVec

	FramesPresented  *prometheus.CounterVec
	FramesSuperseded prometheus.Counter
	FrameDurations   *prometheus.HistogramVec
	RendersCoalesced prometheus.Counter
}

// NewRenderCollector registers renderer metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewRenderCollector(reg prometheus.Registerer) (*RenderCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tileRequests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "render_tile_requests_total",
		Help: "Tile requests issued to the render service, labeled by quality.",
	}, []string{"quality"}), "render_tile_requests_total")
	if err != nil {
		return nil, err
	}

	tileFailures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "render_tile_failures_total",
		Help: "Tile requests that settled without an image, labeled by quality and reason.",
	}, []string{"quality", "reason"}), "render_tile_failures_total")
	if err != nil {
		return nil, err
	}

	tileRetries, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_tile_retries_total",
		Help: "Tile requests retried after a rate-limit or transport error.",
	}), "render_tile_retries_total")
	if err != nil {
		return nil, err
	}

	tileDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "render_tile_duration_seconds",
		Help:    "Latency of a single tile request, including retries.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"quality"}), "render_tile_duration_seconds")
	if err != nil {
		return nil, err
	}

	framesPresented, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "render_frames_presented_total",
		Help: "Frames blitted to the visible surface, labeled by quality.",
	}, []string{"quality"}), "render_frames_presented_total")
	if err != nil {
		return nil, err
	}

	framesSuperseded, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_frames_superseded_total",
		Help: "Completed frames dropped because a newer render was requested.",
	}), "render_frames_superseded_total")
	if err != nil {
		return nil, err
	}

	frameDurations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "render_frame_duration_seconds",
		Help:    "Time from dispatch until every tile of a frame settled.",
		Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"quality"}), "render_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	coalesced, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "render_requests_coalesced_total",
		Help: "Render requests deferred because a render was already in flight.",
	}), "render_requests_coalesced_total")
	if err != nil {
		return nil, err
	}

	return &RenderCollector{
		gatherer:         gatherer,
		TileRequests:     tileRequests,
		TileFailures:     tileFailures,
		TileRetries:      tileRetries,
		TileDurations:    tileDurations,
		FramesPresented:  framesPresented,
		FramesSuperseded: framesSuperseded,
		FrameDurations:   frameDurations,
		RendersCoalesced: coalesced,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *RenderCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *RenderCollector) TileRequested(quality string) {
	if c == nil {
		return
	}
	c.TileRequests.WithLabelValues(quality).Inc()
}

func (c *RenderCollector) TileSettled(quality string, d time.Duration) {
	if c == nil {
		return
	}
	c.TileDurations.WithLabelValues(quality).Observe(d.Seconds())
}

func (c *RenderCollector) TileFailed(quality, reason string) {
	if c == nil {
		return
	}
	c.TileFailures.WithLabelValues(quality, reason).Inc()
}

func (c *RenderCollector) TileRetried() {
	if c == nil {
		return
	}
	c.TileRetries.Inc()
}

func (c *RenderCollector) FramePresented(quality string, d time.Duration) {
	if c == nil {
		return
	}
	c.FramesPresented.WithLabelValues(quality).Inc()
	c.FrameDurations.WithLabelValues(quality).Observe(d.Seconds())
}

func (c *RenderCollector) FrameSuperseded() {
	if c == nil {
		return
	}
	c.FramesSuperseded.Inc()
}

func (c *RenderCollector) RenderCoalesced() {
	if c == nil {
		return
	}
	c.RendersCoalesced.Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}
