// Package render schedules tile requests against the remote render service
// and composites the results into a double-buffered display surface.
package render

import (
	"context"
	"errors"
	"image"
	"log"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"sunrise-desktop/internal/camera"
	"sunrise-desktop/internal/geo"
	"sunrise-desktop/internal/observability"
	"sunrise-desktop/internal/state"
	"sunrise-desktop/internal/throttle"
)

// ErrClosed is returned by operations on a closed renderer.
var ErrClosed = errors.New("renderer closed")

// Config holds the display geometry and timing policy of a Renderer.
type Config struct {
	Width   int
	Height  int
	Rows    int
	Cols    int
	Samples int

	// CameraScale converts camera-space kilometres into service units.
	CameraScale float64

	CoalesceDelay time.Duration
	// MaxFrameAge bounds how long the display may go without a new frame
	// while requests keep superseding each other. Zero means four coalesce
	// delays; negative always drops superseded frames.
	MaxFrameAge   time.Duration
	DragThrottle  time.Duration
	WheelThrottle time.Duration
	SettleDelay   time.Duration

	SunriseStep     float64 // hours per animation step
	SunriseInterval time.Duration

	PanSensitivity float64
	Orbit          camera.OrbitConfig

	// Reference is the fixed point GotoPoint looks at.
	Reference geo.Point
	// Home is the orbit overview position used at startup and by GotoHome.
	Home geo.Point

	Verbose bool
}

// DefaultConfig returns the interactive defaults for a width×height display.
func DefaultConfig(width, height int) Config {
	return Config{
		Width:           width,
		Height:          height,
		Rows:            2,
		Cols:            2,
		Samples:         30,
		CameraScale:     1,
		CoalesceDelay:   30 * time.Millisecond,
		MaxFrameAge:     120 * time.Millisecond,
		DragThrottle:    200 * time.Millisecond,
		WheelThrottle:   20 * time.Millisecond,
		SettleDelay:     500 * time.Millisecond,
		SunriseStep:     0.1,
		SunriseInterval: 50 * time.Millisecond,
		PanSensitivity:  camera.DefaultPanSensitivity,
		Orbit:           camera.DefaultOrbitConfig(),
		Reference:       geo.Point{Latitude: 35.5628, Longitude: -83.4985, Altitude: 2025},
		Home:            geo.Point{Latitude: 35.5628, Longitude: -83.4985, Altitude: 3000e3},
	}
}

type tileResult struct {
	img image.Image
	err error
}

// Renderer owns the camera, the offscreen and visible surfaces and the render
// dispatch state. At most one frame is in flight; requests made meanwhile are
// coalesced and only the most recent is honoured.
type Renderer struct {
	cfg     Config
	fetcher Fetcher
	store   *state.Store
	metrics *observability.RenderCollector
	tracer  trace.Tracer

	high Resolution
	low  Resolution

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dragThrottle  *throttle.Throttle
	wheelThrottle *throttle.Throttle
	settle        *throttle.Debounce
	sunrise       sync.Mutex

	mu             sync.Mutex
	cam            *camera.Camera
	orbit          *camera.OrbitControl
	pan            *camera.PanControl
	active         camera.Control
	light          LightMode
	tiles          []TileDescriptor
	requested      uint64
	presented      uint64
	presentedAt    time.Time
	inFlight       bool
	pending        bool
	pendingQuality Quality
	deferTimer     *time.Timer
	closed         bool
	offscreen      *image.RGBA
	visible        *image.RGBA
	listeners      []func(Frame)
}

// New creates a renderer drawing tiles from fetcher. A nil store gets a fresh
// one; a nil metrics collector records nothing.
func New(cfg Config, fetcher Fetcher, store *state.Store, metrics *observability.RenderCollector) (*Renderer, error) {
	high, low, err := Tiers(cfg.Width, cfg.Height, cfg.Rows, cfg.Cols)
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("renderer requires a tile fetcher")
	}
	if store == nil {
		store = state.NewStore("", 12)
	}
	if cfg.CameraScale == 0 {
		cfg.CameraScale = 1
	}
	if cfg.SunriseStep <= 0 {
		cfg.SunriseStep = 0.1
	}
	if cfg.MaxFrameAge == 0 {
		cfg.MaxFrameAge = 4 * cfg.CoalesceDelay
	}

	bounds := image.Rect(0, 0, cfg.Width, cfg.Height)
	home := geo.ToCartesian(cfg.Home)
	cam := camera.NewCamera(home, cfg.Orbit.Target, mgl64.Vec3{0, 1, 0})
	orbit := camera.NewOrbitControl(cam, cfg.Orbit)

	ctx, cancel := context.WithCancel(context.Background())
	r := &Renderer{
		cfg:       cfg,
		fetcher:   fetcher,
		store:     store,
		metrics:   metrics,
		tracer:    otel.Tracer("sunrise-desktop/internal/render"),
		high:      high,
		low:       low,
		ctx:       ctx,
		cancel:    cancel,
		cam:       cam,
		orbit:     orbit,
		pan:       camera.NewPanControl(cam, cfg.PanSensitivity),
		active:    orbit,
		light:     LightSunSky,
		offscreen: image.NewRGBA(bounds),
		visible:   image.NewRGBA(bounds),
	}
	// The first frame's age is measured from construction.
	r.presentedAt = time.Now()
	r.dragThrottle = throttle.NewThrottle(cfg.DragThrottle, func() { r.RenderFrame(QualityLow) })
	r.wheelThrottle = throttle.NewThrottle(cfg.WheelThrottle, func() { r.RenderFrame(QualityLow) })
	r.settle = throttle.NewDebounce(cfg.SettleDelay, func() { r.RenderFrame(QualityHigh) })
	r.tiles = Partition(cfg.Rows, cfg.Cols, high)

	log.Printf("[Render] %dx%d display, %dx%d grid, high tier %dx%d, low tier %dx%d",
		cfg.Width, cfg.Height, cfg.Rows, cfg.Cols, high.Width, high.Height, low.Width, low.Height)
	return r, nil
}

func (r *Renderer) HighRes() Resolution { return r.high }
func (r *Renderer) LowRes() Resolution  { return r.low }

// Store returns the application state the renderer reads hour and
// observation from.
func (r *Renderer) Store() *state.Store { return r.store }

// Tiles returns the partition used by the most recent dispatch.
func (r *Renderer) Tiles() []TileDescriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TileDescriptor(nil), r.tiles...)
}

// ActiveControl reports which camera strategy currently receives input.
func (r *Renderer) ActiveControl() camera.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.Kind()
}

// CameraState snapshots the active control's pose.
func (r *Renderer) CameraState() camera.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active.State()
}

func (r *Renderer) Light() LightMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.light
}

func (r *Renderer) SetLight(light LightMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.light = light
}

// OnFrame registers fn to run after every frame reaches the visible surface.
func (r *Renderer) OnFrame(fn func(Frame)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Snapshot copies the visible surface and returns it with its frame sequence.
func (r *Renderer) Snapshot() (*image.RGBA, uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := image.NewRGBA(r.visible.Bounds())
	copy(out.Pix, r.visible.Pix)
	return out, r.presented
}

// RequestTile fetches a single tile for the current camera, hour and light.
// The descriptor's pixel size is used as given.
func (r *Renderer) RequestTile(ctx context.Context, tile TileDescriptor) (image.Image, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	req := r.requestLocked(tile)
	r.mu.Unlock()

	return r.fetcher.FetchTile(ctx, req)
}

// RenderFrame asks for a new frame and returns its sequence number. It does
// not block. While a frame is in flight the request is deferred by the
// coalescing delay; a frame that completes after a newer request was made is
// dropped instead of presented.
func (r *Renderer) RenderFrame(q Quality) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.requested
	}

	r.requested++
	seq := r.requested
	if r.inFlight {
		r.pending = true
		r.pendingQuality = q
		r.metrics.RenderCoalesced()
		r.armDeferLocked()
		return seq
	}
	r.dispatchLocked(seq, q)
	return seq
}

func (r *Renderer) armDeferLocked() {
	if r.deferTimer != nil {
		r.deferTimer.Stop()
	}
	r.deferTimer = time.AfterFunc(r.cfg.CoalesceDelay, r.flushPending)
}

func (r *Renderer) flushPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || !r.pending {
		return
	}
	if r.inFlight {
		r.armDeferLocked()
		return
	}
	r.pending = false
	r.dispatchLocked(r.requested, r.pendingQuality)
}

// dispatchLocked snapshots camera and time state into one request per tile
// and starts the fetch.
func (r *Renderer) dispatchLocked(seq uint64, q Quality) {
	r.inFlight = true
	r.active.Update()

	res, rows, cols := r.high, r.cfg.Rows, r.cfg.Cols
	if q == QualityLow {
		res, rows, cols = r.low, 1, 1
	}
	r.tiles = Partition(rows, cols, res)
	reqs := lo.Map(r.tiles, func(t TileDescriptor, _ int) RenderRequest {
		return r.requestLocked(t)
	})

	r.wg.Add(1)
	go r.render(seq, q, reqs)
}

func (r *Renderer) requestLocked(t TileDescriptor) RenderRequest {
	st := r.active.State()
	return RenderRequest{
		Tile:        t,
		Position:    st.Position.Mul(-r.cfg.CameraScale),
		Direction:   r.active.Direction().Mul(-1),
		Up:          st.Up,
		Samples:     r.cfg.Samples,
		Hour:        r.store.Hour(),
		Light:       r.light,
		Observation: r.store.Observation(),
	}
}

func (r *Renderer) render(seq uint64, q Quality, reqs []RenderRequest) {
	defer r.wg.Done()

	ctx, span := r.tracer.Start(r.ctx, "render.frame", trace.WithAttributes(
		attribute.Int64("render.seq", int64(seq)),
		attribute.String("render.quality", q.String()),
		attribute.Int("render.tiles", len(reqs)),
	))
	defer span.End()

	start := time.Now()
	results := r.fetchAll(ctx, q, reqs)
	failed := r.composite(q, reqs, results)
	elapsed := time.Since(start)
	span.SetAttributes(attribute.Int("render.failed", failed))
	if failed == len(reqs) {
		span.SetStatus(codes.Error, "every tile failed")
	}

	r.mu.Lock()
	r.inFlight = false
	if r.closed {
		r.mu.Unlock()
		return
	}
	if seq != r.requested && !r.staleLocked() {
		r.mu.Unlock()
		r.metrics.FrameSuperseded()
		if r.cfg.Verbose {
			log.Printf("[Render] frame %d superseded", seq)
		}
		return
	}
	draw.Draw(r.visible, r.visible.Bounds(), r.offscreen, image.Point{}, draw.Src)
	r.presented = seq
	r.presentedAt = time.Now()
	listeners := append([]func(Frame){}, r.listeners...)
	r.mu.Unlock()

	r.metrics.FramePresented(q.String(), elapsed)
	frame := Frame{Seq: seq, Quality: q.String(), Tiles: len(reqs), Failed: failed, Duration: elapsed}
	for _, l := range listeners {
		l(frame)
	}
}

// staleLocked reports whether the visible surface is older than MaxFrameAge.
// A superseded frame is still presented then, so fixed-cadence animations whose
// step is shorter than the tile latency keep updating the display.
func (r *Renderer) staleLocked() bool {
	return r.cfg.MaxFrameAge > 0 && time.Since(r.presentedAt) >= r.cfg.MaxFrameAge
}

// fetchAll issues every tile request before waiting on any. Failures are kept
// per tile and never cancel siblings.
func (r *Renderer) fetchAll(ctx context.Context, q Quality, reqs []RenderRequest) []tileResult {
	results := make([]tileResult, len(reqs))

	var g errgroup.Group
	for i, req := range reqs {
		r.metrics.TileRequested(q.String())
		g.Go(func() error {
			start := time.Now()
			img, err := r.fetcher.FetchTile(ctx, req)
			r.metrics.TileSettled(q.String(), time.Since(start))
			if err == nil && img == nil {
				err = errors.New("empty tile image")
			}
			results[i] = tileResult{img: img, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// composite draws every settled tile into its cell of the offscreen surface,
// scaling when the tile and cell sizes differ. Failed cells are cleared.
func (r *Renderer) composite(q Quality, reqs []RenderRequest, results []tileResult) int {
	for i, req := range reqs {
		cell := cellRect(req.Tile, r.cfg.Width, r.cfg.Height)
		res := results[i]
		if res.err != nil {
			draw.Draw(r.offscreen, cell, image.Transparent, image.Point{}, draw.Src)
			r.metrics.TileFailed(q.String(), failureReason(res.err))
			log.Printf("[Render] tile %s failed: %v", req.Tile.Param(), res.err)
			continue
		}

		b := res.img.Bounds()
		if b.Dx() == cell.Dx() && b.Dy() == cell.Dy() {
			draw.Draw(r.offscreen, cell, res.img, b.Min, draw.Src)
		} else {
			draw.ApproxBiLinear.Scale(r.offscreen, cell, res.img, b, draw.Src, nil)
		}
	}
	return lo.CountBy(results, func(res tileResult) bool { return res.err != nil })
}

// ReasonedError lets fetch errors name their failure class for metrics.
type ReasonedError interface {
	error
	Reason() string
}

func failureReason(err error) string {
	var re ReasonedError
	switch {
	case errors.As(err, &re):
		return re.Reason()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// Close cancels in-flight fetches, stops pending timers and input bindings,
// and waits for the in-flight frame to settle. Close is idempotent.
func (r *Renderer) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.deferTimer != nil {
		r.deferTimer.Stop()
	}
	r.mu.Unlock()

	r.dragThrottle.Dispose()
	r.wheelThrottle.Dispose()
	r.settle.Dispose()
	r.store.SetSunrisePlaying(false)
	r.cancel()
	r.wg.Wait()
}
