package render

import (
	"github.com/go-gl/mathgl/mgl64"

	"sunrise-desktop/internal/camera"
	"sunrise-desktop/internal/geo"
)

// DragStart begins a pointer drag with a draft frame.
func (r *Renderer) DragStart() {
	r.RenderFrame(QualityLow)
}

// DragMove feeds pointer movement to the active control. Draft frames are
// throttled; movement between frames accumulates.
func (r *Renderer) DragMove(dx, dy float64) {
	r.mu.Lock()
	r.active.Drag(dx, dy)
	r.mu.Unlock()

	r.dragThrottle.Call()
}

// DragEnd finishes a drag with a full-quality frame.
func (r *Renderer) DragEnd() {
	r.RenderFrame(QualityHigh)
}

// Wheel zooms the active control. Draft frames are throttled and a
// full-quality frame follows once the wheel has been idle for the settle delay.
func (r *Renderer) Wheel(delta float64) {
	r.mu.Lock()
	r.active.Zoom(delta)
	r.mu.Unlock()

	r.wheelThrottle.Call()
	r.settle.Call()
}

// GotoPoint switches to first-person control, places the camera at p facing
// the reference point with point-of-interest lighting, and renders.
func (r *Renderer) GotoPoint(p geo.Point) uint64 {
	return r.GotoPointTowards(p, r.cfg.Reference)
}

// GotoPointTowards is GotoPoint with an explicit look-at point.
func (r *Renderer) GotoPointTowards(p, target geo.Point) uint64 {
	position := geo.ToCartesian(p)

	r.mu.Lock()
	r.pan.SetPose(position, geo.ToCartesian(target), position)
	r.active = r.pan
	r.light = LightPointOfInterest
	r.mu.Unlock()

	return r.RenderFrame(QualityHigh)
}

// Follow places the camera for one step of path playback and requests a
// draft frame. Up is a radial hint and need not be normalised.
func (r *Renderer) Follow(current, target, up mgl64.Vec3) {
	r.mu.Lock()
	r.pan.SetPose(current, target, up)
	r.active = r.pan
	r.mu.Unlock()

	r.RenderFrame(QualityLow)
}

// Settle requests a full-quality frame for the current pose.
func (r *Renderer) Settle() {
	r.RenderFrame(QualityHigh)
}

// GotoHome returns to the orbit overview with sky lighting.
func (r *Renderer) GotoHome() uint64 {
	r.mu.Lock()
	r.orbit.Reset(geo.ToCartesian(r.cfg.Home), mgl64.Vec3{0, 1, 0})
	r.active = r.orbit
	r.light = LightSunSky
	r.mu.Unlock()

	return r.RenderFrame(QualityHigh)
}

// UseControl swaps the active camera strategy without moving the camera.
func (r *Renderer) UseControl(kind camera.Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch kind {
	case camera.KindPan:
		r.active = r.pan
	case camera.KindOrbit:
		// The orbit keeps its target; re-aim at it from wherever the pan left off.
		st := r.active.State()
		r.orbit.Reset(st.Position, st.Up)
		r.active = r.orbit
	}
}

// SetZoomSpeed forwards to the active control.
func (r *Renderer) SetZoomSpeed(speed float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active.SetZoomSpeed(speed)
}
