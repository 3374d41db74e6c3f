package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"sunrise-desktop/internal/geo"
)

const (
	// rotateRadiansPerPixel scales drag distance before the rotate speed applies.
	rotateRadiansPerPixel = 1e-4
	// zoomPerUnit scales wheel delta before the zoom speed applies.
	zoomPerUnit = 1e-3
)

// OrbitConfig bounds an OrbitControl. Distances are kilometres from Target.
type OrbitConfig struct {
	Target         mgl64.Vec3
	MinDistance    float64
	MaxDistance    float64
	MinRotateSpeed float64
	MaxRotateSpeed float64
	MinZoomSpeed   float64
	MaxZoomSpeed   float64
}

// DefaultOrbitConfig orbits the earth's centre from 10 km to 10000 km above the surface
func DefaultOrbitConfig() OrbitConfig {
	return OrbitConfig{
		MinDistance:    geo.EarthRadiusKm + 10,
		MaxDistance:    geo.EarthRadiusKm + 10000,
		MinRotateSpeed: 0.01,
		MaxRotateSpeed: 30,
		MinZoomSpeed:   0.4,
		MaxZoomSpeed:   1.5,
	}
}

// OrbitControl rotates and zooms the camera around a fixed target. It never pans.
// Rotate and zoom speeds scale linearly with distance so that input feels
// consistent from orbit down to terrain level.
type OrbitControl struct {
	cam     *Camera
	cfg     OrbitConfig
	enabled bool

	rotateSpeed float64
	zoomSpeed   float64

	pendingX    float64
	pendingY    float64
	pendingZoom float64
}

var _ Control = (*OrbitControl)(nil)

// NewOrbitControl attaches an orbit strategy to cam.
func NewOrbitControl(cam *Camera, cfg OrbitConfig) *OrbitControl {
	o := &OrbitControl{cam: cam, cfg: cfg, enabled: true}
	o.clampDistance()
	o.updateSpeeds()
	return o
}

func (o *OrbitControl) Kind() Kind { return KindOrbit }

// SetBounds changes the allowed distance band.
func (o *OrbitControl) SetBounds(minDistance, maxDistance float64) {
	o.cfg.MinDistance = minDistance
	o.cfg.MaxDistance = maxDistance
	o.clampDistance()
	o.updateSpeeds()
}

func (o *OrbitControl) Enable()       { o.enabled = true }
func (o *OrbitControl) Disable()      { o.enabled = false }
func (o *OrbitControl) Enabled() bool { return o.enabled }

// Reset places the camera at position looking at the orbit target.
func (o *OrbitControl) Reset(position, up mgl64.Vec3) {
	o.cam.Position = position
	o.cam.LookAt(o.cfg.Target, up)
	o.pendingX, o.pendingY, o.pendingZoom = 0, 0, 0
	o.clampDistance()
	o.updateSpeeds()
}

func (o *OrbitControl) RotateSpeed() float64 { return o.rotateSpeed }
func (o *OrbitControl) ZoomSpeed() float64   { return o.zoomSpeed }

// SetZoomSpeed overrides the zoom speed until the next Update recomputes it.
func (o *OrbitControl) SetZoomSpeed(speed float64) {
	o.zoomSpeed = speed
}

func (o *OrbitControl) Drag(dx, dy float64) {
	if !o.enabled {
		return
	}
	o.pendingX += dx
	o.pendingY += dy
}

// Zoom queues wheel input; positive delta moves away from the target.
func (o *OrbitControl) Zoom(delta float64) {
	if !o.enabled {
		return
	}
	o.pendingZoom += delta
}

// Update applies queued rotation and zoom, then recomputes speeds from the
// resulting distance.
func (o *OrbitControl) Update() {
	if o.enabled {
		o.applyRotation()
		o.applyZoom()
	}
	o.pendingX, o.pendingY, o.pendingZoom = 0, 0, 0
	o.clampDistance()
	o.updateSpeeds()
}

func (o *OrbitControl) Direction() mgl64.Vec3 {
	return o.cam.Forward
}

func (o *OrbitControl) State() State {
	return State{
		Position: o.cam.Position,
		Target:   o.cfg.Target,
		Forward:  o.cam.Forward,
		Up:       o.cam.Up,
	}
}

func (o *OrbitControl) applyRotation() {
	dist := math.Hypot(o.pendingX, o.pendingY)
	if dist == 0 {
		return
	}
	eye := o.cam.Position.Sub(o.cfg.Target)

	// Screen y grows downwards.
	move := o.cam.Right().Mul(o.pendingX).Add(o.cam.Up.Mul(-o.pendingY))
	axis := move.Cross(eye)
	angle := dist * o.rotateSpeed * rotateRadiansPerPixel

	eye = rotate(eye, axis, angle)
	up := rotate(o.cam.Up, axis, angle)
	o.cam.Position = o.cfg.Target.Add(eye)
	o.cam.LookAt(o.cfg.Target, up)
}

func (o *OrbitControl) applyZoom() {
	if o.pendingZoom == 0 {
		return
	}
	factor := 1 + o.pendingZoom*o.zoomSpeed*zoomPerUnit
	factor = math.Max(factor, 0.1)
	eye := o.cam.Position.Sub(o.cfg.Target)
	o.cam.Position = o.cfg.Target.Add(eye.Mul(factor))
}

func (o *OrbitControl) clampDistance() {
	eye := o.cam.Position.Sub(o.cfg.Target)
	dist := eye.Len()
	if dist == 0 || !finite(dist) {
		eye = o.cam.Forward.Mul(-1)
		dist = 1
	}
	clamped := mgl64.Clamp(dist, o.cfg.MinDistance, o.cfg.MaxDistance)
	if clamped != dist {
		o.cam.Position = o.cfg.Target.Add(eye.Mul(clamped / dist))
		o.cam.LookAt(o.cfg.Target, o.cam.Up)
	}
}

func (o *OrbitControl) updateSpeeds() {
	dist := o.cam.Position.Sub(o.cfg.Target).Len()
	o.rotateSpeed = mapLinear(dist, o.cfg.MinDistance, o.cfg.MaxDistance, o.cfg.MinRotateSpeed, o.cfg.MaxRotateSpeed)
	o.zoomSpeed = mapLinear(dist, o.cfg.MinDistance, o.cfg.MaxDistance, o.cfg.MinZoomSpeed, o.cfg.MaxZoomSpeed)
}
