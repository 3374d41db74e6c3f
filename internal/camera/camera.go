// Package camera holds the virtual camera and the input strategies that move it.
//
// Controls are not safe for concurrent use; the renderer serialises access.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Kind names a control strategy
type Kind string

const (
	KindOrbit Kind = "orbit"
	KindPan   Kind = "pan"
)

// Camera is the shared pose every control mutates. Forward and Up are kept
// orthonormal.
type Camera struct {
	Position mgl64.Vec3
	Forward  mgl64.Vec3
	Up       mgl64.Vec3
}

// NewCamera returns a camera at position looking at lookAt.
func NewCamera(position, lookAt, up mgl64.Vec3) *Camera {
	c := &Camera{Position: position}
	c.LookAt(lookAt, up)
	return c
}

// LookAt points the camera at target keeping up as close to the hint as possible.
func (c *Camera) LookAt(target, up mgl64.Vec3) {
	c.Forward, c.Up = orthonormalize(target.Sub(c.Position), up)
}

// Right is the camera's local +x axis
func (c *Camera) Right() mgl64.Vec3 {
	return c.Forward.Cross(c.Up).Normalize()
}

// State is a snapshot of the camera pose plus the point it is looking at.
type State struct {
	Position mgl64.Vec3
	Target   mgl64.Vec3
	Forward  mgl64.Vec3
	Up       mgl64.Vec3
}

// Distance from the camera to its target
func (s State) Distance() float64 {
	return s.Position.Sub(s.Target).Len()
}

// Control is the capability set the renderer needs from a camera strategy.
type Control interface {
	Kind() Kind
	// Update applies pending input to the camera.
	Update()
	// Direction is the world-space unit look vector.
	Direction() mgl64.Vec3
	SetZoomSpeed(speed float64)
	State() State
	// Drag and Zoom queue pointer input until the next Update.
	Drag(dx, dy float64)
	Zoom(delta float64)
}

// orthonormalize returns unit forward and up vectors with up perpendicular to
// forward. A degenerate up hint is replaced by the closest world axis.
func orthonormalize(forward, up mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	f := forward
	if f.Len() < 1e-12 {
		f = mgl64.Vec3{0, 0, -1}
	}
	f = f.Normalize()

	right := f.Cross(up)
	if right.Len() < 1e-9 {
		for _, axis := range []mgl64.Vec3{{0, 1, 0}, {0, 0, 1}, {1, 0, 0}} {
			if right = f.Cross(axis); right.Len() > 1e-6 {
				break
			}
		}
	}
	u := right.Normalize().Cross(f).Normalize()
	return f, u
}

// rotate turns v around axis by angle radians.
func rotate(v, axis mgl64.Vec3, angle float64) mgl64.Vec3 {
	if angle == 0 || axis.Len() < 1e-12 {
		return v
	}
	return mgl64.QuatRotate(angle, axis.Normalize()).Rotate(v)
}

// mapLinear maps x from [a1, a2] onto [b1, b2].
func mapLinear(x, a1, a2, b1, b2 float64) float64 {
	if a2 == a1 {
		return b1
	}
	return b1 + (x-a1)*(b2-b1)/(a2-a1)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
