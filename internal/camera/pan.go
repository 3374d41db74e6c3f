package camera

import "github.com/go-gl/mathgl/mgl64"

// DefaultPanSensitivity is radians of rotation per pixel of drag.
const DefaultPanSensitivity = 0.002

// PanControl is a first-person look-around strategy: drags pitch then yaw the
// camera in place. It has no zoom.
type PanControl struct {
	cam         *Camera
	sensitivity float64

	pendingX float64
	pendingY float64
}

var _ Control = (*PanControl)(nil)

// NewPanControl attaches a pan strategy to cam.
func NewPanControl(cam *Camera, sensitivity float64) *PanControl {
	if sensitivity <= 0 {
		sensitivity = DefaultPanSensitivity
	}
	return &PanControl{cam: cam, sensitivity: sensitivity}
}

func (p *PanControl) Kind() Kind { return KindPan }

// SetPose moves the camera to position looking at lookAt.
func (p *PanControl) SetPose(position, lookAt, up mgl64.Vec3) {
	p.cam.Position = position
	p.cam.LookAt(lookAt, up)
	p.pendingX, p.pendingY = 0, 0
}

func (p *PanControl) Drag(dx, dy float64) {
	p.pendingX += dx
	p.pendingY += dy
}

func (p *PanControl) Zoom(float64) {}

func (p *PanControl) SetZoomSpeed(float64) {}

// Update pitches by -dy·sensitivity around the camera's right axis, then yaws by
// dx·sensitivity around its (pitched) up axis.
func (p *PanControl) Update() {
	if p.pendingX == 0 && p.pendingY == 0 {
		return
	}
	pitch := -p.pendingY * p.sensitivity
	yaw := p.pendingX * p.sensitivity
	p.pendingX, p.pendingY = 0, 0

	right := p.cam.Right()
	forward := rotate(p.cam.Forward, right, pitch)
	up := rotate(p.cam.Up, right, pitch)

	forward = rotate(forward, up, yaw)
	p.cam.Forward, p.cam.Up = orthonormalize(forward, up)
}

func (p *PanControl) Direction() mgl64.Vec3 {
	return p.cam.Forward
}

func (p *PanControl) State() State {
	return State{
		Position: p.cam.Position,
		Target:   p.cam.Position.Add(p.cam.Forward),
		Forward:  p.cam.Forward,
		Up:       p.cam.Up,
	}
}
