// Package mission walks a camera along a recorded flight path.
package mission

import (
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"sunrise-desktop/internal/geo"
	"sunrise-desktop/internal/smooth"
)

// Step is one move along a mission. Up is the radial direction at Current.
// HasCurrent/HasTarget are false when the slot lies outside the path.
type Step struct {
	Current    mgl64.Vec3
	Target     mgl64.Vec3
	Up         mgl64.Vec3
	HasCurrent bool
	HasTarget  bool
}

// Mission is an ordered, append-only list of camera-space samples with a cursor.
type Mission struct {
	mu      sync.Mutex
	name    string
	points  []mgl64.Vec3
	index   int
	playing bool
	window  int
}

// New creates a paused mission over points, cursor at 0.
func New(name string, points []mgl64.Vec3) *Mission {
	return &Mission{
		name:   name,
		points: append([]mgl64.Vec3(nil), points...),
		window: smooth.DefaultWindow,
	}
}

// FromGeo converts geographic waypoints before building the mission.
func FromGeo(name string, points []geo.Point) *Mission {
	converted := make([]mgl64.Vec3, len(points))
	for i, p := range points {
		converted[i] = geo.ToCartesian(p)
	}
	return New(name, converted)
}

func (m *Mission) Name() string { return m.name }

// SetWindow changes the smoothing half-width
func (m *Mission) SetWindow(window int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if window > 0 {
		m.window = window
	}
}

// AddPoint appends a sample to the end of the path
func (m *Mission) AddPoint(p mgl64.Vec3) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, p)
}

func (m *Mission) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points)
}

func (m *Mission) Index() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// Remaining is the number of samples from the cursor to the end, inclusive.
func (m *Mission) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.points) - m.index
}

// Point returns the raw sample at i
func (m *Mission) Point(i int) (mgl64.Vec3, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.points) {
		return mgl64.Vec3{}, false
	}
	return m.points[i], true
}

func (m *Mission) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = true
}

func (m *Mission) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playing = false
}

func (m *Mission) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Rewind returns the cursor to the first sample.
func (m *Mission) Rewind() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}

// Next advances the cursor one sample and returns it. ok is false at the end.
func (m *Mission) Next() (mgl64.Vec3, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index >= len(m.points)-1 {
		return mgl64.Vec3{}, false
	}
	m.index++
	return m.points[m.index], true
}

// Back moves the cursor one sample towards the start. ok is false at 0.
func (m *Mission) Back() (mgl64.Vec3, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index <= 0 || len(m.points) == 0 {
		return mgl64.Vec3{}, false
	}
	m.index--
	return m.points[m.index], true
}

// Forward returns the smoothed step at the cursor, looking one sample ahead,
// then advances the cursor by offset, stopping at the last sample.
// ok is false when paused or already at the end.
func (m *Mission) Forward(offset int) (Step, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	last := len(m.points) - 1
	if !m.playing || m.index >= last {
		return Step{}, false
	}

	step := m.smoothedLocked(m.index, m.index+1)
	m.index = min(m.index+offset, last)
	return step, true
}

// Backward mirrors Forward: it looks one sample behind and moves the cursor
// towards the start, stopping at 0.
func (m *Mission) Backward(offset int) (Step, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.playing || m.index <= 0 || len(m.points) == 0 {
		return Step{}, false
	}

	step := m.smoothedLocked(m.index, m.index-1)
	m.index = max(m.index-offset, 0)
	return step, true
}

// GotoIndex returns the raw step at i without smoothing. An out-of-range index
// is logged and reported through HasCurrent/HasTarget rather than failing.
// The cursor moves to i when i is on the path.
func (m *Mission) GotoIndex(i int) Step {
	m.mu.Lock()
	defer m.mu.Unlock()

	if i < 0 || i > len(m.points)-1 {
		log.Printf("[Mission] %s: index %d out of bounds (length %d)", m.name, i, len(m.points))
	}

	var step Step
	if i >= 0 && i < len(m.points) {
		step.Current = m.points[i]
		step.Up = m.points[i]
		step.HasCurrent = true
		m.index = i
	}
	if i+1 >= 0 && i+1 < len(m.points) {
		step.Target = m.points[i+1]
		step.HasTarget = true
	}
	return step
}

func (m *Mission) smoothedLocked(at, ahead int) Step {
	current := smooth.MeanPosition(m.points, at, m.window)
	target := smooth.MeanPosition(m.points, ahead, m.window)
	return Step{
		Current:    current,
		Target:     target,
		Up:         current,
		HasCurrent: true,
		HasTarget:  true,
	}
}
