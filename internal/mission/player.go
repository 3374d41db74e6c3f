package mission

import (
	"context"
	"log"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultFrameDelay is the pause between playback steps.
const DefaultFrameDelay = 50 * time.Millisecond

// Driver receives the camera moves produced by playback.
type Driver interface {
	// Follow places the camera at current looking at target and requests a
	// draft frame.
	Follow(current, target, up mgl64.Vec3)
	// Settle requests a final-quality frame once playback stops.
	Settle()
}

// Player runs a mission against a Driver until the mission is paused, reaches
// its end, or the context is cancelled.
type Player struct {
	mission *Mission
	driver  Driver
	delay   time.Duration
	offset  int
	onStep  func(index int)
}

// NewPlayer creates a player that advances one sample per step.
func NewPlayer(m *Mission, driver Driver, delay time.Duration) *Player {
	if delay <= 0 {
		delay = DefaultFrameDelay
	}
	return &Player{mission: m, driver: driver, delay: delay, offset: 1}
}

// SetOffset sets how many samples each step skips
func (p *Player) SetOffset(offset int) {
	if offset > 0 {
		p.offset = offset
	}
}

// OnStep registers a callback receiving the cursor after every step.
func (p *Player) OnStep(fn func(index int)) {
	p.onStep = fn
}

func (p *Player) Mission() *Mission { return p.mission }

// Run blocks until playback stops. The playing flag is checked before every
// step, so Pause takes effect within one frame delay. The mission is paused
// and the driver settled on every exit path.
func (p *Player) Run(ctx context.Context) error {
	defer p.driver.Settle()
	defer p.mission.Pause()

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		if !p.mission.Playing() {
			return nil
		}

		step, ok := p.mission.Forward(p.offset)
		if !ok {
			log.Printf("[Mission] %s: reached end of path at index %d", p.mission.Name(), p.mission.Index())
			return nil
		}
		p.driver.Follow(step.Current, step.Target, step.Up)
		if p.onStep != nil {
			p.onStep(p.mission.Index())
		}

		timer.Reset(p.delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}
