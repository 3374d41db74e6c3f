package mission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

type recordingDriver struct {
	mu      sync.Mutex
	follows int
	settles int
	stepped chan struct{}
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{stepped: make(chan struct{}, 1024)}
}

func (d *recordingDriver) Follow(current, target, up mgl64.Vec3) {
	d.mu.Lock()
	d.follows++
	d.mu.Unlock()
	d.stepped <- struct{}{}
}

func (d *recordingDriver) Settle() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.settles++
}

func (d *recordingDriver) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.follows, d.settles
}

func TestPlayerRunsToEnd(t *testing.T) {
	m := New("test", line(6))
	m.Play()
	d := newRecordingDriver()
	p := NewPlayer(m, d, time.Millisecond)

	var indices []int
	p.OnStep(func(i int) { indices = append(indices, i) })

	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	follows, settles := d.counts()
	if follows != 5 || settles != 1 {
		t.Fatalf("follows = %d settles = %d, want 5 and 1", follows, settles)
	}
	if len(indices) != 5 || indices[4] != 5 {
		t.Fatalf("indices = %v", indices)
	}
	if m.Playing() {
		t.Fatal("mission still playing after reaching the end")
	}
}

func TestPlayerStopsWithinOneDelayOfPause(t *testing.T) {
	m := New("test", line(1000))
	m.Play()
	d := newRecordingDriver()
	p := NewPlayer(m, d, 20*time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	<-d.stepped
	<-d.stepped
	m.Pause()
	paused := time.Now()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("player did not stop after Pause")
	}
	if elapsed := time.Since(paused); elapsed > 200*time.Millisecond {
		t.Fatalf("player stopped %v after pause", elapsed)
	}

	follows, settles := d.counts()
	// At most one step can already be past the flag check when Pause lands.
	if follows > 3 {
		t.Fatalf("follows = %d after pausing at 2", follows)
	}
	if settles != 1 {
		t.Fatalf("settles = %d, want 1", settles)
	}
}

func TestPlayerHonoursContext(t *testing.T) {
	m := New("test", line(1000))
	m.Play()
	d := newRecordingDriver()
	p := NewPlayer(m, d, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	<-d.stepped
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("player ignored cancellation")
	}
	if m.Playing() {
		t.Fatal("mission still playing after cancellation")
	}
}

func TestPlayerPausedMissionDoesNothing(t *testing.T) {
	m := New("test", line(10))
	d := newRecordingDriver()
	if err := NewPlayer(m, d, 0).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if follows, _ := d.counts(); follows != 0 {
		t.Fatalf("follows = %d, want 0", follows)
	}
}
