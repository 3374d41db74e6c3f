package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"sunrise-desktop/internal/config"
	"sunrise-desktop/internal/geo"
	"sunrise-desktop/internal/mission"
)

// ===================
// Path Playback
// ===================

// loadPath replaces the flight path. An empty file selects the bundled park path.
func (a *App) loadPath(file string) error {
	var (
		points []geo.Point
		err    error
		name   = "park"
	)
	if file == "" {
		points, err = mission.DefaultParkPath()
	} else {
		points, err = mission.LoadFile(file, pathDefaultAltitude)
		name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	if err != nil {
		return err
	}
	if len(points) < 2 {
		return fmt.Errorf("path %q needs at least two points, got %d", name, len(points))
	}

	dense := mission.Densify(points, mission.DefaultDensifySteps)
	m := mission.FromGeo(name, dense)
	a.mu.Lock()
	delay := a.settings.PathFrameDelay()
	a.mu.Unlock()
	player := mission.NewPlayer(m, a.renderer, delay)
	player.OnStep(a.store.SetPathIndex)

	a.stopPlayer()

	a.mu.Lock()
	a.path = points
	a.player = player
	a.mu.Unlock()

	a.store.SetPathIndex(0)
	log.Printf("[Path] loaded %s: %d waypoints, %d samples, %.2f km",
		name, len(points), m.Len(), geo.PathLengthKm(points))
	return nil
}

// LoadPath loads a GeoJSON, GPX or waypoint JSON file and remembers it in settings
func (a *App) LoadPath(file string) (PathInfo, error) {
	if err := a.loadPath(file); err != nil {
		return PathInfo{}, err
	}

	a.mu.Lock()
	a.settings.PathFile = file
	err := config.SaveSettings(a.settings)
	a.mu.Unlock()
	if err != nil {
		log.Printf("Failed to save settings: %v", err)
	}

	a.TrackEvent("path_loaded", map[string]interface{}{"ext": filepath.Ext(file)})
	return a.GetPath(), nil
}

// GetPath returns the loaded waypoints
func (a *App) GetPath() PathInfo {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.player == nil {
		return PathInfo{}
	}
	m := a.player.Mission()
	return PathInfo{
		Name:     m.Name(),
		Points:   append([]geo.Point(nil), a.path...),
		LengthKm: geo.PathLengthKm(a.path),
		Index:    m.Index(),
	}
}

// PlayPath starts playback from the current cursor
func (a *App) PlayPath() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.player == nil {
		return errors.New("no path loaded")
	}
	if a.playerCancel != nil {
		return nil
	}

	m := a.player.Mission()
	if m.Remaining() <= 1 {
		m.Rewind()
	}
	m.Play()
	a.store.SetPathPlaying(true)

	base := a.ctx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	done := make(chan struct{})
	a.playerCancel = cancel
	a.playerDone = done

	go func(player *mission.Player) {
		defer close(done)
		if err := player.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("[Path] playback stopped: %v", err)
		}
		a.store.SetPathPlaying(false)

		a.mu.Lock()
		if a.playerDone == done {
			a.playerCancel = nil
			a.playerDone = nil
		}
		a.mu.Unlock()
	}(a.player)
	return nil
}

// PausePath pauses playback; the next frame settles at full quality
func (a *App) PausePath() {
	a.mu.Lock()
	player := a.player
	a.mu.Unlock()
	if player != nil {
		player.Mission().Pause()
	}
}

func (a *App) stopPlayer() {
	a.mu.Lock()
	cancel, done := a.playerCancel, a.playerDone
	a.playerCancel, a.playerDone = nil, nil
	a.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// GotoPathIndex jumps to sample i of the densified path
func (a *App) GotoPathIndex(i int) (bool, error) {
	a.mu.Lock()
	player := a.player
	a.mu.Unlock()
	if player == nil {
		return false, errors.New("no path loaded")
	}

	m := player.Mission()
	step := m.GotoIndex(i)
	if !step.HasCurrent {
		return false, nil
	}
	target := step.Target
	if !step.HasTarget {
		// The last sample keeps looking along the final segment.
		prev, ok := m.Point(i - 1)
		if !ok {
			return false, nil
		}
		target = step.Current.Add(step.Current.Sub(prev))
	}
	a.renderer.Follow(step.Current, target, step.Up)
	a.renderer.Settle()
	a.store.SetPathIndex(i)
	return true, nil
}
