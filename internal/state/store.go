// Package state is the application-wide store shared by the renderer, path
// playback and the desktop bindings.
package state

import (
	"math"
	"sync"
)

// Snapshot is a copy of the application state
type Snapshot struct {
	Variant        string  `json:"variant"`
	Hour           float64 `json:"hour"`
	Observation    string  `json:"observation"`
	PathIndex      int     `json:"pathIndex"`
	PathPlaying    bool    `json:"pathPlaying"`
	SunrisePlaying bool    `json:"sunrisePlaying"`
}

// Store guards a Snapshot. Subscribers are notified after every change,
// outside the lock, in registration order.
type Store struct {
	mu        sync.RWMutex
	s         Snapshot
	listeners []func(Snapshot)
}

// NewStore creates a store for variant starting at hour
func NewStore(variant string, hour float64) *Store {
	return &Store{s: Snapshot{Variant: variant, Hour: NormalizeHour(hour)}}
}

// NormalizeHour wraps h into [0, 24).
func NormalizeHour(h float64) float64 {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	return h
}

// Subscribe registers fn for change notifications
func (st *Store) Subscribe(fn func(Snapshot)) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.listeners = append(st.listeners, fn)
}

// Snapshot returns a copy of the current state
func (st *Store) Snapshot() Snapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s
}

func (st *Store) Hour() float64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Hour
}

// SetHour stores h wrapped into a single day.
func (st *Store) SetHour(h float64) {
	st.update(func(s *Snapshot) bool {
		h = NormalizeHour(h)
		if s.Hour == h {
			return false
		}
		s.Hour = h
		return true
	})
}

func (st *Store) Observation() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.Observation
}

// SetObservation selects a species observation to highlight; empty clears it.
func (st *Store) SetObservation(id string) {
	st.update(func(s *Snapshot) bool {
		if s.Observation == id {
			return false
		}
		s.Observation = id
		return true
	})
}

func (st *Store) SetPathIndex(i int) {
	st.update(func(s *Snapshot) bool {
		if s.PathIndex == i {
			return false
		}
		s.PathIndex = i
		return true
	})
}

func (st *Store) SetPathPlaying(playing bool) {
	st.update(func(s *Snapshot) bool {
		if s.PathPlaying == playing {
			return false
		}
		s.PathPlaying = playing
		return true
	})
}

func (st *Store) SunrisePlaying() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.s.SunrisePlaying
}

func (st *Store) SetSunrisePlaying(playing bool) {
	st.update(func(s *Snapshot) bool {
		if s.SunrisePlaying == playing {
			return false
		}
		s.SunrisePlaying = playing
		return true
	})
}

// update applies fn under the write lock and notifies listeners if it
// reports a change.
func (st *Store) update(fn func(*Snapshot) bool) {
	st.mu.Lock()
	changed := fn(&st.s)
	snap := st.s
	listeners := append([]func(Snapshot){}, st.listeners...)
	st.mu.Unlock()

	if !changed {
		return
	}
	for _, l := range listeners {
		l(snap)
	}
}
