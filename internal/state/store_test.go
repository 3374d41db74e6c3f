package state

import (
	"sync"
	"testing"
)

func TestNormalizeHour(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{6.5, 6.5},
		{24, 0},
		{30.25, 6.25},
		{-1, 23},
	}
	for _, c := range cases {
		if got := NormalizeHour(c.in); got != c.want {
			t.Fatalf("NormalizeHour(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestStoreNotifiesOnChangeOnly(t *testing.T) {
	st := NewStore("park", 6)

	var got []Snapshot
	st.Subscribe(func(s Snapshot) { got = append(got, s) })

	st.SetHour(7)
	st.SetHour(7)
	st.SetObservation("2441370")
	st.SetPathIndex(3)
	st.SetPathPlaying(true)
	st.SetSunrisePlaying(true)
	st.SetSunrisePlaying(true)

	if len(got) != 5 {
		t.Fatalf("notifications = %d, want 5", len(got))
	}
	last := got[len(got)-1]
	want := Snapshot{Variant: "park", Hour: 7, Observation: "2441370", PathIndex: 3, PathPlaying: true, SunrisePlaying: true}
	if last != want {
		t.Fatalf("last snapshot = %+v, want %+v", last, want)
	}
	if st.Snapshot() != want {
		t.Fatalf("Snapshot() = %+v", st.Snapshot())
	}
}

func TestStoreListenerMayReadStore(t *testing.T) {
	st := NewStore("city", 0)
	var hour float64
	st.Subscribe(func(Snapshot) { hour = st.Hour() })
	st.SetHour(25.5)
	if hour != 1.5 {
		t.Fatalf("hour seen by listener = %v, want 1.5", hour)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	st := NewStore("park", 0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				st.SetHour(float64(i*100 + j))
				_ = st.Hour()
				_ = st.SunrisePlaying()
			}
		}(i)
	}
	wg.Wait()
	if h := st.Hour(); h < 0 || h >= 24 {
		t.Fatalf("hour out of range: %v", h)
	}
}
