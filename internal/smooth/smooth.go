// Package smooth averages ordered samples over a sliding window.
package smooth

import (
	"github.com/go-gl/mathgl/mgl64"

	"sunrise-desktop/internal/geo"
)

// DefaultWindow is the half-width used by path traversal.
const DefaultWindow = 9

// bounds clamps [index-window, index+window) to [0, n).
func bounds(n, index, window int) (int, int) {
	begin := max(0, index-window)
	end := min(n, index+window)
	return begin, end
}

// MeanPosition returns the component-wise mean of seq over the clamped window
// around index. An empty window yields the zero vector.
func MeanPosition(seq []mgl64.Vec3, index, window int) mgl64.Vec3 {
	begin, end := bounds(len(seq), index, window)
	if end <= begin {
		return mgl64.Vec3{}
	}

	var sum mgl64.Vec3
	for _, v := range seq[begin:end] {
		sum = sum.Add(v)
	}
	return sum.Mul(1 / float64(end-begin))
}

// MeanPoint is MeanPosition over geographic points.
func MeanPoint(seq []geo.Point, index, window int) geo.Point {
	begin, end := bounds(len(seq), index, window)
	if end <= begin {
		return geo.Point{}
	}

	var lat, lng, alt float64
	for _, p := range seq[begin:end] {
		lat += p.Latitude
		lng += p.Longitude
		alt += p.Altitude
	}
	n := float64(end - begin)
	return geo.Point{Latitude: lat / n, Longitude: lng / n, Altitude: alt / n}
}
