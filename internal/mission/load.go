package mission

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/tkrajina/gpxgo/gpx"

	"sunrise-desktop/internal/geo"
)

// DefaultDensifySteps is the number of interpolated samples inserted per
// waypoint segment.
const DefaultDensifySteps = 20

//go:embed paths/*.json
var pathFiles embed.FS

// LoadWaypoints parses a JSON array of {"lat", "lng", "alt"} objects.
func LoadWaypoints(data []byte) ([]geo.Point, error) {
	var points []geo.Point
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("failed to parse waypoints: %w", err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("waypoint list is empty")
	}
	return points, nil
}

// LoadGeoJSON extracts waypoints from a FeatureCollection. LineString and
// MultiLineString features contribute their vertices, Point features one
// waypoint each. Altitude comes from the feature's "altitude" property (metres),
// defaulting to defaultAlt.
func LoadGeoJSON(data []byte, defaultAlt float64) ([]geo.Point, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse geojson: %w", err)
	}

	var points []geo.Point
	for _, f := range fc.Features {
		alt := f.Properties.MustFloat64("altitude", defaultAlt)
		switch g := f.Geometry.(type) {
		case orb.Point:
			points = append(points, fromOrb(g, alt))
		case orb.LineString:
			for _, p := range g {
				points = append(points, fromOrb(p, alt))
			}
		case orb.MultiLineString:
			for _, ls := range g {
				for _, p := range ls {
					points = append(points, fromOrb(p, alt))
				}
			}
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("geojson contains no point or line features")
	}
	return points, nil
}

func fromOrb(p orb.Point, alt float64) geo.Point {
	return geo.Point{Latitude: p.Lat(), Longitude: p.Lon(), Altitude: alt}
}

// LoadGPX extracts track points, falling back to routes and then waypoints.
// Points without elevation use defaultAlt.
func LoadGPX(data []byte, defaultAlt float64) ([]geo.Point, error) {
	g, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gpx: %w", err)
	}

	var points []geo.Point
	for _, track := range g.Tracks {
		for _, seg := range track.Segments {
			for _, p := range seg.Points {
				points = append(points, fromGPX(p, defaultAlt))
			}
		}
	}
	if len(points) == 0 {
		for _, route := range g.Routes {
			for _, p := range route.Points {
				points = append(points, fromGPX(p, defaultAlt))
			}
		}
	}
	if len(points) == 0 {
		for _, p := range g.Waypoints {
			points = append(points, fromGPX(p, defaultAlt))
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("gpx contains no points")
	}
	return points, nil
}

func fromGPX(p gpx.GPXPoint, defaultAlt float64) geo.Point {
	alt := defaultAlt
	if p.Elevation.NotNull() {
		alt = p.Elevation.Value()
	}
	return geo.Point{Latitude: p.Latitude, Longitude: p.Longitude, Altitude: alt}
}

// LoadFile picks a loader from the file extension.
func LoadFile(path string, defaultAlt float64) ([]geo.Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read path file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpx":
		return LoadGPX(data, defaultAlt)
	case ".geojson":
		return LoadGeoJSON(data, defaultAlt)
	case ".json":
		// Plain waypoint arrays start with '['; anything else is treated as GeoJSON.
		if bytes.HasPrefix(bytes.TrimSpace(data), []byte("[")) {
			return LoadWaypoints(data)
		}
		return LoadGeoJSON(data, defaultAlt)
	default:
		return nil, fmt.Errorf("unsupported path file type: %s", filepath.Ext(path))
	}
}

// Densify inserts steps-1 linearly interpolated samples between consecutive
// waypoints so playback moves in small increments.
func Densify(points []geo.Point, steps int) []geo.Point {
	if len(points) < 2 || steps <= 1 {
		return append([]geo.Point(nil), points...)
	}

	out := make([]geo.Point, 0, (len(points)-1)*steps+1)
	for i := 1; i < len(points); i++ {
		prev, curr := points[i-1], points[i]
		for j := 0; j < steps; j++ {
			out = append(out, geo.Lerp(prev, curr, float64(j)/float64(steps)))
		}
	}
	return append(out, points[len(points)-1])
}

// DefaultParkPath returns the bundled trail flight path for the park variant.
func DefaultParkPath() ([]geo.Point, error) {
	data, err := pathFiles.ReadFile("paths/park.json")
	if err != nil {
		return nil, fmt.Errorf("failed to read bundled path: %w", err)
	}
	return LoadWaypoints(data)
}
