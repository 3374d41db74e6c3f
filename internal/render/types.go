package render

import (
	"context"
	"fmt"
	"image"
	"net/url"
	"strconv"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// Quality selects the resolution tier and tile grid of a frame.
type Quality int

const (
	// QualityHigh renders the full tile grid at the high tier.
	QualityHigh Quality = iota
	// QualityLow renders a single tile at the low tier; used while interacting.
	QualityLow
)

func (q Quality) String() string {
	if q == QualityLow {
		return "low"
	}
	return "high"
}

// ParseQuality accepts "high", "low" and "draft" (an alias for low).
func ParseQuality(s string) (Quality, error) {
	switch s {
	case "high", "":
		return QualityHigh, nil
	case "low", "draft":
		return QualityLow, nil
	}
	return QualityHigh, fmt.Errorf("unknown render quality: %q", s)
}

// LightMode is the simulated lighting model requested from the service.
type LightMode string

const (
	LightDistant LightMode = "distant"
	LightSunSky  LightMode = "sunSky"

	// LightPointOfInterest is used when the camera is focused on a single point.
	LightPointOfInterest = LightDistant
)

// Resolution is a tile's pixel size.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// TileDescriptor locates one tile inside a rows×cols grid over the display.
type TileDescriptor struct {
	Row         int `json:"row"`
	Col         int `json:"col"`
	Rows        int `json:"rows"`
	Cols        int `json:"cols"`
	PixelWidth  int `json:"pixelWidth"`
	PixelHeight int `json:"pixelHeight"`
}

// Param renders the descriptor in the service's "<row>of<rows>,<col>of<cols>" form.
func (t TileDescriptor) Param() string {
	return fmt.Sprintf("%dof%d,%dof%d", t.Row, t.Rows, t.Col, t.Cols)
}

// RenderRequest is one tile request. Position and Direction are already in the
// service frame: camera position negated and scaled, look vector negated.
type RenderRequest struct {
	Tile        TileDescriptor
	Position    mgl64.Vec3
	Direction   mgl64.Vec3
	Up          mgl64.Vec3
	Samples     int
	Hour        float64
	Light       LightMode
	Observation string
}

// Query encodes the request as URL query parameters.
func (r RenderRequest) Query() url.Values {
	v := url.Values{}
	v.Set("width", strconv.Itoa(r.Tile.PixelWidth))
	v.Set("height", strconv.Itoa(r.Tile.PixelHeight))
	v.Set("tile", r.Tile.Param())
	v.Set("position", formatVec(r.Position))
	v.Set("direction", formatVec(r.Direction))
	v.Set("up", fmt.Sprintf("%.3f,%.3f,%.3f", r.Up.X(), r.Up.Y(), r.Up.Z()))
	v.Set("samples", strconv.Itoa(r.Samples))
	v.Set("hour", strconv.FormatFloat(r.Hour, 'f', -1, 64))
	v.Set("light", string(r.Light))
	if r.Observation != "" {
		v.Set("observation", r.Observation)
	}
	return v
}

func formatVec(v mgl64.Vec3) string {
	return strconv.FormatFloat(v.X(), 'f', -1, 64) + "," +
		strconv.FormatFloat(v.Y(), 'f', -1, 64) + "," +
		strconv.FormatFloat(v.Z(), 'f', -1, 64)
}

// Fetcher retrieves one rendered tile.
type Fetcher interface {
	FetchTile(ctx context.Context, req RenderRequest) (image.Image, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req RenderRequest) (image.Image, error)

func (f FetcherFunc) FetchTile(ctx context.Context, req RenderRequest) (image.Image, error) {
	return f(ctx, req)
}

// Frame describes a frame that reached the visible surface.
type Frame struct {
	Seq      uint64        `json:"seq"`
	Quality  string        `json:"quality"`
	Tiles    int           `json:"tiles"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}
