package frameserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"strconv"
	"time"

	"sunrise-desktop/internal/render"
)

var encoder = png.Encoder{CompressionLevel: png.BestSpeed}

// handleFrame serves the visible surface as PNG.
// URL format: /frame.png
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data, seq, err := s.encodeLatest()
	if err != nil {
		log.Printf("[FrameServer] Failed to encode frame: %v", err)
		http.Error(w, "failed to encode frame", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Frame-Seq", strconv.FormatUint(seq, 10))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if r.Method == http.MethodHead {
		return
	}
	w.Write(data)
}

// encodeLatest reuses the previous encoding while the frame sequence is unchanged.
func (s *Server) encodeLatest() ([]byte, uint64, error) {
	img, seq := s.source.Snapshot()

	s.mu.Lock()
	cached := s.encoding
	s.mu.Unlock()
	if cached.data != nil && cached.seq == seq {
		return cached.data, seq, nil
	}

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		return nil, 0, err
	}

	s.mu.Lock()
	s.encoding = encodedFrame{seq: seq, data: buf.Bytes()}
	s.mu.Unlock()
	return buf.Bytes(), seq, nil
}

// handleTile proxies a single tile request for the current camera.
// URL format: /tile.png?row={r}&col={c}&rows={n}&cols={m}&width={w}&height={h}
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	tile, err := parseTile(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	img, err := s.source.RequestTile(ctx, tile)
	if err != nil {
		if s.devMode {
			log.Printf("[FrameServer] tile %s failed: %v", tile.Param(), err)
		}
		status := http.StatusBadGateway
		if errors.Is(err, render.ErrClosed) {
			status = http.StatusServiceUnavailable
		}
		http.Error(w, "tile request failed", status)
		return
	}

	var buf bytes.Buffer
	if err := encoder.Encode(&buf, img); err != nil {
		http.Error(w, "failed to encode tile", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func parseTile(r *http.Request) (render.TileDescriptor, error) {
	q := r.URL.Query()
	names := []string{"row", "col", "rows", "cols", "width", "height"}
	vals := make([]int, len(names))
	for i, name := range names {
		v, err := strconv.Atoi(q.Get(name))
		if err != nil {
			return render.TileDescriptor{}, fmt.Errorf("invalid %s", name)
		}
		vals[i] = v
	}
	tile := render.TileDescriptor{
		Row: vals[0], Col: vals[1], Rows: vals[2], Cols: vals[3],
		PixelWidth: vals[4], PixelHeight: vals[5],
	}
	switch {
	case tile.Rows <= 0 || tile.Cols <= 0:
		return tile, fmt.Errorf("invalid grid")
	case tile.Row < 0 || tile.Row >= tile.Rows || tile.Col < 0 || tile.Col >= tile.Cols:
		return tile, fmt.Errorf("tile outside grid")
	case tile.PixelWidth <= 0 || tile.PixelHeight <= 0:
		return tile, fmt.Errorf("invalid tile size")
	}
	return tile, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, seq := s.source.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","frame":%d}`, seq)
}
