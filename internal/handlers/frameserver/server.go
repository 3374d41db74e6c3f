package frameserver

import (
	"context"
	"fmt"
	"image"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"sunrise-desktop/internal/render"
)

// FrameSource provides the latest composited frame.
type FrameSource interface {
	Snapshot() (*image.RGBA, uint64)
	RequestTile(ctx context.Context, tile render.TileDescriptor) (image.Image, error)
}

// Server exposes the visible surface to the Wails webview over loopback HTTP
type Server struct {
	source  FrameSource
	metrics http.Handler
	devMode bool

	mu       sync.Mutex
	server   *http.Server
	url      string
	encoding encodedFrame
}

type encodedFrame struct {
	seq  uint64
	data []byte
}

// NewServer creates a new frame server instance. metrics may be nil.
func NewServer(source FrameSource, metrics http.Handler, devMode bool) *Server {
	return &Server{
		source:  source,
		metrics: metrics,
		devMode: devMode,
	}
}

// GetFrameServerURL returns the frame server URL
func (s *Server) GetFrameServerURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// corsMiddleware adds CORS headers to allow requests from Wails frontend
// On macOS/Linux, Wails uses wails://wails origin which requires CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
		w.Header().Set("Access-Control-Expose-Headers", "X-Frame-Seq")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Handler returns the routed handler, wrapped with CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/frame.png", s.handleFrame)
	mux.HandleFunc("/tile.png", s.handleTile)
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return corsMiddleware(mux)
}

// Start starts a local HTTP server on a random loopback port
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to start frame server: %w", err)
	}

	port := listener.Addr().(*net.TCPAddr).Port
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.url = fmt.Sprintf("http://127.0.0.1:%d", port)
	s.server = server
	s.mu.Unlock()
	log.Printf("Frame server started on %s", s.url)

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("Frame server stopped: %v", err)
		}
	}()

	return nil
}

// Shutdown stops the server, waiting for active requests up to ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.server
	s.server = nil
	s.mu.Unlock()
	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}
