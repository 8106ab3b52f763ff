// Package overlay serves the tracked objects of the reasoning pipeline to
// overlay renderers.
//
// Routes:
//
//	GET /overlay      websocket; one JSON snapshot per processed frame
//	GET /overlay.png  latest frame with coloured track boxes
//	GET /snapshot     latest snapshot as JSON
//
// Snapshots computed for a query that is no longer current are never sent.
// The overlay is read-only: nothing here feeds back into the pipeline.
package overlay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/MrWong99/crawlfree/internal/observe"
	"github.com/MrWong99/crawlfree/internal/pipeline"
)

// Source provides published snapshots.
type Source interface {
	Latest() *pipeline.Snapshot
	Subscribe() (<-chan *pipeline.Snapshot, func())
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithOriginPatterns allows websocket connections from the given host
// patterns in addition to same-origin requests.
func WithOriginPatterns(patterns ...string) Option {
	return func(s *Server) { s.originPatterns = patterns }
}

// WithWriteTimeout bounds a single websocket write. Default 5s.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// Server serves the overlay routes.
type Server struct {
	src            Source
	isCurrent      func(uuid.UUID) bool
	metrics        *observe.Metrics
	originPatterns []string
	writeTimeout   time.Duration
}

// New returns a Server reading from src. isCurrent reports whether a query ID
// is still active; snapshots for other queries are withheld.
func New(src Source, isCurrent func(uuid.UUID) bool, opts ...Option) *Server {
	s := &Server{
		src:          src,
		isCurrent:    isCurrent,
		writeTimeout: 5 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	return s
}

// Register adds the overlay routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /overlay", s.handleStream)
	mux.HandleFunc("GET /overlay.png", s.handlePNG)
	mux.HandleFunc("GET /snapshot", s.handleSnapshot)
}

// current returns the latest snapshot if it belongs to the active query.
func (s *Server) current() (*pipeline.Snapshot, bool) {
	snap := s.src.Latest()
	if snap == nil {
		return nil, false
	}
	return snap, s.isCurrent(snap.QueryID)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.current()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		slog.Warn("overlay: encode snapshot", "err", err)
	}
}

func (s *Server) handlePNG(w http.ResponseWriter, _ *http.Request) {
	snap, ok := s.current()
	if snap == nil {
		http.Error(w, "no frame processed yet", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := imaging.Encode(w, Render(snap, ok), imaging.PNG); err != nil {
		slog.Warn("overlay: encode png", "err", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.originPatterns})
	if err != nil {
		slog.Warn("overlay: websocket accept failed", "err", err)
		return
	}
	defer conn.CloseNow()

	s.metrics.OverlayClients.Add(r.Context(), 1)
	defer s.metrics.OverlayClients.Add(context.WithoutCancel(r.Context()), -1)

	// Clients never send; CloseRead handles their close frame.
	ctx := conn.CloseRead(r.Context())

	snaps, unsubscribe := s.src.Subscribe()
	defer unsubscribe()

	if snap, ok := s.current(); ok {
		if err := s.send(ctx, conn, snap); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case snap := <-snaps:
			if !s.isCurrent(snap.QueryID) {
				continue
			}
			if err := s.send(ctx, conn, snap); err != nil {
				slog.Debug("overlay: client gone", "err", err)
				return
			}
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, snap *pipeline.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
