// Package app wires all crawlfree subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the camera, reasoning, voice and HTTP loops, and
// Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithCamera,
// WithMetrics, etc.) and the [Providers] struct. When an option is not
// provided, New creates real implementations from the config.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/crawlfree/internal/camera"
	"github.com/MrWong99/crawlfree/internal/config"
	"github.com/MrWong99/crawlfree/internal/guidance"
	"github.com/MrWong99/crawlfree/internal/health"
	"github.com/MrWong99/crawlfree/internal/labels"
	"github.com/MrWong99/crawlfree/internal/observe"
	"github.com/MrWong99/crawlfree/internal/overlay"
	"github.com/MrWong99/crawlfree/internal/pipeline"
	"github.com/MrWong99/crawlfree/internal/target"
	"github.com/MrWong99/crawlfree/internal/tracker"
	"github.com/MrWong99/crawlfree/internal/transcript"
	"github.com/MrWong99/crawlfree/internal/transcript/phonetic"
	"github.com/MrWong99/crawlfree/pkg/provider/detector"
	"github.com/MrWong99/crawlfree/pkg/provider/sink"
	"github.com/MrWong99/crawlfree/pkg/provider/voice"
	"github.com/MrWong99/crawlfree/pkg/types"
)

// cameraStaleAfter is how long the camera may be silent before /readyz fails.
const cameraStaleAfter = 5 * time.Second

// Providers holds one interface value per external collaborator. Populated
// by main.go via the config registry. All fields are required.
type Providers struct {
	Detector detector.Engine
	Sink     sink.Sink
	Voice    voice.Source
}

// FrameSource delivers preview frames until ctx is cancelled or the source
// is exhausted. [camera.DirectorySource] implements it.
type FrameSource interface {
	Run(ctx context.Context, handle func(types.CameraFrame)) error
}

// routeRegistrar is implemented by providers that serve HTTP routes, such as
// the http voice source.
type routeRegistrar interface {
	Register(mux *http.ServeMux)
}

// App owns all subsystem lifetimes and orchestrates the guidance pipeline.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	camera         FrameSource

	// Subsystems, initialised in New.
	labels  *labels.Set
	session *guidance.Session
	tracker *tracker.Tracker
	worker  *pipeline.Worker
	overlay *overlay.Server
	health  *health.Handler
	handler http.Handler

	mu   sync.Mutex
	addr net.Addr

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithCamera injects a frame source instead of creating one from config.
func WithCamera(src FrameSource) Option {
	return func(a *App) { a.camera = src }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h on GET /metrics unless telemetry.disable_metrics
// is set.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Detector == nil || providers.Sink == nil || providers.Voice == nil {
		return nil, errors.New("app: detector, sink and voice providers are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	a.closers = append(a.closers, providers.Detector.Close)
	if c, ok := providers.Sink.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	// ── 1. Guidance session ──────────────────────────────────────────────
	if err := a.initSession(); err != nil {
		return nil, fmt.Errorf("app: init session: %w", err)
	}

	// ── 2. Reasoning worker ──────────────────────────────────────────────
	a.tracker = tracker.New(tracker.Config{
		MaxMisses:          cfg.Tracker.MaxMisses,
		MatchDistanceRatio: cfg.Tracker.MatchDistanceRatio,
	})
	a.worker = pipeline.New(pipeline.Config{
		CropSize:         cfg.Detector.InputSize,
		MaintainAspect:   cfg.Detector.MaintainAspect,
		MinConfidence:    cfg.Detector.MinConfidence,
		OverlapThreshold: cfg.Dedup.OverlapThreshold,
	}, providers.Detector, a.tracker, a.session, pipeline.WithMetrics(a.metrics))

	// ── 3. Camera ────────────────────────────────────────────────────────
	if err := a.initCamera(); err != nil {
		return nil, fmt.Errorf("app: init camera: %w", err)
	}

	// ── 4. HTTP surface ──────────────────────────────────────────────────
	a.overlay = overlay.New(a.worker, a.session.IsCurrent,
		overlay.WithMetrics(a.metrics),
		overlay.WithOriginPatterns(cfg.Server.OverlayOrigins...),
	)
	a.health = health.New(
		health.Healthy("detector", a.worker.Err),
		health.Freshness("camera", a.worker.LastFrame, cameraStaleAfter),
	)
	a.handler = a.buildHandler()

	slog.Info("app initialised",
		"labels", a.labels.Len(),
		"detector", cfg.Detector.Name,
		"sink", cfg.Guidance.Sink.Name,
		"voice", cfg.Query.Source,
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initSession builds the label resolver, target selector and session.
func (a *App) initSession() error {
	set, err := labels.NewSet(a.cfg.Labels)
	if err != nil {
		return err
	}
	a.labels = set

	matcher := phonetic.New(set.Names(),
		phonetic.WithPhoneticThreshold(a.cfg.Query.PhoneticThreshold),
		phonetic.WithFuzzyThreshold(a.cfg.Query.FuzzyThreshold),
	)
	parser := transcript.NewParser(set, transcript.WithPhoneticMatcher(matcher))

	a.session = guidance.New(parser, target.New(a.cfg.Target.MinConfidence), a.providers.Sink,
		guidance.WithMetrics(a.metrics),
		guidance.WithTransitionHook(func(from, to guidance.State) {
			slog.Info("guidance state changed", "from", from.String(), "to", to.String())
		}),
	)
	return nil
}

// initCamera creates the directory replay source if none was injected.
func (a *App) initCamera() error {
	if a.camera != nil {
		return nil
	}
	cc := a.cfg.Camera
	src, err := camera.NewDirectorySource(cc.Path,
		camera.WithFPS(cc.FPS),
		camera.WithPreviewSize(cc.PreviewWidth, cc.PreviewHeight),
		camera.WithRotation(cc.Rotation),
		camera.WithLoop(cc.Loop),
	)
	if err != nil {
		return err
	}
	slog.Info("camera replay ready", "path", cc.Path, "frames", src.Len(), "fps", cc.FPS)
	a.camera = src
	return nil
}

// buildHandler assembles the HTTP routes behind the observability middleware.
func (a *App) buildHandler() http.Handler {
	mux := http.NewServeMux()
	a.health.Register(mux)
	a.overlay.Register(mux)
	if r, ok := a.providers.Voice.(routeRegistrar); ok {
		r.Register(mux)
	}
	if a.metricsHandler != nil && !a.cfg.Telemetry.DisableMetrics {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	mux.HandleFunc("GET /status", a.handleStatus)
	return observe.Middleware(a.metrics)(mux)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the HTTP handler with all routes.
func (a *App) Handler() http.Handler { return a.handler }

// Session returns the guidance session.
func (a *App) Session() *guidance.Session { return a.session }

// Worker returns the reasoning worker.
func (a *App) Worker() *pipeline.Worker { return a.worker }

// Addr returns the address the HTTP server listens on, or nil before Run
// has bound it.
func (a *App) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.addr
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts the camera, reasoning worker, voice command loop and HTTP server
// and blocks until ctx is cancelled or one of them fails. A detector failure
// ends Run with an error wrapping [pipeline.ErrDetector]. When ctx is done,
// Run returns context.Canceled (or the underlying cause).
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", a.cfg.Server.ListenAddr, err)
	}
	a.mu.Lock()
	a.addr = ln.Addr()
	a.mu.Unlock()

	a.session.Announce(ctx, guidance.Welcome)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.worker.Run(gctx) })
	g.Go(func() error {
		err := a.camera.Run(gctx, func(f types.CameraFrame) { a.worker.Submit(gctx, f) })
		if err != nil {
			return fmt.Errorf("app: camera: %w", err)
		}
		return nil
	})
	g.Go(func() error { return a.runCommands(gctx) })
	g.Go(func() error { return a.serve(gctx, ln) })

	slog.Info("app running", "listen_addr", ln.Addr().String())
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// runCommands applies voice commands to the session until the source closes
// or ctx is cancelled.
func (a *App) runCommands(ctx context.Context) error {
	cmds, err := a.providers.Voice.Commands(ctx)
	if err != nil {
		return fmt.Errorf("app: start voice source: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd, ok := <-cmds:
			if !ok {
				slog.Info("voice source closed")
				return nil
			}
			a.handleCommand(ctx, cmd)
		}
	}
}

func (a *App) handleCommand(ctx context.Context, cmd voice.Command) {
	switch cmd.Kind {
	case voice.KindAbort:
		if err := a.session.Abort(); err != nil {
			slog.Debug("abort ignored", "err", err)
			return
		}
		slog.Info("search aborted")
	case voice.KindQuery:
		q, err := a.session.NewQuery(ctx, cmd.Text)
		if errors.Is(err, guidance.ErrUnsupportedLabel) {
			slog.Info("unsupported query", "text", cmd.Text)
			return
		}
		if err != nil {
			slog.Warn("query rejected", "text", cmd.Text, "err", err)
			return
		}
		slog.Info("search started", "label", q.Label, "query_id", q.ID)
	}
}

// serve runs the HTTP server on ln until ctx is cancelled.
func (a *App) serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ServeTLS(ln, tls.CertFile, tls.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		errc <- err
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "err", err)
	}
	<-errc
	return nil
}

// handleStatus reports the guidance status as JSON.
func (a *App) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(a.session.Current()); err != nil {
		slog.Warn("encode status", "err", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown releases the detector and sink. It is safe to call more than once;
// only the first call has an effect. Errors from all closers are joined.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		var errs []error
		for _, c := range a.closers {
			if ctx.Err() != nil {
				errs = append(errs, ctx.Err())
				break
			}
			if cerr := c(); cerr != nil {
				errs = append(errs, cerr)
			}
		}
		err = errors.Join(errs...)
	})
	return err
}
