// Command crawlfree is the main entry point for the crawlfree object finder.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/crawlfree/internal/app"
	"github.com/MrWong99/crawlfree/internal/config"
	"github.com/MrWong99/crawlfree/internal/observe"
	"github.com/MrWong99/crawlfree/internal/resilience"
	"github.com/MrWong99/crawlfree/pkg/provider/detector"
	"github.com/MrWong99/crawlfree/pkg/provider/detector/ssd"
	"github.com/MrWong99/crawlfree/pkg/provider/sink"
	"github.com/MrWong99/crawlfree/pkg/provider/voice"
	"github.com/MrWong99/crawlfree/pkg/types"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "crawlfree: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "crawlfree: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("crawlfree starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Config hot reload (log level only) ────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "log_level", d.NewLogLevel)
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("configuration changes take effect after a restart", "sections", d.RestartRequired)
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		RuntimeMetrics: cfg.Telemetry.RuntimeMetrics,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers,
		app.WithMetrics(telemetry.Metrics),
		app.WithMetricsHandler(telemetry.Handler()),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("server ready, press Ctrl+C to shut down")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return application.Run(gctx) })

	code := 0
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		code = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		code = 1
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return code
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Detector ──────────────────────────────────────────────────────────────

	reg.RegisterDetector("static", func(cfg config.DetectorConfig) (detector.Engine, error) {
		dets, err := staticDetections(cfg.Options)
		if err != nil {
			return nil, fmt.Errorf("static detector: %w", err)
		}
		return detector.NewStatic(dets), nil
	})

	reg.RegisterDetector("ssd", func(cfg config.DetectorConfig) (detector.Engine, error) {
		return ssd.New(cfg.Model, cfg.Config, cfg.Labels, cfg.InputSize)
	})

	// ── Sink ──────────────────────────────────────────────────────────────────

	reg.RegisterSink("log", func(config.SinkConfig) (sink.Sink, error) {
		return sink.NewLog(), nil
	})

	reg.RegisterSink("command", func(cfg config.SinkConfig) (sink.Sink, error) {
		return sink.NewCommand(cfg.Command, cfg.Args...)
	})

	// ── Voice ─────────────────────────────────────────────────────────────────

	reg.RegisterVoice("stdin", func(cfg config.QueryConfig) (voice.Source, error) {
		var opts []voice.LinesOption
		if len(cfg.AbortWords) > 0 {
			opts = append(opts, voice.WithAbortWords(cfg.AbortWords...))
		}
		return voice.NewLines(os.Stdin, opts...), nil
	})

	reg.RegisterVoice("http", func(cfg config.QueryConfig) (voice.Source, error) {
		return voice.NewHTTP(cfg.Buffer), nil
	})

	for kind, names := range config.ValidProviderNames {
		for _, name := range names {
			slog.Debug("registered provider", "kind", kind, "name", name)
		}
	}
}

// buildProviders instantiates the providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	engine, err := reg.CreateDetector(cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("create detector %q: %w", cfg.Detector.Name, err)
	}
	slog.Info("provider created", "kind", "detector", "name", cfg.Detector.Name)

	out, err := buildSink(cfg.Guidance.Sink, reg)
	if err != nil {
		engine.Close()
		return nil, err
	}

	src, err := reg.CreateVoice(cfg.Query)
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("create voice source %q: %w", cfg.Query.Source, err)
	}
	slog.Info("provider created", "kind", "voice", "name", cfg.Query.Source)

	return &app.Providers{Detector: engine, Sink: out, Voice: src}, nil
}

// buildSink creates the configured sink. With a fallback configured, both
// sinks are placed behind circuit breakers in a [resilience.SinkFailover].
func buildSink(cfg config.SinkConfig, reg *config.Registry) (sink.Sink, error) {
	primary, err := reg.CreateSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("create sink %q: %w", cfg.Name, err)
	}
	slog.Info("provider created", "kind", "sink", "name", cfg.Name)
	if cfg.Fallback == "" {
		return primary, nil
	}

	fbCfg := cfg
	fbCfg.Name = cfg.Fallback
	fallback, err := reg.CreateSink(fbCfg)
	if err != nil {
		return nil, fmt.Errorf("create fallback sink %q: %w", cfg.Fallback, err)
	}
	slog.Info("provider created", "kind", "sink", "name", cfg.Fallback, "role", "fallback")

	failover := resilience.NewSinkFailover(primary, cfg.Name, resilience.BreakerConfig{
		MaxFailures: cfg.MaxFailures,
		Cooldown:    cfg.Cooldown,
	})
	failover.Add(cfg.Fallback, fallback)
	return failover, nil
}

// staticDetection is the YAML form of one detection in the static engine's
// "detections" option. Box is left, top, right, bottom in crop pixels.
type staticDetection struct {
	Label      string     `yaml:"label"`
	Confidence float64    `yaml:"confidence"`
	Box        [4]float64 `yaml:"box"`
}

// staticDetections decodes opts["detections"].
func staticDetections(opts map[string]any) ([]types.Detection, error) {
	raw, ok := opts["detections"]
	if !ok {
		return nil, nil
	}
	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var entries []staticDetection
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}
	dets := make([]types.Detection, len(entries))
	for i, e := range entries {
		dets[i] = types.Detection{
			Label:      e.Label,
			Confidence: e.Confidence,
			Box:        types.Rect{Left: e.Box[0], Top: e.Box[1], Right: e.Box[2], Bottom: e.Box[3]},
		}
	}
	return dets, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        crawlfree: startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Detector", cfg.Detector.Name)
	printRow("Sink", cfg.Guidance.Sink.Name)
	printRow("Fallback", cfg.Guidance.Sink.Fallback)
	printRow("Voice", cfg.Query.Source)
	printRow("Camera", cfg.Camera.Path)
	printRow("Labels", fmt.Sprint(len(cfg.Labels)))
	printRow("Listen addr", cfg.Server.ListenAddr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(kind, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
