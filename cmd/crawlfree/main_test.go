package main

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"

	"github.com/MrWong99/crawlfree/internal/config"
	"github.com/MrWong99/crawlfree/internal/resilience"
	"github.com/MrWong99/crawlfree/pkg/provider/sink"
	sinkmock "github.com/MrWong99/crawlfree/pkg/provider/sink/mock"
	"github.com/MrWong99/crawlfree/pkg/types"
)

func TestStaticDetections(t *testing.T) {
	t.Parallel()

	var opts map[string]any
	err := yaml.Unmarshal([]byte(`
detections:
  - { label: table, confidence: 0.8, box: [40, 120, 280, 290] }
  - { label: laptop, confidence: 0.9, box: [90, 150, 200, 230] }
`), &opts)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	got, err := staticDetections(opts)
	if err != nil {
		t.Fatalf("staticDetections: %v", err)
	}
	want := []types.Detection{
		{Label: "table", Confidence: 0.8, Box: types.Rect{Left: 40, Top: 120, Right: 280, Bottom: 290}},
		{Label: "laptop", Confidence: 0.9, Box: types.Rect{Left: 90, Top: 150, Right: 200, Bottom: 230}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("detections mismatch (-want +got):\n%s", diff)
	}

	if got, err := staticDetections(nil); err != nil || got != nil {
		t.Errorf("staticDetections(nil) = %v, %v; want nil, nil", got, err)
	}
	if _, err := staticDetections(map[string]any{"detections": "nope"}); err == nil {
		t.Error("staticDetections(string) error = nil, want error")
	}
}

func TestBuildProviders(t *testing.T) {
	t.Parallel()

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	cfg := &config.Config{
		Detector: config.DetectorConfig{Name: "static"},
		Guidance: config.GuidanceConfig{Sink: config.SinkConfig{Name: "log"}},
		Query:    config.QueryConfig{Source: "http", Buffer: 2},
	}
	ps, err := buildProviders(cfg, reg)
	if err != nil {
		t.Fatalf("buildProviders: %v", err)
	}
	if ps.Detector == nil || ps.Sink == nil || ps.Voice == nil {
		t.Errorf("providers = %+v, want all set", ps)
	}

	cfg.Query.Source = "carrier-pigeon"
	if _, err := buildProviders(cfg, reg); err == nil {
		t.Error("buildProviders with unknown voice source returned nil error")
	}
}

func TestBuildSink_Failover(t *testing.T) {
	t.Parallel()

	broken := &sinkmock.Sink{Err: errors.New("speaker unplugged")}
	spare := &sinkmock.Sink{}
	reg := config.NewRegistry()
	reg.RegisterSink("broken", func(config.SinkConfig) (sink.Sink, error) { return broken, nil })
	reg.RegisterSink("spare", func(config.SinkConfig) (sink.Sink, error) { return spare, nil })

	s, err := buildSink(config.SinkConfig{Name: "broken"}, reg)
	if err != nil {
		t.Fatalf("buildSink: %v", err)
	}
	if s != broken {
		t.Errorf("buildSink without fallback = %T, want the primary sink", s)
	}

	s, err = buildSink(config.SinkConfig{Name: "broken", Fallback: "spare"}, reg)
	if err != nil {
		t.Fatalf("buildSink: %v", err)
	}
	if _, ok := s.(*resilience.SinkFailover); !ok {
		t.Fatalf("buildSink with fallback = %T, want *resilience.SinkFailover", s)
	}
	if _, err := s.Announce(context.Background(), "hello"); err != nil {
		t.Fatalf("Announce: %v", err)
	}
	if got := spare.Texts(); len(got) != 1 || got[0] != "hello" {
		t.Errorf("fallback texts = %q, want [hello]", got)
	}

	if _, err := buildSink(config.SinkConfig{Name: "broken", Fallback: "missing"}, reg); err == nil {
		t.Error("buildSink with unknown fallback returned nil error")
	}
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	tests := map[config.LogLevel]slog.Level{
		config.LogDebug: slog.LevelDebug,
		config.LogInfo:  slog.LevelInfo,
		config.LogWarn:  slog.LevelWarn,
		config.LogError: slog.LevelError,
		"":              slog.LevelInfo,
	}
	for in, want := range tests {
		if got := slogLevel(in); got != want {
			t.Errorf("slogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
