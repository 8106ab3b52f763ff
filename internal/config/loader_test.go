package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/crawlfree/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr []string // substrings; empty means valid
	}{
		{
			name: "minimal",
			yaml: minimalYAML,
		},
		{
			name:    "invalid log level",
			yaml:    minimalYAML + "server: {log_level: bananas}\n",
			wantErr: []string{"server.log_level"},
		},
		{
			name:    "missing camera path",
			yaml:    "detector: {name: static}\n",
			wantErr: []string{"camera.path"},
		},
		{
			name:    "missing detector",
			yaml:    "camera: {path: ./frames}\n",
			wantErr: []string{"detector.name"},
		},
		{
			name:    "invalid rotation",
			yaml:    "camera: {path: ./frames, rotation: 45}\ndetector: {name: static}\n",
			wantErr: []string{"camera.rotation"},
		},
		{
			name:    "half preview size",
			yaml:    "camera: {path: ./frames, preview_width: 640}\ndetector: {name: static}\n",
			wantErr: []string{"preview_width"},
		},
		{
			name:    "ssd without files",
			yaml:    "camera: {path: ./frames}\ndetector: {name: ssd}\n",
			wantErr: []string{"detector.model", "detector.labels"},
		},
		{
			name:    "confidence above one",
			yaml:    "camera: {path: ./frames}\ndetector: {name: static, min_confidence: 1.5}\n",
			wantErr: []string{"detector.min_confidence"},
		},
		{
			name:    "negative max misses",
			yaml:    minimalYAML + "tracker: {max_misses: -1}\n",
			wantErr: []string{"tracker.max_misses"},
		},
		{
			name:    "duplicate labels",
			yaml:    minimalYAML + "labels: [cup, Cup]\n",
			wantErr: []string{"duplicate"},
		},
		{
			name:    "command sink without command",
			yaml:    minimalYAML + "guidance: {sink: {name: command}}\n",
			wantErr: []string{"guidance.sink.command"},
		},
		{
			name:    "command fallback without command",
			yaml:    minimalYAML + "guidance: {sink: {name: log, fallback: command}}\n",
			wantErr: []string{"guidance.sink.command"},
		},
		{
			name:    "fallback equals primary",
			yaml:    minimalYAML + "guidance: {sink: {name: log, fallback: log}}\n",
			wantErr: []string{"guidance.sink.fallback"},
		},
		{
			name:    "tls without key",
			yaml:    minimalYAML + "server: {tls: {cert_file: cert.pem}}\n",
			wantErr: []string{"server.tls"},
		},
		{
			name:    "threshold out of range",
			yaml:    minimalYAML + "query: {fuzzy_threshold: 2}\n",
			wantErr: []string{"query.fuzzy_threshold"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("LoadFromReader: unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("LoadFromReader: expected error mentioning %q, got nil", tt.wantErr)
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should mention %q, got: %v", want, err)
				}
			}
		})
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server: config.ServerConfig{LogLevel: "verbose"},
		Camera: config.CameraConfig{Source: "webcam", Rotation: 30},
		Labels: []string{"cup"},
	}
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected joined error, got nil")
	}
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("error %T does not wrap multiple errors", err)
	}
	if got := len(joined.Unwrap()); got < 4 {
		t.Errorf("joined errors = %d, want at least 4: %v", got, err)
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "crawlfree.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Detector.Name != "ssd" {
		t.Errorf("detector.name = %q, want %q", cfg.Detector.Name, "ssd")
	}

	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load(missing) error = nil, want error")
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	for _, kind := range []string{"detector", "sink", "voice"} {
		if len(config.ValidProviderNames[kind]) == 0 {
			t.Errorf("ValidProviderNames[%q] is empty", kind)
		}
	}
}
