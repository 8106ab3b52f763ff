package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/crawlfree/internal/labels"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"detector": {"static", "ssd"},
	"sink":     {"log", "command"},
	"voice":    {"stdin", "http"},
}

// Defaults applied by [ApplyDefaults].
const (
	DefaultListenAddr         = ":8080"
	DefaultFPS                = 10
	DefaultInputSize          = 300
	DefaultMinConfidence      = 0.5
	DefaultOverlapThreshold   = 0.5
	DefaultMaxMisses          = 5
	DefaultMatchDistanceRatio = 0.2
	DefaultQueryBuffer        = 8
	DefaultPhoneticThreshold  = 0.70
	DefaultFuzzyThreshold     = 0.85
	DefaultServiceName        = "crawlfree"
	DefaultSinkMaxFailures    = 3
	DefaultSinkCooldown       = 30 * time.Second
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	// Confidence floors default before decoding so an explicit 0 survives.
	cfg := &Config{
		Detector: DetectorConfig{MinConfidence: DefaultMinConfidence},
		Target:   TargetConfig{MinConfidence: DefaultMinConfidence},
	}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero fields of cfg with their defaults. The confidence
// floors are exempt: zero is a valid floor, and [LoadFromReader] seeds them
// with [DefaultMinConfidence] before decoding.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Camera.Source == "" {
		cfg.Camera.Source = CameraDirectory
	}
	if cfg.Camera.FPS == 0 {
		cfg.Camera.FPS = DefaultFPS
	}
	if cfg.Detector.InputSize == 0 {
		cfg.Detector.InputSize = DefaultInputSize
	}
	if cfg.Dedup.OverlapThreshold == 0 {
		cfg.Dedup.OverlapThreshold = DefaultOverlapThreshold
	}
	if cfg.Tracker.MaxMisses == 0 {
		cfg.Tracker.MaxMisses = DefaultMaxMisses
	}
	if cfg.Tracker.MatchDistanceRatio == 0 {
		cfg.Tracker.MatchDistanceRatio = DefaultMatchDistanceRatio
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = slices.Clone(labels.Default)
	}
	if cfg.Guidance.Sink.Name == "" {
		cfg.Guidance.Sink.Name = "log"
	}
	if cfg.Guidance.Sink.MaxFailures == 0 {
		cfg.Guidance.Sink.MaxFailures = DefaultSinkMaxFailures
	}
	if cfg.Guidance.Sink.Cooldown == 0 {
		cfg.Guidance.Sink.Cooldown = DefaultSinkCooldown
	}
	if cfg.Query.Source == "" {
		cfg.Query.Source = "stdin"
	}
	if cfg.Query.Buffer == 0 {
		cfg.Query.Buffer = DefaultQueryBuffer
	}
	if cfg.Query.PhoneticThreshold == 0 {
		cfg.Query.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if cfg.Query.FuzzyThreshold == 0 {
		cfg.Query.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = DefaultServiceName
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Camera
	if cfg.Camera.Source != "" && !cfg.Camera.Source.IsValid() {
		errs = append(errs, fmt.Errorf("camera.source %q is invalid; valid values: directory", cfg.Camera.Source))
	}
	if cfg.Camera.Source == CameraDirectory && cfg.Camera.Path == "" {
		errs = append(errs, errors.New("camera.path is required when source is directory"))
	}
	if cfg.Camera.FPS < 0 {
		errs = append(errs, fmt.Errorf("camera.fps %.2f must not be negative", cfg.Camera.FPS))
	}
	if cfg.Camera.PreviewWidth < 0 || cfg.Camera.PreviewHeight < 0 {
		errs = append(errs, fmt.Errorf("camera preview size %dx%d must not be negative", cfg.Camera.PreviewWidth, cfg.Camera.PreviewHeight))
	}
	if (cfg.Camera.PreviewWidth == 0) != (cfg.Camera.PreviewHeight == 0) {
		errs = append(errs, errors.New("camera.preview_width and camera.preview_height must be set together"))
	}
	switch cfg.Camera.Rotation {
	case 0, 90, 180, 270:
	default:
		errs = append(errs, fmt.Errorf("camera.rotation %d is invalid; valid values: 0, 90, 180, 270", cfg.Camera.Rotation))
	}

	// Detector
	validateProviderName("detector", cfg.Detector.Name)
	if cfg.Detector.Name == "" {
		errs = append(errs, errors.New("detector.name is required"))
	}
	if cfg.Detector.Name == "ssd" {
		if cfg.Detector.Model == "" {
			errs = append(errs, errors.New("detector.model is required for the ssd engine"))
		}
		if cfg.Detector.Labels == "" {
			errs = append(errs, errors.New("detector.labels is required for the ssd engine"))
		}
	}
	if cfg.Detector.InputSize < 0 {
		errs = append(errs, fmt.Errorf("detector.input_size %d must be positive", cfg.Detector.InputSize))
	}
	errs = appendFraction(errs, "detector.min_confidence", cfg.Detector.MinConfidence)

	// Reasoning
	errs = appendFraction(errs, "dedup.overlap_threshold", cfg.Dedup.OverlapThreshold)
	if cfg.Tracker.MaxMisses < 0 {
		errs = append(errs, fmt.Errorf("tracker.max_misses %d must not be negative", cfg.Tracker.MaxMisses))
	}
	errs = appendFraction(errs, "tracker.match_distance_ratio", cfg.Tracker.MatchDistanceRatio)
	errs = appendFraction(errs, "target.min_confidence", cfg.Target.MinConfidence)

	if _, err := labels.NewSet(cfg.Labels); err != nil {
		errs = append(errs, err)
	}

	// Guidance
	validateProviderName("sink", cfg.Guidance.Sink.Name)
	usesCommand := cfg.Guidance.Sink.Name == "command" || cfg.Guidance.Sink.Fallback == "command"
	if usesCommand && cfg.Guidance.Sink.Command == "" {
		errs = append(errs, errors.New("guidance.sink.command is required for the command sink"))
	}
	if fb := cfg.Guidance.Sink.Fallback; fb != "" {
		validateProviderName("sink", fb)
		if fb == cfg.Guidance.Sink.Name {
			errs = append(errs, fmt.Errorf("guidance.sink.fallback %q must differ from guidance.sink.name", fb))
		}
	}
	if cfg.Guidance.Sink.MaxFailures < 0 || cfg.Guidance.Sink.Cooldown < 0 {
		errs = append(errs, errors.New("guidance.sink.max_failures and cooldown must not be negative"))
	}

	// Query
	validateProviderName("voice", cfg.Query.Source)
	if cfg.Query.Buffer < 0 {
		errs = append(errs, fmt.Errorf("query.buffer %d must not be negative", cfg.Query.Buffer))
	}
	errs = appendFraction(errs, "query.phonetic_threshold", cfg.Query.PhoneticThreshold)
	errs = appendFraction(errs, "query.fuzzy_threshold", cfg.Query.FuzzyThreshold)

	return errors.Join(errs...)
}

// appendFraction appends an error when v lies outside [0, 1].
func appendFraction(errs []error, field string, v float64) []error {
	if v < 0 || v > 1 {
		return append(errs, fmt.Errorf("%s %.2f is out of range [0, 1]", field, v))
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
