// Package config provides the configuration schema, loader, and provider registry
// for the crawlfree object finder.
package config

import "time"

// LogLevel controls log verbosity for the crawlfree server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// CameraSource selects where preview frames come from.
type CameraSource string

const (
	// CameraDirectory replays image files from a directory.
	CameraDirectory CameraSource = "directory"
)

// IsValid reports whether c is a recognised camera source.
func (c CameraSource) IsValid() bool {
	return c == CameraDirectory
}

// Config is the root configuration structure for crawlfree.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
//
// Everything except Server.LogLevel is read once at start-up; the label set,
// thresholds and geometry do not change while the process runs.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Camera    CameraConfig    `yaml:"camera"`
	Detector  DetectorConfig  `yaml:"detector"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Target    TargetConfig    `yaml:"target"`
	Labels    []string        `yaml:"labels"`
	Guidance  GuidanceConfig  `yaml:"guidance"`
	Query     QueryConfig     `yaml:"query"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig holds network and logging settings for the crawlfree server.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. It is the only hot-reloadable setting.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`

	// OverlayOrigins lists additional host patterns allowed to open the
	// overlay websocket (e.g., "localhost:5173").
	OverlayOrigins []string `yaml:"overlay_origins"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// CameraConfig configures the preview frame source.
type CameraConfig struct {
	// Source selects the frame source. Default: "directory".
	Source CameraSource `yaml:"source"`

	// Path is the directory holding the frames to replay.
	Path string `yaml:"path"`

	// FPS is the replay rate. Default: 10.
	FPS float64 `yaml:"fps"`

	// PreviewWidth and PreviewHeight resize frames to the device preview
	// resolution. Zero keeps the file size.
	PreviewWidth  int `yaml:"preview_width"`
	PreviewHeight int `yaml:"preview_height"`

	// Rotation is the sensor rotation in degrees: 0, 90, 180 or 270.
	Rotation int `yaml:"rotation"`

	// Loop restarts the replay after the last frame.
	Loop bool `yaml:"loop"`
}

// DetectorConfig selects and configures the object detector engine.
type DetectorConfig struct {
	// Name selects the registered engine (e.g., "static", "ssd").
	Name string `yaml:"name"`

	// Model is the path to the frozen network weights.
	Model string `yaml:"model"`

	// Config is the path to the network description.
	Config string `yaml:"config"`

	// Labels is the path to the class label map, one name per line.
	Labels string `yaml:"labels"`

	// InputSize is the square detector input edge in pixels. Default: 300.
	InputSize int `yaml:"input_size"`

	// MaintainAspect forbids non-uniform scaling into the detector crop.
	MaintainAspect bool `yaml:"maintain_aspect"`

	// MinConfidence drops detections below this score before tracking.
	// Default: 0.5. An explicit 0 keeps every detection.
	MinConfidence float64 `yaml:"min_confidence"`

	// Options holds engine-specific values not covered above.
	Options map[string]any `yaml:"options"`
}

// DedupConfig configures duplicate removal.
type DedupConfig struct {
	// OverlapThreshold is the intersection-over-smaller-area fraction above
	// which two same-label detections are duplicates. Default: 0.5.
	OverlapThreshold float64 `yaml:"overlap_threshold"`
}

// TrackerConfig configures the multi-frame tracker.
type TrackerConfig struct {
	// MaxMisses is the number of consecutive unmatched frames a track
	// survives. Default: 5.
	MaxMisses int `yaml:"max_misses"`

	// MatchDistanceRatio is the maximum centre distance for a match as a
	// fraction of the frame diagonal. Default: 0.2.
	MatchDistanceRatio float64 `yaml:"match_distance_ratio"`
}

// TargetConfig configures target selection.
type TargetConfig struct {
	// MinConfidence is the lowest score a detection may have to complete a
	// search. Default: 0.5. An explicit 0 accepts any match.
	MinConfidence float64 `yaml:"min_confidence"`
}

// GuidanceConfig configures the spoken guidance.
type GuidanceConfig struct {
	Sink SinkConfig `yaml:"sink"`
}

// SinkConfig selects the announcement sink.
type SinkConfig struct {
	// Name selects the registered sink (e.g., "log", "command").
	Name string `yaml:"name"`

	// Command is the speech program run by the "command" sink.
	Command string `yaml:"command"`

	// Args are passed to Command before the announcement text.
	Args []string `yaml:"args"`

	// Fallback names a second sink that speaks when Name keeps failing.
	// Empty disables failover.
	Fallback string `yaml:"fallback"`

	// MaxFailures is the number of consecutive errors after which the
	// primary sink is skipped. Default: 3.
	MaxFailures int `yaml:"max_failures"`

	// Cooldown is how long a skipped sink rests before it is tried again.
	// Default: 30s.
	Cooldown time.Duration `yaml:"cooldown"`
}

// QueryConfig configures voice query intake and label resolution.
type QueryConfig struct {
	// Source selects the registered voice source (e.g., "stdin", "http").
	Source string `yaml:"source"`

	// Buffer is the queue length of the "http" source. Default: 8.
	Buffer int `yaml:"buffer"`

	// AbortWords end the active search when spoken alone.
	AbortWords []string `yaml:"abort_words"`

	// PhoneticThreshold is the Jaro-Winkler floor for labels sharing a
	// phonetic code with the utterance. Default: 0.70.
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the Jaro-Winkler floor without a phonetic match.
	// Default: 0.85.
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`
}

// TelemetryConfig configures metrics and tracing.
type TelemetryConfig struct {
	// ServiceName is reported in telemetry. Default: "crawlfree".
	ServiceName string `yaml:"service_name"`

	// DisableMetrics stops serving /metrics.
	DisableMetrics bool `yaml:"disable_metrics"`

	// RuntimeMetrics adds Go runtime and process metrics to /metrics.
	RuntimeMetrics bool `yaml:"runtime_metrics"`
}
