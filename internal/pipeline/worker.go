// Package pipeline runs the detection and reasoning job for camera frames.
//
// The camera (producer) hands frames to [Worker.Submit], which never blocks:
// when a job is already in flight or no search is active, the frame is
// dropped. [Worker.Run] (consumer) processes one job at a time in this order:
//
//  1. render the preview into the detector crop and run the detector
//  2. discard malformed and low-confidence detections, map the rest into
//     frame space
//  3. remove duplicates
//  4. update the tracker
//  5. advance the guidance session (target selection, relation, announcement)
//  6. publish an immutable [Snapshot]
//
// A detector failure ends Run with an error wrapping [ErrDetector]; there is
// no retry.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/crawlfree/internal/dedup"
	"github.com/MrWong99/crawlfree/internal/guidance"
	"github.com/MrWong99/crawlfree/internal/observe"
	"github.com/MrWong99/crawlfree/internal/tracker"
	"github.com/MrWong99/crawlfree/pkg/geometry"
	"github.com/MrWong99/crawlfree/pkg/provider/detector"
	"github.com/MrWong99/crawlfree/pkg/types"
)

// ErrDetector wraps detector failures returned from [Worker.Run].
var ErrDetector = errors.New("pipeline: detector failed")

// Config holds the per-frame processing parameters.
type Config struct {
	// CropSize is the square detector input edge in pixels.
	CropSize int

	// MaintainAspect forbids non-uniform scaling into the crop.
	MaintainAspect bool

	// MinConfidence drops detections below this score before mapping. Zero
	// keeps every detection; a negative value selects the default.
	MinConfidence float64

	// OverlapThreshold is the duplicate overlap fraction.
	OverlapThreshold float64
}

// DefaultConfig returns the default processing parameters.
func DefaultConfig() Config {
	return Config{
		CropSize:         300,
		MinConfidence:    0.5,
		OverlapThreshold: dedup.DefaultOverlapThreshold,
	}
}

// Option configures a [Worker].
type Option func(*Worker)

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(w *Worker) { w.metrics = m }
}

// job is one accepted frame together with the query it runs for.
type job struct {
	frame types.CameraFrame
	query types.TargetQuery
}

// Worker is the single reasoning consumer. Submit may be called from any
// goroutine; Run must be called exactly once.
type Worker struct {
	cfg      Config
	engine   detector.Engine
	tracker  *tracker.Tracker
	session  *guidance.Session
	metrics  *observe.Metrics
	geometry geometry.Cache

	busy   atomic.Bool
	jobs   chan job
	latest atomic.Pointer[Snapshot]
	seq    uint64
	subs   broadcaster

	lastFrame  atomic.Int64
	lastDetect atomic.Int64
	fatal      atomic.Pointer[error]
}

// New creates a Worker. Zero fields of cfg other than MinConfidence take
// their defaults.
func New(cfg Config, engine detector.Engine, trk *tracker.Tracker, session *guidance.Session, opts ...Option) *Worker {
	def := DefaultConfig()
	if cfg.CropSize <= 0 {
		cfg.CropSize = def.CropSize
	}
	if cfg.MinConfidence < 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = def.OverlapThreshold
	}
	w := &Worker{
		cfg:     cfg,
		engine:  engine,
		tracker: trk,
		session: session,
		jobs:    make(chan job, 1),
	}
	for _, o := range opts {
		o(w)
	}
	if w.metrics == nil {
		w.metrics = observe.DefaultMetrics()
	}
	return w
}

// Submit offers a frame to the worker. It reports whether the frame was
// accepted; frames are dropped while a job is in flight or while no search
// is active. Submit never blocks.
func (w *Worker) Submit(ctx context.Context, f types.CameraFrame) bool {
	w.metrics.FramesReceived.Add(ctx, 1)
	w.lastFrame.Store(time.Now().UnixNano())

	q, ok := w.session.Active()
	if !ok {
		w.metrics.RecordFrameDropped(ctx, "idle")
		return false
	}
	if !w.busy.CompareAndSwap(false, true) {
		w.metrics.RecordFrameDropped(ctx, "busy")
		return false
	}
	select {
	case w.jobs <- job{frame: f, query: q}:
		return true
	default:
		// Unreachable while the busy flag guards the single slot.
		w.busy.Store(false)
		w.metrics.RecordFrameDropped(ctx, "busy")
		return false
	}
}

// Run processes jobs until ctx is cancelled or a job fails fatally.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-w.jobs:
			err := w.process(ctx, j)
			w.busy.Store(false)
			if err != nil {
				w.fatal.Store(&err)
				return err
			}
		}
	}
}

// Err returns the error that ended Run, or nil while it is running.
func (w *Worker) Err() error {
	if p := w.fatal.Load(); p != nil {
		return *p
	}
	return nil
}

// Busy reports whether a job is in flight.
func (w *Worker) Busy() bool { return w.busy.Load() }

// Latest returns the most recent snapshot, or nil before the first one.
func (w *Worker) Latest() *Snapshot { return w.latest.Load() }

// Subscribe returns a channel receiving every published snapshot, keeping
// only the newest one for slow readers, and a function to unsubscribe.
func (w *Worker) Subscribe() (<-chan *Snapshot, func()) { return w.subs.subscribe() }

// LastFrame returns when a frame was last submitted. It is zero before the
// first frame.
func (w *Worker) LastFrame() time.Time { return unixNano(w.lastFrame.Load()) }

// LastDetection returns when the detector last succeeded. It is zero before
// the first successful call.
func (w *Worker) LastDetection() time.Time { return unixNano(w.lastDetect.Load()) }

func unixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (w *Worker) process(ctx context.Context, j job) error {
	start := time.Now()
	bounds := j.frame.Image.Bounds()

	ctx, span := observe.StartJob(ctx, j.frame.Timestamp, j.query.Label, j.query.ID)
	defer span.End()
	log := observe.Logger(ctx)

	tf, err := w.geometry.Get(geometry.Config{
		PreviewWidth:   bounds.Dx(),
		PreviewHeight:  bounds.Dy(),
		CropSize:       w.cfg.CropSize,
		Rotation:       j.frame.Rotation,
		MaintainAspect: w.cfg.MaintainAspect,
	})
	if err != nil {
		observe.Fail(span, "geometry", err)
		return fmt.Errorf("pipeline: build transform: %w", err)
	}

	detectStart := time.Now()
	raw, err := w.engine.Recognize(ctx, tf.Render(j.frame.Image))
	w.metrics.DetectorDuration.Record(ctx, time.Since(detectStart).Seconds())
	if err != nil {
		w.metrics.DetectorErrors.Add(ctx, 1)
		observe.Fail(span, "detector", err)
		log.Error("pipeline: detector failed", "err", err)
		return fmt.Errorf("%w: %w", ErrDetector, err)
	}
	w.lastDetect.Store(time.Now().UnixNano())

	mapped := w.toFrameSpace(ctx, tf, raw)
	deduped := dedup.Deduplicate(mapped, w.cfg.OverlapThreshold)
	w.metrics.RecordDiscarded(ctx, "duplicate", len(mapped)-len(deduped))

	frame := types.Frame{Timestamp: j.frame.Timestamp, Detections: deduped}
	w.tracker.SetFrameSize(bounds.Dx(), bounds.Dy())
	tracks := w.tracker.Track(frame)
	w.metrics.LiveTracks.Record(ctx, int64(len(tracks)))

	outcome := w.session.ProcessFrame(ctx, j.query, frame)
	w.metrics.PipelineDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.Bool("stale", outcome.Stale)))
	span.SetAttributes(
		attribute.Int("detections", len(deduped)),
		attribute.Int("tracks", len(tracks)),
		attribute.String("session.state", outcome.State.String()),
	)
	if outcome.Stale {
		log.Debug("pipeline: discarding result for replaced query", "query_id", j.query.ID)
		return nil
	}

	w.seq++
	snap := &Snapshot{
		Seq:        w.seq,
		Timestamp:  j.frame.Timestamp,
		QueryID:    j.query.ID,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Detections: deduped,
		Tracks:     tracks,
		Session:    outcome.Status,
		Image:      j.frame.Image,
	}
	w.latest.Store(snap)
	w.subs.publish(snap)

	log.Debug("pipeline: job done",
		"timestamp", j.frame.Timestamp,
		"detections", len(deduped),
		"tracks", len(tracks),
		"state", outcome.State.String(),
		"duration", time.Since(start),
	)
	return nil
}

// toFrameSpace drops malformed and low-confidence detections and maps the
// rest into frame space. Malformed boxes are rejected before mapping because
// the mapped bounding box would hide inverted edges.
func (w *Worker) toFrameSpace(ctx context.Context, tf *geometry.Transform, raw []types.Detection) []types.Detection {
	out := make([]types.Detection, 0, len(raw))
	malformed, lowConf, unmappable := 0, 0, 0
	for _, d := range raw {
		if !dedup.Valid(d) {
			malformed++
			continue
		}
		if d.Confidence < w.cfg.MinConfidence {
			lowConf++
			continue
		}
		box, err := tf.MapToFrame(d.Box)
		if err != nil || !box.Valid() {
			unmappable++
			continue
		}
		d.Box = box
		out = append(out, d)
	}
	w.metrics.RecordDiscarded(ctx, "malformed", malformed)
	w.metrics.RecordDiscarded(ctx, "low_confidence", lowConf)
	w.metrics.RecordDiscarded(ctx, "unmappable", unmappable)
	return out
}
