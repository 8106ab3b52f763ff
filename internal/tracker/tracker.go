// Package tracker assigns persistent identities to detections across frames so
// that overlay boxes stay stable while the camera moves.
//
// Each frame is associated greedily: detections are visited in descending
// confidence order (stable for equal scores) and each takes the nearest live
// track that shares its label, has not been claimed yet this frame, and whose
// box centre lies within the match gate. The gate is a fraction of the frame
// diagonal. Unmatched detections start new tracks; tracks that go unmatched
// accumulate misses and are evicted once the miss count exceeds MaxMisses.
//
// The [Tracker] is the sole owner of its tracks. [Tracker.Track] returns a
// freshly allocated snapshot; later frames never modify a snapshot already
// handed out.
package tracker

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// Config tunes association and eviction.
type Config struct {
	// MaxMisses is the number of consecutive unmatched frames a track survives.
	// A track whose miss count exceeds MaxMisses is evicted. Default: 5.
	MaxMisses int

	// MatchDistanceRatio is the maximum centre distance for a match, as a
	// fraction of the frame diagonal. Default: 0.2.
	MatchDistanceRatio float64
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		MaxMisses:          5,
		MatchDistanceRatio: 0.2,
	}
}

// track is the tracker-internal mutable state of one object.
type track struct {
	obj     types.TrackedObject
	claimed bool
}

// Tracker associates detections across frames. It is safe for concurrent use,
// though frames are expected to arrive from a single worker.
type Tracker struct {
	mu       sync.Mutex
	cfg      Config
	diagonal float64
	tracks   []*track
	nextID   uint64
}

// New creates a tracker. Zero fields in cfg are replaced with defaults.
func New(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.MaxMisses <= 0 {
		cfg.MaxMisses = def.MaxMisses
	}
	if cfg.MatchDistanceRatio <= 0 {
		cfg.MatchDistanceRatio = def.MatchDistanceRatio
	}
	return &Tracker{cfg: cfg, nextID: 1}
}

// SetFrameSize sets the preview dimensions used to scale the match gate.
// Until it is called, candidates are gated by label only.
func (t *Tracker) SetFrameSize(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.diagonal = math.Hypot(float64(width), float64(height))
}

// Reset drops every live track. Identifiers keep increasing.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.tracks)
}

// Track folds one deduplicated frame into the live track set and returns a
// snapshot of all live tracks ordered by creation.
func (t *Tracker) Track(frame types.Frame) []types.TrackedObject {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, tr := range t.tracks {
		tr.claimed = false
	}

	gate := math.Inf(1)
	if t.diagonal > 0 {
		gate = t.cfg.MatchDistanceRatio * t.diagonal
	}

	order := make([]int, len(frame.Detections))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(frame.Detections[b].Confidence, frame.Detections[a].Confidence)
	})

	var spawned []*track
	for _, i := range order {
		d := frame.Detections[i]
		if best := t.nearest(d, gate); best != nil {
			best.claimed = true
			best.obj.Box = d.Box
			best.obj.LastSeen = frame.Timestamp
			best.obj.State = types.TrackMatched
			best.obj.Misses = 0
			continue
		}
		spawned = append(spawned, t.spawn(d, frame.Timestamp))
	}

	live := make([]*track, 0, len(t.tracks)+len(spawned))
	for _, tr := range t.tracks {
		if !tr.claimed {
			tr.obj.Misses++
			tr.obj.State = types.TrackStale
			if tr.obj.Misses > t.cfg.MaxMisses {
				continue
			}
		}
		live = append(live, tr)
	}
	t.tracks = append(live, spawned...)

	out := make([]types.TrackedObject, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = tr.obj
	}
	return out
}

// nearest returns the closest unclaimed same-label track within gate, or nil.
// Equal distances resolve to the older track.
func (t *Tracker) nearest(d types.Detection, gate float64) *track {
	dx, dy := d.Box.Center()
	var (
		best     *track
		bestDist = gate
	)
	for _, tr := range t.tracks {
		if tr.claimed || !strings.EqualFold(tr.obj.Label, d.Label) {
			continue
		}
		tx, ty := tr.obj.Box.Center()
		dist := math.Hypot(dx-tx, dy-ty)
		if dist < bestDist {
			best, bestDist = tr, dist
		}
	}
	return best
}

func (t *Tracker) spawn(d types.Detection, ts int64) *track {
	id := t.nextID
	t.nextID++
	return &track{
		obj: types.TrackedObject{
			ID:       fmt.Sprintf("track_%d", id),
			Label:    d.Label,
			Box:      d.Box,
			LastSeen: ts,
			State:    types.TrackNew,
			Color:    colorFor(id),
		},
	}
}

// colorFor spreads hues by the golden angle so neighbouring IDs differ.
func colorFor(id uint64) string {
	hue := math.Mod(float64(id)*137.508, 360)
	return colorful.Hsv(hue, 0.65, 0.95).Hex()
}
