// Package target picks the detection matching the user's requested label.
//
// [Pick] is a pure function over one frame. [Selector] wraps it with a
// best-of-session accumulator: the most confident match seen since the last
// [Selector.Begin]. The accumulator is only fed by results for the query that
// was begun, so a late frame for an older query cannot leak into a new search.
package target

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// DefaultMinConfidence is the lowest score a detection needs to count as a
// match.
const DefaultMinConfidence = 0.5

// Pick returns the highest-confidence detection whose label equals label
// (case-insensitive) and whose confidence is at least minConfidence. Equal
// confidences resolve to the earliest detection. ok is false when nothing
// matches.
func Pick(label string, minConfidence float64, dets []types.Detection) (best types.Detection, ok bool) {
	for _, d := range dets {
		if !strings.EqualFold(d.Label, label) || d.Confidence < minConfidence {
			continue
		}
		if !ok || d.Confidence > best.Confidence {
			best, ok = d, true
		}
	}
	return best, ok
}

// Selector selects target detections and keeps the best match of the active
// search session. It is safe for concurrent use.
type Selector struct {
	minConfidence float64

	mu      sync.Mutex
	active  uuid.UUID
	best    types.Detection
	hasBest bool
}

// New returns a Selector. A negative minConfidence selects
// [DefaultMinConfidence]; zero accepts every match.
func New(minConfidence float64) *Selector {
	if minConfidence < 0 {
		minConfidence = DefaultMinConfidence
	}
	return &Selector{minConfidence: minConfidence}
}

// MinConfidence returns the configured threshold.
func (s *Selector) MinConfidence() float64 { return s.minConfidence }

// Begin starts a new session for q and clears the accumulator.
func (s *Selector) Begin(q types.TargetQuery) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = q.ID
	s.best = types.Detection{}
	s.hasBest = false
}

// End clears the active session without starting a new one.
func (s *Selector) End() {
	s.Begin(types.TargetQuery{})
}

// Select returns the frame's best match for q. When q is the active session,
// the match also feeds the best-of-session accumulator.
func (s *Selector) Select(q types.TargetQuery, dets []types.Detection) (types.Detection, bool) {
	d, ok := Pick(q.Label, s.minConfidence, dets)
	if !ok {
		return d, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if q.ID == s.active && q.ID != uuid.Nil {
		if !s.hasBest || d.Confidence > s.best.Confidence {
			s.best, s.hasBest = d, true
		}
	}
	return d, true
}

// Best returns the most confident match seen in the active session.
func (s *Selector) Best() (types.Detection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.best, s.hasBest
}
