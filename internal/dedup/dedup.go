// Package dedup removes malformed and duplicate detections from a single frame.
//
// Two detections are duplicates when they share a label and the intersection
// of their boxes covers at least the overlap threshold of the smaller box.
// Of each duplicate pair only the more confident detection survives; equal
// confidences keep the earlier detection. The filter never mutates its input,
// preserves the relative order of survivors, and is idempotent.
package dedup

import (
	"math"
	"strings"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// DefaultOverlapThreshold is the intersection-over-smaller-area fraction at
// which two same-label detections are treated as one physical object.
const DefaultOverlapThreshold = 0.5

// Valid reports whether d can safely enter tracking and relation reasoning:
// the box must be finite with positive width and height, and the confidence
// must lie in [0, 1].
func Valid(d types.Detection) bool {
	if math.IsNaN(d.Confidence) || d.Confidence < 0 || d.Confidence > 1 {
		return false
	}
	return d.Box.Valid()
}

// Sanitize returns the valid detections of dets in order, together with the
// number of detections that were discarded.
func Sanitize(dets []types.Detection) (valid []types.Detection, discarded int) {
	valid = make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		if !Valid(d) {
			discarded++
			continue
		}
		valid = append(valid, d)
	}
	return valid, discarded
}

// Overlap returns the intersection area of a and b divided by the smaller of
// the two areas. It is 0 when the boxes do not intersect or either is empty.
func Overlap(a, b types.Rect) float64 {
	smaller := min(a.Area(), b.Area())
	if smaller <= 0 {
		return 0
	}
	return a.Intersect(b).Area() / smaller
}

// Deduplicate returns a new slice holding the detections of dets that are
// valid and not dominated by a same-label duplicate. A detection is dominated
// when another detection overlapping it by at least threshold has a strictly
// higher confidence, or an equal confidence and an earlier position.
func Deduplicate(dets []types.Detection, threshold float64) []types.Detection {
	valid, _ := Sanitize(dets)

	out := make([]types.Detection, 0, len(valid))
	for i, d := range valid {
		if !dominated(valid, i, threshold) {
			out = append(out, d)
		}
	}
	return out
}

func dominated(dets []types.Detection, i int, threshold float64) bool {
	d := dets[i]
	for j, o := range dets {
		if j == i || !strings.EqualFold(o.Label, d.Label) {
			continue
		}
		if Overlap(d.Box, o.Box) < threshold {
			continue
		}
		if o.Confidence > d.Confidence || (o.Confidence == d.Confidence && j < i) {
			return true
		}
	}
	return false
}
