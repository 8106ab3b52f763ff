// Package relation decides where a target object is relative to its
// surroundings.
//
// A neighbour whose box fully contains the target box supports it, and the
// result is On(neighbour). Containment always wins over confidence; among
// several containing neighbours the first in detection order is chosen.
// Without a containing neighbour, the most confident remaining neighbour is
// reported as Beside(neighbour), with ties resolved to the earliest. With no
// neighbours at all the result is Unknown.
//
// Everything here is a pure function of its arguments.
package relation

import (
	"strings"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// Contains reports whether outer encloses inner on all four edges.
func Contains(outer, inner types.Rect) bool {
	return outer.Contains(inner)
}

// Neighbors returns the detections of dets whose label differs from the
// target's label, in their original order.
func Neighbors(target types.Detection, dets []types.Detection) []types.Detection {
	out := make([]types.Detection, 0, len(dets))
	for _, d := range dets {
		if strings.EqualFold(d.Label, target.Label) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Relate computes the relation between target and neighbors. Neighbours
// sharing the target's label are ignored.
func Relate(target types.Detection, neighbors []types.Detection) types.RelationResult {
	var (
		beside types.Detection
		found  bool
	)
	for _, n := range neighbors {
		if strings.EqualFold(n.Label, target.Label) {
			continue
		}
		if Contains(n.Box, target.Box) {
			return types.On(n.Label)
		}
		if !found || n.Confidence > beside.Confidence {
			beside, found = n, true
		}
	}
	if !found {
		return types.Unknown()
	}
	return types.Beside(beside.Label)
}
