// Package types defines the shared types used across all crawlfree packages.
//
// These types form the lingua franca between the detector providers, the
// post-processing stages, the guidance session, and the overlay feed. Each
// package defines its own internal state, but cross-cutting values live here to
// avoid circular imports. All types in this package are plain values: once a
// [Detection] or [TrackedObject] has been handed to a consumer it is never
// mutated again.
package types

import (
	"fmt"
	"image"
	"math"

	"github.com/google/uuid"
)

// Rect is an axis-aligned bounding box in pixel coordinates. The origin is the
// top-left corner of the image; Y grows downwards.
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// Width returns Right-Left. It is negative for inverted boxes.
func (r Rect) Width() float64 { return r.Right - r.Left }

// Height returns Bottom-Top. It is negative for inverted boxes.
func (r Rect) Height() float64 { return r.Bottom - r.Top }

// Area returns the box area, or 0 when the box is empty or inverted.
func (r Rect) Area() float64 {
	w, h := r.Width(), r.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Center returns the box centre point.
func (r Rect) Center() (x, y float64) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

// Finite reports whether all four coordinates are finite numbers.
func (r Rect) Finite() bool {
	for _, v := range [...]float64{r.Left, r.Top, r.Right, r.Bottom} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Valid reports whether r is finite and has strictly positive width and height.
func (r Rect) Valid() bool {
	return r.Finite() && r.Left < r.Right && r.Top < r.Bottom
}

// Intersect returns the overlapping region of r and o. The result is not
// Valid when the boxes do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	return Rect{
		Left:   max(r.Left, o.Left),
		Top:    max(r.Top, o.Top),
		Right:  min(r.Right, o.Right),
		Bottom: min(r.Bottom, o.Bottom),
	}
}

// Contains reports whether every edge of inner lies on or within r.
func (r Rect) Contains(inner Rect) bool {
	return r.Left <= inner.Left &&
		r.Top <= inner.Top &&
		r.Right >= inner.Right &&
		r.Bottom >= inner.Bottom
}

// Detection is a single labelled, confidence-scored bounding box produced by
// a detector for one frame.
type Detection struct {
	// Label is the class name reported by the detector (e.g. "laptop").
	Label string `json:"label"`

	// Confidence is the detector score in [0, 1].
	Confidence float64 `json:"confidence"`

	// Box is the bounding box. Detectors report it in crop space; after
	// geometry mapping it is in preview frame space.
	Box Rect `json:"box"`
}

// Frame is the ordered detection set for one processed camera frame.
type Frame struct {
	// Timestamp increases monotonically across frames of one stream.
	Timestamp int64 `json:"timestamp"`

	// Detections in the order reported by the detector.
	Detections []Detection `json:"detections"`
}

// CameraFrame is one preview image as delivered by the camera.
type CameraFrame struct {
	// Timestamp increases monotonically across frames of one stream.
	Timestamp int64

	// Image is the preview image. Consumers must not modify it.
	Image image.Image

	// Rotation is the clockwise sensor rotation in degrees (0, 90, 180 or
	// 270) needed to bring the image upright.
	Rotation int
}

// TrackState is the lifecycle state of a [TrackedObject].
type TrackState string

const (
	// TrackNew marks an object created from an unmatched detection this frame.
	TrackNew TrackState = "new"

	// TrackMatched marks an object matched to a detection this frame.
	TrackMatched TrackState = "matched"

	// TrackStale marks an object that was not matched this frame but has not
	// yet exceeded the miss limit.
	TrackStale TrackState = "stale"
)

// TrackedObject is a detection with a persistent identity across frames. The
// tracker hands out copies; holders of a TrackedObject never observe later
// updates.
type TrackedObject struct {
	ID       string     `json:"id"`
	Label    string     `json:"label"`
	Box      Rect       `json:"box"`
	LastSeen int64      `json:"last_seen"`
	State    TrackState `json:"state"`

	// Misses is the number of consecutive frames without a match.
	Misses int `json:"misses"`

	// Color is a stable hex colour (e.g. "#3fa2e0") for overlay rendering.
	Color string `json:"color"`
}

// TargetQuery is one validated voice request for an object.
type TargetQuery struct {
	// ID identifies the query. Results computed for an older query carry its
	// ID so consumers can discard them once a newer query is active.
	ID uuid.UUID `json:"id"`

	// Label is the normalised (lowercase) requested label.
	Label string `json:"label"`

	// StartedAt is the frame timestamp at which the query was issued.
	StartedAt int64 `json:"started_at"`
}

// NewTargetQuery returns a query with a fresh random ID.
func NewTargetQuery(label string, startedAt int64) TargetQuery {
	return TargetQuery{ID: uuid.New(), Label: label, StartedAt: startedAt}
}

// IsZero reports whether q is the zero query (no active request).
func (q TargetQuery) IsZero() bool {
	return q.ID == uuid.Nil
}

// RelationKind tags a [RelationResult].
type RelationKind int

const (
	// RelationUnknown means no neighbour was available.
	RelationUnknown RelationKind = iota

	// RelationOn means the target lies within the reference object's box.
	RelationOn

	// RelationBeside means the reference object is the most confident
	// non-containing neighbour.
	RelationBeside
)

// String returns the lower-case name of the kind.
func (k RelationKind) String() string {
	switch k {
	case RelationOn:
		return "on"
	case RelationBeside:
		return "beside"
	default:
		return "unknown"
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (k RelationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *RelationKind) UnmarshalText(text []byte) error {
	for _, v := range []RelationKind{RelationUnknown, RelationOn, RelationBeside} {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("types: unknown relation kind %q", text)
}

// RelationResult is the spatial judgment about a target and its surroundings.
// Reference is empty when Kind is [RelationUnknown].
type RelationResult struct {
	Kind      RelationKind `json:"kind"`
	Reference string       `json:"reference,omitempty"`
}

// On returns an On(reference) result.
func On(reference string) RelationResult {
	return RelationResult{Kind: RelationOn, Reference: reference}
}

// Beside returns a Beside(reference) result.
func Beside(reference string) RelationResult {
	return RelationResult{Kind: RelationBeside, Reference: reference}
}

// Unknown returns the Unknown result.
func Unknown() RelationResult {
	return RelationResult{Kind: RelationUnknown}
}
