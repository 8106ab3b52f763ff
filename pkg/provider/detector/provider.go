// Package detector defines the Engine interface for object detection backends.
//
// An engine wraps an opaque detection model (e.g. SSD MobileNet through the
// OpenCV DNN module) and turns one square crop image into a list of labelled
// boxes. Boxes are reported in crop pixel coordinates; mapping them back into
// the preview frame is the caller's job.
//
// Engines are synchronous and potentially slow. The processing pipeline never
// calls Recognize concurrently with itself, but implementations should still
// guard their internal state.
package detector

import (
	"context"
	"errors"
	"image"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// ErrNotInitialized is returned by Recognize when the engine has no loaded
// model, for example after Close.
var ErrNotInitialized = errors.New("detector: engine not initialized")

// Engine is the abstraction over any detection backend.
type Engine interface {
	// Recognize runs the model on img and returns detections in crop space,
	// in the order reported by the model. It returns [ErrNotInitialized] when
	// the model is not loaded.
	Recognize(ctx context.Context, img image.Image) ([]types.Detection, error)

	// Close releases the model. Recognize fails after Close.
	Close() error
}
