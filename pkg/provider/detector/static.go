package detector

import (
	"context"
	"image"
	"slices"
	"sync"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// Static is an [Engine] that reports the same detections for every image. It
// is used for demos and end-to-end tests where no model file is available.
type Static struct {
	mu         sync.RWMutex
	detections []types.Detection
	closed     bool
}

// NewStatic returns a Static engine reporting dets.
func NewStatic(dets []types.Detection) *Static {
	return &Static{detections: slices.Clone(dets)}
}

// Set replaces the reported detections.
func (s *Static) Set(dets []types.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections = slices.Clone(dets)
}

// Recognize implements [Engine].
func (s *Static) Recognize(ctx context.Context, _ image.Image) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrNotInitialized
	}
	return slices.Clone(s.detections), nil
}

// Close implements [Engine].
func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
