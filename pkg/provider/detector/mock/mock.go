// Package mock provides a test double for the detector.Engine interface.
//
// Results are served in order: the n-th Recognize call returns Results[n], and
// once the list is exhausted the last entry is repeated. Set Block to hold
// Recognize calls until a value is sent, which lets tests keep a job in flight.
//
// Example:
//
//	e := &mock.Engine{Results: [][]types.Detection{{{Label: "cup", Confidence: 0.9}}}}
//	dets, _ := e.Recognize(ctx, img)
package mock

import (
	"context"
	"image"
	"slices"
	"sync"

	"github.com/MrWong99/crawlfree/pkg/provider/detector"
	"github.com/MrWong99/crawlfree/pkg/types"
)

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	// Bounds is the bounds of the image passed to Recognize.
	Bounds image.Rectangle
}

// Engine is a mock implementation of detector.Engine.
type Engine struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Results are returned by successive Recognize calls.
	Results [][]types.Detection

	// Err, if non-nil, is returned as the error from Recognize.
	Err error

	// Block, if non-nil, is received from before Recognize returns.
	Block chan struct{}

	// Started, if non-nil, receives a value when a Recognize call begins.
	Started chan struct{}

	// --- Call records ---

	// RecognizeCalls records every call to Recognize in order.
	RecognizeCalls []RecognizeCall

	// CloseCalls counts calls to Close.
	CloseCalls int
}

// Recognize records the call and returns the next scripted result.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]types.Detection, error) {
	e.mu.Lock()
	n := len(e.RecognizeCalls)
	e.RecognizeCalls = append(e.RecognizeCalls, RecognizeCall{Bounds: img.Bounds()})
	block, started, err := e.Block, e.Started, e.Err
	var result []types.Detection
	if len(e.Results) > 0 {
		result = slices.Clone(e.Results[min(n, len(e.Results)-1)])
	}
	e.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close records the call.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCalls++
	return nil
}

// Calls returns the number of Recognize calls so far.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.RecognizeCalls)
}

var _ detector.Engine = (*Engine)(nil)
