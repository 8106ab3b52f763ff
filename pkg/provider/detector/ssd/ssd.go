//go:build gocv

package ssd

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/MrWong99/crawlfree/pkg/provider/detector"
	"github.com/MrWong99/crawlfree/pkg/types"
)

// Engine runs an SSD model through OpenCV DNN.
type Engine struct {
	mu     sync.Mutex
	net    gocv.Net
	names  []string
	size   int
	loaded bool
}

// New loads the model at modelPath (with optional configPath, as accepted by
// gocv.ReadNet) and the label map at labelsPath. size is the square input
// edge the model expects, typically 300.
func New(modelPath, configPath, labelsPath string, size int) (*Engine, error) {
	if size <= 0 {
		return nil, fmt.Errorf("ssd: input size must be positive, got %d", size)
	}
	f, err := os.Open(labelsPath)
	if err != nil {
		return nil, fmt.Errorf("ssd: open label map: %w", err)
	}
	defer f.Close()
	names, err := ParseLabelMap(f)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("ssd: load model %q: %w", modelPath, detector.ErrNotInitialized)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, fmt.Errorf("ssd: set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, fmt.Errorf("ssd: set target: %w", err)
	}
	return &Engine{net: net, names: names, size: size, loaded: true}, nil
}

// Recognize implements detector.Engine.
func (e *Engine) Recognize(ctx context.Context, img image.Image) ([]types.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil, detector.ErrNotInitialized
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("ssd: convert image: %w", err)
	}
	defer mat.Close()

	// MobileNet expects [-1,1] inputs; the Mat is already RGB.
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(e.size, e.size), gocv.NewScalar(127.5, 127.5, 127.5, 0), false, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	defer out.Close()

	rows := out.Reshape(1, out.Total()/rowWidth)
	defer rows.Close()

	values := make([]float32, 0, rows.Rows()*rowWidth)
	for i := 0; i < rows.Rows(); i++ {
		for j := 0; j < rowWidth; j++ {
			values = append(values, rows.GetFloatAt(i, j))
		}
	}
	return Decode(values, e.size, e.names), nil
}

// Close implements detector.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.loaded {
		return nil
	}
	e.loaded = false
	return e.net.Close()
}

var _ detector.Engine = (*Engine)(nil)
