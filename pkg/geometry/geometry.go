// Package geometry maps bounding boxes between the camera preview frame and the
// fixed-size square crop that is fed to the detector.
//
// A [Transform] holds a forward affine matrix (frame → crop) and its inverse
// (crop → frame). The forward matrix is built in this order:
//
//  1. When the sensor is rotated, translate the preview centre to the origin
//     and rotate by the sensor orientation.
//  2. Scale the (possibly transposed) preview onto the crop. With
//     MaintainAspect the larger of the two axis factors is used for both axes,
//     otherwise each axis is scaled independently.
//  3. When the sensor is rotated, translate the origin to the crop centre.
//
// Matrices are 3×3 homogeneous [mat.Dense] values. A Transform is immutable
// after construction and safe for concurrent use.
package geometry

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// ErrDegenerateTransform is returned when the forward transform cannot be
// inverted, e.g. because a dimension is zero.
var ErrDegenerateTransform = errors.New("geometry: degenerate transform")

// ErrInvalidRotation is returned when the sensor rotation is not a multiple of
// 90 degrees.
var ErrInvalidRotation = errors.New("geometry: rotation must be a multiple of 90 degrees")

// detEpsilon is the smallest absolute determinant accepted as invertible.
const detEpsilon = 1e-12

// Config describes the frame and crop spaces a [Transform] maps between.
type Config struct {
	// PreviewWidth and PreviewHeight are the preview frame dimensions in pixels.
	PreviewWidth  int
	PreviewHeight int

	// CropSize is the side length of the square detector input (e.g. 300).
	CropSize int

	// Rotation is the sensor orientation in degrees. Must be a multiple of 90.
	Rotation int

	// MaintainAspect forbids non-uniform scaling.
	MaintainAspect bool
}

// Transform maps boxes between frame space and crop space.
type Transform struct {
	cfg     Config
	forward *mat.Dense
	inverse *mat.Dense
}

// New builds the forward transform for cfg and inverts it. It returns
// [ErrInvalidRotation] or [ErrDegenerateTransform] for unusable configs.
func New(cfg Config) (*Transform, error) {
	if cfg.Rotation%90 != 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidRotation, cfg.Rotation)
	}
	if cfg.PreviewWidth <= 0 || cfg.PreviewHeight <= 0 || cfg.CropSize <= 0 {
		return nil, fmt.Errorf("%w: preview %dx%d, crop %d",
			ErrDegenerateTransform, cfg.PreviewWidth, cfg.PreviewHeight, cfg.CropSize)
	}

	forward := buildForward(cfg)

	det := mat.Det(forward)
	if math.IsNaN(det) || math.IsInf(det, 0) || math.Abs(det) < detEpsilon {
		return nil, fmt.Errorf("%w: determinant %g", ErrDegenerateTransform, det)
	}

	var inverse mat.Dense
	if err := inverse.Inverse(forward); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateTransform, err)
	}

	return &Transform{cfg: cfg, forward: forward, inverse: &inverse}, nil
}

// buildForward composes the frame → crop matrix for cfg.
func buildForward(cfg Config) *mat.Dense {
	srcW, srcH := float64(cfg.PreviewWidth), float64(cfg.PreviewHeight)
	dst := float64(cfg.CropSize)

	m := identity()

	if cfg.Rotation != 0 {
		m = compose(translate(-srcW/2, -srcH/2), m)
		m = compose(rotate(cfg.Rotation), m)
	}

	transpose := (abs(cfg.Rotation)+90)%180 == 0
	inW, inH := srcW, srcH
	if transpose {
		inW, inH = srcH, srcW
	}

	if inW != dst || inH != dst {
		sx, sy := dst/inW, dst/inH
		if cfg.MaintainAspect {
			s := max(sx, sy)
			sx, sy = s, s
		}
		m = compose(scale(sx, sy), m)
	}

	if cfg.Rotation != 0 {
		m = compose(translate(dst/2, dst/2), m)
	}
	return m
}

// Config returns the configuration the transform was built from.
func (t *Transform) Config() Config { return t.cfg }

// MapToFrame maps a crop-space box into preview frame space.
func (t *Transform) MapToFrame(r types.Rect) (types.Rect, error) {
	if t == nil || t.inverse == nil {
		return types.Rect{}, ErrDegenerateTransform
	}
	return mapRect(t.inverse, r)
}

// MapToCrop maps a preview frame box into crop space.
func (t *Transform) MapToCrop(r types.Rect) (types.Rect, error) {
	if t == nil || t.forward == nil {
		return types.Rect{}, ErrDegenerateTransform
	}
	return mapRect(t.forward, r)
}

// mapRect transforms all four corners of r and returns their bounding box.
func mapRect(m *mat.Dense, r types.Rect) (types.Rect, error) {
	corners := [4][2]float64{
		{r.Left, r.Top},
		{r.Right, r.Top},
		{r.Right, r.Bottom},
		{r.Left, r.Bottom},
	}

	out := types.Rect{
		Left:   math.Inf(1),
		Top:    math.Inf(1),
		Right:  math.Inf(-1),
		Bottom: math.Inf(-1),
	}
	var p mat.VecDense
	for _, c := range corners {
		p.MulVec(m, mat.NewVecDense(3, []float64{c[0], c[1], 1}))
		x, y := p.AtVec(0), p.AtVec(1)
		out.Left = min(out.Left, x)
		out.Top = min(out.Top, y)
		out.Right = max(out.Right, x)
		out.Bottom = max(out.Bottom, y)
	}
	if !out.Finite() {
		return types.Rect{}, fmt.Errorf("%w: non-finite result for %+v", ErrDegenerateTransform, r)
	}
	return out, nil
}

// ── Matrix helpers ─────────────────────────────────────────────────────────────

func identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

func translate(dx, dy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, dx,
		0, 1, dy,
		0, 0, 1,
	})
}

func scale(sx, sy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		sx, 0, 0,
		0, sy, 0,
		0, 0, 1,
	})
}

// rotate returns a clockwise rotation in image coordinates (Y down). Right
// angles are snapped to exact values so that 90° turns stay integral.
func rotate(degrees int) *mat.Dense {
	var sin, cos float64
	switch ((degrees % 360) + 360) % 360 {
	case 0:
		cos = 1
	case 90:
		sin = 1
	case 180:
		cos = -1
	case 270:
		sin = -1
	}
	return mat.NewDense(3, 3, []float64{
		cos, -sin, 0,
		sin, cos, 0,
		0, 0, 1,
	})
}

// compose returns a·b, i.e. b is applied first.
func compose(a, b *mat.Dense) *mat.Dense {
	var out mat.Dense
	out.Mul(a, b)
	return &out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// ── Cache ──────────────────────────────────────────────────────────────────────

// Cache holds the transform for the most recently seen [Config] and rebuilds it
// only when the preview size or orientation changes. It is safe for concurrent
// use.
type Cache struct {
	mu      sync.Mutex
	current *Transform
}

// Get returns a transform for cfg, reusing the cached one when cfg is
// unchanged.
func (c *Cache) Get(cfg Config) (*Transform, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != nil && c.current.cfg == cfg {
		return c.current, nil
	}
	t, err := New(cfg)
	if err != nil {
		return nil, err
	}
	c.current = t
	return t, nil
}
