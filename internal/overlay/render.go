package overlay

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"

	"github.com/MrWong99/crawlfree/internal/pipeline"
	"github.com/MrWong99/crawlfree/pkg/types"
)

const (
	trackStroke  = 2
	targetStroke = 4
)

// fallbackColor is used for tracks without a parseable colour.
var fallbackColor = color.NRGBA{R: 255, G: 255, B: 0, A: 255}

// targetColor outlines the found target.
var targetColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}

// bestColor outlines the session's most confident match when it differs
// from the target that completed the search.
var bestColor = color.NRGBA{R: 0, G: 255, B: 255, A: 255}

// Render draws the snapshot's tracks onto a copy of its frame. With
// withBoxes false only the frame is copied. The snapshot is not modified.
func Render(s *pipeline.Snapshot, withBoxes bool) *image.NRGBA {
	img := imaging.Clone(s.Image)
	if !withBoxes {
		return img
	}
	for _, tr := range s.Tracks {
		strokeRect(img, tr.Box, trackColor(tr.Color), trackStroke)
	}
	if st := s.Session; st.HasBest && (!st.HasTarget || st.Best.Box != st.Target.Box) {
		strokeRect(img, st.Best.Box, bestColor, trackStroke)
	}
	if s.Session.HasTarget {
		strokeRect(img, s.Session.Target.Box, targetColor, targetStroke)
	}
	return img
}

func trackColor(hex string) color.NRGBA {
	c, err := colorful.Hex(hex)
	if err != nil {
		return fallbackColor
	}
	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// strokeRect outlines box with the given stroke width, drawn inwards and
// clipped to img.
func strokeRect(img *image.NRGBA, box types.Rect, c color.NRGBA, width int) {
	if !box.Valid() {
		return
	}
	r := image.Rect(
		int(math.Round(box.Left)), int(math.Round(box.Top)),
		int(math.Round(box.Right)), int(math.Round(box.Bottom)),
	).Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	w := min(width, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+w), // top
		image.Rect(r.Min.X, r.Max.Y-w, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+w, r.Max.Y), // left
		image.Rect(r.Max.X-w, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		for y := e.Min.Y; y < e.Max.Y; y++ {
			for x := e.Min.X; x < e.Max.X; x++ {
				img.SetNRGBA(x, y, c)
			}
		}
	}
}
