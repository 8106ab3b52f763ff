package geometry

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Render draws a preview frame into the square detector crop, applying the
// same rotation and scaling as the forward transform so that detector boxes
// can be mapped back with [Transform.MapToFrame].
func (t *Transform) Render(img image.Image) *image.NRGBA {
	c := t.cfg.CropSize

	// imaging rotates counter-clockwise; the transform rotates clockwise.
	switch ((t.cfg.Rotation % 360) + 360) % 360 {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}

	if !t.cfg.MaintainAspect {
		return imaging.Resize(img, c, c, imaging.Linear)
	}
	if t.cfg.Rotation != 0 {
		return imaging.Fill(img, c, c, imaging.Center, imaging.Linear)
	}

	// Unrotated aspect-preserving scale is anchored at the origin.
	b := img.Bounds()
	s := max(float64(c)/float64(b.Dx()), float64(c)/float64(b.Dy()))
	w := int(math.Round(float64(b.Dx()) * s))
	h := int(math.Round(float64(b.Dy()) * s))
	resized := imaging.Resize(img, w, h, imaging.Linear)
	return imaging.Crop(resized, image.Rect(0, 0, c, c))
}
