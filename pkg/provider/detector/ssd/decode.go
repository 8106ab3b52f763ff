// Package ssd implements detector.Engine on top of an SSD MobileNet model
// loaded through the OpenCV DNN module (gocv).
//
// The OpenCV binding is only compiled with the "gocv" build tag. Without it,
// [New] returns [ErrUnavailable] so the rest of the binary still builds on
// machines without OpenCV. Label map parsing and output decoding are plain Go
// and always available.
package ssd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// ErrUnavailable is returned by [New] in builds without the gocv tag.
var ErrUnavailable = errors.New("ssd: built without gocv support")

// rowWidth is the number of values per detection in the SSD output blob:
// image id, class id, confidence, left, top, right, bottom.
const rowWidth = 7

// placeholder marks unused class slots in TensorFlow label maps.
const placeholder = "???"

// ParseLabelMap reads one class name per line. Line n names class id n.
// Blank lines are kept as empty names so ids stay aligned.
func ParseLabelMap(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		names = append(names, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ssd: read label map: %w", err)
	}
	if len(names) == 0 {
		return nil, errors.New("ssd: label map is empty")
	}
	return names, nil
}

// Decode converts a flattened [N,7] SSD output into detections in crop pixel
// coordinates. Box values are normalised to [0,1] by the model and scaled by
// size. Rows with an unknown or placeholder class, or with non-finite values,
// are skipped. A trailing partial row is ignored.
func Decode(values []float32, size int, names []string) []types.Detection {
	var out []types.Detection
	s := float64(size)
	for i := 0; i+rowWidth <= len(values); i += rowWidth {
		row := values[i : i+rowWidth]
		class := int(row[1])
		if class < 0 || class >= len(names) {
			continue
		}
		label := names[class]
		if label == "" || label == placeholder {
			continue
		}
		d := types.Detection{
			Label:      label,
			Confidence: float64(row[2]),
			Box: types.Rect{
				Left:   float64(row[3]) * s,
				Top:    float64(row[4]) * s,
				Right:  float64(row[5]) * s,
				Bottom: float64(row[6]) * s,
			},
		}
		if math.IsNaN(d.Confidence) || !d.Box.Finite() {
			continue
		}
		out = append(out, d)
	}
	return out
}
