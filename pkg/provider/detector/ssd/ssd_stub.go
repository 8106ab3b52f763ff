//go:build !gocv

package ssd

import "github.com/MrWong99/crawlfree/pkg/provider/detector"

// New reports [ErrUnavailable]. Rebuild with -tags gocv to load models.
func New(modelPath, configPath, labelsPath string, size int) (detector.Engine, error) {
	return nil, ErrUnavailable
}
