// Package camera supplies the live preview stream.
//
// The phone camera is external to this program. [DirectorySource] stands in
// for it by replaying the image files of a directory at a fixed frame rate,
// which is how recorded sessions are reproduced on a workstation.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/MrWong99/crawlfree/pkg/types"
)

// ErrNoFrames is returned by [NewDirectorySource] when the directory holds no
// readable image files.
var ErrNoFrames = errors.New("camera: no image files found")

// extensions lists the file types imaging can decode.
var extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff"}

// Option configures a [DirectorySource].
type Option func(*DirectorySource)

// WithFPS sets the replay rate. Non-positive values are ignored.
func WithFPS(fps float64) Option {
	return func(s *DirectorySource) {
		if fps > 0 {
			s.interval = time.Duration(float64(time.Second) / fps)
		}
	}
}

// WithPreviewSize resizes every frame to width×height, emulating the preview
// resolution of the device. Zero keeps the original size.
func WithPreviewSize(width, height int) Option {
	return func(s *DirectorySource) { s.width, s.height = width, height }
}

// WithRotation sets the sensor rotation reported with every frame.
func WithRotation(degrees int) Option {
	return func(s *DirectorySource) { s.rotation = degrees }
}

// WithLoop restarts from the first file after the last one.
func WithLoop(loop bool) Option {
	return func(s *DirectorySource) { s.loop = loop }
}

// DirectorySource replays image files in lexical order.
type DirectorySource struct {
	files    []string
	interval time.Duration
	width    int
	height   int
	rotation int
	loop     bool
}

// NewDirectorySource lists the image files in dir. The default rate is 10
// frames per second.
func NewDirectorySource(dir string, opts ...Option) (*DirectorySource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("camera: read %q: %w", dir, err)
	}
	s := &DirectorySource{interval: 100 * time.Millisecond}
	for _, e := range entries {
		if e.IsDir() || !slices.Contains(extensions, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		s.files = append(s.files, filepath.Join(dir, e.Name()))
	}
	if len(s.files) == 0 {
		return nil, fmt.Errorf("%w in %q", ErrNoFrames, dir)
	}
	slices.Sort(s.files)
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Len returns the number of files in one pass.
func (s *DirectorySource) Len() int { return len(s.files) }

// Run decodes one file per tick and passes it to handle until ctx is
// cancelled or, without looping, the files are exhausted. Files that fail to
// decode are skipped. Timestamps start at 1 and increase by one per delivered
// frame. handle must not block; it is expected to drop frames it cannot take.
func (s *DirectorySource) Run(ctx context.Context, handle func(types.CameraFrame)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var ts int64
	for i := 0; ; i++ {
		if i == len(s.files) {
			if !s.loop {
				slog.Info("camera: replay finished", "frames", ts)
				return nil
			}
			i = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		img, err := s.decode(s.files[i])
		if err != nil {
			slog.Warn("camera: skipping frame", "file", s.files[i], "err", err)
			continue
		}
		ts++
		handle(types.CameraFrame{Timestamp: ts, Image: img, Rotation: s.rotation})
	}
}

func (s *DirectorySource) decode(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	if s.width > 0 && s.height > 0 {
		img = imaging.Resize(img, s.width, s.height, imaging.Linear)
	}
	return img, nil
}
