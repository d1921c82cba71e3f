package drowsiness

import (
	"bytes"
	"image"
	"image/jpeg"

	"github.com/sirupsen/logrus"
)

// ImageCamera adapts any image producer into a Camera, encoding each frame
// as JPEG at the configured quality. Platform camera integrations supply the
// producer; the telemetry channel only ever sees encoded bytes.
type ImageCamera struct {
	Source  func() image.Image // nil image means no decoded frame yet
	Quality int
}

func (c *ImageCamera) Acquire() (FrameSource, error) {
	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &encodingSource{source: c.Source, quality: quality}, nil
}

func (c *ImageCamera) Release() {}

type encodingSource struct {
	source  func() image.Image
	quality int
}

func (s *encodingSource) Frame() ([]byte, bool) {
	if s.source == nil {
		return nil, false
	}
	img := s.source()
	if img == nil {
		return nil, false
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: s.quality}); err != nil {
		logrus.WithError(err).Debug("drowsiness: frame encode failed")
		return nil, false
	}
	return buf.Bytes(), true
}
