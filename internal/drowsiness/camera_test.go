package drowsiness

import (
	"bytes"
	"image"
	"testing"
)

func TestImageCameraEncodesJPEGFrames(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	cam := &ImageCamera{Source: func() image.Image { return img }, Quality: 80}

	src, err := cam.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	data, ok := src.Frame()
	if !ok {
		t.Fatal("Frame returned no data")
	}
	// JPEG SOI marker.
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Fatalf("frame is not JPEG: % x", data[:4])
	}
}

func TestImageCameraSkipsWhenNoFrameDecoded(t *testing.T) {
	cam := &ImageCamera{Source: func() image.Image { return nil }}
	src, err := cam.Acquire()
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, ok := src.Frame(); ok {
		t.Fatal("expected no frame from a nil image")
	}
}
