package ops

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"os"

	"github.com/kbinani/screenshot"
)

var ErrNoDisplay = errors.New("ops: no active display")

// CaptureDisplays grabs the bounding box of every active display.
func CaptureDisplays() (image.Image, error) {
	n := screenshot.NumActiveDisplays()
	if n == 0 {
		return nil, ErrNoDisplay
	}
	bounds := image.Rectangle{}
	for i := 0; i < n; i++ {
		bounds = bounds.Union(screenshot.GetDisplayBounds(i))
	}
	img, err := screenshot.CaptureRect(bounds)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (l *Local) CaptureScreen() error {
	img, err := l.capture()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: l.jpegQuality}); err != nil {
		return err
	}

	l.captureMu.Lock()
	defer l.captureMu.Unlock()
	return os.WriteFile(l.captureFile, buf.Bytes(), 0644)
}

func (l *Local) ReadCapturedImage() ([]byte, error) {
	l.captureMu.Lock()
	defer l.captureMu.Unlock()
	return os.ReadFile(l.captureFile)
}
