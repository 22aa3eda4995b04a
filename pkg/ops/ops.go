// Package ops holds the side-effecting operations the server runs on behalf of a client.
package ops

import (
	"image"
	"sync"
)

// Operations is everything the command dispatcher can ask the host to do.
// Every failure is reported as an error; the dispatcher collapses it to "False".
type Operations interface {
	// ListFiles returns the regular files matching pattern. A directory pattern
	// lists the files directly inside it.
	ListFiles(pattern string) ([]string, error)
	DeleteFile(path string) error
	CopyFile(src, dst string) error
	RunProgram(path string) error
	// CaptureScreen writes a JPEG of the screen to the capture file.
	CaptureScreen() error
	// ReadCapturedImage returns the bytes written by the last CaptureScreen.
	ReadCapturedImage() ([]byte, error)
}

// Capturer grabs the current screen contents.
type Capturer func() (image.Image, error)

// Local runs operations against the host filesystem, process table and display.
type Local struct {
	captureFile string
	capture     Capturer
	jpegQuality int

	// guards the capture file between CaptureScreen and ReadCapturedImage
	captureMu sync.Mutex
}

type Option func(*Local)

// WithCapturer replaces the display capture, e.g. on headless hosts or in tests.
func WithCapturer(c Capturer) Option {
	return func(l *Local) {
		l.capture = c
	}
}

func WithJPEGQuality(q int) Option {
	return func(l *Local) {
		l.jpegQuality = q
	}
}

func NewLocal(captureFile string, opts ...Option) *Local {
	l := &Local{
		captureFile: captureFile,
		capture:     CaptureDisplays,
		jpegQuality: 85,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CaptureFile is the fixed path shared by TAKE_SCREENSHOT and SEND_PHOTO.
func (l *Local) CaptureFile() string {
	return l.captureFile
}

var _ Operations = (*Local)(nil)
