package tcp

import (
	"errors"
	"io"
	"strconv"
)

// Frame layout
// [decimal length] + [Delimiter (1 byte)] + [body (length bytes)]
const Delimiter = ':'

const (
	// DefaultMaxHeaderDigits fits any uint64 length.
	DefaultMaxHeaderDigits = 20
	// DefaultMaxFrameBytes is large enough for a full-screen JPEG.
	DefaultMaxFrameBytes = 64 * 1024 * 1024
)

var (
	ErrMalformedLength = errors.New("frame: malformed length field")
	ErrHeaderTooLong   = errors.New("frame: length field exceeds maximum width")
	ErrFrameTooLarge   = errors.New("frame: body exceeds maximum size")
)

// Limits bounds how much a single frame may make the reader buffer.
type Limits struct {
	MaxHeaderDigits int
	MaxFrameBytes   int
}

func DefaultLimits() Limits {
	return Limits{
		MaxHeaderDigits: DefaultMaxHeaderDigits,
		MaxFrameBytes:   DefaultMaxFrameBytes,
	}
}

func (l Limits) normalize() Limits {
	if l.MaxHeaderDigits <= 0 {
		l.MaxHeaderDigits = DefaultMaxHeaderDigits
	}
	if l.MaxFrameBytes <= 0 {
		l.MaxFrameBytes = DefaultMaxFrameBytes
	}
	return l
}

// EncodeFrame returns body prefixed with its length header.
func EncodeFrame(body []byte) []byte {
	header := strconv.AppendInt(nil, int64(len(body)), 10)
	buf := make([]byte, 0, len(header)+1+len(body))
	buf = append(buf, header...)
	buf = append(buf, Delimiter)
	return append(buf, body...)
}

// WriteFrame writes one frame in a single Write call.
func WriteFrame(w io.Writer, body []byte, limits Limits) error {
	limits = limits.normalize()
	if len(body) > limits.MaxFrameBytes {
		return ErrFrameTooLarge
	}
	_, err := w.Write(EncodeFrame(body))
	return err
}

// ReadFrame reads exactly one frame body from r.
// A peer that closes mid-frame yields io.EOF, same as a close between frames.
func ReadFrame(r io.Reader, limits Limits) ([]byte, error) {
	limits = limits.normalize()

	length, err := readFrameHeader(r, limits)
	if err != nil {
		return nil, err
	}

	body := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, eofOrErr(err)
		}
	}
	return body, nil
}

// readFrameHeader scans the decimal length up to the delimiter, one byte at a time
// so no body bytes are consumed from an unbuffered reader.
func readFrameHeader(r io.Reader, limits Limits) (int, error) {
	var (
		one    [1]byte
		digits = make([]byte, 0, limits.MaxHeaderDigits)
	)
	for {
		if _, err := io.ReadFull(r, one[:]); err != nil {
			return 0, eofOrErr(err)
		}
		if one[0] == Delimiter {
			break
		}
		if one[0] < '0' || one[0] > '9' {
			return 0, ErrMalformedLength
		}
		if len(digits) == limits.MaxHeaderDigits {
			return 0, ErrHeaderTooLong
		}
		digits = append(digits, one[0])
	}

	if len(digits) == 0 {
		return 0, ErrMalformedLength
	}
	length, err := strconv.ParseUint(string(digits), 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return 0, ErrFrameTooLarge
		}
		return 0, ErrMalformedLength
	}
	if length > uint64(limits.MaxFrameBytes) {
		return 0, ErrFrameTooLarge
	}
	return int(length), nil
}

func eofOrErr(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}
