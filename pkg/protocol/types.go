package protocol

import (
	"errors"
	"strings"
)

// Kind tags every message body so text and binary payloads never need to be guessed.
type Kind byte

const (
	KindText   Kind = 'T'
	KindBinary Kind = 'B'
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Separator stands in for spaces inside a transmitted command line.
const Separator = "#"

// Status strings are compared verbatim on both sides.
const (
	StatusTrue  = "True"
	StatusFalse = "False"
	NoFiles     = "No files"
)

var ErrUnknownKind = errors.New("protocol: unknown message kind")

// Message is the decoded content of one frame.
type Message struct {
	Kind Kind
	Body []byte
}

func Text(s string) Message {
	return Message{Kind: KindText, Body: []byte(s)}
}

func Binary(b []byte) Message {
	return Message{Kind: KindBinary, Body: b}
}

// Status returns the "True"/"False" response frame.
func Status(ok bool) Message {
	if ok {
		return Text(StatusTrue)
	}
	return Text(StatusFalse)
}

// EncodeLine packs a whitespace-delimited command line into one text message.
func EncodeLine(line string) Message {
	return Text(strings.ReplaceAll(line, " ", Separator))
}

// EncodeFields joins already-split fields with the separator.
func EncodeFields(fields ...string) Message {
	return Text(strings.Join(fields, Separator))
}

func (m Message) IsText() bool { return m.Kind == KindText }

func (m Message) Text() string { return string(m.Body) }

func (m Message) Bytes() []byte { return m.Body }

// Fields splits a text message on the separator. Empty fields are kept.
// Binary messages have no fields.
func (m Message) Fields() []string {
	if !m.IsText() {
		return nil
	}
	return strings.Split(string(m.Body), Separator)
}

// OK reports whether m is the literal "True" status.
func (m Message) OK() bool {
	return m.IsText() && string(m.Body) == StatusTrue
}

// EncodedLen is the length of Marshal(m): the tag byte plus the body.
func (m Message) EncodedLen() int { return len(m.Body) + 1 }

// Marshal prefixes the body with its kind tag.
func Marshal(m Message) []byte {
	buf := make([]byte, 0, m.EncodedLen())
	buf = append(buf, byte(m.Kind))
	return append(buf, m.Body...)
}

func Unmarshal(b []byte) (Message, error) {
	if len(b) == 0 {
		return Message{}, ErrUnknownKind
	}
	kind := Kind(b[0])
	if kind != KindText && kind != KindBinary {
		return Message{}, ErrUnknownKind
	}
	return Message{Kind: kind, Body: b[1:]}, nil
}
