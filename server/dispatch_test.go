package server

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tarun-kavipurapu/rcmd/pkg/protocol"
	"tarun-kavipurapu/rcmd/pkg/transport/tcp"
)

// fakeOps records calls and returns canned results.
type fakeOps struct {
	calls []string

	files    []string
	listErr  error
	opErr    error
	image    []byte
	imageErr error
	panicOn  string
}

func (f *fakeOps) record(name string) {
	f.calls = append(f.calls, name)
	if f.panicOn == name {
		panic("boom")
	}
}

func (f *fakeOps) ListFiles(string) ([]string, error) {
	f.record("ListFiles")
	return f.files, f.listErr
}
func (f *fakeOps) DeleteFile(string) error       { f.record("DeleteFile"); return f.opErr }
func (f *fakeOps) CopyFile(string, string) error { f.record("CopyFile"); return f.opErr }
func (f *fakeOps) RunProgram(string) error       { f.record("RunProgram"); return f.opErr }
func (f *fakeOps) CaptureScreen() error          { f.record("CaptureScreen"); return f.opErr }
func (f *fakeOps) ReadCapturedImage() ([]byte, error) {
	f.record("ReadCapturedImage")
	return f.image, f.imageErr
}

func texts(frames []protocol.Message) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.Text()
	}
	return out
}

func TestDispatchDir(t *testing.T) {
	f := &fakeOps{files: []string{"a.txt", "b.txt"}}
	res := NewDispatcher(f, nil).Dispatch(protocol.EncodeLine("dir ."))

	assert.True(t, res.OK)
	assert.Equal(t, []string{"True", "a.txt\nb.txt"}, texts(res.Frames))
	assert.True(t, res.Frames[1].IsText())
}

func TestDispatchDirNoFiles(t *testing.T) {
	res := NewDispatcher(&fakeOps{}, nil).Dispatch(protocol.EncodeLine("DIR empty"))
	assert.Equal(t, []string{"True", "No files"}, texts(res.Frames))
}

func TestDispatchDirFailureHasNoListing(t *testing.T) {
	res := NewDispatcher(&fakeOps{listErr: errors.New("bad pattern")}, nil).Dispatch(protocol.EncodeLine("DIR ["))
	assert.False(t, res.OK)
	assert.Equal(t, []string{"False"}, texts(res.Frames))
}

func TestDispatchSimpleCommands(t *testing.T) {
	cases := map[string]string{
		"DELETE a.txt":      "DeleteFile",
		"COPY a.txt b.txt":  "CopyFile",
		"EXECUTE notepad":   "RunProgram",
		"TAKE_SCREENSHOT":   "CaptureScreen",
		"screenshot_take":   "CaptureScreen",
		"execute /bin/true": "RunProgram",
	}
	for line, call := range cases {
		t.Run(line, func(t *testing.T) {
			f := &fakeOps{}
			res := NewDispatcher(f, nil).Dispatch(protocol.EncodeLine(line))
			assert.Equal(t, []string{"True"}, texts(res.Frames))
			assert.Equal(t, []string{call}, f.calls)

			f = &fakeOps{opErr: os.ErrPermission}
			res = NewDispatcher(f, nil).Dispatch(protocol.EncodeLine(line))
			assert.Equal(t, []string{"False"}, texts(res.Frames))
			assert.False(t, res.Exit)
		})
	}
}

func TestDispatchSendPhoto(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff, 0xdb}
	res := NewDispatcher(&fakeOps{image: img}, nil).Dispatch(protocol.Text("PHOTO_SEND"))

	require.Len(t, res.Frames, 2)
	assert.Equal(t, "True", res.Frames[0].Text())
	assert.Equal(t, protocol.KindBinary, res.Frames[1].Kind)
	assert.Equal(t, img, res.Frames[1].Bytes())
	assert.Equal(t, protocol.CmdSendPhoto, res.Command)
}

func TestDispatchSendPhotoMissingCapture(t *testing.T) {
	res := NewDispatcher(&fakeOps{imageErr: os.ErrNotExist}, nil).Dispatch(protocol.Text("SEND_PHOTO"))
	assert.Equal(t, []string{"False"}, texts(res.Frames))
}

func TestDispatchExit(t *testing.T) {
	f := &fakeOps{}
	res := NewDispatcher(f, nil).Dispatch(protocol.Text("exit"))
	assert.True(t, res.Exit)
	assert.Equal(t, []string{"True"}, texts(res.Frames))
	assert.Empty(t, f.calls)
}

func TestDispatchRejectsBeforeCallingOps(t *testing.T) {
	msgs := []protocol.Message{
		protocol.EncodeLine("FORMAT c:"),
		protocol.EncodeLine("DIR"),
		protocol.EncodeLine("COPY only-one"),
		protocol.EncodeLine("DELETE"),
		protocol.Text(""),
		protocol.Binary([]byte("DIR#.")),
	}
	for _, msg := range msgs {
		f := &fakeOps{}
		res := NewDispatcher(f, nil).Dispatch(msg)
		assert.Equal(t, []string{"False"}, texts(res.Frames), "message %q", msg.Text())
		assert.Empty(t, f.calls, "message %q", msg.Text())
		assert.False(t, res.Exit)
	}
}

func TestDispatchIgnoresExtraArguments(t *testing.T) {
	f := &fakeOps{}
	res := NewDispatcher(f, nil).Dispatch(protocol.EncodeLine("DELETE a.txt extra"))
	assert.True(t, res.OK)
	assert.Equal(t, []string{"DeleteFile"}, f.calls)
}

func TestDispatchRecoversPanicAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := &fakeOps{panicOn: "CopyFile"}

	res := NewDispatcher(f, zap.New(core)).Dispatch(protocol.EncodeLine("COPY a b"))
	assert.Equal(t, []string{"False"}, texts(res.Frames))
	assert.Equal(t, 1, logs.FilterMessage("COPY panicked").Len())
}

func TestDispatchLogsOperationFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := &fakeOps{opErr: os.ErrNotExist}

	NewDispatcher(f, zap.New(core)).Dispatch(protocol.EncodeLine("DELETE b.txt"))
	entries := logs.FilterMessage("DELETE failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "b.txt", entries[0].ContextMap()["path"])
}

func TestDispatchOversizedPayloadFailsBeforeStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	limits := tcp.Limits{MaxFrameBytes: 1024}
	f := &fakeOps{
		image: make([]byte, 4096),
		files: []string{strings.Repeat("x", 2000)},
	}
	d := NewDispatcher(f, zap.New(core), WithFrameLimits(limits))

	res := d.Dispatch(protocol.Text("SEND_PHOTO"))
	assert.False(t, res.OK)
	assert.Equal(t, []string{"False"}, texts(res.Frames))

	res = d.Dispatch(protocol.EncodeLine("DIR big"))
	assert.Equal(t, []string{"False"}, texts(res.Frames))
	assert.Equal(t, 2, logs.FilterMessageSnippet("exceeds frame limit").Len())

	// a payload that fits exactly is still sent
	f.image = make([]byte, limits.MaxFrameBytes-1)
	res = d.Dispatch(protocol.Text("SEND_PHOTO"))
	require.Len(t, res.Frames, 2)
	assert.Len(t, res.Frames[1].Bytes(), limits.MaxFrameBytes-1)
}
