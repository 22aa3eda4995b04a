package server

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tarun-kavipurapu/rcmd/pkg/ops"
	"tarun-kavipurapu/rcmd/pkg/protocol"
	"tarun-kavipurapu/rcmd/pkg/transport/tcp"
)

// unknownCommand labels anything outside the command table.
const unknownCommand = "UNKNOWN"

// Result is the response sequence for one received command.
type Result struct {
	Command string
	OK      bool
	Frames  []protocol.Message
	// Exit ends the session once Frames are sent.
	Exit bool
}

func failed(name string) Result {
	return Result{Command: name, Frames: []protocol.Message{protocol.Status(false)}}
}

func succeeded(name string, payload ...protocol.Message) Result {
	frames := append([]protocol.Message{protocol.Status(true)}, payload...)
	return Result{Command: name, OK: true, Frames: frames}
}

// Dispatcher maps commands onto host operations. It keeps no state between calls.
type Dispatcher struct {
	ops    ops.Operations
	log    *zap.Logger
	limits tcp.Limits
}

type DispatcherOption func(*Dispatcher)

// WithFrameLimits sets the frame bound payload responses must fit in.
// It should match the limits of the connection the frames are sent on.
func WithFrameLimits(l tcp.Limits) DispatcherOption {
	return func(d *Dispatcher) {
		d.limits = l
	}
}

func NewDispatcher(o ops.Operations, log *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	d := &Dispatcher{ops: o, log: log, limits: tcp.DefaultLimits()}
	for _, opt := range opts {
		opt(d)
	}
	if d.limits.MaxFrameBytes <= 0 {
		d.limits.MaxFrameBytes = tcp.DefaultMaxFrameBytes
	}
	return d
}

// Dispatch runs one command and returns the frames to send back.
// Argument counts are checked before any operation runs; operation errors and
// panics become a single "False" frame.
func (d *Dispatcher) Dispatch(msg protocol.Message) (res Result) {
	cmd, ok := protocol.ParseCommand(msg)
	if !ok {
		d.log.Warn("non-text command rejected", zap.Stringer("kind", msg.Kind), zap.Int("bytes", len(msg.Body)))
		return failed(unknownCommand)
	}

	spec, known := protocol.Lookup(cmd.Name)
	if !known {
		d.log.Warn("unknown command", zap.String("command", cmd.Name), zap.Strings("args", cmd.Args))
		return failed(unknownCommand)
	}
	if len(cmd.Args) < spec.NumArgs() {
		d.log.Warn("missing arguments", zap.String("command", cmd.Name), zap.Int("got", len(cmd.Args)), zap.Int("want", spec.NumArgs()))
		return failed(spec.Name)
	}

	d.log.Info("command", zap.String("command", spec.Name), zap.Strings("args", cmd.Args))

	defer func() {
		if r := recover(); r != nil {
			d.log.Error(spec.Name+" panicked", zap.Any("panic", r))
			res = failed(spec.Name)
		}
	}()

	switch spec.Name {
	case protocol.CmdDir:
		return d.dir(cmd.Args[0])
	case protocol.CmdDelete:
		return d.simple(spec.Name, d.ops.DeleteFile(cmd.Args[0]), zap.String("path", cmd.Args[0]))
	case protocol.CmdCopy:
		return d.simple(spec.Name, d.ops.CopyFile(cmd.Args[0], cmd.Args[1]),
			zap.String("src", cmd.Args[0]), zap.String("dst", cmd.Args[1]))
	case protocol.CmdExecute:
		return d.simple(spec.Name, d.ops.RunProgram(cmd.Args[0]), zap.String("program", cmd.Args[0]))
	case protocol.CmdTakeScreenshot:
		return d.simple(spec.Name, d.ops.CaptureScreen())
	case protocol.CmdSendPhoto:
		return d.sendPhoto()
	case protocol.CmdExit:
		res := succeeded(spec.Name)
		res.Exit = true
		return res
	default:
		// table entry without a handler
		d.log.Error("no handler for command", zap.String("command", spec.Name))
		return failed(spec.Name)
	}
}

func (d *Dispatcher) dir(pattern string) Result {
	files, err := d.ops.ListFiles(pattern)
	if err != nil {
		d.log.Error("DIR failed", zap.String("path", pattern), zap.Error(err))
		return failed(protocol.CmdDir)
	}
	d.log.Info("DIR", zap.String("path", pattern), zap.Int("files", len(files)))

	listing := protocol.NoFiles
	if len(files) > 0 {
		listing = strings.Join(files, "\n")
	}
	return d.withPayload(protocol.CmdDir, protocol.Text(listing))
}

func (d *Dispatcher) sendPhoto() Result {
	data, err := d.ops.ReadCapturedImage()
	if err != nil {
		d.log.Error("SEND_PHOTO failed", zap.Error(err))
		return failed(protocol.CmdSendPhoto)
	}
	d.log.Info("SEND_PHOTO", zap.Int("bytes", len(data)))
	return d.withPayload(protocol.CmdSendPhoto, protocol.Binary(data))
}

// withPayload answers "True" plus payload, or a lone "False" when the payload
// frame would exceed the frame limit.
func (d *Dispatcher) withPayload(name string, payload protocol.Message) Result {
	if n := payload.EncodedLen(); n > d.limits.MaxFrameBytes {
		d.log.Error(name+" payload exceeds frame limit",
			zap.Int("bytes", n), zap.Int("max_frame_bytes", d.limits.MaxFrameBytes))
		return failed(name)
	}
	return succeeded(name, payload)
}

func (d *Dispatcher) simple(name string, err error, fields ...zap.Field) Result {
	if err != nil {
		d.log.Error(fmt.Sprintf("%s failed", name), append(fields, zap.Error(err))...)
		return failed(name)
	}
	d.log.Info(name, fields...)
	return succeeded(name)
}
