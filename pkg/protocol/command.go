package protocol

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Command names
const (
	CmdDir            = "DIR"
	CmdDelete         = "DELETE"
	CmdCopy           = "COPY"
	CmdExecute        = "EXECUTE"
	CmdTakeScreenshot = "TAKE_SCREENSHOT"
	CmdSendPhoto      = "SEND_PHOTO"
	CmdExit           = "EXIT"
)

var (
	ErrUnknownCommand = errors.New("protocol: unknown command")
	ErrArgCount       = errors.New("protocol: wrong number of arguments")
)

// CommandSpec describes one entry of the command table.
type CommandSpec struct {
	Name        string
	Args        []string // argument names, used for usage text
	Description string
	// Payload is set for commands whose successful status is followed by a second frame.
	Payload bool
}

func (s CommandSpec) NumArgs() int { return len(s.Args) }

func (s CommandSpec) Usage() string {
	if len(s.Args) == 0 {
		return s.Name
	}
	parts := make([]string, 0, len(s.Args)+1)
	parts = append(parts, s.Name)
	for _, a := range s.Args {
		parts = append(parts, "<"+a+">")
	}
	return strings.Join(parts, " ")
}

var commands = map[string]CommandSpec{
	CmdDir:            {Name: CmdDir, Args: []string{"path"}, Description: "List files matching a path or inside a directory", Payload: true},
	CmdDelete:         {Name: CmdDelete, Args: []string{"file"}, Description: "Delete a file"},
	CmdCopy:           {Name: CmdCopy, Args: []string{"src", "dst"}, Description: "Copy a file"},
	CmdExecute:        {Name: CmdExecute, Args: []string{"program"}, Description: "Run a program"},
	CmdTakeScreenshot: {Name: CmdTakeScreenshot, Description: "Capture the server screen"},
	CmdSendPhoto:      {Name: CmdSendPhoto, Description: "Download the last captured screen", Payload: true},
	CmdExit:           {Name: CmdExit, Description: "Close the session"},
}

var aliases = map[string]string{
	"SCREENSHOT_TAKE": CmdTakeScreenshot,
	"PHOTO_SEND":      CmdSendPhoto,
}

// Lookup resolves a command name, case-insensitively, including aliases.
func Lookup(name string) (CommandSpec, bool) {
	name = strings.ToUpper(name)
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	spec, ok := commands[name]
	return spec, ok
}

// Commands returns the command table sorted by name.
func Commands() []CommandSpec {
	out := make([]CommandSpec, 0, len(commands))
	for _, spec := range commands {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Command is a parsed request: canonical name plus positional arguments.
type Command struct {
	Name string
	Args []string
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Message encodes c as a client command line.
func (c Command) Message() Message {
	return EncodeLine(c.String())
}

// ParseCommand interprets a received message as a command. The name is uppercased;
// aliases are resolved. Unknown names are returned as-is so the caller can reject them.
func ParseCommand(m Message) (Command, bool) {
	fields := m.Fields()
	if len(fields) == 0 {
		return Command{}, false
	}
	name := strings.ToUpper(fields[0])
	if spec, ok := Lookup(name); ok {
		name = spec.Name
	}
	return Command{Name: name, Args: fields[1:]}, true
}

// ParseLine validates a caller's command line the way the client does before sending:
// the name must be known, the argument count must match exactly and no argument
// may contain Separator.
func ParseLine(line string) (Command, CommandSpec, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, CommandSpec{}, fmt.Errorf("%w: empty command line", ErrUnknownCommand)
	}
	spec, ok := Lookup(fields[0])
	if !ok {
		return Command{}, CommandSpec{}, fmt.Errorf("%w: %s", ErrUnknownCommand, fields[0])
	}
	args := fields[1:]
	if len(args) != spec.NumArgs() {
		return Command{}, spec, fmt.Errorf("%w: usage: %s", ErrArgCount, spec.Usage())
	}
	// the receiver splits on Separator, so an embedded one would shift the arguments
	for _, a := range args {
		if strings.Contains(a, Separator) {
			return Command{}, spec, fmt.Errorf("%w: argument %q contains %q", ErrArgCount, a, Separator)
		}
	}
	return Command{Name: spec.Name, Args: args}, spec, nil
}
