package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"go.uber.org/zap"

	"tarun-kavipurapu/rcmd/pkg/protocol"
)

// Doer runs one command exchange. *Client implements it.
type Doer interface {
	Do(line string) (Result, error)
}

// Shell turns caller lines into exchanges and reports the outcome of each.
type Shell struct {
	client       Doer
	receivedFile string
	out          io.Writer
	log          *zap.Logger

	success *pterm.PrefixPrinter
	failure *pterm.PrefixPrinter
	info    *pterm.PrefixPrinter
}

func NewShell(c Doer, receivedFile string, out io.Writer, log *zap.Logger) *Shell {
	if log == nil {
		log = zap.NewNop()
	}
	return &Shell{
		client:       c,
		receivedFile: receivedFile,
		out:          out,
		log:          log,
		success:      pterm.Success.WithWriter(out),
		failure:      pterm.Error.WithWriter(out),
		info:         pterm.Info.WithWriter(out),
	}
}

// Run executes one command per line of r until EXIT, a closed connection or end of input.
func (s *Shell) Run(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s.Exec(sc.Text()) {
			return nil
		}
	}
	return sc.Err()
}

// Exec runs a single line. It reports true once the session is over.
func (s *Shell) Exec(line string) bool {
	done, _ := s.exec(line)
	return done
}

// RunOnce runs a single line and returns an error unless the server reported
// success. Failures the server answered with "False" wrap ErrCommandFailed.
func (s *Shell) RunOnce(line string) error {
	_, err := s.exec(line)
	return err
}

func (s *Shell) exec(line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	res, err := s.client.Do(line)
	switch {
	case errors.Is(err, ErrUsage):
		s.failure.Println(usageText(err))
		return false, err
	case errors.Is(err, ErrServerClosed), errors.Is(err, ErrClosed):
		s.info.Println("connection closed")
		return true, err
	case err != nil:
		s.failure.Println(err.Error())
		s.info.Println("connection closed")
		return true, err
	}

	if !res.OK {
		s.failure.Printfln("Command %s failed", res.Command)
		err = fmt.Errorf("%w: %s", ErrCommandFailed, res.Command)
	} else {
		s.success.Printfln("Command %s succeeded", res.Command)
		switch res.Command {
		case protocol.CmdDir:
			fmt.Fprintln(s.out, res.Listing)
		case protocol.CmdSendPhoto:
			err = s.savePhoto(res.Image)
		}
	}

	if res.Command == protocol.CmdExit {
		s.info.Println("connection closed")
		return true, err
	}
	return false, err
}

func (s *Shell) savePhoto(data []byte) error {
	if err := os.WriteFile(s.receivedFile, data, 0644); err != nil {
		s.log.Error("saving received image", zap.String("path", s.receivedFile), zap.Error(err))
		s.failure.Printfln("could not save image to %s: %v", s.receivedFile, err)
		return fmt.Errorf("save image: %w", err)
	}
	s.info.Printfln("Received %d bytes, saved to %s", len(data), s.receivedFile)
	return nil
}

// usageText strips the error chain prefixes down to what the caller typed wrong.
func usageText(err error) string {
	msg := err.Error()
	for _, prefix := range []string{ErrUsage.Error() + ": ", "protocol: "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	return msg
}
