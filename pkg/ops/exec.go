package ops

import (
	"errors"
	"os/exec"
)

// RunProgram runs path to completion. A program that starts and exits non-zero
// still counts as run; only a failure to start is an error.
func (l *Local) RunProgram(path string) error {
	err := exec.Command(path).Run()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
