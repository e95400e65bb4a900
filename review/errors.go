package review

import (
	"errors"
	"fmt"
	"strings"
)

// ExecutionError reports an external tool that could not run or failed.
type ExecutionError struct {
	Command  []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("command %q failed", strings.Join(e.Command, " "))
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" with exit code %d", e.ExitCode)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		msg += ": " + stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// ErrFailFast marks a run stopped by the first commit failure.
var ErrFailFast = errors.New("fail-fast")

// errEmptyMessage is recorded when the edited commit message has no content.
var errEmptyMessage = errors.New("empty commit message")
