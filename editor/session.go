// Package editor spawns an external text editor on a file and hands back a
// Session whose Wait yields the edited content.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Wait after the session was closed.
var ErrClosed = errors.New("editor session closed")

// Options configures Spawn.
type Options struct {
	// InitialContent is written to the target before the editor starts.
	// Nil leaves the target untouched.
	InitialContent *string
	// Path is the file to edit. Empty creates a fresh temporary file.
	Path string
	// TempDir is where temporary targets are created. Empty uses os.TempDir.
	TempDir string
	// Stdin and Stdout default to the process terminal.
	Stdin  io.Reader
	Stdout io.Writer
}

// ExecutionError reports an editor that failed or wrote to stderr.
type ExecutionError struct {
	Command  []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("editor %q failed", strings.Join(e.Command, " "))
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

// Session is a running editor. Wait resolves it exactly once.
type Session struct {
	path    string
	owned   bool
	command Command
	args    []string
	cmd     *exec.Cmd
	stderr  bytes.Buffer

	once    sync.Once
	waited  atomic.Bool
	content string
	err     error
}

// Spawn prepares the target file and starts the editor without waiting for
// it. An owned temporary target is left on disk; the caller removes it via
// Path once done.
func Spawn(ctx context.Context, r Resolver, opts Options) (*Session, error) {
	command, err := r.Resolve()
	if err != nil {
		return nil, err
	}

	s := &Session{path: opts.Path, command: command}
	if s.path == "" {
		f, err := os.CreateTemp(opts.TempDir, "patchreview-edit-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create edit file: %w", err)
		}
		s.path = f.Name()
		s.owned = true
		if opts.InitialContent != nil {
			if _, err := f.WriteString(*opts.InitialContent); err != nil {
				_ = f.Close()
				_ = os.Remove(s.path)
				return nil, fmt.Errorf("failed to write edit file: %w", err)
			}
		}
		if err := f.Close(); err != nil {
			_ = os.Remove(s.path)
			return nil, fmt.Errorf("failed to close edit file: %w", err)
		}
	} else if opts.InitialContent != nil {
		if err := os.WriteFile(s.path, []byte(*opts.InitialContent), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", s.path, err)
		}
	}

	s.args = command.Args(s.path)
	s.cmd = exec.CommandContext(ctx, s.args[0], s.args[1:]...)
	s.cmd.Stdin = opts.Stdin
	if s.cmd.Stdin == nil {
		s.cmd.Stdin = os.Stdin
	}
	s.cmd.Stdout = opts.Stdout
	if s.cmd.Stdout == nil {
		s.cmd.Stdout = os.Stdout
	}
	s.cmd.Stderr = &s.stderr

	if err := s.cmd.Start(); err != nil {
		if s.owned {
			_ = os.Remove(s.path)
		}
		return nil, &ExecutionError{Command: s.args, ExitCode: -1, Err: err}
	}
	return s, nil
}

// Path returns the file being edited.
func (s *Session) Path() string {
	return s.path
}

// Owned reports whether Path is a temporary file created by Spawn.
func (s *Session) Owned() bool {
	return s.owned
}

// Command returns the resolved editor command.
func (s *Session) Command() Command {
	return s.command
}

// Wait blocks until the editor exits and returns the file's full content.
// Any stderr output or a non-zero exit yields *ExecutionError. Repeated
// calls return the same result.
func (s *Session) Wait() (string, error) {
	s.once.Do(func() {
		s.content, s.err = s.finish()
		s.waited.Store(true)
	})
	return s.content, s.err
}

func (s *Session) finish() (string, error) {
	err := s.cmd.Wait()
	stderr := s.stderr.String()
	if err != nil {
		return "", &ExecutionError{Command: s.args, ExitCode: ExitCode(err), Stderr: stderr, Err: err}
	}
	if stderr != "" {
		return "", &ExecutionError{Command: s.args, Stderr: stderr, Err: errors.New("editor wrote to stderr")}
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read edited file: %w", err)
	}
	return string(data), nil
}

// Close terminates an editor that has not been waited on and reaps it.
// After Wait it does nothing.
func (s *Session) Close() error {
	if s.waited.Load() {
		return nil
	}
	var killErr error
	if s.cmd.Process != nil {
		if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			killErr = fmt.Errorf("failed to kill editor: %w", err)
		}
	}
	s.once.Do(func() {
		_ = s.cmd.Wait()
		s.err = ErrClosed
		s.waited.Store(true)
	})
	return killErr
}

// ExitCode returns the exit status carried by err, or -1 when the process
// did not exit normally or never ran.
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
