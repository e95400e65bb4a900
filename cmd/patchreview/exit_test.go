package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

func TestExitErrHandler_NilError(t *testing.T) {
	// Should not panic or exit on nil error
	exitErrHandler(nil, nil)
}

func TestReport_ExitCoder(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "exit code 0 no message",
			err:      cli.Exit("", 0),
			wantCode: 0,
			wantOut:  "",
		},
		{
			name:     "partial failure",
			err:      cli.Exit("1 of 3 chunk(s) failed", 1),
			wantCode: 1,
			wantOut:  "1 of 3 chunk(s) failed\n",
		},
		{
			name:     "execution error",
			err:      cli.Exit("diff failed: exit status 2", 2),
			wantCode: 2,
			wantOut:  "diff failed: exit status 2\n",
		},
		{
			name:     "parse error",
			err:      cli.Exit("patch: line 4: truncated hunk", 3),
			wantCode: 3,
			wantOut:  "patch: line 4: truncated hunk\n",
		},
		{
			name:     "wrapped exit coder",
			err:      errors.Join(errors.New("context"), cli.Exit("inner error", 42)),
			wantCode: 42,
			wantOut:  "inner error\n",
		},
		{
			name:     "regular error",
			err:      errors.New("regular error"),
			wantCode: 1,
			wantOut:  "Error: regular error\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if code := report(&buf, tt.err); code != tt.wantCode {
				t.Errorf("code = %d, want %d", code, tt.wantCode)
			}
			if buf.String() != tt.wantOut {
				t.Errorf("output = %q, want %q", buf.String(), tt.wantOut)
			}
		})
	}
}

func TestNewApp_Commands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"review", "split", "edit", "history", "version"} {
		if app.Command(name) == nil {
			t.Errorf("command %q not registered", name)
		}
	}
	if app.ExitErrHandler == nil {
		t.Error("ExitErrHandler not set")
	}
}
