package review

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pithecene-io/patchreview/editor"
)

func TestStripComments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"template only", "\n# Enter the commit message\n# more\n", ""},
		{"message kept", "Fix overflow\n\n# Enter the commit message\n", "Fix overflow"},
		{"body kept", "Subject\n\nBody line  \n# comment\n", "Subject\n\nBody line"},
		{"hash inside line", "Bump to #42\n", "Bump to #42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripComments(tt.input); got != tt.want {
				t.Errorf("StripComments = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEditorMessages(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "editor.sh")
	body := "#!/bin/sh\n{ printf 'Fix parser\\n'; cat \"$1\"; } > \"$1.new\" && mv \"$1.new\" \"$1\"\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}

	tempDir := t.TempDir()
	r := editor.Resolver{
		Vars:   []string{"EDITOR"},
		Getenv: func(string) string { return script },
	}
	msg, err := EditorMessages(r, tempDir)(context.Background(), "src/parse.c")
	if err != nil {
		t.Fatalf("EditorMessages: %v", err)
	}
	if msg != "Fix parser" {
		t.Errorf("message = %q, want %q", msg, "Fix parser")
	}

	entries, _ := os.ReadDir(tempDir)
	if len(entries) != 0 {
		t.Errorf("message temp file left behind: %v", entries)
	}
}
