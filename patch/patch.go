// Package patch splits the unified diff produced by a version-control diff
// command into self-contained per-file chunks.
//
// The splitter is line oriented. A file section starts at a preamble line
// ("Index: ", "diff ") or at a "--- "/"+++ " header pair, and hunk bodies are
// consumed using the line counts in their "@@" headers, so a removed line
// that happens to start with "-- " is never mistaken for a new header.
package patch

import (
	"fmt"
	"strings"
)

// Chunk is one file's fragment of a multi-file patch.
type Chunk struct {
	// Filename is the canonical working-copy path the chunk applies to.
	Filename string `json:"filename"`
	// OldName and NewName are the raw names from the "---" and "+++" headers,
	// with timestamps and quoting removed.
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
	// Preamble holds the lines that preceded the "---" header
	// (Index:, RCS file:, diff --git, index ...). It is informational only.
	Preamble []string `json:"preamble,omitempty"`
	// Text is the literal diff text for the file, starting at the "---"
	// header. It always ends with a newline.
	Text string `json:"-"`
	// Hunks is the number of "@@" hunks in Text.
	Hunks int `json:"hunks"`
}

// PatchInput returns the text fed to an external patch tool for this chunk:
// an "Index:" line naming the file followed by the chunk text, newline
// terminated even when Text is not.
func (c Chunk) PatchInput() string {
	var b strings.Builder
	b.Grow(len(c.Filename) + len(c.Text) + 9)
	b.WriteString("Index: ")
	b.WriteString(c.Filename)
	b.WriteByte('\n')
	b.WriteString(c.Text)
	if !strings.HasSuffix(c.Text, "\n") {
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseError reports malformed patch input.
type ParseError struct {
	// Line is the 1-based input line the error refers to, or 0 when the
	// error is not tied to a line.
	Line int
	Msg  string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("patch: line %d: %s", e.Line, e.Msg)
	}
	return "patch: " + e.Msg
}

func parseErrorf(line int, format string, args ...any) *ParseError {
	return &ParseError{Line: line, Msg: fmt.Sprintf(format, args...)}
}
