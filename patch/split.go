package patch

import (
	"regexp"
	"strconv"
	"strings"
)

// hunkHeaderPattern matches "@@ -l[,s] +l[,s] @@" and captures the counts.
var hunkHeaderPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// section accumulates the lines of one file while splitting.
type section struct {
	preamble   []string
	body       []string
	header     Header
	headerLine int
	hasHeader  bool
	hunks      int
}

// startsWith reports whether the preamble already began with marker.
// A second "diff " or "Index: " line starts a new file.
func (s *section) startsWith(marker string) bool {
	return len(s.preamble) > 0 && strings.HasPrefix(s.preamble[0], marker)
}

type splitter struct {
	chunks  []Chunk
	current *section

	// Set by the first "---"/"+++" pair. Stray hunk or header lines before
	// it are prose, not a malformed diff.
	seenHeader bool

	// Lines still expected in the hunk being consumed.
	oldLeft int
	newLeft int
}

// Split parses raw unified-diff text covering any number of files and
// returns one Chunk per file, in input order.
//
// Input with no recognizable file header yields an empty slice and no
// error. Sections that carry a preamble but no "---"/"+++" pair or no hunks
// (binary files, mode-only changes) are skipped because there is nothing to
// apply. Malformed hunks or ambiguous headers yield a *ParseError.
func Split(raw string) ([]Chunk, error) {
	lines := splitLines(raw)
	s := &splitter{}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		lineNo := i + 1

		if s.inHunk() {
			if err := s.hunkLine(line, lineNo); err != nil {
				return nil, err
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "@@"):
			if err := s.hunkHeader(line, lineNo); err != nil {
				return nil, err
			}

		case strings.HasPrefix(line, "--- "):
			if i+1 >= len(lines) || !strings.HasPrefix(lines[i+1], "+++ ") {
				if !s.seenHeader {
					continue
				}
				return nil, parseErrorf(lineNo, "%q header is not followed by a +++ header", line)
			}
			if err := s.fileHeader(line, lines[i+1], lineNo); err != nil {
				return nil, err
			}
			i++

		case strings.HasPrefix(line, "+++ "):
			if !s.seenHeader {
				continue
			}
			return nil, parseErrorf(lineNo, "%q header is not preceded by a --- header", line)

		case strings.HasPrefix(line, "diff "):
			if err := s.preambleStart(line, "diff "); err != nil {
				return nil, err
			}

		case strings.HasPrefix(line, "Index: "):
			if err := s.preambleStart(line, "Index: "); err != nil {
				return nil, err
			}

		case strings.HasPrefix(line, `\`):
			// "\ No newline at end of file" trails the hunk it belongs to.
			if s.current != nil && s.current.hunks > 0 {
				s.current.body = append(s.current.body, line)
			}

		default:
			s.detail(line)
		}
	}

	if s.inHunk() {
		return nil, parseErrorf(len(lines), "truncated hunk: %d old and %d new lines missing", s.oldLeft, s.newLeft)
	}
	if err := s.flush(); err != nil {
		return nil, err
	}
	return s.chunks, nil
}

// detail keeps preamble lines (RCS file:, index, rename to) of a section
// whose header has not been seen yet. Anything else, such as "? file"
// noise, is dropped.
func (s *splitter) detail(line string) {
	if s.current != nil && !s.current.hasHeader {
		s.current.preamble = append(s.current.preamble, line)
	}
}

func (s *splitter) inHunk() bool {
	return s.oldLeft > 0 || s.newLeft > 0
}

func (s *splitter) hunkLine(line string, lineNo int) error {
	var marker byte = ' '
	if line != "" {
		marker = line[0]
	}

	switch marker {
	case ' ':
		if s.oldLeft == 0 || s.newLeft == 0 {
			return parseErrorf(lineNo, "hunk has more context lines than its header declares")
		}
		s.oldLeft--
		s.newLeft--
	case '-':
		if s.oldLeft == 0 {
			return parseErrorf(lineNo, "hunk removes more lines than its header declares")
		}
		s.oldLeft--
	case '+':
		if s.newLeft == 0 {
			return parseErrorf(lineNo, "hunk adds more lines than its header declares")
		}
		s.newLeft--
	case '\\':
	default:
		return parseErrorf(lineNo, "unexpected line in hunk body: %q", line)
	}

	s.current.body = append(s.current.body, line)
	return nil
}

func (s *splitter) hunkHeader(line string, lineNo int) error {
	if s.current == nil || !s.current.hasHeader {
		if !s.seenHeader {
			return nil
		}
		return parseErrorf(lineNo, "hunk header outside a file section")
	}
	m := hunkHeaderPattern.FindStringSubmatch(line)
	if m == nil {
		return parseErrorf(lineNo, "malformed hunk header %q", line)
	}
	oldCount, err := hunkCount(m[2])
	if err != nil {
		return parseErrorf(lineNo, "malformed hunk header %q", line)
	}
	newCount, err := hunkCount(m[4])
	if err != nil {
		return parseErrorf(lineNo, "malformed hunk header %q", line)
	}

	s.current.body = append(s.current.body, line)
	s.current.hunks++
	s.oldLeft = oldCount
	s.newLeft = newCount
	return nil
}

// hunkCount parses an optional hunk length; an omitted length means 1.
func hunkCount(s string) (int, error) {
	if s == "" {
		return 1, nil
	}
	return strconv.Atoi(s)
}

func (s *splitter) fileHeader(oldLine, newLine string, lineNo int) error {
	if s.current != nil && s.current.hasHeader {
		if err := s.flush(); err != nil {
			return err
		}
	}
	if s.current == nil {
		s.current = &section{}
	}

	cur := s.current
	cur.header = Header{
		Old:    headerName(strings.TrimPrefix(oldLine, "--- ")),
		New:    headerName(strings.TrimPrefix(newLine, "+++ ")),
		Git:    cur.startsWith("diff --git "),
		Rename: hasRenameLine(cur.preamble),
	}
	cur.headerLine = lineNo
	cur.hasHeader = true
	s.seenHeader = true
	cur.body = append(cur.body, oldLine, newLine)
	return nil
}

func (s *splitter) preambleStart(line, marker string) error {
	if s.current != nil && (s.current.hasHeader || s.current.startsWith(marker)) {
		if err := s.flush(); err != nil {
			return err
		}
	}
	if s.current == nil {
		s.current = &section{}
	}
	s.current.preamble = append(s.current.preamble, line)
	return nil
}

// flush emits the current section as a chunk when it carries anything to
// apply and resets the splitter for the next file.
func (s *splitter) flush() error {
	cur := s.current
	s.current = nil
	if cur == nil || !cur.hasHeader || cur.hunks == 0 {
		return nil
	}

	name, err := CanonicalName(cur.header)
	if err != nil {
		return &ParseError{Line: cur.headerLine, Msg: err.Error()}
	}

	s.chunks = append(s.chunks, Chunk{
		Filename: name,
		OldName:  cur.header.Old,
		NewName:  cur.header.New,
		Preamble: cur.preamble,
		Text:     strings.Join(cur.body, "\n") + "\n",
		Hunks:    cur.hunks,
	})
	return nil
}

// splitLines splits on "\n" only; carriage returns are content and must
// reach the patch tool untouched.
func splitLines(raw string) []string {
	if raw == "" {
		return nil
	}
	lines := strings.Split(raw, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func hasRenameLine(preamble []string) bool {
	for _, line := range preamble {
		if strings.HasPrefix(line, "rename to ") {
			return true
		}
	}
	return false
}
