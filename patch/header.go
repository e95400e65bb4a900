package patch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DevNull is the name diff tools use for the missing side of a file
// creation or deletion.
const DevNull = "/dev/null"

// backupSuffixes are the suffixes "diff -u file.orig file" style patches put
// on the old name.
var backupSuffixes = []string{".orig", ".old", ".bak", "~"}

// Header is the pair of names read from a "---"/"+++" header.
type Header struct {
	Old string
	New string
	// Git is set when the section began with "diff --git", meaning the
	// names carry a/ and b/ prefixes.
	Git bool
	// Rename is set when the preamble declared a rename.
	Rename bool
}

// CanonicalName returns the working-copy path a header refers to.
//
// The new name wins whenever old and new differ only by a known convention:
// the a/ and b/ prefixes git adds, a backup suffix on the old name, or a
// /dev/null side for created and deleted files. Any other disagreement is
// ambiguous and returns an error.
func CanonicalName(h Header) (string, error) {
	oldName, newName := h.Old, h.New
	if oldName == "" || newName == "" {
		return "", errors.New("file header with an empty name")
	}

	switch {
	case oldName == DevNull && newName == DevNull:
		return "", errors.New("file header names /dev/null on both sides")
	case newName == DevNull:
		return stripGitPrefix(oldName, "a/", h.Git), nil
	case oldName == DevNull:
		return stripGitPrefix(newName, "b/", h.Git), nil
	case oldName == newName:
		return newName, nil
	}

	oldRest, oldPrefixed := strings.CutPrefix(oldName, "a/")
	newRest, newPrefixed := strings.CutPrefix(newName, "b/")
	if oldPrefixed && newPrefixed && (oldRest == newRest || h.Rename) {
		return newRest, nil
	}
	if h.Rename {
		return newName, nil
	}
	for _, suffix := range backupSuffixes {
		if oldName == newName+suffix {
			return newName, nil
		}
	}

	return "", fmt.Errorf("ambiguous file header: old %q and new %q name different files", oldName, newName)
}

func stripGitPrefix(name, prefix string, git bool) string {
	if !git {
		return name
	}
	return strings.TrimPrefix(name, prefix)
}

// headerName extracts the path from the text following "--- " or "+++ ".
// Diff tools append a tab and a timestamp or revision; git quotes names that
// contain unusual characters.
func headerName(rest string) string {
	rest = strings.TrimRight(rest, "\r")
	if strings.HasPrefix(rest, `"`) {
		if quoted, err := strconv.QuotedPrefix(rest); err == nil {
			if name, err := strconv.Unquote(quoted); err == nil {
				return name
			}
		}
	}
	if name, _, found := strings.Cut(rest, "\t"); found {
		return name
	}
	return strings.TrimRight(rest, " ")
}
