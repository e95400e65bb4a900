package editor

import (
	"errors"
	"os"
	"strings"
)

// Placeholder is replaced with the target path in editor commands.
const Placeholder = "%s"

// DefaultFallback is used when no editor variable is set. Each element has
// the placeholder substituted; the argv is never shell-interpreted.
var DefaultFallback = []string{"xterm", "-e", "vi", Placeholder}

// ErrNoEditor is returned when no variable is set and the fallback is empty.
var ErrNoEditor = errors.New("no editor configured")

// Resolver selects the editor command. Vars are consulted in order and the
// first value that is not blank wins, used exactly as set; Fallback applies
// when none is set.
type Resolver struct {
	Vars     []string
	Fallback []string
	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

// DefaultVars returns the lookup order for a VCS whose own editor variable is
// vcsVar. An empty vcsVar is skipped.
func DefaultVars(vcsVar string) []string {
	vars := []string{"PATCHREVIEW_EDITOR"}
	if vcsVar != "" {
		vars = append(vars, vcsVar)
	}
	return append(vars, "VISUAL", "EDITOR")
}

// NewResolver returns a Resolver with the default lookup order and fallback.
func NewResolver(vcsVar string) Resolver {
	return Resolver{
		Vars:     DefaultVars(vcsVar),
		Fallback: append([]string(nil), DefaultFallback...),
	}
}

// Command is a resolved editor invocation.
type Command struct {
	// Source is the variable the command came from, or "fallback".
	Source string
	// Value is the raw editor string for variable sources.
	Value string
	// Argv is the fallback argv, set only when Source is "fallback".
	Argv []string
}

// Shell reports whether the command runs through sh -c.
func (c Command) Shell() bool {
	return c.Argv == nil && strings.Contains(c.Value, Placeholder)
}

// Resolve picks the editor command.
func (r Resolver) Resolve() (Command, error) {
	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range r.Vars {
		if value := getenv(name); strings.TrimSpace(value) != "" {
			return Command{Source: name, Value: value}, nil
		}
	}
	if len(r.Fallback) == 0 || r.Fallback[0] == "" {
		return Command{}, ErrNoEditor
	}
	return Command{Source: "fallback", Argv: append([]string(nil), r.Fallback...)}, nil
}

// Args returns the argv that opens path.
//
// A variable value containing the placeholder is substituted literally and
// run with sh -c; otherwise the value names the program and path is its only
// argument. The fallback argv substitutes each element and gets path appended
// when no element carries the placeholder.
func (c Command) Args(path string) []string {
	if c.Argv != nil {
		args := make([]string, 0, len(c.Argv)+1)
		substituted := false
		for _, arg := range c.Argv {
			if strings.Contains(arg, Placeholder) {
				arg = strings.ReplaceAll(arg, Placeholder, path)
				substituted = true
			}
			args = append(args, arg)
		}
		if !substituted {
			args = append(args, path)
		}
		return args
	}
	if c.Shell() {
		return []string{"sh", "-c", strings.ReplaceAll(c.Value, Placeholder, path)}
	}
	return []string{c.Value, path}
}
