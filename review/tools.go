package review

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/pithecene-io/patchreview/editor"
	"github.com/pithecene-io/patchreview/patch"
)

// Tools runs the external programs a review needs. ExecTools is the
// subprocess implementation; tests substitute fakes.
type Tools interface {
	// Diff returns unified diff text for paths (all of the working copy when
	// empty).
	Diff(ctx context.Context, paths []string) (string, error)
	// ReversePatch writes the pre-change version of working to output by
	// reverse-applying chunk, and returns the patch tool's output.
	ReversePatch(ctx context.Context, chunk patch.Chunk, working, output string) (string, error)
	// Preview shows old against new in the viewer.
	Preview(ctx context.Context, oldPath, newPath string) error
	// Decide shows old against new in decision mode and returns the viewer's
	// raw answer. A merge result is written to merged.
	Decide(ctx context.Context, oldPath, newPath, merged string) (string, error)
	// Commit commits path, passing message when it is non-empty.
	Commit(ctx context.Context, path, message string) error
}

// Profile holds the VCS-specific commands.
type Profile struct {
	Name        string
	Diff        []string
	Commit      []string
	MessageFlag string
	// EditorVar is the VCS's own editor variable, consulted after
	// PATCHREVIEW_EDITOR.
	EditorVar string
}

// DefaultProfile names the profile used when none is configured.
const DefaultProfile = "cvs"

var profiles = map[string]Profile{
	"cvs": {
		Name:        "cvs",
		Diff:        []string{"cvs", "diff", "-u"},
		Commit:      []string{"cvs", "commit"},
		MessageFlag: "-m",
		EditorVar:   "CVSEDITOR",
	},
	"svn": {
		Name:        "svn",
		Diff:        []string{"svn", "diff"},
		Commit:      []string{"svn", "commit"},
		MessageFlag: "-m",
		EditorVar:   "SVN_EDITOR",
	},
	// --relative keeps git paths relative to the current directory, the way
	// cvs and svn print them.
	"git": {
		Name:        "git",
		Diff:        []string{"git", "diff", "--relative", "--no-color", "--no-ext-diff"},
		Commit:      []string{"git", "commit"},
		MessageFlag: "-m",
		EditorVar:   "GIT_EDITOR",
	},
}

// LookupProfile returns a copy of the named built-in profile.
func LookupProfile(name string) (Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown vcs %q (must be one of %s)", name, strings.Join(ProfileNames(), ", "))
	}
	p.Diff = append([]string(nil), p.Diff...)
	p.Commit = append([]string(nil), p.Commit...)
	return p, nil
}

// ProfileNames lists the built-in profiles in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default tool commands.
var (
	DefaultPatch  = []string{"patch"}
	DefaultViewer = []string{"xxdiff"}
)

// DefaultTitle labels the working-copy side in decision mode.
const DefaultTitle = "NEW FILE"

// ExecTools runs the profile commands, the patch tool and the viewer as
// subprocesses bound to the caller's context.
type ExecTools struct {
	Profile Profile
	Patch   []string
	Viewer  []string
	Title   string

	// Terminal streams for interactive tools. Nil means the process's own.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecTools returns ExecTools for profile with default patch and viewer
// commands.
func NewExecTools(profile Profile) *ExecTools {
	return &ExecTools{
		Profile: profile,
		Patch:   append([]string(nil), DefaultPatch...),
		Viewer:  append([]string(nil), DefaultViewer...),
		Title:   DefaultTitle,
	}
}

func (t *ExecTools) command(ctx context.Context, argv []string) (*exec.Cmd, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("empty command")
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...), nil
}

// attach connects cmd to the terminal streams.
func (t *ExecTools) attach(cmd *exec.Cmd) {
	cmd.Stdin = t.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = t.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = t.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}
}

// Diff runs the profile's diff command. A non-zero exit is the VCS
// "differences found" convention as long as something was printed.
func (t *ExecTools) Diff(ctx context.Context, paths []string) (string, error) {
	argv := append(append([]string(nil), t.Profile.Diff...), paths...)
	cmd, err := t.command(ctx, argv)
	if err != nil {
		return "", fmt.Errorf("diff: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && stdout.Len() > 0 {
			return stdout.String(), nil
		}
		return "", &ExecutionError{Command: argv, ExitCode: editor.ExitCode(err), Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// ReversePatch runs "<patch> --reverse --output <output> <working>" with the
// chunk on stdin. Rejects are discarded and no backup is written, so a
// failed hunk leaves nothing next to output.
func (t *ExecTools) ReversePatch(ctx context.Context, chunk patch.Chunk, working, output string) (string, error) {
	argv := append(append([]string(nil), t.Patch...),
		"--reverse", "--no-backup-if-mismatch", "--reject-file=-", "--output", output, working)
	cmd, err := t.command(ctx, argv)
	if err != nil {
		return "", fmt.Errorf("patch: %w", err)
	}

	cmd.Stdin = strings.NewReader(chunk.PatchInput())
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), &ExecutionError{Command: argv, ExitCode: editor.ExitCode(err), Stderr: string(out), Err: err}
	}
	return string(out), nil
}

// Preview runs "<viewer> <old> <new>" attached to the terminal.
func (t *ExecTools) Preview(ctx context.Context, oldPath, newPath string) error {
	argv := append(append([]string(nil), t.Viewer...), oldPath, newPath)
	cmd, err := t.command(ctx, argv)
	if err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	t.attach(cmd)
	if err := cmd.Run(); err != nil {
		return &ExecutionError{Command: argv, ExitCode: editor.ExitCode(err), Err: err}
	}
	return nil
}

// Decide runs the viewer in decision mode and returns its stdout. The exit
// status is ignored when the viewer printed an answer.
func (t *ExecTools) Decide(ctx context.Context, oldPath, newPath, merged string) (string, error) {
	title := t.Title
	if title == "" {
		title = DefaultTitle
	}
	argv := append(append([]string(nil), t.Viewer...),
		"--decision", "--merged-filename", merged, "--title2", title, oldPath, newPath)
	cmd, err := t.command(ctx, argv)
	if err != nil {
		return "", fmt.Errorf("viewer: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdin = t.Stdin
	if cmd.Stdin == nil {
		cmd.Stdin = os.Stdin
	}
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil && strings.TrimSpace(stdout.String()) == "" {
		return "", &ExecutionError{Command: argv, ExitCode: editor.ExitCode(err), Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// Commit runs the profile's commit command attached to the terminal so the
// VCS can open its own editor when no message is given.
func (t *ExecTools) Commit(ctx context.Context, path, message string) error {
	argv := append([]string(nil), t.Profile.Commit...)
	if message != "" && t.Profile.MessageFlag != "" {
		argv = append(argv, t.Profile.MessageFlag, message)
	}
	argv = append(argv, path)

	cmd, err := t.command(ctx, argv)
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	t.attach(cmd)
	if err := cmd.Run(); err != nil {
		return &ExecutionError{Command: argv, ExitCode: editor.ExitCode(err), Err: err}
	}
	return nil
}
