package review

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pithecene-io/patchreview/metrics"
	"github.com/pithecene-io/patchreview/patch"
)

// fakeTools records every call and serves canned answers keyed by the
// working file path.
type fakeTools struct {
	t *testing.T

	diff    string
	diffErr error

	patchErr  map[string]error
	decisions map[string]string
	decideErr map[string]error
	commitErr map[string]error
	merged    string

	// onCommit runs before Commit returns, to inspect the working copy.
	onCommit func(path, message string)

	calls []string
}

func (f *fakeTools) Diff(_ context.Context, paths []string) (string, error) {
	f.calls = append(f.calls, "diff")
	return f.diff, f.diffErr
}

func (f *fakeTools) ReversePatch(_ context.Context, chunk patch.Chunk, working, output string) (string, error) {
	f.calls = append(f.calls, "patch "+chunk.Filename)
	if err := f.patchErr[chunk.Filename]; err != nil {
		// GNU patch saves the failed hunk beside the output.
		if werr := os.WriteFile(output+".rej", []byte(chunk.Text), 0o644); werr != nil {
			f.t.Fatalf("write rejects: %v", werr)
		}
		return "Hunk #1 FAILED -- saving rejects to file " + output + ".rej", err
	}
	if err := os.WriteFile(output, []byte("old\n"), 0o644); err != nil {
		f.t.Fatalf("write old version: %v", err)
	}
	return "patching file " + working, nil
}

func (f *fakeTools) Preview(_ context.Context, oldPath, newPath string) error {
	f.calls = append(f.calls, "preview "+newPath)
	return nil
}

func (f *fakeTools) Decide(_ context.Context, oldPath, newPath, merged string) (string, error) {
	f.calls = append(f.calls, "decide "+newPath)
	if err := f.decideErr[newPath]; err != nil {
		return "", err
	}
	if f.merged != "" {
		if err := os.WriteFile(merged, []byte(f.merged), 0o644); err != nil {
			f.t.Fatalf("write merged: %v", err)
		}
	}
	return f.decisions[newPath] + "\n", nil
}

func (f *fakeTools) Commit(_ context.Context, path, message string) error {
	f.calls = append(f.calls, "commit "+path)
	if f.onCommit != nil {
		f.onCommit(path, message)
	}
	return f.commitErr[path]
}

func (f *fakeTools) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// workspace creates working files holding "new\n" and returns their paths.
func workspace(t *testing.T, names ...string) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(dir, name)
		if err := os.WriteFile(paths[i], []byte("new\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return paths
}

func diffFor(paths ...string) string {
	var b strings.Builder
	for _, p := range paths {
		fmt.Fprintf(&b, "Index: %s\n--- %s\n+++ %s\n@@ -1 +1 @@\n-old\n+new\n", p, p, p)
	}
	return b.String()
}

func newTestReviewer(tools Tools, opts Options) (*Reviewer, *metrics.Collector, *bytes.Buffer) {
	var out bytes.Buffer
	opts.Out = &out
	collector := metrics.NewCollector(string(opts.Mode), "cvs", "run-test")
	return New(tools, opts, nil, collector), collector, &out
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRun_MergedBacksUpOverwritesThenCommits(t *testing.T) {
	files := workspace(t, "main.c")
	working := files[0]
	tools := &fakeTools{
		t:         t,
		diff:      diffFor(working),
		decisions: map[string]string{working: "MERGED"},
		merged:    "merged\n",
	}
	committed := false
	tools.onCommit = func(path, _ string) {
		committed = true
		if got := readFile(t, path); got != "merged\n" {
			t.Errorf("working file at commit = %q, want merged content", got)
		}
		if got := readFile(t, path+".bak"); got != "new\n" {
			t.Errorf("backup at commit = %q, want previous content", got)
		}
	}

	r, collector, _ := newTestReviewer(tools, Options{Mode: ModeCommit, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !committed {
		t.Fatal("commit was not invoked")
	}

	wantCalls := []string{"diff", "patch " + working, "decide " + working, "commit " + working}
	if strings.Join(tools.calls, "|") != strings.Join(wantCalls, "|") {
		t.Errorf("calls = %v, want %v", tools.calls, wantCalls)
	}

	res := report.Results[0]
	if res.State != StateCommitted {
		t.Errorf("State = %q, want %q", res.State, StateCommitted)
	}
	if res.Decision != Merged {
		t.Errorf("Decision = %q, want %q", res.Decision, Merged)
	}
	if res.Backup != working+".bak" {
		t.Errorf("Backup = %q, want %q", res.Backup, working+".bak")
	}
	if report.Committed != 1 || report.Failed != 0 {
		t.Errorf("committed/failed = %d/%d, want 1/0", report.Committed, report.Failed)
	}

	snap := collector.Snapshot()
	if snap.Backups != 1 || snap.CommitSuccess != 1 || snap.Decisions["MERGED"] != 1 {
		t.Errorf("unexpected metrics: %+v", snap)
	}
}

func TestRun_AcceptCommitsWithoutTouchingFile(t *testing.T) {
	files := workspace(t, "a.txt")
	tools := &fakeTools{t: t, diff: diffFor(files[0]), decisions: map[string]string{files[0]: "ACCEPT"}, merged: "merged\n"}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModeCommit, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := readFile(t, files[0]); got != "new\n" {
		t.Errorf("working file = %q, want unchanged", got)
	}
	if _, err := os.Stat(files[0] + ".bak"); !os.IsNotExist(err) {
		t.Error("ACCEPT must not write a backup")
	}
	if tools.count("commit") != 1 {
		t.Errorf("commit calls = %d, want 1", tools.count("commit"))
	}
	if report.Results[0].State != StateCommitted {
		t.Errorf("State = %q, want committed", report.Results[0].State)
	}
	assertTrail(t, report.Results[0], StateSplit, StateReconstructed, StateDecided, StateCommitted)
}

func TestRun_RejectAndNoDecisionLeaveWorkingCopy(t *testing.T) {
	files := workspace(t, "one.txt", "two.txt")
	tools := &fakeTools{
		t:    t,
		diff: diffFor(files...),
		decisions: map[string]string{
			files[0]: "REJECT",
			files[1]: "NODECISION",
		},
		merged: "merged\n",
	}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModeCommit, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if tools.count("commit") != 0 {
		t.Errorf("commit calls = %d, want 0", tools.count("commit"))
	}
	for i, f := range files {
		if got := readFile(t, f); got != "new\n" {
			t.Errorf("%s = %q, want unchanged", f, got)
		}
		if _, err := os.Stat(f + ".bak"); !os.IsNotExist(err) {
			t.Errorf("%s: unexpected backup", f)
		}
		if report.Results[i].State != StateSkipped {
			t.Errorf("result %d state = %q, want skipped", i, report.Results[i].State)
		}
	}
	if report.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", report.Skipped)
	}
}

func TestRun_UnknownDecisionAborts(t *testing.T) {
	files := workspace(t, "one.txt", "two.txt")
	tools := &fakeTools{
		t:    t,
		diff: diffFor(files...),
		decisions: map[string]string{
			files[0]: "MAYBE",
			files[1]: "ACCEPT",
		},
		merged: "merged\n",
	}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModeCommit, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)

	var decErr *DecisionError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected *DecisionError, got %T: %v", err, err)
	}
	if decErr.Token != "MAYBE" {
		t.Errorf("Token = %q, want MAYBE", decErr.Token)
	}
	if tools.count("commit") != 0 {
		t.Error("nothing may be committed after an unknown decision")
	}
	if tools.count("decide") != 1 {
		t.Errorf("decide calls = %d, want 1 (run must stop)", tools.count("decide"))
	}
	if got := readFile(t, files[0]); got != "new\n" {
		t.Errorf("working file = %q, want unchanged", got)
	}
	if report == nil || report.Aborted == "" {
		t.Error("report should carry the abort reason")
	}
}

func TestRun_PreviewInvokesViewerPerChunk(t *testing.T) {
	files := workspace(t, "one.txt", "two.txt")
	tools := &fakeTools{t: t, diff: diffFor(files...)}

	r, collector, _ := newTestReviewer(tools, Options{Mode: ModePreview, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if tools.count("preview") != 2 {
		t.Errorf("preview calls = %d, want 2", tools.count("preview"))
	}
	if tools.count("decide") != 0 || tools.count("commit") != 0 {
		t.Errorf("preview mode must not decide or commit: %v", tools.calls)
	}
	for _, res := range report.Results {
		if res.State != StateSkipped {
			t.Errorf("%s state = %q, want skipped", res.Filename, res.State)
		}
		assertTrail(t, res, StateSplit, StateReconstructed, StatePreviewed, StateSkipped)
	}
	if snap := collector.Snapshot(); snap.Previews != 2 || snap.ChunksTotal != 2 {
		t.Errorf("unexpected metrics: %+v", snap)
	}
}

func TestRun_CommitFailureContinues(t *testing.T) {
	files := workspace(t, "one.txt", "two.txt")
	tools := &fakeTools{
		t:         t,
		diff:      diffFor(files...),
		decisions: map[string]string{files[0]: "ACCEPT", files[1]: "ACCEPT"},
		commitErr: map[string]error{files[0]: errors.New("up-to-date check failed")},
	}

	r, collector, _ := newTestReviewer(tools, Options{Mode: ModeCommit, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if tools.count("commit") != 2 {
		t.Errorf("commit calls = %d, want 2", tools.count("commit"))
	}
	if report.Failed != 1 || report.Committed != 1 {
		t.Errorf("failed/committed = %d/%d, want 1/1", report.Failed, report.Committed)
	}
	if !report.HasFailures() {
		t.Error("HasFailures should be true")
	}
	if !strings.Contains(report.Results[0].Error, "up-to-date check failed") {
		t.Errorf("Error = %q", report.Results[0].Error)
	}
	if snap := collector.Snapshot(); snap.CommitFailure != 1 || snap.CommitSuccess != 1 {
		t.Errorf("unexpected metrics: %+v", snap)
	}
}

func TestRun_FailFastStopsAtFirstCommitFailure(t *testing.T) {
	files := workspace(t, "one.txt", "two.txt")
	commitErr := errors.New("locked")
	tools := &fakeTools{
		t:         t,
		diff:      diffFor(files...),
		decisions: map[string]string{files[0]: "ACCEPT", files[1]: "ACCEPT"},
		commitErr: map[string]error{files[0]: commitErr},
	}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModeCommit, FailFast: true, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if !errors.Is(err, commitErr) || !errors.Is(err, ErrFailFast) {
		t.Fatalf("expected fail-fast commit error, got %v", err)
	}
	if tools.count("commit") != 1 {
		t.Errorf("commit calls = %d, want 1", tools.count("commit"))
	}
	if len(report.Results) != 1 {
		t.Errorf("results = %d, want 1", len(report.Results))
	}
}

func TestRun_ReverseFailureIsRecorded(t *testing.T) {
	files := workspace(t, "one.txt", "two.txt")
	tools := &fakeTools{
		t:        t,
		diff:     diffFor(files...),
		patchErr: map[string]error{files[0]: errors.New("exit status 1")},
	}

	r, collector, out := newTestReviewer(tools, Options{Mode: ModePreview, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Results[0].State != StateSplit || !report.Results[0].Failed() {
		t.Errorf("first result = %+v, want failed in split state", report.Results[0])
	}
	if tools.count("preview") != 1 {
		t.Errorf("preview calls = %d, want 1", tools.count("preview"))
	}
	if !strings.Contains(out.String(), "Hunk #1 FAILED") {
		t.Error("patch tool output should be echoed")
	}
	if snap := collector.Snapshot(); snap.ReconstructFailure != 1 || snap.ReconstructSuccess != 1 {
		t.Errorf("unexpected metrics: %+v", snap)
	}
}

func TestRun_SplitErrorAborts(t *testing.T) {
	tools := &fakeTools{t: t, diff: "--- a.txt\n+++ a.txt\n@@ -1,3 +1,3 @@\n a\n"}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModePreview, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)

	var pe *patch.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *patch.ParseError, got %T: %v", err, err)
	}
	if report.Chunks != 0 || len(report.Results) != 0 {
		t.Errorf("no chunk may be reviewed: %+v", report)
	}
}

func TestRun_DiffErrorAborts(t *testing.T) {
	diffErr := &ExecutionError{Command: []string{"cvs", "diff", "-u"}, ExitCode: 1, Stderr: "cvs: not a working copy"}
	tools := &fakeTools{t: t, diffErr: diffErr}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModePreview})
	_, err := r.Run(context.Background(), nil)

	var execErr *ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecutionError, got %T: %v", err, err)
	}
}

func TestRun_EmptyDiff(t *testing.T) {
	tools := &fakeTools{t: t, diff: ""}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModeCommit})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Chunks != 0 || report.HasFailures() {
		t.Errorf("unexpected report: %+v", report)
	}
}

func TestRun_TempFilesRemovedByDefault(t *testing.T) {
	files := workspace(t, "one.txt")
	tempDir := t.TempDir()
	tools := &fakeTools{t: t, diff: diffFor(files...), decisions: map[string]string{files[0]: "REJECT"}}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModeCommit, TempDir: tempDir})
	if _, err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned: %v", entries)
	}
}

func TestRun_FailedReversePatchLeavesNoFiles(t *testing.T) {
	files := workspace(t, "one.txt")
	tempDir := t.TempDir()
	tools := &fakeTools{t: t, diff: diffFor(files...), patchErr: map[string]error{files[0]: errors.New("exit status 1")}}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModeCommit, TempDir: tempDir})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Results[0].Failed() {
		t.Fatal("expected the reverse patch failure to be recorded")
	}

	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir not cleaned: %v", entries)
	}
}

func TestRun_KeepTempListsRejects(t *testing.T) {
	files := workspace(t, "one.txt")
	tools := &fakeTools{t: t, diff: diffFor(files...), patchErr: map[string]error{files[0]: errors.New("exit status 1")}}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModePreview, KeepTemp: true, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	kept := report.Results[0].TempFiles
	if len(kept) != 2 || !strings.HasSuffix(kept[1], ".rej") {
		t.Errorf("kept temp files = %v, want old version and its rejects", kept)
	}
}

func TestRun_KeepTempRecordsPaths(t *testing.T) {
	files := workspace(t, "one.txt")
	tempDir := t.TempDir()
	tools := &fakeTools{t: t, diff: diffFor(files...), decisions: map[string]string{files[0]: "REJECT"}}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModeCommit, KeepTemp: true, TempDir: tempDir})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	kept := report.Results[0].TempFiles
	if len(kept) != 2 {
		t.Fatalf("kept temp files = %v, want old and merged", kept)
	}
	for _, p := range kept {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("kept temp file missing: %v", err)
		}
	}
	if got := readFile(t, kept[0]); got != "old\n" {
		t.Errorf("reconstructed file = %q, want old content", got)
	}
}

func TestRun_DeletedFileUsesEmptyStandIn(t *testing.T) {
	dir := t.TempDir()
	gone := filepath.Join(dir, "gone.txt")
	tools := &fakeTools{t: t, diff: fmt.Sprintf("--- %s\n+++ %s\n@@ -1 +0,0 @@\n-bye\n", gone, patch.DevNull)}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModePreview, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Results[0].Failed() {
		t.Fatalf("unexpected failure: %s", report.Results[0].Error)
	}
	if tools.count("preview "+gone) != 0 {
		t.Error("viewer must not be pointed at a missing working file")
	}
	if tools.count("preview") != 1 {
		t.Errorf("preview calls = %d, want 1", tools.count("preview"))
	}
}

func TestRun_MissingWorkingFileIsNotADeletion(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "moved.txt")
	tools := &fakeTools{t: t, diff: diffFor(missing)}

	r, _, _ := newTestReviewer(tools, Options{Mode: ModePreview, TempDir: t.TempDir()})
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	res := report.Results[0]
	if !strings.Contains(res.Error, "working file "+missing+" is missing") {
		t.Errorf("Error = %q, want missing working file", res.Error)
	}
	if tools.count("patch") != 0 || tools.count("preview") != 0 {
		t.Errorf("nothing should run for a missing working file: %v", tools.calls)
	}
}

func TestRun_CommitMessages(t *testing.T) {
	files := workspace(t, "one.txt", "two.txt")
	tools := &fakeTools{
		t:         t,
		diff:      diffFor(files...),
		decisions: map[string]string{files[0]: "ACCEPT", files[1]: "ACCEPT"},
	}
	var messages []string
	tools.onCommit = func(_, message string) { messages = append(messages, message) }

	opts := Options{
		Mode:    ModeCommit,
		TempDir: t.TempDir(),
		Messages: func(_ context.Context, filename string) (string, error) {
			if filename == files[1] {
				return "", nil
			}
			return "fix " + filepath.Base(filename), nil
		},
	}
	r, _, _ := newTestReviewer(tools, opts)
	report, err := r.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(messages) != 1 || messages[0] != "fix one.txt" {
		t.Errorf("messages = %q, want [\"fix one.txt\"]", messages)
	}
	if !strings.Contains(report.Results[1].Error, "empty commit message") {
		t.Errorf("second result error = %q", report.Results[1].Error)
	}
}

func TestRun_BannerFramesPatchText(t *testing.T) {
	files := workspace(t, "one.txt")
	tools := &fakeTools{t: t, diff: diffFor(files...)}

	r, _, out := newTestReviewer(tools, Options{Mode: ModePreview, TempDir: t.TempDir()})
	if _, err := r.Run(context.Background(), nil); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	rule := strings.Repeat("*", 40)
	text := out.String()
	if strings.Count(text, rule) != 2 {
		t.Errorf("expected two banner rules, got output %q", text)
	}
	if !strings.Contains(text, "+++ "+files[0]) {
		t.Errorf("banner should contain the chunk text: %q", text)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	files := workspace(t, "one.txt")
	tools := &fakeTools{t: t, diff: diffFor(files...)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _, _ := newTestReviewer(tools, Options{Mode: ModePreview, TempDir: t.TempDir()})
	_, err := r.Run(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if tools.count("patch") != 0 {
		t.Error("no chunk may start after cancellation")
	}
}

func assertTrail(t *testing.T, res ChunkResult, want ...State) {
	t.Helper()
	if len(res.Trail) != len(want) {
		t.Errorf("%s trail = %v, want %v", res.Filename, res.Trail, want)
		return
	}
	for i := range want {
		if res.Trail[i] != want[i] {
			t.Errorf("%s trail = %v, want %v", res.Filename, res.Trail, want)
			return
		}
	}
}
