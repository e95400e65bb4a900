// Package review drives the per-file review and commit loop: split the
// working copy's diff, rebuild each file's old version with the patch tool,
// show old against new in the viewer and act on the decision.
package review

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/pithecene-io/patchreview/iox"
	"github.com/pithecene-io/patchreview/log"
	"github.com/pithecene-io/patchreview/metrics"
	"github.com/pithecene-io/patchreview/patch"
)

// bannerRule frames each chunk's patch text.
var bannerRule = strings.Repeat("*", 40)

// Options configures a Reviewer.
type Options struct {
	Mode Mode
	// FailFast aborts the run on the first commit failure.
	FailFast bool
	// KeepTemp leaves reconstructed and merged temporaries on disk.
	KeepTemp bool
	// TempDir is where temporaries are created. Empty uses os.TempDir.
	TempDir string
	// Messages supplies commit messages. Nil lets the VCS prompt.
	Messages MessageFunc
	// Out receives chunk banners and tool output. Nil means os.Stdout.
	Out io.Writer
	RunID string
	VCS   string
}

// Reviewer runs the review loop over one diff.
type Reviewer struct {
	tools     Tools
	opts      Options
	logger    *log.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// New creates a Reviewer. A nil logger discards log output; a nil collector
// disables counting.
func New(tools Tools, opts Options, logger *log.Logger, collector *metrics.Collector) *Reviewer {
	if opts.Mode == "" {
		opts.Mode = ModePreview
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Reviewer{
		tools:     tools,
		opts:      opts,
		logger:    logger,
		collector: collector,
		now:       time.Now,
	}
}

// Run diffs paths and reviews every resulting chunk in order.
//
// Chunk-level failures (patch tool rejects, viewer or commit errors) are
// recorded in the report and the run continues. A diff failure, a
// *patch.ParseError, a *DecisionError, cancellation, or a commit failure
// under FailFast stops the run; the partial report is returned with the
// error.
func (r *Reviewer) Run(ctx context.Context, paths []string) (*Report, error) {
	report := newReport(r.opts.RunID, r.opts.Mode, r.opts.VCS, r.now())
	err := r.run(ctx, paths, report)
	report.finish(r.now(), r.collector.Snapshot(), err)
	return report, err
}

func (r *Reviewer) run(ctx context.Context, paths []string, report *Report) error {
	raw, err := r.tools.Diff(ctx, paths)
	if err != nil {
		return fmt.Errorf("diff failed: %w", err)
	}

	chunks, err := patch.Split(raw)
	if err != nil {
		return err
	}
	report.Chunks = len(chunks)
	r.collector.AddChunks(len(chunks))
	r.logger.Info("patch split", map[string]any{"chunks": len(chunks), "mode": string(r.opts.Mode)})

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		res, err := r.reviewChunk(ctx, i, chunk)
		report.add(res)
		if err != nil {
			return err
		}
	}
	return nil
}

// chunkContext holds the files touched while reviewing one chunk.
type chunkContext struct {
	working string
	// source is what the patch tool reverse-applies to; differs from
	// working only for deleted files.
	source string
	// newSide is shown as the new version in the viewer.
	newSide string
	oldTemp string
	merged  string
	temps   []string
	// leftovers are files the patch tool may write beside oldTemp.
	leftovers []string
}

func (r *Reviewer) reviewChunk(ctx context.Context, index int, chunk patch.Chunk) (res ChunkResult, err error) {
	res = ChunkResult{Index: index, Filename: chunk.Filename, Hunks: chunk.Hunks}
	res.advance(StateSplit)
	logger := r.logger.With(map[string]any{"file": chunk.Filename, "chunk": index})
	r.banner(chunk)

	cc := &chunkContext{working: chunk.Filename, source: chunk.Filename, newSide: chunk.Filename}
	defer func() {
		r.cleanup(cc, &res, logger)
	}()

	if err := r.prepare(cc, chunk); err != nil {
		return r.fail(res, logger, "prepare", err), nil
	}

	out, perr := r.tools.ReversePatch(ctx, chunk, cc.source, cc.oldTemp)
	if out != "" {
		fmt.Fprintln(r.opts.Out, out)
	}
	if perr != nil {
		r.collector.IncReconstructFailure()
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return r.fail(res, logger, "reverse patch", perr), nil
	}
	r.collector.IncReconstructSuccess()
	res.advance(StateReconstructed)

	if r.opts.Mode == ModePreview {
		return r.preview(ctx, cc, res, logger)
	}
	return r.decide(ctx, cc, res, logger)
}

// prepare creates the temporaries for a chunk. The working file of a
// deleted file is stood in for by an empty file; any other missing working
// file is an error.
func (r *Reviewer) prepare(cc *chunkContext, chunk patch.Chunk) error {
	if _, err := os.Stat(cc.working); errors.Is(err, fs.ErrNotExist) {
		if chunk.NewName != patch.DevNull {
			return fmt.Errorf("working file %s is missing", cc.working)
		}
		empty, err := r.tempFile(cc, "patchreview-empty-")
		if err != nil {
			return err
		}
		cc.source = empty
		cc.newSide = empty
	} else if err != nil {
		return err
	}

	oldTemp, err := r.tempFile(cc, "patchreview-old-")
	if err != nil {
		return err
	}
	cc.oldTemp = oldTemp
	// Patch tools that ignore --reject-file or keep a backup leave these
	// next to the output.
	cc.leftovers = []string{oldTemp + ".rej", oldTemp + ".orig"}

	if r.opts.Mode == ModeCommit {
		merged, err := r.tempFile(cc, "patchreview-merged-")
		if err != nil {
			return err
		}
		cc.merged = merged
	}
	return nil
}

func (r *Reviewer) tempFile(cc *chunkContext, prefix string) (string, error) {
	f, err := os.CreateTemp(r.opts.TempDir, prefix+"*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	name := f.Name()
	cc.temps = append(cc.temps, name)
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	return name, nil
}

func (r *Reviewer) preview(ctx context.Context, cc *chunkContext, res ChunkResult, logger *log.Logger) (ChunkResult, error) {
	r.collector.IncPreview()
	if err := r.tools.Preview(ctx, cc.oldTemp, cc.newSide); err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return r.fail(res, logger, "preview", err), nil
	}
	res.advance(StatePreviewed)
	res.advance(StateSkipped)
	logger.Debug("chunk previewed", nil)
	return res, nil
}

func (r *Reviewer) decide(ctx context.Context, cc *chunkContext, res ChunkResult, logger *log.Logger) (ChunkResult, error) {
	answer, err := r.tools.Decide(ctx, cc.oldTemp, cc.newSide, cc.merged)
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		return r.fail(res, logger, "viewer", err), nil
	}
	if answer = strings.TrimSpace(answer); answer != "" {
		fmt.Fprintln(r.opts.Out, answer)
	}

	decision, err := ParseDecision(answer)
	if err != nil {
		res.Error = err.Error()
		logger.Error("viewer returned an unknown decision", map[string]any{"answer": answer})
		return res, err
	}
	r.collector.IncDecision(string(decision))
	res.advance(StateDecided)
	res.Decision = decision
	logger.Info("decision", map[string]any{"decision": string(decision)})

	if !decision.Commits() {
		res.advance(StateSkipped)
		return res, nil
	}

	if decision == Merged {
		backup, err := r.applyMerge(cc)
		res.Backup = backup
		if err != nil {
			return r.fail(res, logger, "merge", err), nil
		}
	}

	return r.commit(ctx, cc, res, logger)
}

// applyMerge saves the working file to <file>.bak and copies the merged
// result over it. It returns the backup path when one was written.
func (r *Reviewer) applyMerge(cc *chunkContext) (string, error) {
	var backup string
	if cc.newSide == cc.working {
		backup = cc.working + ".bak"
		if err := iox.CopyFile(cc.working, backup); err != nil {
			return "", fmt.Errorf("failed to back up %s: %w", cc.working, err)
		}
		r.collector.IncBackup()
	}
	if err := iox.CopyFile(cc.merged, cc.working); err != nil {
		return backup, fmt.Errorf("failed to write merged result to %s: %w", cc.working, err)
	}
	return backup, nil
}

func (r *Reviewer) commit(ctx context.Context, cc *chunkContext, res ChunkResult, logger *log.Logger) (ChunkResult, error) {
	var message string
	if r.opts.Messages != nil {
		msg, err := r.opts.Messages(ctx, cc.working)
		if err == nil && msg == "" {
			err = errEmptyMessage
		}
		if err != nil {
			r.collector.IncCommitFailure()
			return r.commitFailed(ctx, res, logger, err)
		}
		message = msg
	}

	if err := r.tools.Commit(ctx, cc.working, message); err != nil {
		r.collector.IncCommitFailure()
		return r.commitFailed(ctx, res, logger, err)
	}
	r.collector.IncCommitSuccess()
	res.advance(StateCommitted)
	logger.Info("committed", nil)
	return res, nil
}

func (r *Reviewer) commitFailed(ctx context.Context, res ChunkResult, logger *log.Logger, err error) (ChunkResult, error) {
	res = r.fail(res, logger, "commit", err)
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	if r.opts.FailFast {
		return res, fmt.Errorf("%w: commit of %s failed: %w", ErrFailFast, res.Filename, err)
	}
	return res, nil
}

func (r *Reviewer) fail(res ChunkResult, logger *log.Logger, stage string, err error) ChunkResult {
	res.Error = fmt.Sprintf("%s: %v", stage, err)
	logger.Error("chunk failed", map[string]any{"stage": stage, "error": err})
	return res
}

// cleanup removes the chunk's temporaries, or records them when kept.
func (r *Reviewer) cleanup(cc *chunkContext, res *ChunkResult, logger *log.Logger) {
	if len(cc.temps) == 0 {
		return
	}
	if r.opts.KeepTemp {
		kept := append([]string(nil), cc.temps...)
		for _, p := range cc.leftovers {
			if _, err := os.Stat(p); err == nil {
				kept = append(kept, p)
			}
		}
		res.TempFiles = kept
		logger.Info("temporary files kept", map[string]any{"paths": kept})
		return
	}
	if err := iox.RemoveAll(append(cc.temps, cc.leftovers...)...); err != nil {
		logger.Warn("failed to remove temporary files", map[string]any{"error": err})
	}
}

func (r *Reviewer) banner(chunk patch.Chunk) {
	fmt.Fprintln(r.opts.Out, bannerRule)
	fmt.Fprintln(r.opts.Out, chunk.Text)
	fmt.Fprintln(r.opts.Out, bannerRule)
}
