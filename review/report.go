package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pithecene-io/patchreview/metrics"
	"github.com/pithecene-io/patchreview/types"
)

// State is a chunk's position in the review state machine:
// split, reconstructed, then previewed or decided, then committed or skipped.
type State string

// Chunk states.
const (
	StateSplit         State = "split"
	StateReconstructed State = "reconstructed"
	StatePreviewed     State = "previewed"
	StateDecided       State = "decided"
	StateCommitted     State = "committed"
	StateSkipped       State = "skipped"
)

// Mode selects between reviewing only and reviewing with commits.
type Mode string

// Review modes.
const (
	ModePreview Mode = "preview"
	ModeCommit  Mode = "commit"
)

// ChunkResult records what happened to one chunk.
type ChunkResult struct {
	Index    int    `json:"index" yaml:"index"`
	Filename string `json:"filename" yaml:"filename"`
	Hunks    int    `json:"hunks" yaml:"hunks"`
	State    State  `json:"state" yaml:"state"`
	// Trail lists every state the chunk passed through, State last.
	Trail    []State  `json:"trail" yaml:"trail"`
	Decision Decision `json:"decision,omitempty" yaml:"decision,omitempty"`
	Backup   string   `json:"backup,omitempty" yaml:"backup,omitempty"`
	// TempFiles lists temporaries kept on disk for audit.
	TempFiles []string `json:"temp_files,omitempty" yaml:"temp_files,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
}

// advance moves the chunk to state.
func (r *ChunkResult) advance(state State) {
	r.State = state
	r.Trail = append(r.Trail, state)
}

// Failed reports whether the chunk ended in an error.
func (r ChunkResult) Failed() bool {
	return r.Error != ""
}

// Report is the structured outcome of a review run, written by --report.
type Report struct {
	Version    string        `json:"version" yaml:"version"`
	RunID      string        `json:"run_id" yaml:"run_id"`
	Mode       Mode          `json:"mode" yaml:"mode"`
	VCS        string        `json:"vcs" yaml:"vcs"`
	StartedAt  time.Time     `json:"started_at" yaml:"started_at"`
	DurationMs int64         `json:"duration_ms" yaml:"duration_ms"`
	Chunks     int           `json:"chunks" yaml:"chunks"`
	Committed  int           `json:"committed" yaml:"committed"`
	Skipped    int           `json:"skipped" yaml:"skipped"`
	Failed     int           `json:"failed" yaml:"failed"`
	Results    []ChunkResult `json:"results" yaml:"results"`
	// Aborted holds the error that stopped the run early.
	Aborted string            `json:"aborted,omitempty" yaml:"aborted,omitempty"`
	Metrics *metrics.Snapshot `json:"metrics" yaml:"metrics"`
}

func newReport(runID string, mode Mode, vcs string, started time.Time) *Report {
	return &Report{
		Version:   types.ReportVersion,
		RunID:     runID,
		Mode:      mode,
		VCS:       vcs,
		StartedAt: started,
		Results:   []ChunkResult{},
	}
}

// add appends a chunk result and updates the totals.
func (r *Report) add(res ChunkResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Failed():
		r.Failed++
	case res.State == StateCommitted:
		r.Committed++
	default:
		r.Skipped++
	}
}

// finish stamps duration, abort reason and the metrics snapshot.
func (r *Report) finish(end time.Time, snap metrics.Snapshot, aborted error) {
	r.DurationMs = end.Sub(r.StartedAt).Milliseconds()
	r.Metrics = &snap
	if aborted != nil {
		r.Aborted = aborted.Error()
	}
}

// HasFailures reports whether any chunk failed.
func (r *Report) HasFailures() bool {
	return r.Failed > 0
}

// WriteReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeReportTo writes report JSON to any writer.
func writeReportTo(report *Report, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
