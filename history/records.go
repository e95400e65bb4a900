package history

import (
	"time"

	"github.com/pithecene-io/patchreview/review"
)

// RunSummary is one recorded run as read back from the dataset.
type RunSummary struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	VCS        string    `json:"vcs" yaml:"vcs"`
	Mode       string    `json:"mode" yaml:"mode"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	DurationMs int64     `json:"duration_ms" yaml:"duration_ms"`
	Chunks     int64     `json:"chunks" yaml:"chunks"`
	Committed  int64     `json:"committed" yaml:"committed"`
	Skipped    int64     `json:"skipped" yaml:"skipped"`
	Failed     int64     `json:"failed" yaml:"failed"`
	Aborted    string    `json:"aborted,omitempty" yaml:"aborted,omitempty"`
}

// ChunkSummary is one recorded chunk outcome.
type ChunkSummary struct {
	RunID    string `json:"run_id" yaml:"run_id"`
	Index    int64  `json:"index" yaml:"index"`
	Filename string `json:"filename" yaml:"filename"`
	State    string `json:"state" yaml:"state"`
	Decision string `json:"decision,omitempty" yaml:"decision,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

func toRunRecordMap(report *review.Report, day string) map[string]any {
	m := map[string]any{
		"record_kind": RecordKindRun,
		"version":     report.Version,
		"run_id":      report.RunID,
		"vcs":         report.VCS,
		"day":         day,
		"mode":        string(report.Mode),
		"started_at":  report.StartedAt.UTC().Format(time.RFC3339Nano),
		"duration_ms": report.DurationMs,
		"chunks":      report.Chunks,
		"committed":   report.Committed,
		"skipped":     report.Skipped,
		"failed":      report.Failed,
	}
	if report.Aborted != "" {
		m["aborted"] = report.Aborted
	}
	if report.Metrics != nil {
		m["decisions"] = report.Metrics.Decisions
		m["backups"] = report.Metrics.Backups
	}
	return m
}

func toChunkRecordMap(report *review.Report, res review.ChunkResult, day string) map[string]any {
	m := map[string]any{
		"record_kind": RecordKindChunk,
		"run_id":      report.RunID,
		"vcs":         report.VCS,
		"day":         day,
		"index":       res.Index,
		"filename":    res.Filename,
		"hunks":       res.Hunks,
		"state":       string(res.State),
	}
	if res.Decision != "" {
		m["decision"] = string(res.Decision)
	}
	if res.Backup != "" {
		m["backup"] = res.Backup
	}
	if res.Error != "" {
		m["error"] = res.Error
	}
	return m
}

func runSummaryFromMap(m map[string]any) RunSummary {
	started, _ := time.Parse(time.RFC3339Nano, toString(m["started_at"]))
	return RunSummary{
		RunID:      toString(m["run_id"]),
		VCS:        toString(m["vcs"]),
		Mode:       toString(m["mode"]),
		StartedAt:  started,
		DurationMs: toInt64(m["duration_ms"]),
		Chunks:     toInt64(m["chunks"]),
		Committed:  toInt64(m["committed"]),
		Skipped:    toInt64(m["skipped"]),
		Failed:     toInt64(m["failed"]),
		Aborted:    toString(m["aborted"]),
	}
}

func chunkSummaryFromMap(m map[string]any) ChunkSummary {
	return ChunkSummary{
		RunID:    toString(m["run_id"]),
		Index:    toInt64(m["index"]),
		Filename: toString(m["filename"]),
		State:    toString(m["state"]),
		Decision: toString(m["decision"]),
		Error:    toString(m["error"]),
	}
}

// toString converts a value to string, returning empty string for nil/non-string.
func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// toInt64 accepts the numeric types a codec may hand back.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
