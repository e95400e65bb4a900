package history

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/justapithecus/lode/lode"
)

// ErrRunNotFound is returned when no run record matches the requested ID.
var ErrRunNotFound = errors.New("run not found")

// Filter narrows ListRuns. Zero values match everything.
type Filter struct {
	VCS   string
	RunID string
	// Limit caps the number of runs returned; 0 means no limit.
	Limit int
}

// ListRuns returns recorded runs, most recent snapshot first.
func ListRuns(ctx context.Context, ds lode.Dataset, f Filter) ([]RunSummary, error) {
	var runs []RunSummary
	err := scan(ctx, ds, f, RecordKindRun, func(m map[string]any) bool {
		runs = append(runs, runSummaryFromMap(m))
		return f.Limit <= 0 || len(runs) < f.Limit
	})
	return runs, err
}

// Chunks returns the chunk records of one run in index order.
func Chunks(ctx context.Context, ds lode.Dataset, runID string) ([]ChunkSummary, error) {
	var chunks []ChunkSummary
	found := false
	err := scan(ctx, ds, Filter{RunID: runID}, "", func(m map[string]any) bool {
		switch toString(m["record_kind"]) {
		case RecordKindRun:
			found = true
		case RecordKindChunk:
			chunks = append(chunks, chunkSummaryFromMap(m))
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	slices.SortFunc(chunks, func(a, b ChunkSummary) int { return cmp.Compare(a.Index, b.Index) })
	return chunks, nil
}

// scan visits records latest snapshot first. Manifest paths are a coarse
// pre-filter; record fields are authoritative. visit returns false to stop.
func scan(ctx context.Context, ds lode.Dataset, f Filter, kind string, visit func(map[string]any) bool) error {
	snapshots, err := ds.Snapshots(ctx)
	if err != nil {
		return WrapReadError(err, "patchreview/snapshots")
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, "vcs", f.VCS) || !snapshotMatches(snap, "run_id", f.RunID) ||
			!snapshotMatches(snap, "record_kind", kind) {
			continue
		}

		data, err := ds.Read(ctx, snap.ID)
		if err != nil {
			return WrapReadError(err, fmt.Sprintf("patchreview/snapshot/%s", snap.ID))
		}
		for _, item := range data {
			record, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if kind != "" && toString(record["record_kind"]) != kind {
				continue
			}
			if f.VCS != "" && toString(record["vcs"]) != f.VCS {
				continue
			}
			if f.RunID != "" && toString(record["run_id"]) != f.RunID {
				continue
			}
			if !visit(record) {
				return nil
			}
		}
	}
	return nil
}

// snapshotMatches checks whether any file in the snapshot sits under the
// key=value partition. An empty value matches everything.
func snapshotMatches(snap *lode.DatasetSnapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if hasPartition(f.Path, key, value) {
			return true
		}
	}
	return false
}

// hasPartition matches an exact key=value path segment, so run_id=run-1
// never matches run_id=run-10.
func hasPartition(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
