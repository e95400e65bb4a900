// Package history records review runs in a Lode dataset so past runs can be
// listed and audited.
//
// Records use a Hive layout partitioned by vcs/day/run_id/record_kind. Each
// run writes one run record plus one record per chunk in a single snapshot.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/patchreview/review"
)

// DefaultDataset is the dataset ID runs are recorded under.
const DefaultDataset = "patchreview"

// Record kinds.
const (
	RecordKindRun   = "run"
	RecordKindChunk = "chunk"
)

// partitionKeys is the Hive layout shared by the write and read paths.
var partitionKeys = []string{"vcs", "day", "run_id", "record_kind"}

// DeriveDay computes the partition day from run start time.
// Format: YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// NewDataset opens the history dataset on the given store factory.
// Use lode.NewMemoryFactory() for testing.
func NewDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// Recorder writes review reports to a dataset.
type Recorder struct {
	dataset lode.Dataset
}

// NewRecorder wraps an open dataset.
func NewRecorder(ds lode.Dataset) *Recorder {
	return &Recorder{dataset: ds}
}

// Record writes the run record and every chunk record of report as one
// snapshot.
func (r *Recorder) Record(ctx context.Context, report *review.Report) error {
	if report == nil {
		return nil
	}
	day := DeriveDay(report.StartedAt)

	records := make([]any, 0, len(report.Results)+1)
	records = append(records, toRunRecordMap(report, day))
	for _, res := range report.Results {
		records = append(records, toChunkRecordMap(report, res, day))
	}

	if _, err := r.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, fmt.Sprintf("%s/run_id=%s", day, report.RunID))
	}
	return nil
}
