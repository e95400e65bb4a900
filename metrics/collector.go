// Package metrics provides per-run counters for a review session.
//
// The Collector accumulates counters during a single run. It is a leaf package
// with no internal dependencies; decision tokens are recorded as plain strings.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the run counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Chunks
	ChunksTotal int64 `json:"chunks_total" yaml:"chunks_total"`

	// Reconstruction (reverse patch)
	ReconstructSuccess int64 `json:"reconstruct_success" yaml:"reconstruct_success"`
	ReconstructFailure int64 `json:"reconstruct_failure" yaml:"reconstruct_failure"`

	// Viewer
	Previews  int64            `json:"previews" yaml:"previews"`
	Decisions map[string]int64 `json:"decisions" yaml:"decisions"`

	// Working copy
	Backups       int64 `json:"backups" yaml:"backups"`
	CommitSuccess int64 `json:"commit_success" yaml:"commit_success"`
	CommitFailure int64 `json:"commit_failure" yaml:"commit_failure"`

	// Dimensions (informational, set at construction)
	Mode  string `json:"mode" yaml:"mode"`
	VCS   string `json:"vcs" yaml:"vcs"`
	RunID string `json:"run_id" yaml:"run_id"`
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	chunksTotal        int64
	reconstructSuccess int64
	reconstructFailure int64
	previews           int64
	decisions          map[string]int64
	backups            int64
	commitSuccess      int64
	commitFailure      int64

	// Dimensions
	mode  string
	vcs   string
	runID string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(mode, vcs, runID string) *Collector {
	return &Collector{
		decisions: make(map[string]int64),
		mode:      mode,
		vcs:       vcs,
		runID:     runID,
	}
}

// add runs fn under the lock unless c is nil.
func (c *Collector) add(fn func()) {
	if c == nil {
		return
	}
	c.mu.Lock()
	fn()
	c.mu.Unlock()
}

// AddChunks records the number of chunks produced by the splitter.
func (c *Collector) AddChunks(n int) {
	c.add(func() { c.chunksTotal += int64(n) })
}

// IncReconstructSuccess records a successful reverse patch.
func (c *Collector) IncReconstructSuccess() {
	c.add(func() { c.reconstructSuccess++ })
}

// IncReconstructFailure records a reverse patch the patch tool rejected.
func (c *Collector) IncReconstructFailure() {
	c.add(func() { c.reconstructFailure++ })
}

// IncPreview records a preview-mode viewer invocation.
func (c *Collector) IncPreview() {
	c.add(func() { c.previews++ })
}

// IncDecision records a viewer decision by token.
func (c *Collector) IncDecision(token string) {
	c.add(func() { c.decisions[token]++ })
}

// IncBackup records a working file copied to its .bak before overwrite.
func (c *Collector) IncBackup() {
	c.add(func() { c.backups++ })
}

// IncCommitSuccess records a successful VCS commit.
func (c *Collector) IncCommitSuccess() {
	c.add(func() { c.commitSuccess++ })
}

// IncCommitFailure records a failed or skipped VCS commit.
func (c *Collector) IncCommitFailure() {
	c.add(func() { c.commitFailure++ })
}

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{Decisions: map[string]int64{}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	decisions := make(map[string]int64, len(c.decisions))
	for k, v := range c.decisions {
		decisions[k] = v
	}

	return Snapshot{
		ChunksTotal:        c.chunksTotal,
		ReconstructSuccess: c.reconstructSuccess,
		ReconstructFailure: c.reconstructFailure,
		Previews:           c.previews,
		Decisions:          decisions,
		Backups:            c.backups,
		CommitSuccess:      c.commitSuccess,
		CommitFailure:      c.commitFailure,

		Mode:  c.mode,
		VCS:   c.vcs,
		RunID: c.runID,
	}
}
