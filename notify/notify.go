// Package notify publishes a review-completed event to downstream systems
// once a review run finishes.
//
// Notification is best effort: a failed publish is logged by the caller and
// never changes the run's exit code.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pithecene-io/patchreview/review"
)

// EventType is the event_type of every published event.
const EventType = "review_completed"

// Event is the payload published when a review run finishes.
type Event struct {
	EventType  string `json:"event_type"`
	Version    string `json:"version"`
	RunID      string `json:"run_id"`
	VCS        string `json:"vcs"`
	Mode       string `json:"mode"`
	Outcome    string `json:"outcome"` // success, partial, aborted
	Chunks     int    `json:"chunks"`
	Committed  int    `json:"committed"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Aborted    string `json:"aborted,omitempty"`
	Timestamp  string `json:"timestamp"` // RFC 3339
	DurationMs int64  `json:"duration_ms"`
	// Files lists the committed files.
	Files []string `json:"files,omitempty"`
}

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeAborted = "aborted"
)

// NewEvent builds the event for a finished report.
func NewEvent(report *review.Report, now time.Time) *Event {
	e := &Event{
		EventType:  EventType,
		Version:    report.Version,
		RunID:      report.RunID,
		VCS:        report.VCS,
		Mode:       string(report.Mode),
		Outcome:    OutcomeSuccess,
		Chunks:     report.Chunks,
		Committed:  report.Committed,
		Skipped:    report.Skipped,
		Failed:     report.Failed,
		Aborted:    report.Aborted,
		Timestamp:  now.UTC().Format(time.RFC3339),
		DurationMs: report.DurationMs,
	}
	switch {
	case report.Aborted != "":
		e.Outcome = OutcomeAborted
	case report.HasFailures():
		e.Outcome = OutcomePartial
	}
	for _, res := range report.Results {
		if res.State == review.StateCommitted {
			e.Files = append(e.Files, res.Filename)
		}
	}
	return e
}

// Notifier publishes events to a downstream system.
type Notifier interface {
	// Publish sends the event. Must respect context cancellation.
	Publish(ctx context.Context, event *Event) error

	// Close releases notifier resources.
	Close() error
}

// Multi fans an event out to several notifiers and joins their errors.
type Multi []Notifier

// Publish sends event to every notifier, even after a failure.
func (m Multi) Publish(ctx context.Context, event *Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every notifier.
func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BackoffBase is the delay before the first retry; each later retry doubles it.
var BackoffBase = 500 * time.Millisecond

// Retry calls attempt up to 1+retries times with exponential backoff between
// calls. attempt returns done=true to stop early, successful or not.
func Retry(ctx context.Context, name string, retries int, attempt func(ctx context.Context) (done bool, err error)) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * BackoffBase
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(backoff):
			}
		}

		done, err := attempt(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if done {
			return fmt.Errorf("%s: non-retriable error: %w", name, err)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
