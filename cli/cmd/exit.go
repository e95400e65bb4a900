package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/patchreview/patch"
	"github.com/pithecene-io/patchreview/review"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitPartial   = 1
	exitExecution = 2
	exitParse     = 3
)

// ExitCode maps a command error to the process exit code.
//
//   - nil: 0
//   - fail-fast commit abort: 1
//   - *patch.ParseError or *review.DecisionError: 3
//   - anything else: 2
func ExitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var parseErr *patch.ParseError
	var decisionErr *review.DecisionError
	switch {
	case errors.As(err, &parseErr), errors.As(err, &decisionErr):
		return exitParse
	case errors.Is(err, review.ErrFailFast):
		return exitPartial
	default:
		return exitExecution
	}
}

// exitFor turns a run outcome into a cli.Exit error. A clean run with
// failed chunks exits 1.
func exitFor(report *review.Report, err error) error {
	if err != nil {
		return cli.Exit(err.Error(), ExitCode(err))
	}
	if report != nil && report.HasFailures() {
		return cli.Exit(fmt.Sprintf("%d of %d chunk(s) failed", report.Failed, report.Chunks), exitPartial)
	}
	return nil
}
