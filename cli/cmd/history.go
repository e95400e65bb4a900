package cmd

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/patchreview/cli/render"
	"github.com/pithecene-io/patchreview/history"
)

// HistoryCommand returns the history command.
// It reads recorded runs and never writes.
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recorded review runs, or the chunks of one run",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:  "run",
				Usage: "Show the chunks of this run ID",
			},
			VCSFlag,
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list (0 = all)",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "history-backend",
				Usage: "History backend: fs, s3 (overrides config)",
			},
			&cli.StringFlag{
				Name:  "history-path",
				Usage: "History directory or bucket/prefix (overrides config)",
			},
		}, ReadOnlyFlags()...),
		Action: historyAction,
	}
}

func historyAction(c *cli.Context) error {
	env, err := newRunEnv(c, "history")
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}
	defer func() { _ = env.logger.Sync() }()

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for history command", 1)
	}

	hc := env.cfg.HistoryConfig()
	hc.Backend = resolveString(c, "history-backend", hc.Backend)
	hc.Path = resolveString(c, "history-path", hc.Path)
	if !hc.Enabled() {
		return cli.Exit("history is not configured (set history.backend in the config or pass --history-backend)", exitExecution)
	}

	ctx := contextOf(c)
	ds, err := history.Open(ctx, hc)
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}

	if runID := c.String("run"); runID != "" {
		chunks, err := history.Chunks(ctx, ds, runID)
		if errors.Is(err, history.ErrRunNotFound) {
			return cli.Exit(err.Error(), exitPartial)
		}
		if err != nil {
			return cli.Exit(err.Error(), exitExecution)
		}
		return r.Render(chunks)
	}

	runs, err := history.ListRuns(ctx, ds, history.Filter{VCS: c.String("vcs"), Limit: c.Int("limit")})
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}
	if runs == nil {
		runs = []history.RunSummary{}
	}
	return r.Render(runs)
}
