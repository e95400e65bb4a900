package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/patchreview/cli/render"
	"github.com/pithecene-io/patchreview/history"
	"github.com/pithecene-io/patchreview/metrics"
	"github.com/pithecene-io/patchreview/notify"
	"github.com/pithecene-io/patchreview/review"
)

// ReviewCommand returns the review command.
// Without --commit every chunk is previewed only; with --commit each chunk
// goes through the viewer's decision and is committed on accept or merge.
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:      "review",
		Usage:     "Review (and optionally commit) the working copy one file at a time",
		ArgsUsage: "[paths...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "commit",
				Usage: "Ask the viewer for a decision and commit accepted or merged files",
			},
			&cli.BoolFlag{
				Name:  "fail-fast",
				Usage: "Stop at the first commit failure",
			},
			&cli.BoolFlag{
				Name:  "keep-temp",
				Usage: "Keep reconstructed and merged temporaries on disk",
			},
			&cli.BoolFlag{
				Name:  "edit-message",
				Usage: "Write each commit message in the editor instead of the VCS prompt",
			},
			VCSFlag,
			&cli.StringFlag{
				Name:  "temp-dir",
				Usage: "Directory for temporaries (default: config or system temp dir)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the JSON run report to this path (- for stderr)",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record this run in the configured history",
			},
			&cli.BoolFlag{
				Name:  "no-notify",
				Usage: "Do not publish the review-completed event",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Do not print the run summary",
			},
			FormatFlag,
			NoColorFlag,
		},
		Action: reviewAction,
	}
}

func reviewAction(c *cli.Context) error {
	env, err := newRunEnv(c, "review")
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}
	defer func() { _ = env.logger.Sync() }()

	profile, err := env.cfg.Profile(c.String("vcs"))
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}

	mode := review.ModePreview
	if c.Bool("commit") {
		mode = review.ModeCommit
	}

	opts := review.Options{
		Mode:     mode,
		FailFast: c.Bool("fail-fast"),
		KeepTemp: resolveBool(c, "keep-temp", env.cfg.KeepTemp),
		TempDir:  resolveString(c, "temp-dir", env.cfg.TempDir),
		RunID:    env.runID,
		VCS:      profile.Name,
	}
	if c.Bool("edit-message") {
		opts.Messages = review.EditorMessages(env.cfg.Resolver(profile), opts.TempDir)
	}

	collector := metrics.NewCollector(string(mode), profile.Name, env.runID)
	reviewer := review.New(env.cfg.ExecTools(profile), opts, env.logger, collector)

	ctx, stop := signal.NotifyContext(contextOf(c), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	env.logger.Sugar().Debugf("reviewing %d path(s) with %s profile", c.NArg(), profile.Name)
	report, runErr := reviewer.Run(ctx, c.Args().Slice())

	if path := c.String("report"); path != "" {
		if err := review.WriteReport(report, path); err != nil {
			env.logger.Error("failed to write report", map[string]any{"path": path, "error": err})
		}
	}
	publishRun(ctx, env, report, c.Bool("no-history"), c.Bool("no-notify"))

	if !c.Bool("quiet") {
		r, err := render.NewRenderer(c)
		if err != nil {
			return cli.Exit(err.Error(), exitExecution)
		}
		if err := r.Render(report); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to render summary: %v\n", err)
		}
	}

	return exitFor(report, runErr)
}

// publishTimeout bounds history writes and notifications after the run.
const publishTimeout = 30 * time.Second

// publishRun records report in history and notifies the configured targets.
// Failures are logged and never change the exit code. It runs even after
// an interrupt so aborted runs are recorded too.
func publishRun(ctx context.Context, env *runEnv, report *review.Report, skipHistory, skipNotify bool) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if hc := env.cfg.HistoryConfig(); hc.Enabled() && !skipHistory {
		ds, err := history.Open(ctx, hc)
		if err == nil {
			err = history.NewRecorder(ds).Record(ctx, report)
		}
		if err != nil {
			env.logger.Warn("failed to record run history", map[string]any{"backend": hc.Backend, "error": err})
		} else {
			env.logger.Debug("run recorded", map[string]any{"backend": hc.Backend, "path": hc.Path})
		}
	}

	if skipNotify {
		return
	}
	notifiers, err := env.cfg.Notifiers()
	if err != nil {
		env.logger.Warn("failed to create notifiers", map[string]any{"error": err})
		return
	}
	if len(notifiers) == 0 {
		return
	}
	defer func() { _ = notifiers.Close() }()
	if err := notifiers.Publish(ctx, notify.NewEvent(report, time.Now())); err != nil {
		env.logger.Warn("failed to publish review event", map[string]any{"error": err})
	}
}

// contextOf returns the command's context, or Background when the app was
// run without one.
func contextOf(c *cli.Context) context.Context {
	if c.Context != nil {
		return c.Context
	}
	return context.Background()
}
