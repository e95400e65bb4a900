package cmd

import (
	"io"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/patchreview/editor"
	"github.com/pithecene-io/patchreview/iox"
)

// EditCommand returns the edit command.
// It opens the resolved editor, waits for it and prints what was saved.
func EditCommand() *cli.Command {
	return &cli.Command{
		Name:  "edit",
		Usage: "Open the configured editor and print the saved content",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "file",
				Usage: "Edit this file instead of a temporary one",
			},
			&cli.StringFlag{
				Name:  "initial",
				Usage: "Initial content written to the file before the editor starts",
			},
			&cli.BoolFlag{
				Name:  "keep",
				Usage: "Keep the temporary file and print its path to stderr",
			},
			VCSFlag,
		},
		Action: editAction,
	}
}

func editAction(c *cli.Context) error {
	env, err := newRunEnv(c, "edit")
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}
	defer func() { _ = env.logger.Sync() }()

	profile, err := env.cfg.Profile(c.String("vcs"))
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}

	opts := editor.Options{Path: c.String("file"), TempDir: env.cfg.TempDir}
	if c.IsSet("initial") {
		initial := c.String("initial")
		opts.InitialContent = &initial
	}

	ctx, stop := signal.NotifyContext(contextOf(c), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := editor.Spawn(ctx, env.cfg.Resolver(profile), opts)
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}
	defer s.Close()
	env.logger.Debug("editor started", map[string]any{
		"source": s.Command().Source,
		"path":   s.Path(),
	})

	content, err := s.Wait()
	if s.Owned() {
		if c.Bool("keep") {
			env.logger.Sugar().Infof("kept %s", s.Path())
		} else if rmErr := iox.RemoveIfExists(s.Path()); rmErr != nil {
			env.logger.Warn("failed to remove edit file", map[string]any{"path": s.Path(), "error": rmErr})
		}
	}
	if err != nil {
		return cli.Exit(err.Error(), ExitCode(err))
	}

	_, err = io.WriteString(c.App.Writer, content)
	return err
}
