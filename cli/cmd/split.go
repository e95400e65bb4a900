package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/patchreview/cli/render"
	"github.com/pithecene-io/patchreview/cli/tui"
	"github.com/pithecene-io/patchreview/patch"
)

// SplitCommand returns the split command.
// It lists the per-file chunks of a patch without touching the working copy.
func SplitCommand() *cli.Command {
	return &cli.Command{
		Name:  "split",
		Usage: "Split a unified diff into per-file chunks and list them",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "input",
				Aliases: []string{"i"},
				Usage:   "Patch file to read (default: stdin)",
			},
			&cli.IntFlag{
				Name:  "show",
				Usage: "Print the patch-tool input for the chunk at this index instead of the listing",
				Value: -1,
			},
		}, ReadOnlyFlags()...),
		Action: splitAction,
	}
}

func splitAction(c *cli.Context) error {
	env, err := newRunEnv(c, "split")
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}
	defer func() { _ = env.logger.Sync() }()

	raw, err := readInput(c.String("input"))
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}

	chunks, err := patch.Split(raw)
	if err != nil {
		return cli.Exit(err.Error(), ExitCode(err))
	}
	env.logger.Debug("patch split", map[string]any{"chunks": len(chunks), "bytes": len(raw)})

	if c.IsSet("show") {
		i := c.Int("show")
		if i < 0 || i >= len(chunks) {
			return cli.Exit(fmt.Sprintf("chunk index %d out of range (have %d)", i, len(chunks)), exitExecution)
		}
		_, err := io.WriteString(c.App.Writer, chunks[i].PatchInput())
		return err
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitExecution)
	}
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewChunks, chunks)
	}
	return r.Render(render.ChunkRows(chunks))
}

// readInput reads the named file, or stdin when path is empty or "-".
func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read patch: %w", err)
	}
	return string(data), nil
}
