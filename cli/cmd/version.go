package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/patchreview/cli/render"
	"github.com/pithecene-io/patchreview/review"
	"github.com/pithecene-io/patchreview/types"
)

// VersionResponse is the response for the version command.
type VersionResponse struct {
	Version       string   `json:"version" yaml:"version"`
	Commit        string   `json:"commit" yaml:"commit"`
	ReportVersion string   `json:"report_version" yaml:"report_version"`
	Profiles      []string `json:"profiles" yaml:"profiles"`
}

// VersionCommand returns the version command.
// It must not run any external tool.
func VersionCommand(commit string) *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "Show version information",
		Flags:  ReadOnlyFlags(),
		Action: versionAction(commit),
	}
}

func versionAction(commit string) cli.ActionFunc {
	return func(c *cli.Context) error {
		r, err := render.NewRenderer(c)
		if err != nil {
			return err
		}

		// TUI not supported for version command
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported for version command", 1)
		}

		return r.Render(VersionResponse{
			Version:       types.Version,
			Commit:        commit,
			ReportVersion: types.ReportVersion,
			Profiles:      review.ProfileNames(),
		})
	}
}
