// Package cmd provides CLI commands for the patchreview binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags for commands that only print.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select commands (split).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (split only)",
	}
)

// Global flags, readable from every subcommand.
var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config file (default: ./.patchreview.yaml if present)",
		EnvVars: []string{"PATCHREVIEW_CONFIG"},
	}

	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging",
	}

	LogFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Usage: "Log encoding: console, json",
	}
)

// VCSFlag selects the VCS profile.
var VCSFlag = &cli.StringFlag{
	Name:  "vcs",
	Usage: "VCS profile: cvs, svn, git (default: config or cvs)",
}

// ReadOnlyFlags returns the shared flags for all printing commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// GlobalFlags returns the app-level flags.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		ConfigFlag,
		VerboseFlag,
		LogFormatFlag,
	}
}
