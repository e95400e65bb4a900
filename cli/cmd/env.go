package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/patchreview/cli/config"
	"github.com/pithecene-io/patchreview/log"
)

// runEnv is what every command starts from: the loaded config, a run ID and
// a logger carrying both.
type runEnv struct {
	cfg    *config.Config
	runID  string
	logger *log.Logger
}

// newRunEnv loads the config named by --config (or the default file) and
// builds the logger for command.
func newRunEnv(c *cli.Context, command string) (*runEnv, error) {
	cfg, err := config.LoadDefault(c.String("config"))
	if err != nil {
		return nil, err
	}

	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	if c.Bool("verbose") {
		level = zapcore.DebugLevel
	}

	runID := uuid.NewString()
	logger, err := log.NewLogger(
		log.RunContext{RunID: runID, Command: command},
		log.Options{Format: resolveString(c, "log-format", cfg.Log.Format), Level: level},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return &runEnv{cfg: cfg, runID: runID, logger: logger}, nil
}

// resolveString returns the CLI value when the flag was set explicitly,
// the config value when non-empty, and the flag default otherwise.
func resolveString(c *cli.Context, name, configVal string) string {
	if c.IsSet(name) {
		return c.String(name)
	}
	if configVal != "" {
		return configVal
	}
	return c.String(name)
}

// resolveBool applies the same precedence to boolean flags. A config value
// of true can only be turned off from the CLI with --name=false.
func resolveBool(c *cli.Context, name string, configVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return configVal || c.Bool(name)
}
