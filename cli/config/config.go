package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/patchreview/editor"
	"github.com/pithecene-io/patchreview/history"
	"github.com/pithecene-io/patchreview/log"
	"github.com/pithecene-io/patchreview/notify"
	"github.com/pithecene-io/patchreview/notify/redis"
	"github.com/pithecene-io/patchreview/notify/webhook"
	"github.com/pithecene-io/patchreview/review"
)

// Config represents a .patchreview.yaml configuration file.
// All values are optional and act as defaults for patchreview flags.
// CLI flags always override config values; config values override the
// built-in VCS profile.
type Config struct {
	VCS      string        `yaml:"vcs"`
	Tools    ToolsConfig   `yaml:"tools"`
	Editor   EditorConfig  `yaml:"editor"`
	TempDir  string        `yaml:"temp_dir"`
	KeepTemp bool          `yaml:"keep_temp"`
	Log      LogConfig     `yaml:"log"`
	History  HistoryConfig `yaml:"history"`
	Notify   NotifyConfig  `yaml:"notify"`
}

// ToolsConfig overrides the external commands.
type ToolsConfig struct {
	Diff   Command `yaml:"diff"`
	Commit Command `yaml:"commit"`
	// CommitMessageFlag replaces the profile's message flag. Nil keeps it.
	CommitMessageFlag *string `yaml:"commit_message_flag"`
	Patch             Command `yaml:"patch"`
	Viewer            Command `yaml:"viewer"`
	Title             string  `yaml:"title"`
}

// EditorConfig overrides editor resolution.
type EditorConfig struct {
	// Vars replaces the variable lookup order.
	Vars     []string `yaml:"vars"`
	Fallback Command  `yaml:"fallback"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HistoryConfig selects where review runs are recorded.
type HistoryConfig struct {
	// Backend is "fs" or "s3". Empty disables history.
	Backend string `yaml:"backend"`
	Dataset string `yaml:"dataset"`
	// Path is a directory (fs) or "bucket/prefix" (s3).
	Path         string `yaml:"path"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// NotifyConfig lists the review-completed notification targets.
type NotifyConfig struct {
	Webhook *WebhookConfig `yaml:"webhook"`
	Redis   *RedisConfig   `yaml:"redis"`
}

// WebhookConfig configures the HTTP notifier.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
	Retries *int              `yaml:"retries"`
}

// RedisConfig configures the Redis pub/sub notifier.
type RedisConfig struct {
	URL     string        `yaml:"url"`
	Channel string        `yaml:"channel"`
	Timeout time.Duration `yaml:"timeout"`
	Retries *int          `yaml:"retries"`
}

// Command is an argv. YAML accepts a sequence or a whitespace-separated
// string.
type Command []string

// UnmarshalYAML decodes either form.
func (c *Command) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*c = strings.Fields(value.Value)
		return nil
	case yaml.SequenceNode:
		var argv []string
		if err := value.Decode(&argv); err != nil {
			return err
		}
		*c = argv
		return nil
	default:
		return fmt.Errorf("line %d: command must be a string or a list", value.Line)
	}
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	var errs []error
	if _, err := review.LookupProfile(c.VCS); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", log.FormatJSON, log.FormatConsole:
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Log.Format))
	}
	if err := c.HistoryConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Notify.Webhook != nil && c.Notify.Webhook.URL == "" {
		errs = append(errs, errors.New("notify.webhook.url is required"))
	}
	if c.Notify.Redis != nil && c.Notify.Redis.URL == "" {
		errs = append(errs, errors.New("notify.redis.url is required"))
	}
	return errors.Join(errs...)
}

// Profile returns the VCS profile with the configured overrides applied.
// A non-empty vcs argument takes precedence over the config file.
func (c *Config) Profile(vcs string) (review.Profile, error) {
	if vcs == "" {
		vcs = c.VCS
	}
	p, err := review.LookupProfile(vcs)
	if err != nil {
		return review.Profile{}, err
	}
	if len(c.Tools.Diff) > 0 {
		p.Diff = append([]string(nil), c.Tools.Diff...)
	}
	if len(c.Tools.Commit) > 0 {
		p.Commit = append([]string(nil), c.Tools.Commit...)
	}
	if c.Tools.CommitMessageFlag != nil {
		p.MessageFlag = *c.Tools.CommitMessageFlag
	}
	return p, nil
}

// ExecTools builds the subprocess tools for profile.
func (c *Config) ExecTools(profile review.Profile) *review.ExecTools {
	tools := review.NewExecTools(profile)
	if len(c.Tools.Patch) > 0 {
		tools.Patch = append([]string(nil), c.Tools.Patch...)
	}
	if len(c.Tools.Viewer) > 0 {
		tools.Viewer = append([]string(nil), c.Tools.Viewer...)
	}
	if c.Tools.Title != "" {
		tools.Title = c.Tools.Title
	}
	return tools
}

// Resolver builds the editor resolver for profile.
func (c *Config) Resolver(profile review.Profile) editor.Resolver {
	r := editor.NewResolver(profile.EditorVar)
	if len(c.Editor.Vars) > 0 {
		r.Vars = append([]string(nil), c.Editor.Vars...)
	}
	if len(c.Editor.Fallback) > 0 {
		r.Fallback = append([]string(nil), c.Editor.Fallback...)
	}
	return r
}

// HistoryConfig converts the history section.
func (c *Config) HistoryConfig() history.Config {
	return history.Config{
		Backend: c.History.Backend,
		Dataset: c.History.Dataset,
		Path:    c.History.Path,
		S3: history.S3Config{
			Region:       c.History.Region,
			Endpoint:     c.History.Endpoint,
			UsePathStyle: c.History.UsePathStyle,
		},
	}
}

// Notifiers builds every configured notifier. The result is empty when
// none is configured.
func (c *Config) Notifiers() (notify.Multi, error) {
	var out notify.Multi
	if w := c.Notify.Webhook; w != nil {
		n, err := webhook.New(webhook.Config{
			URL:     w.URL,
			Headers: w.Headers,
			Timeout: w.Timeout,
			Retries: retriesOr(w.Retries, webhook.DefaultRetries),
		})
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if r := c.Notify.Redis; r != nil {
		n, err := redis.New(redis.Config{
			URL:     r.URL,
			Channel: r.Channel,
			Timeout: r.Timeout,
			Retries: retriesOr(r.Retries, redis.DefaultRetries),
		})
		if err != nil {
			_ = out.Close()
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func retriesOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
