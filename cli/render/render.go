// Package render provides output rendering for the patchreview CLI.
//
// Format selection rules:
//   - If output is a TTY, default to table
//   - If output is not a TTY, default to json
//   - --format flag always overrides defaults
//   - Invalid formats are errors
//
// Color handling:
//   - --no-color affects table output only
//   - TUI mode is unaffected by --no-color (uses its own styling)
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pithecene-io/patchreview/cli/tui"
	"github.com/pithecene-io/patchreview/history"
	"github.com/pithecene-io/patchreview/patch"
	"github.com/pithecene-io/patchreview/review"
)

// Format represents an output format.
type Format string

// Supported formats.
const (
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string, returning an error for invalid formats.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "table":
		return FormatTable, nil
	case "yaml":
		return FormatYAML, nil
	case "":
		return "", nil // Let caller decide default
	default:
		return "", fmt.Errorf("invalid format: %q (must be json, table, or yaml)", s)
	}
}

// Renderer handles output formatting.
type Renderer struct {
	format  Format
	noColor bool
	out     io.Writer
}

// NewRenderer creates a renderer from CLI context.
func NewRenderer(c *cli.Context) (*Renderer, error) {
	format, err := ParseFormat(c.String("format"))
	if err != nil {
		return nil, err
	}

	if format == "" {
		if isTTY(os.Stdout) {
			format = FormatTable
		} else {
			format = FormatJSON
		}
	}

	var out io.Writer = os.Stdout
	if c.App != nil && c.App.Writer != nil {
		out = c.App.Writer
	}

	return &Renderer{
		format:  format,
		noColor: c.Bool("no-color"),
		out:     out,
	}, nil
}

// NewRendererWithWriter creates a renderer with a custom writer (for testing).
func NewRendererWithWriter(format Format, noColor bool, out io.Writer) *Renderer {
	return &Renderer{
		format:  format,
		noColor: noColor,
		out:     out,
	}
}

// Format returns the selected output format.
func (r *Renderer) Format() Format {
	return r.format
}

// Render outputs the data in the configured format.
func (r *Renderer) Render(data any) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case FormatTable:
		return r.renderTable(data)
	case FormatYAML:
		enc := yaml.NewEncoder(r.out)
		enc.SetIndent(2)
		if err := enc.Encode(data); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format: %s", r.format)
	}
}

// RenderTUI initiates TUI mode for the given view type.
// TUI is opt-in only and read-only.
func (r *Renderer) RenderTUI(viewType string, data any) error {
	if !tui.IsTUISupported(viewType) {
		return fmt.Errorf("--tui is not supported for %s", viewType)
	}
	return tui.Run(viewType, data)
}

// ChunkRow is one line of the split command's listing.
type ChunkRow struct {
	Index    int    `json:"index" yaml:"index"`
	Filename string `json:"filename" yaml:"filename"`
	Hunks    int    `json:"hunks" yaml:"hunks"`
	OldName  string `json:"old_name" yaml:"old_name"`
	NewName  string `json:"new_name" yaml:"new_name"`
}

// ChunkRows converts split chunks into listing rows.
func ChunkRows(chunks []patch.Chunk) []ChunkRow {
	rows := make([]ChunkRow, len(chunks))
	for i, c := range chunks {
		rows[i] = ChunkRow{Index: i, Filename: c.Filename, Hunks: c.Hunks, OldName: c.OldName, NewName: c.NewName}
	}
	return rows
}

func (r *Renderer) renderTable(data any) error {
	switch v := data.(type) {
	case *review.Report:
		return r.renderReport(v)
	case []ChunkRow:
		return r.renderChunkRows(v)
	case []history.RunSummary:
		return r.renderRuns(v)
	case []history.ChunkSummary:
		return r.renderChunkSummaries(v)
	default:
		return r.renderStructTable(data)
	}
}

func (r *Renderer) renderChunkRows(rows []ChunkRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(r.out, "(no chunks)")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFILE\tHUNKS\tOLD\tNEW")
	for _, row := range rows {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", row.Index, row.Filename, row.Hunks, row.OldName, row.NewName)
	}
	return w.Flush()
}

func (r *Renderer) renderReport(report *review.Report) error {
	fmt.Fprintf(r.out, "%s %s (%s, %s) in %dms\n",
		r.style(tui.TitleStyle.Render, "review"), report.RunID, report.Mode, report.VCS, report.DurationMs)
	fmt.Fprintf(r.out, "%d chunk(s): %s, %s, %s\n",
		report.Chunks,
		r.style(tui.StateStyle("committed").Render, fmt.Sprintf("%d committed", report.Committed)),
		r.style(tui.StateStyle("skipped").Render, fmt.Sprintf("%d skipped", report.Skipped)),
		r.style(tui.StateStyle("failed").Render, fmt.Sprintf("%d failed", report.Failed)),
	)
	if report.Aborted != "" {
		fmt.Fprintf(r.out, "%s %s\n", r.style(tui.ErrorStyle.Render, "aborted:"), report.Aborted)
	}
	if len(report.Results) == 0 {
		return nil
	}

	fmt.Fprintln(r.out)
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFILE\tSTATE\tDECISION\tERROR")
	for _, res := range report.Results {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", res.Index, res.Filename, res.State, res.Decision, res.Error)
	}
	return w.Flush()
}

func (r *Renderer) renderRuns(runs []history.RunSummary) error {
	if len(runs) == 0 {
		fmt.Fprintln(r.out, "(no runs)")
		return nil
	}

	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSTARTED\tVCS\tMODE\tCHUNKS\tCOMMITTED\tSKIPPED\tFAILED")
	for _, run := range runs {
		failed := strconv.FormatInt(run.Failed, 10)
		if run.Failed > 0 || run.Aborted != "" {
			failed = r.style(tui.ErrorStyle.Render, failed)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.RunID, run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.VCS, run.Mode,
			run.Chunks, run.Committed, run.Skipped, failed)
	}
	return w.Flush()
}

func (r *Renderer) renderChunkSummaries(chunks []history.ChunkSummary) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tFILE\tSTATE\tDECISION\tERROR")
	for _, c := range chunks {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", c.Index, c.Filename, c.State, c.Decision, c.Error)
	}
	return w.Flush()
}

// style applies fn unless color is disabled.
func (r *Renderer) style(fn func(...string) string, text string) string {
	if r.noColor {
		return text
	}
	return fn(text)
}

func (r *Renderer) renderStructTable(data any) error {
	w := tabwriter.NewWriter(r.out, 0, 0, 2, ' ', 0)

	v := reflect.ValueOf(data)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			fmt.Fprintf(w, "%s:\t%v\n", fieldName(t.Field(i)), v.Field(i).Interface())
		}
	default:
		fmt.Fprintf(w, "%v\n", data)
	}
	return w.Flush()
}

func fieldName(f reflect.StructField) string {
	if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
		return name
	}
	return strings.ToLower(f.Name)
}

// isTTY returns true if the file is a terminal.
func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
