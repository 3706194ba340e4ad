package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Database   string
	Query      string // show the latest compilation of one query
	SourceHash string // show every compilation of one source
}

// LogRun is one run in the run listing.
type LogRun struct {
	ID              string `json:"id"`
	Seq             int64  `json:"seq"`
	Source          string `json:"source"`
	CompilerVersion string `json:"compiler_version"`
	Compilations    int    `json:"compilations"`
}

// LogCompilation is one recorded compilation.
type LogCompilation struct {
	RunID      string         `json:"run_id"`
	Seq        int64          `json:"seq"`
	Name       string         `json:"name"`
	Collection string         `json:"collection"`
	Pipeline   string         `json:"pipeline"`
	Params     map[string]any `json:"params,omitempty"`
	Text       string         `json:"text"`
	BindVars   map[string]any `json:"bind_vars,omitempty"`
	Output     string         `json:"output"`
	SourceHash string         `json:"source_hash"`
	QueryHash  string         `json:"query_hash"`
}

// LogResult is the log command output. Runs is set when listing runs,
// Compilations otherwise.
type LogResult struct {
	Runs         []LogRun         `json:"runs,omitempty"`
	Run          *LogRun          `json:"run,omitempty"`
	Compilations []LogCompilation `json:"compilations,omitempty"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log [run-id]",
		Short: "Inspect the compile log",
		Long: `Inspect the compile log written by compile --db.

Without arguments every run is listed. With a run ID the compilations of
that run are shown in order. --query shows the most recent compilation of
a named query across runs; --source-hash finds every compilation of the
same pipeline and parameters.

Examples:
  aqlc log --db ./aqlc.db
  aqlc log --db ./aqlc.db 3f0c9a52-7d1e-4b7a-9a43-1c2f4e8b6d10
  aqlc log --db ./aqlc.db --query by-name
  aqlc log --db ./aqlc.db --format json -v`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			return runLog(cmd.Context(), opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the compile log (default from config)")
	cmd.Flags().StringVar(&opts.Query, "query", "", "show the latest compilation of this query")
	cmd.Flags().StringVar(&opts.SourceHash, "source-hash", "", "show compilations with this source hash")

	return cmd
}

func runLog(ctx context.Context, opts *LogOptions, runID string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openLog(opts.Database, opts.config())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	result, err := readLog(ctx, st, opts, runID)
	if errors.Is(err, store.ErrNotFound) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	outputLogText(formatter.Writer, result, opts.Verbose)
	return nil
}

func readLog(ctx context.Context, st *store.Store, opts *LogOptions, runID string) (LogResult, error) {
	switch {
	case opts.Query != "":
		c, err := st.LatestByName(ctx, opts.Query)
		if err != nil {
			return LogResult{}, err
		}
		return LogResult{Compilations: []LogCompilation{toLogCompilation(c)}}, nil

	case opts.SourceHash != "":
		comps, err := st.FindBySourceHash(ctx, opts.SourceHash)
		if err != nil {
			return LogResult{}, err
		}
		return LogResult{Compilations: toLogCompilations(comps)}, nil

	case runID != "":
		run, err := st.ReadRun(ctx, runID)
		if err != nil {
			return LogResult{}, err
		}
		comps, err := st.ReadCompilations(ctx, runID)
		if err != nil {
			return LogResult{}, err
		}
		lr := toLogRun(run)
		return LogResult{Run: &lr, Compilations: toLogCompilations(comps)}, nil

	default:
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return LogResult{}, err
		}
		out := make([]LogRun, len(runs))
		for i, r := range runs {
			out[i] = toLogRun(r)
		}
		return LogResult{Runs: out}, nil
	}
}

func toLogRun(r store.Run) LogRun {
	return LogRun{
		ID:              r.ID,
		Seq:             r.Seq,
		Source:          r.Source,
		CompilerVersion: r.CompilerVersion,
		Compilations:    r.Compilations,
	}
}

func toLogCompilations(comps []store.Compilation) []LogCompilation {
	out := make([]LogCompilation, len(comps))
	for i, c := range comps {
		out[i] = toLogCompilation(c)
	}
	return out
}

func toLogCompilation(c store.Compilation) LogCompilation {
	return LogCompilation{
		RunID:      c.RunID,
		Seq:        c.Seq,
		Name:       c.Name,
		Collection: c.Collection,
		Pipeline:   c.Pipeline,
		Params:     c.Params,
		Text:       c.Text,
		BindVars:   c.BindVars,
		Output:     c.Output,
		SourceHash: c.SourceHash,
		QueryHash:  c.QueryHash,
	}
}

// outputLogText outputs the log result as text.
func outputLogText(w io.Writer, result LogResult, verbose bool) {
	if result.Runs != nil || (result.Run == nil && result.Compilations == nil) {
		if len(result.Runs) == 0 {
			fmt.Fprintln(w, "No runs found in compile log.")
			return
		}
		for _, r := range result.Runs {
			fmt.Fprintf(w, "[%d] %s  %s  (%d compilation(s))\n", r.Seq, r.ID, r.Source, r.Compilations)
		}
		return
	}

	if result.Run != nil {
		fmt.Fprintf(w, "Run %d: %s\n", result.Run.Seq, result.Run.ID)
		fmt.Fprintf(w, "Source: %s\n", result.Run.Source)
		fmt.Fprintf(w, "Compiler: %s\n\n", result.Run.CompilerVersion)
	}
	if len(result.Compilations) == 0 {
		fmt.Fprintln(w, "  (no compilations)")
		return
	}
	for _, c := range result.Compilations {
		fmt.Fprintf(w, "[%d] %s (%s, %s)  %s\n", c.Seq, c.Name, c.Collection, c.Output, truncateID(c.QueryHash))
		if verbose {
			fmt.Fprintf(w, "     Pipeline: %s\n", c.Pipeline)
			if len(c.Params) > 0 {
				fmt.Fprintf(w, "     Params: %s\n", formatArgs(c.Params))
			}
			if len(c.BindVars) > 0 {
				fmt.Fprintf(w, "     Bind vars: %s\n", formatArgs(c.BindVars))
			}
			fmt.Fprintln(w, indentLines(c.Text, "     "))
		}
	}
}

// formatArgs formats a map for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID or hash for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

func indentLines(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
