package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	All      bool // replay every run, not just one
}

// ReplayDrift is one compilation that no longer reproduces.
type ReplayDrift struct {
	Name     string `json:"name"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed,omitempty"`
	Text     string `json:"text,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ReplayRunResult holds the replay result for a single run.
type ReplayRunResult struct {
	RunID         string        `json:"run_id"`
	Seq           int64         `json:"seq"`
	Source        string        `json:"source"`
	Checked       int           `json:"checked"`
	Deterministic bool          `json:"deterministic"`
	Drifts        []ReplayDrift `json:"drifts,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []ReplayRunResult `json:"runs"`
	AllDeterministic bool              `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay [run-id]",
		Short: "Recompile a logged run and verify determinism",
		Long: `Recompile every query recorded in a compile log run and compare the
query hash with the recorded one. Any difference is drift: the compiler
no longer produces the same AQL for the same pipeline.

Without a run ID the latest run is replayed.

Exit codes:
  0 - Every compilation reproduced
  1 - Drift detected
  2 - Command error (log not found, unknown run, etc.)

Examples:
  aqlc replay --db ./aqlc.db
  aqlc replay --db ./aqlc.db 3f0c9a52-7d1e-4b7a-9a43-1c2f4e8b6d10
  aqlc replay --db ./aqlc.db --all --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var runID string
			if len(args) == 1 {
				runID = args[0]
			}
			return runReplay(cmd.Context(), opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the compile log (default from config)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "replay every run")

	return cmd
}

// openLog opens an existing compile log. store.Open would create a
// missing file, which hides typos in --db.
func openLog(flag string, cfg *Config) (*store.Store, error) {
	path := databasePath(flag, cfg)
	if path == "" {
		return nil, errors.New("no compile log: pass --db or set db in the config")
	}
	if path != ":memory:" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("compile log not found: %s", path)
		}
	}
	return store.Open(path)
}

func runReplay(ctx context.Context, opts *ReplayOptions, runID string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openLog(opts.Database, opts.config())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
	}
	defer st.Close()

	var runIDs []string
	switch {
	case runID != "":
		runIDs = []string{runID}
	case opts.All:
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.ID)
		}
	default:
		latest, err := st.LatestRun(ctx)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, err.Error(), nil)
		}
		runIDs = []string{latest.ID}
	}

	if len(runIDs) == 0 {
		if opts.Format == "json" {
			return formatter.Success(ReplayResult{Runs: []ReplayRunResult{}, AllDeterministic: true})
		}
		fmt.Fprintln(formatter.Writer, "No runs found in compile log.")
		return nil
	}

	result := ReplayResult{Runs: make([]ReplayRunResult, 0, len(runIDs)), AllDeterministic: true}
	for _, id := range runIDs {
		replayed, err := st.Replay(ctx, id, nil)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("replaying run %s: %v", id, err), nil)
		}
		opts.logger().Debug("run replayed", "run", id, "checked", replayed.Checked, "drifts", len(replayed.Drifts))

		rr := ReplayRunResult{
			RunID:         replayed.Run.ID,
			Seq:           replayed.Run.Seq,
			Source:        replayed.Run.Source,
			Checked:       replayed.Checked,
			Deterministic: replayed.Clean(),
		}
		for _, d := range replayed.Drifts {
			drift := ReplayDrift{Name: d.Name, Recorded: d.Recorded, Replayed: d.Replayed, Text: d.Text}
			if d.Err != nil {
				drift.Error = d.Err.Error()
			}
			rr.Drifts = append(rr.Drifts, drift)
		}
		if !rr.Deterministic {
			result.AllDeterministic = false
		}
		result.Runs = append(result.Runs, rr)
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDrift,
			Message: "replay produced different queries",
		}
	}
	if err := formatter.JSON(response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "drift detected")
	}
	return nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	for _, r := range result.Runs {
		mark := "✓"
		if !r.Deterministic {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s run %d (%s): %d checked, %d drifted\n", mark, r.Seq, truncateID(r.RunID), r.Checked, len(r.Drifts))
		for _, d := range r.Drifts {
			if d.Error != "" {
				fmt.Fprintf(w, "  %s: %s\n", d.Name, d.Error)
				continue
			}
			fmt.Fprintf(w, "  %s: %s -> %s\n", d.Name, truncateID(d.Recorded), truncateID(d.Replayed))
			if formatter.Verbose {
				fmt.Fprintln(w, indentLines(d.Text, "    "))
			}
		}
	}

	if !result.AllDeterministic {
		fmt.Fprintln(w, "\n✗ Drift detected")
		return NewExitError(ExitFailure, "drift detected")
	}
	fmt.Fprintln(w, "\n✓ All runs reproduce")
	return nil
}
