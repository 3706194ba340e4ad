package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/compiler"
	"github.com/roach88/aqlc/internal/ir"
	"github.com/roach88/aqlc/internal/qcache"
	"github.com/roach88/aqlc/internal/querydef"
	"github.com/roach88/aqlc/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Params   []string // name=value overrides
	OutDir   string   // directory for .aql and bind variable files
	Database string   // compile log
	Watch    bool
}

// CompiledQuery is one compiled definition.
type CompiledQuery struct {
	Name       string         `json:"name"`
	Collection string         `json:"collection"`
	Text       string         `json:"text"`
	BindVars   map[string]any `json:"bind_vars"`
	Output     string         `json:"output"`
	Hash       string         `json:"hash"`
}

// CompileResult holds every compiled query of one invocation.
type CompileResult struct {
	Source  string          `json:"source"`
	Queries []CompiledQuery `json:"queries"`
	RunID   string          `json:"run_id,omitempty"`
	Files   []string        `json:"files,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <definitions> [query...]",
		Short: "Compile query definitions to AQL",
		Long: `Compile named query definitions to AQL text and bind variables.

Definitions are a CUE file, a CUE package directory, or a YAML file.
Without query names every definition is compiled. Parameter overrides
apply to each selected query that declares the parameter.

Exit codes:
  0 - All queries compiled
  2 - Definition or compile error

Examples:
  aqlc compile ./queries.cue
  aqlc compile ./queries.yaml by-name -p name=B
  aqlc compile ./queries.cue -o ./aql --db ./aqlc.db
  aqlc compile ./queries.cue --watch`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Watch {
				return runWatch(cmd.Context(), opts, args[0], args[1:], cmd)
			}
			return runCompile(cmd.Context(), opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "parameter override name=value (repeatable)")
	cmd.Flags().StringVarP(&opts.OutDir, "out-dir", "o", "", "write <query>.aql and <query>.bindvars.json files")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this compile log")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "recompile when the definitions change")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, path string, names []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	defs, errs := LoadDefinitions(path, opts.config())
	if len(errs) > 0 {
		_ = formatter.Errors("Definitions invalid", errs)
		return NewExitError(ExitCommandError, fmt.Sprintf("%d definition error(s)", len(errs)))
	}

	cache, err := qcache.New(opts.config().CacheSize, defs.Registry, compiler.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "creating compile cache", err)
	}

	result, entries, errs := compileDefinitions(defs, cache, names, opts.Params)
	if len(errs) > 0 {
		_ = formatter.Errors("Compilation failed", errs)
		return NewExitError(ExitCommandError, fmt.Sprintf("%d query error(s)", len(errs)))
	}
	formatter.VerboseLog("Compiled %d query(s) from %s", len(result.Queries), path)

	if opts.OutDir != "" {
		files, err := writeQueryFiles(opts.OutDir, result.Queries)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output files: %v", err), nil)
		}
		result.Files = files
	}

	if db := databasePath(opts.Database, opts.config()); db != "" {
		runID, err := recordRun(ctx, db, path, entries)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("recording run: %v", err), nil)
		}
		result.RunID = runID
		formatter.VerboseLog("Recorded run %s in %s", runID, db)
	}

	return outputCompileSuccess(formatter, result)
}

// compileDefinitions builds and compiles the selected queries. It returns
// the log entries alongside the results so callers can record the run.
func compileDefinitions(defs *Definitions, cache *qcache.Cache, names, rawParams []string) (*CompileResult, []store.Compilation, []CLIError) {
	f := defs.File
	if len(names) == 0 {
		names = f.Names()
	}

	params, err := parseParams(rawParams)
	if err != nil {
		return nil, nil, []CLIError{{Code: querydef.ErrCodeInvalidParam, Message: err.Error()}}
	}

	var errs []CLIError
	used := make(map[string]bool, len(params))
	for _, name := range names {
		def, ok := f.Query(name)
		if !ok {
			errs = append(errs, CLIError{Code: querydef.ErrCodeUnknownQuery, Message: fmt.Sprintf("no query named %q", name), Query: name})
			continue
		}
		for _, p := range def.Params {
			if _, ok := params[p.Name]; ok {
				used[p.Name] = true
			}
		}
	}
	var unused []string
	for k := range params {
		if !used[k] {
			unused = append(unused, k)
		}
	}
	if len(unused) > 0 {
		sort.Strings(unused)
		errs = append(errs, CLIError{
			Code:    querydef.ErrCodeInvalidParam,
			Message: fmt.Sprintf("params not declared by any selected query: %s", strings.Join(unused, ", ")),
		})
	}
	if len(errs) > 0 {
		return nil, nil, errs
	}

	fields, err := f.FieldTypes()
	if err != nil {
		return nil, nil, []CLIError{toCLIError("", err)}
	}
	fieldNames := make(map[string]string, len(fields))
	for k, t := range fields {
		fieldNames[k] = t.String()
	}

	result := &CompileResult{Source: f.Path, Queries: make([]CompiledQuery, 0, len(names))}
	entries := make([]store.Compilation, 0, len(names))
	for _, name := range names {
		def, _ := f.Query(name)
		built, err := f.Build(name, declaredOverrides(def, params))
		if err != nil {
			errs = append(errs, toCLIError(name, err))
			continue
		}

		q, err := cache.Compile(built.Expr, built.Collection)
		if err != nil {
			errs = append(errs, toCLIError(name, err))
			continue
		}

		entry, err := store.NewCompilation(name, built.Collection, built.Source, built.Params, q)
		if err != nil {
			errs = append(errs, toCLIError(name, err))
			continue
		}
		entry.ParamTypes = make(map[string]string, len(def.Params))
		for _, p := range def.Params {
			entry.ParamTypes[p.Name] = p.Type
		}
		entry.Fields = fieldNames
		entry.Functions = defs.Functions

		entries = append(entries, entry)
		result.Queries = append(result.Queries, CompiledQuery{
			Name:       name,
			Collection: built.Collection,
			Text:       q.Text,
			BindVars:   q.BindVars,
			Output:     q.Output.String(),
			Hash:       entry.QueryHash,
		})
	}
	return result, entries, errs
}

func declaredOverrides(def *querydef.Definition, params map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string)
	for _, p := range def.Params {
		if v, ok := params[p.Name]; ok {
			out[p.Name] = v
		}
	}
	return out
}

// writeQueryFiles writes one .aql file and one bind variable file per
// query, named after the slugged query name.
func writeQueryFiles(dir string, queries []CompiledQuery) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var files []string
	seen := make(map[string]string, len(queries))
	for _, q := range queries {
		base := slug.Make(q.Name)
		if base == "" {
			base = "query"
		}
		if other, ok := seen[base]; ok {
			return nil, fmt.Errorf("queries %q and %q share the file name %s", other, q.Name, base)
		}
		seen[base] = q.Name

		bindVars := q.BindVars
		if bindVars == nil {
			bindVars = map[string]any{}
		}
		data, err := ir.MarshalCanonical(bindVars)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", q.Name, err)
		}

		aqlPath := filepath.Join(dir, base+".aql")
		if err := os.WriteFile(aqlPath, []byte(q.Text+"\n"), 0644); err != nil {
			return nil, err
		}
		bindPath := filepath.Join(dir, base+".bindvars.json")
		if err := os.WriteFile(bindPath, data, 0644); err != nil {
			return nil, err
		}
		files = append(files, aqlPath, bindPath)
	}
	return files, nil
}

// recordRun writes the compilations as one run in the compile log.
func recordRun(ctx context.Context, db, source string, entries []store.Compilation) (string, error) {
	st, err := store.Open(db)
	if err != nil {
		return "", err
	}
	defer st.Close()

	run, err := st.RecordRun(ctx, source, entries)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// databasePath prefers the flag over the config's db entry.
func databasePath(flag string, cfg *Config) string {
	if flag != "" {
		return flag
	}
	return cfg.DB
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompileResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d query(s)\n", len(result.Queries))
	for _, q := range result.Queries {
		fmt.Fprintf(w, "\n-- %s (%s, %s)\n", q.Name, q.Collection, q.Output)
		fmt.Fprintln(w, q.Text)
		if len(q.BindVars) > 0 {
			fmt.Fprintf(w, "-- bind vars: %s\n", formatArgs(q.BindVars))
		}
	}
	if len(result.Files) > 0 {
		fmt.Fprintf(w, "\nWrote %d file(s)\n", len(result.Files))
	}
	if result.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", result.RunID)
	}
	return nil
}
