package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/compiler"
	"github.com/roach88/aqlc/internal/lambda"
	"github.com/roach88/aqlc/internal/qcache"
	"github.com/roach88/aqlc/internal/querydef"
	"github.com/roach88/aqlc/internal/queryir"
)

const (
	shellPrompt             = "aql> "
	shellContinuationPrompt = "...> "
	shellHistoryFile        = ".aqlc_history"
)

// Pipeline words offered by tab completion, besides registered callables.
var shellWords = []string{
	"Root.", "scope(",
	"Where(", "Select(", "OrderBy(", "OrderByDescending(", "ThenBy(", "ThenByDescending(",
	"GroupBy(", "Take(", "Skip(", "Distinct()", "SingleOrDefault(",
	"Any(", "Count(", "Sum(", "Min(", "Max(", "Average(", "FirstOrDefault(",
	"new {", "date(\"", "true", "false", "null",
	":help", ":load", ":run", ":collection", ":param", ":unset", ":params", ":stats", ":quit",
}

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Definitions string
	Collection  string
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Compile pipelines interactively",
		Long: `Start an interactive shell that compiles pipeline text to AQL.

Type a pipeline such as Root.Where(x => x.Name == $name) to see its AQL
and bind variables. Unbalanced parentheses continue on the next line.
Type :help for shell commands.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := newShell(opts)
			if err != nil {
				return WrapExitError(ExitCommandError, "starting shell", err)
			}
			if opts.Definitions != "" {
				fmt.Fprintln(cmd.OutOrStdout(), sh.load(opts.Definitions))
			}
			return sh.start(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Definitions, "definitions", "d", "", "load a definition file at start")
	cmd.Flags().StringVarP(&opts.Collection, "collection", "c", "", "root collection for Root")

	return cmd
}

// shell holds the state of one interactive session.
type shell struct {
	opts       *ShellOptions
	file       *querydef.File
	collection string
	params     map[string]any
	raw        map[string]string
	fields     map[string]queryir.Type
	registry   *aql.FunctionRegistry
	cache      *qcache.Cache
}

func newShell(opts *ShellOptions) (*shell, error) {
	registry, err := opts.config().Registry(nil)
	if err != nil {
		return nil, err
	}
	sh := &shell{
		opts:       opts,
		collection: opts.Collection,
		params:     map[string]any{},
		raw:        map[string]string{},
		registry:   registry,
	}
	if err := sh.resetCache(); err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *shell) resetCache() error {
	cache, err := qcache.New(s.opts.config().CacheSize, s.registry, compiler.WithLogger(s.opts.logger()))
	if err != nil {
		return err
	}
	s.cache = cache
	return nil
}

// start runs the read loop until EOF or :quit.
func (s *shell) start(out io.Writer) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(s.complete)

	historyFile := filepath.Join(os.TempDir(), shellHistoryFile)
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Fprintln(out, "aqlc shell. Type :help for commands, Ctrl+D to quit.")

	var buffer strings.Builder
	for {
		prompt := shellPrompt
		if buffer.Len() > 0 {
			prompt = shellContinuationPrompt
		}
		input, err := line.Prompt(prompt)
		if errors.Is(err, liner.ErrPromptAborted) {
			buffer.Reset()
			fmt.Fprintln(out, "^C")
			continue
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "reading input", err)
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(input)
		full := buffer.String()
		if needsMoreInput(full) {
			continue
		}
		buffer.Reset()

		if strings.TrimSpace(full) == "" {
			continue
		}
		line.AppendHistory(full)

		reply, quit := s.exec(full)
		if reply != "" {
			fmt.Fprintln(out, reply)
		}
		if quit {
			return nil
		}
	}
}

// exec handles one complete input and returns the text to show.
func (s *shell) exec(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	switch trimmed {
	case "exit", "quit", ":quit", ":q":
		return "", true
	}
	if strings.HasPrefix(trimmed, ":") {
		return s.command(trimmed), false
	}
	return s.compile(trimmed), false
}

func (s *shell) command(input string) string {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case ":help", ":h":
		return shellHelp
	case ":load":
		if arg == "" {
			return "usage: :load <definitions>"
		}
		return s.load(arg)
	case ":run":
		if arg == "" {
			return "usage: :run <query>"
		}
		return s.run(arg)
	case ":collection":
		if arg == "" {
			return "collection: " + orNone(s.collection)
		}
		s.collection = arg
		return "collection: " + arg
	case ":param":
		return s.setParam(arg)
	case ":unset":
		delete(s.params, arg)
		delete(s.raw, arg)
		return "unset " + arg
	case ":params":
		return s.listParams()
	case ":stats":
		st := s.cache.Stats()
		return fmt.Sprintf("cache: %d entries, %d hits, %d misses", st.Entries, st.Hits, st.Misses)
	default:
		return fmt.Sprintf("unknown command %s (try :help)", name)
	}
}

// load reads a definition file: its collection becomes the root and its
// fields and functions apply to later pipelines.
func (s *shell) load(path string) string {
	defs, errs := LoadDefinitions(path, s.opts.config())
	if len(errs) > 0 {
		lines := make([]string, len(errs))
		for i, e := range errs {
			lines[i] = "error: " + e.String()
		}
		return strings.Join(lines, "\n")
	}
	fields, err := defs.File.FieldTypes()
	if err != nil {
		return "error: " + err.Error()
	}

	s.file = defs.File
	s.fields = fields
	s.registry = defs.Registry
	if s.opts.Collection == "" {
		s.collection = defs.File.Collection
	}
	if err := s.resetCache(); err != nil {
		return "error: " + err.Error()
	}
	return fmt.Sprintf("loaded %d query(s) from %s: %s", len(defs.File.Queries), path, strings.Join(defs.File.Names(), ", "))
}

// run compiles a loaded definition. Shell params override the declared
// values of params the query declares.
func (s *shell) run(name string) string {
	if s.file == nil {
		return "no definitions loaded (use :load)"
	}
	def, ok := s.file.Query(name)
	if !ok {
		return fmt.Sprintf("error: %s: no query named %q", querydef.ErrCodeUnknownQuery, name)
	}
	built, err := s.file.Build(name, declaredOverrides(def, s.raw))
	if err != nil {
		return "error: " + toCLIError(name, err).String()
	}
	q, err := s.cache.Compile(built.Expr, built.Collection)
	if err != nil {
		return "error: " + toCLIError(name, err).String()
	}
	return formatShellQuery(q)
}

func (s *shell) compile(text string) string {
	if s.collection == "" && strings.Contains(text, "Root") {
		return "no root collection (use :collection or :load)"
	}
	expr, err := lambda.Parse(text, lambda.Env{Params: s.params, Fields: s.fields, Location: time.UTC})
	if err != nil {
		return "error: " + err.Error()
	}
	for _, w := range queryir.Validate(expr).Warnings {
		s.opts.logger().Warn("pipeline check", "finding", w)
	}
	q, err := s.cache.Compile(expr, s.collection)
	if err != nil {
		return "error: " + err.Error()
	}
	return formatShellQuery(q)
}

func (s *shell) setParam(arg string) string {
	name, raw, ok := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "usage: :param name=value"
	}
	raw = strings.TrimSpace(raw)
	v, err := querydef.ParseValue(raw, queryir.TypeAny)
	if err != nil {
		return "error: " + err.Error()
	}
	s.params[name] = v
	s.raw[name] = raw
	return fmt.Sprintf("$%s = %s", name, formatValue(v))
}

func (s *shell) listParams() string {
	if len(s.params) == 0 {
		return "(no params)"
	}
	return formatArgs(s.params)
}

// complete offers completions for the last word of the line. A dotted
// word such as Aql.Tr is matched whole first, then by its last segment.
func (s *shell) complete(line string) []string {
	start := strings.LastIndexAny(line, " (,") + 1
	word := line[start:]
	if out := s.matches(line[:start], word); len(out) > 0 {
		return out
	}
	if dot := strings.LastIndex(word, "."); dot >= 0 {
		return s.matches(line[:start+dot+1], word[dot+1:])
	}
	return nil
}

func (s *shell) matches(prefix, word string) []string {
	if word == "" {
		return nil
	}

	candidates := append([]string(nil), shellWords...)
	for _, c := range s.registry.Callables() {
		candidates = append(candidates, c+"(")
	}
	if s.file != nil {
		candidates = append(candidates, s.file.Names()...)
	}

	var out []string
	for _, c := range candidates {
		if strings.HasPrefix(c, word) {
			out = append(out, prefix+c)
		}
	}
	sort.Strings(out)
	return out
}

// needsMoreInput reports whether parentheses, brackets or braces are
// still open outside string literals.
func needsMoreInput(input string) bool {
	depth := 0
	inString := false
	for i := 0; i < len(input); i++ {
		c := input[i]
		if inString {
			switch c {
			case '\\':
				i++
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		}
	}
	return depth > 0
}

func formatShellQuery(q *aql.Query) string {
	var b strings.Builder
	b.WriteString(q.Text)
	if len(q.BindVars) > 0 {
		b.WriteString("\n-- bind vars: ")
		b.WriteString(formatArgs(q.BindVars))
	}
	if q.Output != aql.NormalList {
		b.WriteString("\n-- output: ")
		b.WriteString(q.Output.String())
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

const shellHelp = `Commands:
  :load <file>          load definitions (collection, fields, functions)
  :run <query>          compile a loaded definition
  :collection [name]    show or set the root collection
  :param name=value     bind $name for later pipelines
  :unset name           remove a param
  :params               list params
  :stats                show compile cache counters
  :quit                 leave the shell (or Ctrl+D)

Anything else is compiled as a pipeline, for example:
  Root.Where(x => x.Name == $name).Select(x => x.Name)`
