package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/compiler"
	"github.com/roach88/aqlc/internal/ir"
	"github.com/roach88/aqlc/internal/lambda"
	"github.com/roach88/aqlc/internal/queryir"
)

// Recompiler rebuilds the query recorded in a compilation.
type Recompiler func(ctx context.Context, c Compilation) (*aql.Query, error)

// Drift describes a compilation whose replay no longer matches the log.
type Drift struct {
	Name     string
	Recorded string // recorded query hash
	Replayed string // empty when Err is set
	Text     string // replayed text
	Err      error
}

// ReplayResult summarizes a replay of one run.
type ReplayResult struct {
	Run     Run
	Checked int
	Drifts  []Drift
}

// Clean reports whether every compilation replayed identically.
func (r ReplayResult) Clean() bool { return len(r.Drifts) == 0 }

// Replay recompiles every compilation of a run and compares query hashes.
// A nil recompile uses Recompile.
func (s *Store) Replay(ctx context.Context, runID string, recompile Recompiler) (ReplayResult, error) {
	if recompile == nil {
		recompile = Recompile
	}

	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	comps, err := s.ReadCompilations(ctx, runID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	result := ReplayResult{Run: run}
	for _, c := range comps {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		q, err := recompile(ctx, c)
		if err != nil {
			result.Drifts = append(result.Drifts, Drift{Name: c.Name, Recorded: c.QueryHash, Err: err})
			continue
		}
		hash, err := ir.QueryHash(q.Text, q.BindVars, q.Output.String())
		if err != nil {
			result.Drifts = append(result.Drifts, Drift{Name: c.Name, Recorded: c.QueryHash, Err: err})
			continue
		}
		if hash != c.QueryHash {
			result.Drifts = append(result.Drifts, Drift{
				Name:     c.Name,
				Recorded: c.QueryHash,
				Replayed: hash,
				Text:     q.Text,
			})
		}
	}
	return result, nil
}

// Recompile parses the recorded pipeline with the recorded parameters,
// field types and function mappings, then compiles it.
func Recompile(_ context.Context, c Compilation) (*aql.Query, error) {
	fields := make(map[string]queryir.Type, len(c.Fields))
	for name, raw := range c.Fields {
		t, ok := queryir.ParseType(raw)
		if !ok {
			return nil, fmt.Errorf("field %s: unknown type %q", name, raw)
		}
		fields[name] = t
	}

	params := make(map[string]any, len(c.Params))
	for name, v := range c.Params {
		t, _ := queryir.ParseType(c.ParamTypes[name])
		coerced, err := lambda.Coerce(v, t, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("param %s: %w", name, err)
		}
		params[name] = coerced
	}

	functions := aql.DefaultFunctions
	if len(c.Functions) > 0 {
		r, err := functions.Extend(c.Functions)
		if err != nil {
			return nil, err
		}
		functions = r
	}

	expr, err := lambda.Parse(c.Pipeline, lambda.Env{Params: params, Fields: fields, Location: time.UTC})
	if err != nil {
		return nil, err
	}
	return compiler.Compile(expr, c.Collection, compiler.WithFunctions(functions))
}
