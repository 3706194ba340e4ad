package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/aqlc/internal/aql"
	"github.com/roach88/aqlc/internal/ir"
)

// Run is one invocation of the compiler over a set of definitions.
type Run struct {
	ID              string
	Seq             int64
	Source          string
	CompilerVersion string
	FormatVersion   string
	Compilations    int
}

// Compilation is one compiled query in a run: the inputs needed to rebuild
// it and the query it produced.
type Compilation struct {
	RunID      string
	Seq        int64
	Name       string
	Collection string
	Pipeline   string
	Params     map[string]any
	ParamTypes map[string]string
	Fields     map[string]string
	Functions  map[string]string
	SourceHash string
	Text       string
	BindVars   map[string]any
	Output     string
	QueryHash  string
}

// NewCompilation fills the output and hash columns of a log entry from a
// compiled query.
func NewCompilation(name, collection, pipeline string, params map[string]any, q *aql.Query) (Compilation, error) {
	if q == nil {
		return Compilation{}, errors.New("new compilation: nil query")
	}
	sourceHash, err := ir.SourceHash(pipeline, collection, params)
	if err != nil {
		return Compilation{}, fmt.Errorf("new compilation %s: %w", name, err)
	}
	queryHash, err := ir.QueryHash(q.Text, q.BindVars, q.Output.String())
	if err != nil {
		return Compilation{}, fmt.Errorf("new compilation %s: %w", name, err)
	}
	return Compilation{
		Name:       name,
		Collection: collection,
		Pipeline:   pipeline,
		Params:     params,
		SourceHash: sourceHash,
		Text:       q.Text,
		BindVars:   q.BindVars,
		Output:     q.Output.String(),
		QueryHash:  queryHash,
	}, nil
}

// execer is the part of *sql.DB and *sql.Tx the writers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// BeginRun records a new run and returns it. The run ID is a random UUID;
// seq is one past the highest recorded run.
func (s *Store) BeginRun(ctx context.Context, source string) (Run, error) {
	return beginRun(ctx, s.db, source)
}

// RecordRun writes a run and its compilations in one transaction, so a
// failed write leaves no partial run behind.
func (s *Store) RecordRun(ctx context.Context, source string, entries []Compilation) (Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	run, err := beginRun(ctx, tx, source)
	if err != nil {
		return Run{}, err
	}
	for _, c := range entries {
		c.RunID = run.ID
		written, err := writeCompilation(ctx, tx, c)
		if err != nil {
			return Run{}, err
		}
		if written {
			run.Compilations++
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

func beginRun(ctx context.Context, db execer, source string) (Run, error) {
	run := Run{
		ID:              uuid.NewString(),
		Source:          source,
		CompilerVersion: ir.CompilerVersion,
		FormatVersion:   ir.FormatVersion,
	}

	err := db.QueryRowContext(ctx, `
		INSERT INTO runs (id, seq, source, compiler_version, format_version)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		FROM runs
		RETURNING seq
	`,
		run.ID,
		run.Source,
		run.CompilerVersion,
		run.FormatVersion,
	).Scan(&run.Seq)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}

	return run, nil
}

// WriteCompilation appends a compilation to its run.
// Uses ON CONFLICT DO NOTHING for idempotency: writing the same query name
// twice in one run keeps the first entry and reports written == false.
//
// Params and BindVars are serialized to canonical JSON. Seq is assigned by
// the store in write order within the run.
func (s *Store) WriteCompilation(ctx context.Context, c Compilation) (written bool, err error) {
	return writeCompilation(ctx, s.db, c)
}

func writeCompilation(ctx context.Context, db execer, c Compilation) (written bool, err error) {
	if c.RunID == "" {
		return false, errors.New("write compilation: missing run ID")
	}

	params, err := marshalObject(c.Params)
	if err != nil {
		return false, fmt.Errorf("write compilation %s: params: %w", c.Name, err)
	}
	bindVars, err := marshalObject(c.BindVars)
	if err != nil {
		return false, fmt.Errorf("write compilation %s: bind vars: %w", c.Name, err)
	}
	paramTypes, err := marshalObject(c.ParamTypes)
	if err != nil {
		return false, fmt.Errorf("write compilation %s: param types: %w", c.Name, err)
	}
	fields, err := marshalObject(c.Fields)
	if err != nil {
		return false, fmt.Errorf("write compilation %s: fields: %w", c.Name, err)
	}
	functions, err := marshalObject(c.Functions)
	if err != nil {
		return false, fmt.Errorf("write compilation %s: functions: %w", c.Name, err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO compilations
		(run_id, seq, name, collection, pipeline, params, param_types, fields, functions,
		 source_hash, text, bind_vars, output, query_hash)
		SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
		FROM compilations WHERE run_id = ?
		ON CONFLICT DO NOTHING
	`,
		c.RunID,
		c.Name,
		c.Collection,
		c.Pipeline,
		params,
		paramTypes,
		fields,
		functions,
		c.SourceHash,
		c.Text,
		bindVars,
		c.Output,
		c.QueryHash,
		c.RunID,
	)
	if err != nil {
		return false, fmt.Errorf("write compilation %s: %w", c.Name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write compilation %s: %w", c.Name, err)
	}
	return n > 0, nil
}

// DeleteRun removes a run and its compilations.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}
