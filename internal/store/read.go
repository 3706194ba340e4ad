package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a run or compilation does not exist.
var ErrNotFound = errors.New("not found")

const compilationColumns = `
	run_id, seq, name, collection, pipeline, params, param_types, fields, functions,
	source_hash, text, bind_vars, output, query_hash`

const joinedCompilationColumns = `
	c.run_id, c.seq, c.name, c.collection, c.pipeline, c.params, c.param_types, c.fields, c.functions,
	c.source_hash, c.text, c.bind_vars, c.output, c.query_hash`

// ListRuns returns every run in seq order.
// Returns an empty slice (not nil) if the log is empty.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.seq, r.source, r.compiler_version, r.format_version,
		       (SELECT COUNT(*) FROM compilations c WHERE c.run_id = r.id)
		FROM runs r
		ORDER BY r.seq ASC, r.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Seq, &r.Source, &r.CompilerVersion, &r.FormatVersion, &r.Compilations); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the run with the highest seq.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY seq DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return s.ReadRun(ctx, id)
}

// ReadRun returns a run by ID.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.seq, r.source, r.compiler_version, r.format_version,
		       (SELECT COUNT(*) FROM compilations c WHERE c.run_id = r.id)
		FROM runs r
		WHERE r.id = ?
	`, runID).Scan(&r.ID, &r.Seq, &r.Source, &r.CompilerVersion, &r.FormatVersion, &r.Compilations)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("run %s: %w", runID, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// ReadCompilations returns the compilations of a run in write order.
// Returns an empty slice (not nil) if the run has none.
func (s *Store) ReadCompilations(ctx context.Context, runID string) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+compilationColumns+`
		FROM compilations
		WHERE run_id = ?
		ORDER BY seq ASC, name COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return out, nil
}

// LatestByName returns the most recent compilation of the named query
// across all runs.
func (s *Store) LatestByName(ctx context.Context, name string) (Compilation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT`+joinedCompilationColumns+`
		FROM compilations c
		JOIN runs r ON r.id = c.run_id
		WHERE c.name = ?
		ORDER BY r.seq DESC
		LIMIT 1
	`, name)
	c, err := scanCompilation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Compilation{}, fmt.Errorf("compilation %s: %w", name, ErrNotFound)
	}
	return c, err
}

// FindBySourceHash returns every logged compilation of identical inputs,
// oldest run first.
func (s *Store) FindBySourceHash(ctx context.Context, sourceHash string) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT`+joinedCompilationColumns+`
		FROM compilations c
		JOIN runs r ON r.id = c.run_id
		WHERE c.source_hash = ?
		ORDER BY r.seq ASC, c.seq ASC, c.name COLLATE BINARY ASC
	`, sourceHash)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompilation(row scanner) (Compilation, error) {
	var (
		c                                   Compilation
		params, paramTypes, fields, functions, bindVars string
	)
	err := row.Scan(
		&c.RunID, &c.Seq, &c.Name, &c.Collection, &c.Pipeline,
		&params, &paramTypes, &fields, &functions,
		&c.SourceHash, &c.Text, &bindVars, &c.Output, &c.QueryHash,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Compilation{}, err
		}
		return Compilation{}, fmt.Errorf("scan compilation: %w", err)
	}

	if c.Params, err = unmarshalValues(params); err != nil {
		return Compilation{}, fmt.Errorf("compilation %s: params: %w", c.Name, err)
	}
	if c.BindVars, err = unmarshalValues(bindVars); err != nil {
		return Compilation{}, fmt.Errorf("compilation %s: bind vars: %w", c.Name, err)
	}
	if c.ParamTypes, err = unmarshalStrings(paramTypes); err != nil {
		return Compilation{}, fmt.Errorf("compilation %s: param types: %w", c.Name, err)
	}
	if c.Fields, err = unmarshalStrings(fields); err != nil {
		return Compilation{}, fmt.Errorf("compilation %s: fields: %w", c.Name, err)
	}
	if c.Functions, err = unmarshalStrings(functions); err != nil {
		return Compilation{}, fmt.Errorf("compilation %s: functions: %w", c.Name, err)
	}
	return c, nil
}
