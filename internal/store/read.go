package store

import (
	"context"
	"fmt"
)

const compilationColumns = `run_id, seq, method, level, vectorized, node_count, graph_hash, loops, runtime_version`

// ReadCompilations returns every compilation of method across all runs.
// Results are ordered deterministically: ORDER BY run_id, seq, id.
//
// Returns an empty slice (not nil) if the method was never compiled.
func (s *Store) ReadCompilations(ctx context.Context, method string) ([]Compilation, error) {
	return s.queryCompilations(ctx, `
		SELECT `+compilationColumns+`
		FROM compilations
		WHERE method = ?
		ORDER BY run_id ASC, seq ASC, id COLLATE BINARY ASC
	`, method)
}

// CountCompilations returns the number of compilations of method across all
// runs.
func (s *Store) CountCompilations(ctx context.Context, method string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compilations WHERE method = ?`, method).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count compilations: %w", err)
	}
	return n, nil
}

// ReadRun returns the compile log of one run.
func (s *Store) ReadRun(ctx context.Context, runID string) (RunLog, error) {
	comps, err := s.queryCompilations(ctx, `
		SELECT `+compilationColumns+`
		FROM compilations
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return RunLog{}, err
	}

	deopts, err := s.readRunDeoptimizations(ctx, runID)
	if err != nil {
		return RunLog{}, err
	}

	return RunLog{RunID: runID, Compilations: comps, Deoptimizations: deopts}, nil
}

// Runs returns the ids of every run in the log, oldest first. Run ids are
// UUIDv7, so lexical order is creation order.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id FROM compilations
		UNION
		SELECT run_id FROM deoptimizations
		ORDER BY run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) queryCompilations(ctx context.Context, query string, args ...any) ([]Compilation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compilations: %w", err)
	}
	defer rows.Close()

	var comps []Compilation
	for rows.Next() {
		c, err := scanCompilation(rows)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}

	// Return empty slice instead of nil
	if comps == nil {
		comps = []Compilation{}
	}
	return comps, nil
}

func (s *Store) readRunDeoptimizations(ctx context.Context, runID string) ([]Deoptimization, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, method, level, reason
		FROM deoptimizations
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query deoptimizations: %w", err)
	}
	defer rows.Close()

	deopts := []Deoptimization{}
	for rows.Next() {
		var d Deoptimization
		if err := rows.Scan(&d.RunID, &d.Seq, &d.Method, &d.Level, &d.Reason); err != nil {
			return nil, fmt.Errorf("scan deoptimization: %w", err)
		}
		deopts = append(deopts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deoptimizations: %w", err)
	}
	return deopts, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompilation(r rowScanner) (Compilation, error) {
	var (
		c          Compilation
		vectorized int
		loopsJSON  string
	)
	err := r.Scan(&c.RunID, &c.Seq, &c.Method, &c.Level, &vectorized, &c.NodeCount, &c.GraphHash, &loopsJSON, &c.RuntimeVersion)
	if err != nil {
		return Compilation{}, fmt.Errorf("scan compilation: %w", err)
	}
	c.Vectorized = vectorized != 0
	c.Loops, err = unmarshalLoops(loopsJSON)
	if err != nil {
		return Compilation{}, err
	}
	return c, nil
}
