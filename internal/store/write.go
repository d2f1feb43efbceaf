package store

import (
	"context"
	"fmt"
)

// WriteCompilation inserts a compilation record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same
// (run, seq) twice is silently ignored.
func (s *Store) WriteCompilation(ctx context.Context, c Compilation) error {
	loopsJSON, err := marshalLoops(c.Loops)
	if err != nil {
		return fmt.Errorf("write compilation: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO compilations
		(id, run_id, seq, method, level, vectorized, node_count, graph_hash, loops, runtime_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID(),
		c.RunID,
		c.Seq,
		c.Method,
		c.Level,
		boolToInt(c.Vectorized),
		c.NodeCount,
		c.GraphHash,
		loopsJSON,
		c.RuntimeVersion,
	)
	if err != nil {
		return fmt.Errorf("write compilation: %w", err)
	}
	return nil
}

// WriteDeoptimization inserts a deoptimization record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency.
func (s *Store) WriteDeoptimization(ctx context.Context, d Deoptimization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO deoptimizations
		(id, run_id, seq, method, level, reason)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		d.ID(),
		d.RunID,
		d.Seq,
		d.Method,
		d.Level,
		d.Reason,
	)
	if err != nil {
		return fmt.Errorf("write deoptimization: %w", err)
	}
	return nil
}
