package store

import (
	"context"
	"fmt"

	"github.com/roach88/dopgraph/internal/oplog"
	"github.com/roach88/dopgraph/internal/session"
	"github.com/roach88/dopgraph/internal/value"
)

// SaveDocument stores the op sequences of script under name, replacing
// any document previously saved under that name. The write is atomic.
func (s *Store) SaveDocument(ctx context.Context, name string, script *oplog.Script) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save document %s: begin tx: %w", name, err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM graphs WHERE document = ?`, name); err != nil {
		return fmt.Errorf("save document %s: clear: %w", name, err)
	}

	for pos, g := range script.Graphs {
		encoded, err := oplog.Encode(g.Ops)
		if err != nil {
			return fmt.Errorf("save document %s: graph %s: %w", name, g.Name, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO graphs (document, name, position, ops_hash)
			VALUES (?, ?, ?, ?)
		`, name, g.Name, pos, value.HashWithDomain(value.DomainOps, encoded))
		if err != nil {
			return fmt.Errorf("save document %s: graph %s: %w", name, g.Name, err)
		}

		for seq, op := range g.Ops {
			data, err := op.MarshalJSON()
			if err != nil {
				return fmt.Errorf("save document %s: graph %s op %d: %w", name, g.Name, seq, err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO ops (document, graph, seq, op)
				VALUES (?, ?, ?, ?)
			`, name, g.Name, seq, string(data))
			if err != nil {
				return fmt.Errorf("save document %s: graph %s op %d: %w", name, g.Name, seq, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save document %s: commit: %w", name, err)
	}
	return nil
}

// DeleteDocument removes a saved document. Deleting a missing document is
// not an error.
func (s *Store) DeleteDocument(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM graphs WHERE document = ?`, name); err != nil {
		return fmt.Errorf("delete document %s: %w", name, err)
	}
	return nil
}

// RecordPass inserts a pass record. Writing the same (run token, pass)
// twice keeps the first record.
//
// Implements session.Recorder.
func (s *Store) RecordPass(ctx context.Context, rec session.PassRecord) error {
	executed, err := marshalStrings(rec.Executed)
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}
	failed, err := marshalStringMap(rec.Failed)
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}
	skipped, err := marshalStrings(rec.Skipped)
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO passes
		(run_token, pass, graph, frame, executed, cache_hits, failed, skipped, duration_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_token, pass) DO NOTHING
	`,
		rec.RunToken,
		rec.Pass,
		rec.Graph,
		rec.Frame,
		executed,
		rec.CacheHits,
		failed,
		skipped,
		rec.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("record pass: %w", err)
	}
	return nil
}

// RecordFrame upserts the outcome of a frame. A frame that completed once
// stays completed; the pass column tracks the latest run of the frame.
//
// Implements session.Recorder.
func (s *Store) RecordFrame(ctx context.Context, rec session.FrameRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO frames (run_token, frame, completed, pass)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_token, frame) DO UPDATE SET
			completed = MAX(completed, excluded.completed),
			pass = excluded.pass
	`,
		rec.RunToken,
		rec.Frame,
		rec.Completed,
		rec.Pass,
	)
	if err != nil {
		return fmt.Errorf("record frame: %w", err)
	}
	return nil
}
