package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/dopgraph/internal/oplog"
	"github.com/roach88/dopgraph/internal/session"
	"github.com/roach88/dopgraph/internal/value"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// ErrCorrupt is returned when stored ops do not match their hash.
var ErrCorrupt = errors.New("stored ops do not match their hash")

// LoadDocument reads a saved document back as a script, graphs in the
// order they were saved.
func (s *Store) LoadDocument(ctx context.Context, name string) (*oplog.Script, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, ops_hash
		FROM graphs
		WHERE document = ?
		ORDER BY position ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("load document %s: %w", name, err)
	}
	type graphRow struct {
		name, hash string
	}
	var graphs []graphRow
	for rows.Next() {
		var r graphRow
		if err := rows.Scan(&r.name, &r.hash); err != nil {
			rows.Close()
			return nil, fmt.Errorf("load document %s: scan: %w", name, err)
		}
		graphs = append(graphs, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load document %s: %w", name, err)
	}
	if len(graphs) == 0 {
		return nil, fmt.Errorf("load document %s: %w", name, ErrNotFound)
	}

	script := &oplog.Script{}
	for _, g := range graphs {
		ops, err := s.readOps(ctx, name, g.name)
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", name, err)
		}
		encoded, err := oplog.Encode(ops)
		if err != nil {
			return nil, fmt.Errorf("load document %s: %w", name, err)
		}
		if value.HashWithDomain(value.DomainOps, encoded) != g.hash {
			return nil, fmt.Errorf("load document %s: graph %s: %w", name, g.name, ErrCorrupt)
		}
		script.Graphs = append(script.Graphs, oplog.GraphOps{Name: g.name, Ops: ops})
	}
	return script, nil
}

func (s *Store) readOps(ctx context.Context, document, graphName string) ([]oplog.Op, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, op
		FROM ops
		WHERE document = ? AND graph = ?
		ORDER BY seq ASC
	`, document, graphName)
	if err != nil {
		return nil, fmt.Errorf("query ops: %w", err)
	}
	defer rows.Close()

	ops := []oplog.Op{}
	for rows.Next() {
		var (
			seq  int
			data string
		)
		if err := rows.Scan(&seq, &data); err != nil {
			return nil, fmt.Errorf("scan op: %w", err)
		}
		var op oplog.Op
		if err := op.UnmarshalJSON([]byte(data)); err != nil {
			return nil, fmt.Errorf("graph %s op %d: %w", graphName, seq, err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ops: %w", err)
	}
	return ops, nil
}

// Documents returns the names of saved documents, sorted.
func (s *Store) Documents(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT document FROM graphs ORDER BY document COLLATE BINARY ASC`)
}

// Runs returns the run tokens that recorded passes, sorted. UUIDv7
// tokens sort by creation time.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	return s.queryStrings(ctx, `SELECT DISTINCT run_token FROM passes ORDER BY run_token COLLATE BINARY ASC`)
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return out, nil
}

// ReadPasses returns the pass records of a run ordered by pass number.
//
// Returns an empty slice (not nil) if the run recorded nothing.
func (s *Store) ReadPasses(ctx context.Context, runToken string) ([]session.PassRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token, pass, graph, frame, executed, cache_hits, failed, skipped, duration_ns
		FROM passes
		WHERE run_token = ?
		ORDER BY pass ASC
	`, runToken)
	if err != nil {
		return nil, fmt.Errorf("query passes: %w", err)
	}
	defer rows.Close()

	passes := []session.PassRecord{}
	for rows.Next() {
		rec, err := scanPass(rows)
		if err != nil {
			return nil, err
		}
		passes = append(passes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate passes: %w", err)
	}
	return passes, nil
}

func scanPass(rows *sql.Rows) (session.PassRecord, error) {
	var (
		rec                       session.PassRecord
		executed, failed, skipped string
		durationNS                int64
	)
	err := rows.Scan(&rec.RunToken, &rec.Pass, &rec.Graph, &rec.Frame,
		&executed, &rec.CacheHits, &failed, &skipped, &durationNS)
	if err != nil {
		return rec, fmt.Errorf("scan pass: %w", err)
	}
	if rec.Executed, err = unmarshalStrings(executed); err != nil {
		return rec, err
	}
	if rec.Failed, err = unmarshalStringMap(failed); err != nil {
		return rec, err
	}
	if rec.Skipped, err = unmarshalStrings(skipped); err != nil {
		return rec, err
	}
	rec.Duration = time.Duration(durationNS)
	return rec, nil
}

// ReadFrames returns the frame records of a run ordered by frame number.
func (s *Store) ReadFrames(ctx context.Context, runToken string) ([]session.FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_token, frame, completed, pass
		FROM frames
		WHERE run_token = ?
		ORDER BY frame ASC
	`, runToken)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []session.FrameRecord{}
	for rows.Next() {
		var rec session.FrameRecord
		if err := rows.Scan(&rec.RunToken, &rec.Frame, &rec.Completed, &rec.Pass); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		frames = append(frames, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}

// CompletedFrames returns the completed frame numbers of a run.
func (s *Store) CompletedFrames(ctx context.Context, runToken string) ([]int, error) {
	frames, err := s.ReadFrames(ctx, runToken)
	if err != nil {
		return nil, err
	}
	done := make(map[int]bool)
	for _, f := range frames {
		if f.Completed {
			done[f.Frame] = true
		}
	}
	return sortedInts(done), nil
}
