package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/constants"
	"github.com/agentstation/keysync/pkg/errors"
)

const runColumns = `run_id, mode, strategy, auto_approve, status, base_run_id, started_at, finished_at,
	checkpoint_offset, fingerprint, progress, stats, error_summary`

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, r audit.Run) error {
	progress, err := encodeBlob(r.Progress)
	if err != nil {
		return err
	}
	stats, err := json.Marshal(r.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`, r.ID, string(r.Mode), r.Strategy, r.AutoApprove, string(r.Status), sql.NullString{String: r.BaseRunID, Valid: r.BaseRunID != ""},
		toNanos(r.StartedAt), nullNanos(r.FinishedAt), r.CheckpointOffset, r.Fingerprint, progress, string(stats), r.ErrorSummary)
	if err != nil {
		return errors.WrapPersistence("create run", r.ID, 0, err)
	}
	return nil
}

// Run reads a run record.
func (s *Store) Run(ctx context.Context, runID string) (audit.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return audit.Run{}, errors.NewNotFoundError("run", runID)
	}
	if err != nil {
		return audit.Run{}, errors.WrapResource("read", "run", runID, err)
	}
	return r, nil
}

// LatestRun returns the most recently started run. With successfulOnly it
// returns the latest completed run, the base of an incremental run.
func (s *Store) LatestRun(ctx context.Context, successfulOnly bool) (audit.Run, bool, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	if successfulOnly {
		query += ` WHERE status IN ('completed', 'completed_with_warnings')`
	}
	query += ` ORDER BY started_at DESC, run_id DESC LIMIT 1`

	r, err := scanRun(s.db.QueryRowContext(ctx, query))
	if stderrors.Is(err, sql.ErrNoRows) {
		return audit.Run{}, false, nil
	}
	if err != nil {
		return audit.Run{}, false, errors.WrapResource("read", "latest run", "", err)
	}
	return r, true, nil
}

// Runs lists runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]audit.Run, error) {
	if limit <= 0 {
		limit = constants.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.WrapResource("list", "runs", "", err)
	}
	defer rows.Close()

	var out []audit.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.WrapResource("list", "runs", "", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Commit writes one checkpoint: the registry upserts, the audit events and
// the run's new offset, fingerprint and progress, in a single transaction.
// The run must be running.
func (s *Store) Commit(ctx context.Context, cp audit.Checkpoint) error {
	progress, err := encodeBlob(cp.Progress)
	if err != nil {
		return errors.WrapPersistence("commit checkpoint", cp.RunID, cp.Offset, err)
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertEntries(ctx, tx, cp.Entries); err != nil {
			return err
		}
		if err := insertEvents(ctx, tx, cp.Events); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE runs SET checkpoint_offset = ?, fingerprint = ?, progress = ?
			WHERE run_id = ? AND status = 'running'
		`, cp.Offset, cp.Fingerprint, progress, cp.RunID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return fmt.Errorf("run %s is not running", cp.RunID)
		}
		return nil
	})
	return errors.WrapPersistence("commit checkpoint", cp.RunID, cp.Offset, err)
}

// SetRunStatus changes the status of an open run. Sealing statuses also
// stamp finished_at.
func (s *Store) SetRunStatus(ctx context.Context, runID string, status audit.Status, summary string) error {
	var finished sql.NullInt64
	if status.IsSealed() {
		finished = sql.NullInt64{Int64: toNanos(time.Now()), Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error_summary = ?, finished_at = ?
		WHERE run_id = ? AND status NOT IN ('completed', 'completed_with_warnings', 'failed')
	`, string(status), summary, finished, runID)
	if err != nil {
		return errors.WrapPersistence("set run status", runID, 0, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return errors.WrapPersistence("set run status", runID, 0, fmt.Errorf("run %s is sealed or missing", runID))
	}
	return nil
}

// SealRun finalizes a run: status, stats, finish time, the given audit events
// and, when snapshot is not nil, the comparison snapshot for the next
// incremental run. All of it is written in one transaction.
func (s *Store) SealRun(ctx context.Context, r audit.Run, snapshot any, events ...audit.Event) error {
	stats, err := json.Marshal(r.Stats)
	if err != nil {
		return errors.WrapPersistence("seal run", r.ID, r.CheckpointOffset, err)
	}
	progress, err := encodeBlob(r.Progress)
	if err != nil {
		return errors.WrapPersistence("seal run", r.ID, r.CheckpointOffset, err)
	}
	var blob []byte
	if snapshot != nil {
		if blob, err = encodeBlob(snapshot); err != nil {
			return errors.WrapPersistence("seal run", r.ID, r.CheckpointOffset, err)
		}
	}

	finished := time.Now()
	if r.FinishedAt != nil {
		finished = *r.FinishedAt
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE runs
			SET status = ?, finished_at = ?, stats = ?, progress = ?, checkpoint_offset = ?, error_summary = ?
			WHERE run_id = ? AND status NOT IN ('completed', 'completed_with_warnings', 'failed')
		`, string(r.Status), toNanos(finished), string(stats), progress, r.CheckpointOffset, r.ErrorSummary, r.ID)
		if err != nil {
			return fmt.Errorf("update run: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil || n == 0 {
			return fmt.Errorf("run %s is sealed or missing", r.ID)
		}
		if err := insertEvents(ctx, tx, events); err != nil {
			return err
		}
		if blob == nil {
			return nil
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO snapshots (run_id, payload, created_at) VALUES (?, ?, ?)
			ON CONFLICT(run_id) DO UPDATE SET payload = excluded.payload, created_at = excluded.created_at
		`, r.ID, blob, toNanos(finished))
		if err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
		return nil
	})
	return errors.WrapPersistence("seal run", r.ID, r.CheckpointOffset, err)
}

// LoadSnapshot decodes the snapshot written when runID was sealed into v.
func (s *Store) LoadSnapshot(ctx context.Context, runID string, v any) error {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE run_id = ?`, runID).Scan(&blob)
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NewNotFoundError("snapshot", runID)
	}
	if err != nil {
		return errors.WrapResource("load", "snapshot", runID, err)
	}
	return errors.WrapResource("decode", "snapshot", runID, decodeBlob(blob, v))
}

func scanRun(row scanner) (audit.Run, error) {
	var (
		r            audit.Run
		mode, status string
		base         sql.NullString
		started      int64
		finished     sql.NullInt64
		progress     []byte
		stats        sql.NullString
	)
	if err := row.Scan(&r.ID, &mode, &r.Strategy, &r.AutoApprove, &status, &base, &started, &finished,
		&r.CheckpointOffset, &r.Fingerprint, &progress, &stats, &r.ErrorSummary); err != nil {
		return audit.Run{}, err
	}
	r.Mode = audit.Mode(mode)
	r.Status = audit.Status(status)
	r.BaseRunID = base.String
	r.StartedAt = fromNanos(started)
	r.FinishedAt = timePtr(finished)
	if len(progress) > 0 {
		if err := decodeBlob(progress, &r.Progress); err != nil {
			return audit.Run{}, fmt.Errorf("run %s progress: %w", r.ID, err)
		}
	}
	if stats.Valid && stats.String != "" {
		if err := json.Unmarshal([]byte(stats.String), &r.Stats); err != nil {
			return audit.Run{}, fmt.Errorf("run %s stats: %w", r.ID, err)
		}
	}
	return r, nil
}
