package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/agentstation/keysync/pkg/audit"
	"github.com/agentstation/keysync/pkg/errors"
	"github.com/agentstation/keysync/pkg/provision"
	"github.com/agentstation/keysync/pkg/sources"
)

const entryColumns = `master_key, source_system, source_key, status, strategy, run_id,
	created_at, updated_at, activated_at, deprecated_at`

// statusRank orders statuses inside SQL so an upsert never moves an entry
// back in its lifecycle.
const statusRank = `CASE %s WHEN 'proposed' THEN 0 WHEN 'active' THEN 1 ELSE 2 END`

var upsertEntrySQL = fmt.Sprintf(`
	INSERT INTO master_keys (%s)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(master_key) DO UPDATE SET
		status        = excluded.status,
		updated_at    = excluded.updated_at,
		activated_at  = COALESCE(master_keys.activated_at, excluded.activated_at),
		deprecated_at = COALESCE(master_keys.deprecated_at, excluded.deprecated_at)
	WHERE %s <= %s
`, entryColumns,
	fmt.Sprintf(statusRank, "master_keys.status"),
	fmt.Sprintf(statusRank, "excluded.status"))

// MasterKey returns the committed entry for masterKey.
func (s *Store) MasterKey(ctx context.Context, masterKey string) (provision.Entry, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM master_keys WHERE master_key = ?`, masterKey)
	e, err := scanEntry(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return provision.Entry{}, false, nil
	}
	if err != nil {
		return provision.Entry{}, false, errors.WrapResource("read", "master key", masterKey, err)
	}
	return e, true, nil
}

// Entries returns the registry ordered by master key, optionally limited to
// the given statuses.
func (s *Store) Entries(ctx context.Context, statuses ...provision.Status) ([]provision.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM master_keys`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		marks := make([]string, len(statuses))
		for i, st := range statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		query += ` WHERE status IN (` + strings.Join(marks, ", ") + `)`
	}
	query += ` ORDER BY master_key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WrapResource("list", "registry", "", err)
	}
	defer rows.Close()

	var out []provision.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, errors.WrapResource("list", "registry", "", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Transition stores a status change of an entry together with its audit
// event. It only applies while the committed status is still from, so two
// concurrent changes cannot both succeed.
func (s *Store) Transition(ctx context.Context, from provision.Status, e provision.Entry, ev audit.Event) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE master_keys
			SET status = ?, updated_at = ?, activated_at = ?, deprecated_at = ?
			WHERE master_key = ? AND status = ?
		`, string(e.Status), toNanos(e.UpdatedAt), nullNanos(e.ActivatedAt), nullNanos(e.DeprecatedAt),
			e.MasterKey, string(from))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &errors.InvalidStateTransitionError{
				MasterKey: e.MasterKey,
				From:      from.String(),
				To:        e.Status.String(),
			}
		}
		return insertEvents(ctx, tx, []audit.Event{ev})
	})
	if err != nil && !errors.IsInvalidTransition(err) {
		return errors.WrapPersistence("transition "+e.MasterKey, ev.RunID, 0, err)
	}
	return err
}

func upsertEntries(ctx context.Context, tx *sql.Tx, entries []provision.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, upsertEntrySQL)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx,
			e.MasterKey, string(e.SourceSystem), e.SourceKey, string(e.Status), string(e.Strategy), e.RunID,
			toNanos(e.CreatedAt), toNanos(e.UpdatedAt), nullNanos(e.ActivatedAt), nullNanos(e.DeprecatedAt),
		); err != nil {
			return fmt.Errorf("upsert %s: %w", e.MasterKey, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (provision.Entry, error) {
	var (
		e                   provision.Entry
		system, st, strat   string
		created, updated    int64
		activated, deprecat sql.NullInt64
	)
	if err := row.Scan(&e.MasterKey, &system, &e.SourceKey, &st, &strat, &e.RunID,
		&created, &updated, &activated, &deprecat); err != nil {
		return provision.Entry{}, err
	}
	e.SourceSystem = sources.ID(system)
	e.Status = provision.Status(st)
	e.Strategy = provision.Strategy(strat)
	e.CreatedAt = fromNanos(created)
	e.UpdatedAt = fromNanos(updated)
	e.ActivatedAt = timePtr(activated)
	e.DeprecatedAt = timePtr(deprecat)
	return e, nil
}
